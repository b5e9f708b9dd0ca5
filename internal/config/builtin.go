package config

import "sync"

// BuiltinVendorDefaults holds the out-of-the-box generation parameters for
// an LLM vendor, used when a user's LLMProviderConfig leaves a field unset.
type BuiltinVendorDefaults struct {
	ModelName   string
	Temperature float64
	MaxTokens   int
}

// BuiltinConfig holds built-in system prompt templates and LLM vendor
// defaults. Its values are fixed in code; nothing from YAML or the database
// is merged into it.
type BuiltinConfig struct {
	SystemTemplates map[string]SystemTemplateDefaults
	VendorDefaults  map[string]BuiltinVendorDefaults
}

// SystemTemplateDefaults seeds a built-in PromptTemplate (models.PromptTemplate
// with IsSystem=true, OwnerUserID=nil).
type SystemTemplateDefaults struct {
	Name               string
	SystemPrompt       string
	UserPromptTemplate string
}

var (
	builtinConfig     *BuiltinConfig
	builtinConfigOnce sync.Once
)

// GetBuiltinConfig returns the singleton built-in configuration.
func GetBuiltinConfig() *BuiltinConfig {
	builtinConfigOnce.Do(func() {
		builtinConfig = &BuiltinConfig{
			SystemTemplates: initBuiltinSystemTemplates(),
			VendorDefaults:  initBuiltinVendorDefaults(),
		}
	})
	return builtinConfig
}

func initBuiltinSystemTemplates() map[string]SystemTemplateDefaults {
	return map[string]SystemTemplateDefaults{
		"default-commentary": {
			Name:         "default-commentary",
			SystemPrompt: "You write a short, genuine-sounding comment reacting to an article. Stay on topic, avoid generic praise, and never mention that you are an AI.",
			UserPromptTemplate: "Article: {article_title} by {article_author} ({article_category}, published {current_date})\n\n" +
				"{article_excerpt}\n\nWrite a comment as {user_nickname} would.",
		},
	}
}

func initBuiltinVendorDefaults() map[string]BuiltinVendorDefaults {
	return map[string]BuiltinVendorDefaults{
		"openai": {
			ModelName:   "gpt-4o-mini",
			Temperature: 0.7,
			MaxTokens:   400,
		},
		"mistral": {
			ModelName:   "mistral-small-latest",
			Temperature: 0.7,
			MaxTokens:   400,
		},
	}
}
