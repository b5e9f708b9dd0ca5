package config

import "time"

// SlackConfig controls the optional operator notification on process
// failure or repeated timeout — disabled unless the YAML slack section
// explicitly turns it on.
type SlackConfig struct {
	Enabled  bool
	TokenEnv string
	Channel  string
}

// YAMLConfig is the shape of deploy/config/yourmoment.yaml.
type YAMLConfig struct {
	Slack *SlackYAMLConfig `yaml:"slack"`
}

// SlackYAMLConfig is the on-disk form of SlackConfig.
type SlackYAMLConfig struct {
	Enabled  *bool  `yaml:"enabled,omitempty"`
	TokenEnv string `yaml:"token_env,omitempty"`
	Channel  string `yaml:"channel,omitempty"`
}

// Config is the umbrella configuration object passed to every long-running
// component (coordinator, stage workers, timeout enforcer, HTTP server).
type Config struct {
	configDir string

	Pipeline *PipelineConfig
	Builtin  *BuiltinConfig
	Slack    *SlackConfig

	DatabaseURL  string `validate:"required"`
	BrokerURL    string `validate:"required"`
	MasterKeyHex string `validate:"required,len=64"`

	HTTPPort string
	GinMode  string
	LogLevel string
}

// ConfigDir returns the directory configuration was loaded from.
func (c *Config) ConfigDir() string {
	return c.configDir
}

// BrokerTaskTTL is how long the broker retains a terminal task's record. Kept here
// rather than in PipelineConfig since it is a broker implementation detail,
// not a pipeline algorithm parameter.
func (c *Config) BrokerTaskTTL() time.Duration {
	return 24 * time.Hour
}
