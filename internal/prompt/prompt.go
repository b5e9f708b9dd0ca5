// Package prompt renders the user-facing generation prompt for a single
// work record: a stateless, thread-safe renderer that takes a template
// string and a context struct and returns rendered text, substituting flat
// literal placeholder tokens.
package prompt

import "regexp"

// ArticleContext carries the values substituted into a template's
// placeholder tokens. Any zero-value field renders as an empty string.
type ArticleContext struct {
	ArticleTitle    string
	ArticleAuthor   string
	ArticleContent  string
	ArticleExcerpt  string
	ArticleCategory string
	CurrentDate     string
	UserNickname    string
}

func (c ArticleContext) values() map[string]string {
	return map[string]string{
		"article_title":    c.ArticleTitle,
		"article_author":   c.ArticleAuthor,
		"article_content":  c.ArticleContent,
		"article_excerpt":  c.ArticleExcerpt,
		"article_category": c.ArticleCategory,
		"current_date":     c.CurrentDate,
		"user_nickname":    c.UserNickname,
	}
}

var placeholderPattern = regexp.MustCompile(`\{[a-z_]+\}`)

// Renderer renders templates against an ArticleContext. Stateless and
// thread-safe — all state comes from the call's arguments.
type Renderer struct{}

// NewRenderer returns a Renderer.
func NewRenderer() *Renderer {
	return &Renderer{}
}

// Render substitutes every recognized {placeholder} token in template with
// its corresponding value from ctx. A placeholder not in the known set is
// left in the output literal, unmodified. A known placeholder with no value
// set on ctx renders as an empty string.
func (r *Renderer) Render(template string, ctx ArticleContext) string {
	values := ctx.values()
	return placeholderPattern.ReplaceAllStringFunc(template, func(token string) string {
		key := token[1 : len(token)-1]
		if v, ok := values[key]; ok {
			return v
		}
		return token
	})
}
