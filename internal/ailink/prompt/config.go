package prompt

import "strings"

// Config describes a prompt definition loaded from YAML frontmatter.
type Config struct {
	Slug           string `yaml:"slug" json:"slug"`
	Name           string `yaml:"name,omitempty" json:"name,omitempty"`
	Description    string `yaml:"description,omitempty" json:"description,omitempty"`
	Version        string `yaml:"version,omitempty" json:"version,omitempty"`
	SystemTemplate string `yaml:"system_template,omitempty" json:"system_template,omitempty"`
	UserTemplate   string `yaml:"user_template,omitempty" json:"user_template,omitempty"`

	// ResponseFormat is "json_object" or "text" (default).
	ResponseFormat string `yaml:"response_format,omitempty" json:"response_format,omitempty"`
}

// Prompt wraps a validated prompt configuration with its source.
type Prompt struct {
	Config Config
	Source string
}

// Render substitutes {{name}} placeholders in both templates.
func (p *Prompt) Render(vars map[string]string) (system, user string) {
	if p == nil {
		return "", ""
	}
	return applyVars(p.Config.SystemTemplate, vars), applyVars(p.Config.UserTemplate, vars)
}

// WantsJSON reports whether the prompt expects a bare JSON object back.
func (p *Prompt) WantsJSON() bool {
	return p != nil && strings.EqualFold(strings.TrimSpace(p.Config.ResponseFormat), "json_object")
}

func applyVars(template string, vars map[string]string) string {
	result := template
	for key, value := range vars {
		result = strings.ReplaceAll(result, "{{"+key+"}}", value)
	}
	return result
}
