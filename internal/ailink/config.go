package ailink

import "time"

// Config defines the grading model provider.
//
// This is intentionally self-contained so the config package can embed it
// as the `ailink` subtree.
type Config struct {
	// Provider is the driver identifier: gemini or openai.
	Provider string `mapstructure:"provider"`
	Model    string `mapstructure:"model"`
	BaseURL  string `mapstructure:"base_url"`
	APIKey   string `mapstructure:"api_key"`

	Timeout         time.Duration `mapstructure:"timeout"`
	MaxOutputTokens int           `mapstructure:"max_output_tokens"`
	Temperature     float64       `mapstructure:"temperature"`

	// ContextLimit caps the grading context in characters.
	ContextLimit int `mapstructure:"context_limit"`

	// PromptsDir allows overriding the built-in prompt set.
	PromptsDir string `mapstructure:"prompts_dir"`
}
