package prompt

import (
	"embed"
	"strings"
)

// BatchGrading is the slug of the built-in batch grading prompt.
const BatchGrading = "batch-grading"

//go:embed prompts/*.md
var builtinFS embed.FS

// LoadDefaults loads the prompts compiled into the binary.
func LoadDefaults() ([]*Prompt, error) {
	return loadFS(builtinFS, "prompts", "builtin")
}

// DefaultRegistry holds the built-in prompts, replaced slug by slug with any
// found in overrideDir.
func DefaultRegistry(overrideDir string) (*InMemoryRegistry, error) {
	builtin, err := LoadDefaults()
	if err != nil {
		return nil, err
	}
	reg, err := NewRegistry(builtin)
	if err != nil {
		return nil, err
	}

	if overrideDir = strings.TrimSpace(overrideDir); overrideDir != "" {
		overrides, err := LoadDir(overrideDir)
		if err != nil {
			return nil, err
		}
		for _, p := range overrides {
			reg.Put(p)
		}
	}
	return reg, nil
}
