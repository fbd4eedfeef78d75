package prompt

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"strings"

	"gopkg.in/yaml.v3"
)

var frontmatterFence = []byte("---")

// Load parses and validates one prompt file. The file is plain YAML or YAML
// frontmatter followed by a markdown body; a non-empty body becomes the
// system template when the frontmatter does not set one.
func Load(source string, data []byte) (*Prompt, error) {
	cfg, err := decode(data)
	if err != nil {
		return nil, fmt.Errorf("parse prompt %s: %w", source, err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validate prompt %s: %w", source, err)
	}
	return &Prompt{Config: cfg, Source: source}, nil
}

// LoadDir reads every *.md prompt in dir on disk.
func LoadDir(dir string) ([]*Prompt, error) {
	return loadFS(os.DirFS(dir), ".", dir)
}

// loadFS loads *.md files under root of fsys in lexical order. label
// prefixes the Source of each prompt.
func loadFS(fsys fs.FS, root string, label string) ([]*Prompt, error) {
	names, err := fs.Glob(fsys, path.Join(root, "*.md"))
	if err != nil {
		return nil, fmt.Errorf("scan prompts in %s: %w", label, err)
	}
	prompts := make([]*Prompt, 0, len(names))
	for _, name := range names {
		data, err := fs.ReadFile(fsys, name)
		if err != nil {
			return nil, fmt.Errorf("read prompt %s: %w", name, err)
		}
		p, err := Load(path.Join(label, path.Base(name)), data)
		if err != nil {
			return nil, err
		}
		prompts = append(prompts, p)
	}
	return prompts, nil
}

func decode(data []byte) (Config, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return Config{}, errors.New("empty prompt")
	}

	header, body := data, []byte(nil)
	if rest, ok := bytes.CutPrefix(data, frontmatterFence); ok {
		front, after, found := bytes.Cut(rest, append([]byte("\n"), frontmatterFence...))
		if !found {
			return Config{}, errors.New("unterminated frontmatter")
		}
		header, body = front, after
	}

	var cfg Config
	if err := yaml.Unmarshal(header, &cfg); err != nil {
		return Config{}, fmt.Errorf("invalid frontmatter: %w", err)
	}
	if strings.TrimSpace(cfg.SystemTemplate) == "" {
		cfg.SystemTemplate = strings.TrimSpace(string(body))
	}
	return cfg, nil
}

func (c Config) validate() error {
	if strings.TrimSpace(c.Slug) == "" {
		return errors.New("slug is required")
	}
	if strings.TrimSpace(c.SystemTemplate) == "" {
		return errors.New("system_template is required")
	}
	switch strings.ToLower(strings.TrimSpace(c.ResponseFormat)) {
	case "", "text", "json_object":
		return nil
	default:
		return fmt.Errorf("unsupported response_format %q", c.ResponseFormat)
	}
}
