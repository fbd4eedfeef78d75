package prompt

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/samber/lo"
)

// Registry resolves prompt definitions by slug.
type Registry interface {
	Get(slug string) (*Prompt, error)
	List() []*Prompt
}

// InMemoryRegistry is a Registry backed by a map. It is not safe for
// concurrent mutation; build it fully before sharing.
type InMemoryRegistry struct {
	bySlug map[string]*Prompt
}

// NewRegistry indexes prompts by slug, rejecting blanks and duplicates.
func NewRegistry(prompts []*Prompt) (*InMemoryRegistry, error) {
	reg := &InMemoryRegistry{bySlug: make(map[string]*Prompt, len(prompts))}
	for _, p := range lo.Compact(prompts) {
		slug := p.slug()
		switch {
		case slug == "":
			return nil, fmt.Errorf("prompt %s is missing a slug", p.Source)
		case reg.bySlug[slug] != nil:
			return nil, fmt.Errorf("duplicate prompt slug: %s", slug)
		}
		reg.bySlug[slug] = p
	}
	return reg, nil
}

// Put adds p, replacing any prompt with the same slug.
func (r *InMemoryRegistry) Put(p *Prompt) {
	if r != nil && p != nil {
		r.bySlug[p.slug()] = p
	}
}

func (r *InMemoryRegistry) Get(slug string) (*Prompt, error) {
	if r == nil {
		return nil, errors.New("prompt registry not configured")
	}
	slug = strings.TrimSpace(slug)
	if slug == "" {
		return nil, errors.New("prompt slug is required")
	}
	if p, ok := r.bySlug[slug]; ok {
		return p, nil
	}
	return nil, fmt.Errorf("prompt %q not found", slug)
}

// List returns prompts ordered by slug.
func (r *InMemoryRegistry) List() []*Prompt {
	if r == nil {
		return nil
	}
	slugs := lo.Keys(r.bySlug)
	slices.Sort(slugs)
	return lo.Map(slugs, func(slug string, _ int) *Prompt { return r.bySlug[slug] })
}

func (p *Prompt) slug() string {
	return strings.TrimSpace(p.Config.Slug)
}
