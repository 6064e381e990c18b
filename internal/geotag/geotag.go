package geotag

import (
	"fmt"
	"sort"
	"strings"
)

// Category is a feed entry category as published in the feed (RSS <category domain="...">).
type Category struct {
	Domain string
	Value  string
}

// Tagger extracts ordered geography candidates from the categories of one entry.
type Tagger interface {
	Name() string
	Tag(categories []Category, opts map[string]string) []string
}

// Registry keeps a mapping from tagger names to their implementations.
type Registry struct {
	taggers map[string]Tagger
}

// NewRegistry builds a registry preloaded with the built-in taggers.
func NewRegistry() *Registry {
	r := &Registry{taggers: map[string]Tagger{}}
	r.Register(DomainTagger{})
	r.Register(CategoryTagger{})
	return r
}

// Register adds or replaces a tagger implementation.
func (r *Registry) Register(tagger Tagger) {
	if r.taggers == nil {
		r.taggers = map[string]Tagger{}
	}
	r.taggers[tagger.Name()] = tagger
}

// Resolve returns a tagger by name or an error if it is absent.
func (r *Registry) Resolve(name string) (Tagger, error) {
	if tagger, ok := r.taggers[name]; ok {
		return tagger, nil
	}
	names := make([]string, 0, len(r.taggers))
	for n := range r.taggers {
		names = append(names, n)
	}
	sort.Strings(names)
	return nil, fmt.Errorf("tagger %s is not registered (known: %s)", name, strings.Join(names, ", "))
}

// DomainTagger keeps categories whose domain contains the "match" option,
// case-insensitively. NYT feeds mark places with a domain ending in nyt_geo.
type DomainTagger struct{}

// DefaultDomainMatch is used when the feed sets no "match" option.
const DefaultDomainMatch = "nyt_geo"

func (DomainTagger) Name() string { return "domain" }

func (DomainTagger) Tag(categories []Category, opts map[string]string) []string {
	match := strings.ToLower(strings.TrimSpace(opts["match"]))
	if match == "" {
		match = DefaultDomainMatch
	}

	var out []string
	for _, c := range categories {
		if c.Domain == "" || !strings.Contains(strings.ToLower(c.Domain), match) {
			continue
		}
		if v := strings.TrimSpace(c.Value); v != "" {
			out = append(out, v)
		}
	}
	return nonNil(out)
}

// CategoryTagger treats every category value as a candidate. Feeds without
// geography markup rely on the resolver to discard non-country values.
type CategoryTagger struct{}

func (CategoryTagger) Name() string { return "categories" }

func (CategoryTagger) Tag(categories []Category, _ map[string]string) []string {
	out := make([]string, 0, len(categories))
	for _, c := range categories {
		if v := strings.TrimSpace(c.Value); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
