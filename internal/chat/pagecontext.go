package chat

import (
	_ "embed"
	"fmt"
	"strings"

	"github.com/ashureev/atelier/internal/locale"
	"gopkg.in/yaml.v3"
)

//go:embed pagecontext.yaml
var pageContextYAML []byte

type exactRule struct {
	Path    string `yaml:"path"`
	Page    string `yaml:"page"`
	Context string `yaml:"context"`
}

type prefixRule struct {
	Prefix  string `yaml:"prefix"`
	Page    string `yaml:"page"`
	Context string `yaml:"context"`
}

// PageContextTable maps request paths to page-context hints.
type PageContextTable struct {
	Exact    []exactRule  `yaml:"exact"`
	Prefix   []prefixRule `yaml:"prefix"`
	Fallback struct {
		Page    string `yaml:"page"`
		Context string `yaml:"context"`
	} `yaml:"fallback"`
}

var defaultPageContexts = mustParsePageContexts(pageContextYAML)

func mustParsePageContexts(data []byte) *PageContextTable {
	t, err := ParsePageContexts(data)
	if err != nil {
		panic(err)
	}
	return t
}

// ParsePageContexts decodes a page-context table from YAML.
func ParsePageContexts(data []byte) (*PageContextTable, error) {
	var t PageContextTable
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("parse page context table: %w", err)
	}
	if t.Fallback.Page == "" || t.Fallback.Context == "" {
		return nil, fmt.Errorf("parse page context table: fallback is required")
	}
	return &t, nil
}

// LookupPageContext resolves path against the built-in table.
func LookupPageContext(path string) PageContext {
	return defaultPageContexts.Lookup(path)
}

// Lookup returns the hint for path. Exact rules win over prefix rules; paths
// matching neither get the fallback.
func (t *PageContextTable) Lookup(path string) PageContext {
	rel := stripLocale(path)
	for _, r := range t.Exact {
		if r.Path == rel {
			return PageContext{Page: r.Page, Path: path, Context: r.Context}
		}
	}
	for _, r := range t.Prefix {
		if strings.HasPrefix(rel, r.Prefix) && len(rel) > len(r.Prefix) {
			return PageContext{Page: r.Page, Path: path, Context: r.Context}
		}
	}
	return PageContext{Page: t.Fallback.Page, Path: path, Context: t.Fallback.Context}
}

// stripLocale removes the query, a trailing slash and the leading locale
// segment, returning "/" for the locale root.
func stripLocale(path string) string {
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	if path == "" {
		return "/"
	}
	if len(path) > 1 {
		path = strings.TrimSuffix(path, "/")
	}
	for _, c := range locale.Supported() {
		seg := "/" + string(c)
		if path == seg {
			return "/"
		}
		if strings.HasPrefix(path, seg+"/") {
			return path[len(seg):]
		}
	}
	return path
}
