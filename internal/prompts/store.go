// Package prompts holds the completion prompts used by the pipeline, with
// optional overrides loaded from a YAML file.
package prompts

import (
	"bytes"
	"fmt"
	"os"
	"sort"
	"strings"
	"text/template"

	"gopkg.in/yaml.v3"
)

// Well-known prompt names.
const (
	SemanticChunking = "semantic_chunking"
	QueryAnalysis    = "query_analysis"
	RewriteFactual   = "rewrite_factual"
	RewriteAmbiguous = "rewrite_ambiguous"
)

// File is the on-disk layout of a prompt override file.
//
//	prompts:
//	  query_analysis: |
//	    ...
type File struct {
	Prompts map[string]string `yaml:"prompts"`
}

// Store renders named prompt templates.
type Store struct {
	templates map[string]*template.Template
}

// Default returns a store holding only the built-in prompts.
func Default() *Store {
	s, err := build(nil)
	if err != nil {
		// built-in templates are covered by tests
		panic(err)
	}
	return s
}

// Load returns the built-in prompts overlaid with the overrides in path.
// An empty path yields Default().
func Load(path string) (*Store, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read prompts file: %w", err)
	}
	return Parse(data)
}

// Parse builds a store from YAML override data.
func Parse(data []byte) (*Store, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse prompts file: %w", err)
	}
	for name := range f.Prompts {
		if _, ok := defaultPrompts[name]; !ok {
			return nil, fmt.Errorf("unknown prompt %q (known: %s)", name, strings.Join(Names(), ", "))
		}
	}
	return build(f.Prompts)
}

func build(overrides map[string]string) (*Store, error) {
	s := &Store{templates: make(map[string]*template.Template, len(defaultPrompts))}
	for name, text := range defaultPrompts {
		if o, ok := overrides[name]; ok && strings.TrimSpace(o) != "" {
			text = o
		}
		tmpl, err := template.New(name).Option("missingkey=error").Parse(text)
		if err != nil {
			return nil, fmt.Errorf("failed to parse prompt %q: %w", name, err)
		}
		s.templates[name] = tmpl
	}
	return s, nil
}

// Render executes the named prompt with data.
func (s *Store) Render(name string, data any) (string, error) {
	tmpl, ok := s.templates[name]
	if !ok {
		return "", fmt.Errorf("unknown prompt %q", name)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render prompt %q: %w", name, err)
	}
	return buf.String(), nil
}

// Names lists the known prompt names in sorted order.
func Names() []string {
	names := make([]string, 0, len(defaultPrompts))
	for name := range defaultPrompts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
