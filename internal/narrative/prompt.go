package narrative

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/Yates-Labs/narraitor/internal/engine"
	"gopkg.in/yaml.v2"
)

var (
	ErrMissingTemplate = errors.New("prompt template not found")
)

//go:embed templates.yaml
var defaultTemplatesYAML []byte

// TemplateSet is the collection of prompt templates used by the generators.
type TemplateSet struct {
	Version string `yaml:"version"`
	Shared  struct {
		ResponseFormat string `yaml:"response_format"`
	} `yaml:"shared"`
	Endings map[string]string `yaml:"endings"`
	Scene   string            `yaml:"scene"`
}

// ParseTemplates decodes a YAML template set and checks every ending type
// has a template.
func ParseTemplates(data []byte) (*TemplateSet, error) {
	var ts TemplateSet
	if err := yaml.Unmarshal(data, &ts); err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	for _, t := range engine.EndingTypes {
		if strings.TrimSpace(ts.Endings[string(t)]) == "" {
			return nil, fmt.Errorf("%w: ending %s", ErrMissingTemplate, t)
		}
	}
	if strings.TrimSpace(ts.Scene) == "" {
		return nil, fmt.Errorf("%w: scene", ErrMissingTemplate)
	}
	return &ts, nil
}

// LoadTemplatesFile reads a template set from disk.
func LoadTemplatesFile(path string) (*TemplateSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read templates: %w", err)
	}
	return ParseTemplates(data)
}

// DefaultTemplates returns the embedded template set.
func DefaultTemplates() *TemplateSet {
	ts, err := ParseTemplates(defaultTemplatesYAML)
	if err != nil {
		panic(fmt.Sprintf("embedded templates invalid: %v", err))
	}
	return ts
}

// Ending returns the template for endingType.
func (ts *TemplateSet) Ending(endingType engine.EndingType) (string, error) {
	tmpl, ok := ts.Endings[string(endingType)]
	if !ok {
		return "", fmt.Errorf("%w: ending %s", ErrMissingTemplate, endingType)
	}
	return tmpl, nil
}

var (
	ifBlockPattern  = regexp.MustCompile(`(?s)\{\{#if\s+(\w+)\}\}\n?(.*?)\{\{/if\}\}\n?`)
	variablePattern = regexp.MustCompile(`\{\{\s*(\w+)\s*\}\}`)
)

// RenderTemplate substitutes {{name}} tokens from vars and keeps
// {{#if name}}...{{/if}} blocks only when vars[name] is non-blank.
// Unknown variables render as the empty string. Blocks do not nest.
func RenderTemplate(tmpl string, vars map[string]string) string {
	out := ifBlockPattern.ReplaceAllStringFunc(tmpl, func(block string) string {
		m := ifBlockPattern.FindStringSubmatch(block)
		if strings.TrimSpace(vars[m[1]]) == "" {
			return ""
		}
		return m[2]
	})

	return variablePattern.ReplaceAllStringFunc(out, func(token string) string {
		m := variablePattern.FindStringSubmatch(token)
		return vars[m[1]]
	})
}
