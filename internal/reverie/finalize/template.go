package finalize

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// FieldUsage says where a template field's text ends up.
type FieldUsage string

const (
	UsageSearch FieldUsage = "search" // embedded for retrieval only
	UsagePrompt FieldUsage = "prompt" // injected into the prompt only
	UsageBoth   FieldUsage = "both"
)

// TemplateField is one authored field of a memory template.
type TemplateField struct {
	Name     string     `json:"name"`
	Type     string     `json:"type"` // string, number, boolean; default string
	Usage    FieldUsage `json:"usage"`
	Required bool       `json:"required"`
}

// Template describes one memory shape: its fields and how they compose into
// search and prompt text. Authored as JSON in the Memory_Templates folder.
type Template struct {
	Name   string          `json:"name"`
	Fields []TemplateField `json:"fields"`

	schema *jsonschema.Schema
}

// compileSchema builds a JSON Schema for the template's fields object so
// memory files can be validated before indexing.
func (t *Template) compileSchema() error {
	properties := map[string]any{}
	var required []string
	for _, f := range t.Fields {
		typ := f.Type
		if typ == "" {
			typ = "string"
		}
		properties[f.Name] = map[string]any{"type": typ}
		if f.Required {
			required = append(required, f.Name)
		}
	}

	doc := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		sort.Strings(required)
		doc["required"] = required
	}

	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("finalize: marshal schema for template %s: %w", t.Name, err)
	}
	schema, err := jsonschema.CompileString(t.Name+".schema.json", string(raw))
	if err != nil {
		return fmt.Errorf("finalize: compile schema for template %s: %w", t.Name, err)
	}
	t.schema = schema
	return nil
}

// Validate checks a memory's fields object against the template schema.
func (t *Template) Validate(fields map[string]any) error {
	if t.schema == nil {
		return fmt.Errorf("finalize: template %s has no compiled schema", t.Name)
	}
	// The schema validator wants plain any values; fields already is one.
	if err := t.schema.Validate(map[string]any(fields)); err != nil {
		return fmt.Errorf("finalize: memory does not match template %s: %w", t.Name, err)
	}
	return nil
}

// composeText joins the template's field values for the given usages, in
// field order, skipping absent or empty values.
func (t *Template) composeText(fields map[string]any, usages ...FieldUsage) string {
	wanted := make(map[FieldUsage]bool, len(usages))
	for _, u := range usages {
		wanted[u] = true
	}

	var parts []string
	for _, f := range t.Fields {
		usage := f.Usage
		if usage == "" {
			usage = UsageBoth
		}
		if !wanted[usage] {
			continue
		}
		v, ok := fields[f.Name]
		if !ok {
			continue
		}
		s := strings.TrimSpace(fmt.Sprintf("%v", v))
		if s == "" {
			continue
		}
		parts = append(parts, s)
	}
	return strings.Join(parts, " ")
}

// SearchText composes the text embedded for retrieval.
func (t *Template) SearchText(fields map[string]any) string {
	return t.composeText(fields, UsageSearch, UsageBoth)
}

// PromptText composes the text injected into the prompt.
func (t *Template) PromptText(fields map[string]any) string {
	return t.composeText(fields, UsagePrompt, UsageBoth)
}

// LoadTemplates reads every *.json template in dir and compiles its schema.
// A missing directory yields an empty map.
func LoadTemplates(dir string) (map[string]*Template, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return map[string]*Template{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("finalize: read templates dir %s: %w", dir, err)
	}

	templates := make(map[string]*Template)
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		path := filepath.Join(dir, e.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("finalize: read template %s: %w", path, err)
		}
		var t Template
		if err := json.Unmarshal(data, &t); err != nil {
			return nil, fmt.Errorf("finalize: parse template %s: %w", path, err)
		}
		if t.Name == "" {
			t.Name = strings.TrimSuffix(e.Name(), ".json")
		}
		if err := t.compileSchema(); err != nil {
			return nil, err
		}
		templates[t.Name] = &t
	}
	return templates, nil
}
