// Package variables checks submitted values against the variables a template declares.
package variables

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

type Type string

const (
	TypeText     Type = "text"
	TypeTextarea Type = "textarea"
	TypeEmail    Type = "email"
	TypeDate     Type = "date"
	TypeSelect   Type = "select"
	TypeNumber   Type = "number"
	TypePhone    Type = "phone"
)

// Definition is a variable slot declared by a template.
type Definition struct {
	Name     string   `json:"name"`
	Type     Type     `json:"type"`
	Label    string   `json:"label,omitempty"`
	Required bool     `json:"required,omitempty"`
	Options  []string `json:"options,omitempty"`
}

// TemplateVariable is one submitted value with its declared type.
type TemplateVariable struct {
	Name  string `json:"name"`
	Value any    `json:"value"`
	Type  Type   `json:"type"`
}

const numericPattern = `^\s*(SGD|S\$|\$)?\s*-?[0-9][0-9,]*(\.[0-9]+)?\s*$`

var ErrSchema = errors.New("variable schema invalid")

// FieldError describes one rejected value.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// MismatchError lists every value that does not fit its declared type.
type MismatchError struct {
	Fields []FieldError
}

func (e *MismatchError) Error() string {
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = f.Field + ": " + f.Message
	}
	return "variable type mismatch: " + strings.Join(parts, "; ")
}

// Names returns the rejected field names in order.
func (e *MismatchError) Names() []string {
	out := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		out[i] = f.Field
	}
	return out
}

// Schema compiles definitions into a JSON Schema document. Presence is not
// enforced: a missing placeholder is reported by the renderer.
func Schema(defs []Definition) map[string]any {
	props := make(map[string]any, len(defs))
	for _, d := range defs {
		if d.Name == "" {
			continue
		}
		props[d.Name] = property(d)
	}
	return map[string]any{
		"type":                 "object",
		"properties":           props,
		"additionalProperties": true,
	}
}

func property(d Definition) map[string]any {
	types := func(t ...string) []any {
		out := make([]any, 0, len(t)+1)
		for _, s := range t {
			out = append(out, s)
		}
		if !d.Required {
			out = append(out, "null")
		}
		return out
	}
	switch d.Type {
	case TypeEmail:
		p := map[string]any{"type": types("string")}
		if d.Required {
			p["format"] = "email"
		} else {
			p["anyOf"] = []any{
				map[string]any{"type": "null"},
				map[string]any{"type": "string", "maxLength": 0},
				map[string]any{"type": "string", "format": "email"},
			}
		}
		return p
	case TypeSelect:
		p := map[string]any{"type": types("string")}
		if len(d.Options) > 0 {
			enum := make([]any, 0, len(d.Options)+2)
			for _, o := range d.Options {
				enum = append(enum, o)
			}
			if !d.Required {
				enum = append(enum, "", nil)
			}
			p["enum"] = enum
		}
		return p
	case TypeNumber:
		return map[string]any{"type": types("number", "string"), "pattern": numericPattern}
	case TypePhone:
		return map[string]any{"type": types("string", "number")}
	case TypeText, TypeTextarea, TypeDate:
		return map[string]any{"type": types("string")}
	}
	return map[string]any{}
}

// Check validates vars against defs.
func Check(defs []Definition, vars map[string]any) error {
	if len(defs) == 0 {
		return nil
	}
	result, err := gojsonschema.Validate(gojsonschema.NewGoLoader(Schema(defs)), gojsonschema.NewGoLoader(vars))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSchema, err)
	}
	if result.Valid() {
		return nil
	}
	seen := map[string]bool{}
	mismatch := &MismatchError{}
	for _, desc := range result.Errors() {
		field := rootField(desc.Field())
		if seen[field] {
			continue
		}
		seen[field] = true
		mismatch.Fields = append(mismatch.Fields, FieldError{Field: field, Message: message(defs, field, desc)})
	}
	sort.Slice(mismatch.Fields, func(i, j int) bool { return mismatch.Fields[i].Field < mismatch.Fields[j].Field })
	return mismatch
}

func rootField(field string) string {
	if i := strings.IndexByte(field, '.'); i > 0 {
		return field[:i]
	}
	return field
}

func message(defs []Definition, field string, desc gojsonschema.ResultError) string {
	for _, d := range defs {
		if d.Name != field {
			continue
		}
		switch d.Type {
		case TypeSelect:
			return "must be one of: " + strings.Join(d.Options, ", ")
		case TypeNumber:
			return "must be a number"
		case TypeEmail:
			return "must be an email address"
		default:
			return "must be " + string(d.Type)
		}
	}
	return desc.Description()
}

// Bind pairs submitted values with their declarations: declared variables in
// declaration order, then undeclared keys alphabetically as text.
func Bind(defs []Definition, vars map[string]any) []TemplateVariable {
	out := make([]TemplateVariable, 0, len(vars))
	declared := make(map[string]bool, len(defs))
	for _, d := range defs {
		declared[d.Name] = true
		v, ok := vars[d.Name]
		if !ok {
			continue
		}
		typ := d.Type
		if typ == "" {
			typ = TypeText
		}
		out = append(out, TemplateVariable{Name: d.Name, Value: v, Type: typ})
	}
	rest := make([]string, 0, len(vars))
	for k := range vars {
		if !declared[k] {
			rest = append(rest, k)
		}
	}
	sort.Strings(rest)
	for _, k := range rest {
		out = append(out, TemplateVariable{Name: k, Value: vars[k], Type: TypeText})
	}
	return out
}
