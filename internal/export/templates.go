package export

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"legalhelp/api/internal/variables"
)

const (
	platformName    = "LegalHelp Singapore"
	platformTagline = "Legal Document Generation Platform"
	disclaimer      = "This document was generated from a template for use under Singapore law. " +
		"It is not a substitute for advice from a qualified legal professional; " +
		"please have it reviewed before execution."
	footerLayout = "02/01/2006 15:04 MST"
)

//go:embed templates/*.html
var templateFS embed.FS

var documentTemplate = template.Must(
	template.New("document.html").
		Funcs(template.FuncMap{"lines": lines}).
		ParseFS(templateFS, "templates/document.html"),
)

// TemplateData holds data for the PDF layout
type TemplateData struct {
	Title       string
	Platform    string
	Tagline     string
	Fields      []TemplateField
	GeneratedAt string
	Disclaimer  string
	Notices     []string
	Watermark   bool
}

// TemplateField is one labelled line of the details section
type TemplateField struct {
	Label string
	Value string
}

// RenderDocumentHTML renders the layout template with provided data
func RenderDocumentHTML(data TemplateData) (string, error) {
	var buf bytes.Buffer
	if err := documentTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func (f *Formatter) layout(req Request, vars map[string]any, generatedAt time.Time) TemplateData {
	data := TemplateData{
		Title:       req.Title,
		Platform:    platformName,
		Tagline:     platformTagline,
		GeneratedAt: generatedAt.In(f.jurisdiction.Location).Format(footerLayout),
		Disclaimer:  disclaimer,
		Notices:     req.Notices,
		Watermark:   req.Watermark,
	}
	for _, v := range variables.Bind(req.Definitions, vars) {
		value := strings.TrimSpace(displayValue(v.Value))
		if value == "" {
			continue
		}
		data.Fields = append(data.Fields, TemplateField{Label: Label(v.Name), Value: value})
	}
	return data
}

// Label title-cases a snake_case key: "nric_number" becomes "Nric Number".
func Label(key string) string {
	words := strings.FieldsFunc(key, func(r rune) bool { return r == '_' })
	for i, w := range words {
		r, size := utf8.DecodeRuneInString(w)
		words[i] = string(unicode.ToTitle(r)) + w[size:]
	}
	return strings.Join(words, " ")
}

func displayValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		if t {
			return "Yes"
		}
		return "No"
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case json.Number:
		return t.String()
	case []any:
		parts := make([]string, 0, len(t))
		for _, item := range t {
			if s := displayValue(item); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, "; ")
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			if s := displayValue(t[k]); s != "" {
				parts = append(parts, Label(k)+": "+s)
			}
		}
		return strings.Join(parts, ", ")
	}
	return fmt.Sprint(v)
}

func lines(s string) []string {
	return strings.Split(strings.ReplaceAll(s, "\r\n", "\n"), "\n")
}
