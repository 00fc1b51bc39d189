// Package render turns the structured data of a document into its rendered
// artifact. The engine treats the artifact as opaque; this implementation
// assembles markdown per document type and converts it to HTML.
package render

import (
	"bytes"
	"fmt"
	"sort"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// RenderError reports structured data the renderer rejects for a document
// type, typically missing required fields.
type RenderError struct {
	DocType string
	Missing []string
	Reason  string
}

func (e *RenderError) Error() string {
	if len(e.Missing) > 0 {
		return fmt.Sprintf("cannot render %s: missing required fields: %s", e.DocType, strings.Join(e.Missing, ", "))
	}
	return fmt.Sprintf("cannot render %s: %s", e.DocType, e.Reason)
}

// Renderer produces an artifact from a document's structured data.
type Renderer interface {
	Render(docType string, data map[string]any) (artifact []byte, mime string, err error)
}

// requiredFields gates generation for the document types the assistant is
// prompted to produce. Unknown types render generically without a gate.
var requiredFields = map[string][]string{
	"nda":                  {"party_1", "party_2", "effective_date", "term"},
	"director_appointment": {"director_name", "company_name", "effective_date", "resolution_number"},
	"employment_agreement": {"employee_name", "position", "salary", "start_date"},
}

// MissingFields returns the required fields absent or blank for docType.
func MissingFields(docType string, data map[string]any) []string {
	var missing []string
	for _, field := range requiredFields[docType] {
		v, ok := data[field]
		if !ok || strings.TrimSpace(formatValue(v)) == "" {
			missing = append(missing, field)
		}
	}
	return missing
}

// HTMLRenderer renders markdown-assembled documents to HTML via goldmark.
type HTMLRenderer struct {
	md goldmark.Markdown
}

func NewHTMLRenderer() *HTMLRenderer {
	return &HTMLRenderer{
		md: goldmark.New(goldmark.WithExtensions(extension.GFM)),
	}
}

func (r *HTMLRenderer) Render(docType string, data map[string]any) ([]byte, string, error) {
	if len(data) == 0 {
		return nil, "", &RenderError{DocType: docType, Reason: "document data is empty"}
	}
	if missing := MissingFields(docType, data); len(missing) > 0 {
		return nil, "", &RenderError{DocType: docType, Missing: missing}
	}
	source := buildMarkdown(docType, data)
	var buf bytes.Buffer
	if err := r.md.Convert([]byte(source), &buf); err != nil {
		return nil, "", &RenderError{DocType: docType, Reason: err.Error()}
	}
	return buf.Bytes(), "text/html; charset=utf-8", nil
}

// leadFields orders the fields that open each known document type; everything
// else follows as its own section.
var leadFields = map[string][]string{
	"nda":                  {"party_1", "party_2", "effective_date", "term"},
	"director_appointment": {"company_name", "director_name", "effective_date", "resolution_number"},
	"employment_agreement": {"employee_name", "position", "salary", "start_date"},
}

func buildMarkdown(docType string, data map[string]any) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", titleFor(docType))

	seen := map[string]bool{"additional_clauses": true}
	for _, field := range leadFields[docType] {
		if v, ok := data[field]; ok {
			fmt.Fprintf(&b, "**%s:** %s\n\n", fieldTitle(field), formatValue(v))
			seen[field] = true
		}
	}

	rest := make([]string, 0, len(data))
	for field := range data {
		if !seen[field] {
			rest = append(rest, field)
		}
	}
	sort.Strings(rest)
	for _, field := range rest {
		fmt.Fprintf(&b, "## %s\n\n%s\n\n", fieldTitle(field), formatValue(data[field]))
	}

	if clauses, ok := data["additional_clauses"].([]any); ok {
		for i, clause := range clauses {
			fmt.Fprintf(&b, "## Additional Clause %d\n\n%s\n\n", i+1, formatValue(clause))
		}
	}
	return b.String()
}

func titleFor(docType string) string {
	switch docType {
	case "nda":
		return "Non-Disclosure Agreement"
	case "director_appointment":
		return "Director Appointment Resolution"
	case "employment_agreement":
		return "Employment Agreement"
	}
	return fieldTitle(docType)
}

func fieldTitle(field string) string {
	words := strings.FieldsFunc(field, func(r rune) bool { return r == '_' || r == '-' })
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

func formatValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []any:
		parts := make([]string, 0, len(t))
		for _, item := range t {
			parts = append(parts, formatValue(item))
		}
		return strings.Join(parts, ", ")
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, fmt.Sprintf("%s: %s", fieldTitle(k), formatValue(t[k])))
		}
		return strings.Join(parts, "; ")
	default:
		return fmt.Sprint(t)
	}
}
