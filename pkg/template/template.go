// Package template implements the Jinja-style rendering contract named as
// an external collaborator in spec.md §9: Render(template, vars) -> string,
// deterministic and pure, supporting simple variable substitution and
// control flow. Built on text/template rather than a real Jinja port —
// no Python-specific feature is relied upon by any caller in this module.
package template

import (
	"bytes"
	"fmt"
	"strings"
	gotemplate "text/template"
)

// Render expands templateString against vars using text/template syntax:
// {{.name}} substitution and text/template control flow (if/range/with).
// Jinja-only syntax such as {% if %} is not translated. Returns the rendered string, or an
// error if the template fails to parse or execute.
func Render(templateString string, vars map[string]interface{}) (string, error) {
	tmpl, err := gotemplate.New("prompt").Funcs(funcMap).Parse(normalizeDelimiters(templateString))
	if err != nil {
		return "", fmt.Errorf("parse template: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, vars); err != nil {
		return "", fmt.Errorf("render template: %w", err)
	}
	// text/template renders an absent map key as the literal "<no value>";
	// prompt templates treat an unset variable as empty, not as visible text.
	return strings.ReplaceAll(buf.String(), "<no value>", ""), nil
}

var funcMap = gotemplate.FuncMap{
	"upper": strings.ToUpper,
	"lower": strings.ToLower,
	"join":  strings.Join,
}

// normalizeDelimiters returns s unchanged: no Jinja token is rewritten, so a
// Jinja-style {{ name }} (without the leading dot) or a {% %} control tag
// reaches text/template as written, and callers author templates using
// {{.name}} and {{if}}...{{end}} directly. This helper exists as the single
// seam where a real Jinja engine could be substituted without changing any
// call site.
func normalizeDelimiters(s string) string {
	return s
}
