// Package template renders engagement content against the journey context.
package template

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"text/template"
)

var funcs = template.FuncMap{
	"default": func(fallback, value any) any {
		if value == nil || value == "" {
			return fallback
		}

		return value
	},
	"upper": strings.ToUpper,
	"lower": strings.ToLower,
}

// Render executes templateStr against data. Strings without template actions are
// returned as they are.
func Render(templateStr string, data any) (string, error) {
	if !strings.Contains(templateStr, "{{") {
		return templateStr, nil
	}

	tmpl, err := template.
		New("content").
		Option("missingkey=zero").
		Funcs(funcs).
		Parse(templateStr)
	if err != nil {
		return templateStr, fmt.Errorf("failed to parse template '%s': %w", templateStr, err)
	}

	var buf strings.Builder

	err = tmpl.Execute(&buf, data)
	if err != nil {
		return templateStr, fmt.Errorf("failed to execute template '%s': %w", templateStr, err)
	}

	return buf.String(), nil
}

// RenderFields renders every value of fields, skipping empty ones. Fields are
// rendered in key order and the first render error is returned alongside the
// partially rendered result; failed fields keep their raw text.
func RenderFields(fields map[string]string, data any) (map[string]any, error) {
	rendered := make(map[string]any, len(fields))

	var firstErr error

	for _, key := range slices.Sorted(maps.Keys(fields)) {
		raw := fields[key]
		if raw == "" {
			continue
		}

		value, err := Render(raw, data)
		if err != nil && firstErr == nil {
			firstErr = fmt.Errorf("%s: %w", key, err)
		}

		rendered[key] = value
	}

	return rendered, firstErr
}
