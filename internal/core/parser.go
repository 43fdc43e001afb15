package core

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrMissingField is returned when a command template references a
// placeholder the context does not provide
var ErrMissingField = errors.New("missing template field")

// placeholder matches {field}; a leading $ marks a shell ${var} expansion,
// which is left alone
var placeholder = regexp.MustCompile(`\$?\{([a-z][a-z0-9_]*)\}`)

// Template is a shell command with {field} placeholders
type Template struct {
	Name string
	Text string
}

// Fields lists the placeholders of the template in order of appearance,
// without duplicates
func (t Template) Fields() []string {
	seen := map[string]bool{}
	var fields []string
	for _, m := range placeholder.FindAllStringSubmatch(t.Text, -1) {
		if strings.HasPrefix(m[0], "$") || seen[m[1]] {
			continue
		}
		seen[m[1]] = true
		fields = append(fields, m[1])
	}
	return fields
}

// Render substitutes every placeholder. All fields are checked before
// anything is substituted, so a malformed command is never produced
func (t Template) Render(vars map[string]string) (string, error) {
	var missing []string
	for _, field := range t.Fields() {
		if _, ok := vars[field]; !ok {
			missing = append(missing, field)
		}
	}
	if len(missing) > 0 {
		return "", fmt.Errorf("command %s: %w: %s", t.Name, ErrMissingField, strings.Join(missing, ", "))
	}
	return placeholder.ReplaceAllStringFunc(t.Text, func(m string) string {
		if strings.HasPrefix(m, "$") {
			return m
		}
		return vars[m[1:len(m)-1]]
	}), nil
}
