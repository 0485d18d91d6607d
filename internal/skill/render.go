package skill

import "strings"

// Renderer fills a template's single substitution point with a value.
type Renderer interface {
	Render(template, value string) string
}

// Placeholder is a Renderer that replaces every occurrence of itself in the
// template with the value, verbatim. The value is not escaped or truncated.
type Placeholder string

// InputPlaceholder is the token skill templates use for the problem text.
const InputPlaceholder Placeholder = "{{input}}"

func (p Placeholder) Render(template, value string) string {
	return strings.ReplaceAll(template, string(p), value)
}
