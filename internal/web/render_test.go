package web

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMarkdownRenderer(t *testing.T) {
	m := newMarkdownRenderer()

	out := string(m.Render("## Step\n\n| a | b |\n|---|---|\n| 1 | 2 |\n\n<img src=x onerror=alert(1)>"))
	assert.Contains(t, out, "<h2")
	assert.Contains(t, out, "<table>")
	assert.NotContains(t, out, "onerror")
}
