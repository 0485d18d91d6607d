package report

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/vincent-yangyijie/triz-agent/internal/skill"
)

const (
	// ReportFilename is the download name of the full report.
	ReportFilename = "TRIZ_Full_Report.md"
	// MIMEType is served for every export.
	MIMEType = "text/markdown"
	// DefaultInputLimit is how many characters of the input the report quotes.
	DefaultInputLimit = 500
)

// SkillFilename is the download name of one skill's output.
func SkillFilename(id int) string {
	return fmt.Sprintf("skill_%d_output.md", id)
}

// Build renders the full markdown report: a header, the first limit
// characters of input, then one section per stored result in registry order.
// Ids in results that the registry does not know are skipped.
func Build(registry *skill.Registry, results map[int]string, input string, limit int) string {
	if limit <= 0 {
		limit = DefaultInputLimit
	}

	var b strings.Builder
	b.WriteString("# TRIZ Analysis Report\n\n")
	fmt.Fprintf(&b, "## Original Input\n\n%s...\n\n---\n\n", truncate(input, limit))

	for _, s := range registry.All() {
		text, ok := results[s.ID]
		if !ok {
			continue
		}
		fmt.Fprintf(&b, "## %s\n\n%s\n\n---\n\n", s.Name, text)
	}

	return b.String()
}

// SkillOutput returns the stored text for id, exported as-is.
func SkillOutput(results map[int]string, id int) (string, bool) {
	text, ok := results[id]
	return text, ok
}

// Save writes content to dir/name and returns the written path.
func Save(dir, name, content string) (string, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create %s: %w", dir, err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return "", fmt.Errorf("write %s: %w", name, err)
	}
	return path, nil
}

// truncate keeps the first n characters of s.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
