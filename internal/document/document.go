package document

import (
	"strings"
	"unicode/utf8"

	"github.com/dustin/go-humanize"
)

// Document is the text extracted from an uploaded file.
type Document struct {
	Content  string
	Metadata Metadata
}

// Metadata contains document metadata
type Metadata struct {
	Title         string `json:"title"`
	SourceFormat  string `json:"source_format"`
	FileSizeBytes int64  `json:"file_size_bytes"`
	PageCount     *int   `json:"page_count,omitempty"`
	WordCount     int    `json:"word_count"`
	CharCount     int    `json:"char_count"`
}

// FileSizeHuman returns human-readable file size
func (m Metadata) FileSizeHuman() string {
	if m.FileSizeBytes < 0 {
		return "0 B"
	}
	return humanize.IBytes(uint64(m.FileSizeBytes))
}

// Summary is the one-line upload confirmation shown to the user.
func (m Metadata) Summary() string {
	return humanize.Comma(int64(m.CharCount)) + " characters, " + m.FileSizeHuman()
}

// Preview returns the first maxChars characters of the content.
func (d *Document) Preview(maxChars int) string {
	if utf8.RuneCountInString(d.Content) <= maxChars {
		return d.Content
	}
	r := []rune(d.Content)
	return string(r[:maxChars]) + "..."
}

func newDocument(title, format string, size int64, content string, pages *int) *Document {
	return &Document{
		Content: content,
		Metadata: Metadata{
			Title:         title,
			SourceFormat:  format,
			FileSizeBytes: size,
			PageCount:     pages,
			WordCount:     len(strings.Fields(content)),
			CharCount:     utf8.RuneCountInString(content),
		},
	}
}
