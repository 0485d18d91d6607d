package document

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/gabriel-vasile/mimetype"
	"github.com/ledongthuc/pdf"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/unicode/norm"
)

var ErrUnsupported = errors.New("unsupported file type")

// Format identifies a supported upload type by extension.
type Format string

const (
	FormatPDF      Format = "pdf"
	FormatDOCX     Format = "docx"
	FormatText     Format = "txt"
	FormatMarkdown Format = "md"
)

// Formats lists the accepted upload extensions in display order.
var Formats = []Format{FormatPDF, FormatDOCX, FormatText, FormatMarkdown}

// FormatOf returns the format for a file name, matched on the extension
// case-insensitively.
func FormatOf(name string) (Format, bool) {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(name)), ".")
	for _, f := range Formats {
		if string(f) == ext {
			return f, true
		}
	}
	return "", false
}

// Supported reports whether name has an accepted extension.
func Supported(name string) bool {
	_, ok := FormatOf(name)
	return ok
}

// Extract returns the plain text of an uploaded file.
func Extract(name string, data []byte) (*Document, error) {
	format, ok := FormatOf(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, filepath.Ext(name))
	}

	title := strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	size := int64(len(data))

	if err := checkContent(format, data); err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}

	switch format {
	case FormatPDF:
		text, pages, err := extractPDF(data)
		if err != nil {
			return nil, fmt.Errorf("read pdf %s: %w", name, err)
		}
		return newDocument(title, string(format), size, norm.NFC.String(text), &pages), nil

	case FormatDOCX:
		text, err := extractDOCX(data)
		if err != nil {
			return nil, fmt.Errorf("read docx %s: %w", name, err)
		}
		return newDocument(title, string(format), size, text, nil), nil

	default:
		text, err := decodeText(data)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		return newDocument(title, string(format), size, text, nil), nil
	}
}

// checkContent rejects files whose bytes do not match their extension, such
// as a renamed image uploaded as .pdf.
func checkContent(format Format, data []byte) error {
	if len(data) == 0 {
		return nil
	}
	mtype := mimetype.Detect(data)

	var want string
	switch format {
	case FormatPDF:
		want = "application/pdf"
	case FormatDOCX:
		want = "application/zip"
	default:
		return nil
	}

	for m := mtype; m != nil; m = m.Parent() {
		if m.Is(want) {
			return nil
		}
	}
	return fmt.Errorf("%w: content is %s, not %s", ErrUnsupported, mtype.String(), format)
}

// decodeText returns UTF-8 text as is and falls back to GB18030, the usual
// encoding of Chinese plain-text files saved on Windows.
func decodeText(data []byte) (string, error) {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	if utf8.Valid(data) {
		return string(data), nil
	}

	out, err := simplifiedchinese.GB18030.NewDecoder().Bytes(data)
	if err != nil || !utf8.Valid(out) || bytes.ContainsRune(out, utf8.RuneError) {
		return "", errors.New("not valid UTF-8 or GB18030 text")
	}
	return string(out), nil
}

// extractPDF concatenates the plain text of every page, one newline after each.
func extractPDF(data []byte) (text string, pages int, err error) {
	// the pdf reader panics on some malformed xref tables
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("malformed pdf: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", 0, err
	}

	var b strings.Builder
	pages = r.NumPage()
	for i := 1; i <= pages; i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			b.WriteString("\n")
			continue
		}
		pt, err := p.GetPlainText(nil)
		if err != nil {
			return "", 0, fmt.Errorf("page %d: %w", i, err)
		}
		b.WriteString(pt)
		b.WriteString("\n")
	}
	return b.String(), pages, nil
}

// extractDOCX returns the paragraphs of word/document.xml joined by newlines.
func extractDOCX(data []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}

	var body *zip.File
	for _, f := range zr.File {
		if f.Name == "word/document.xml" {
			body = f
			break
		}
	}
	if body == nil {
		return "", errors.New("word/document.xml not found")
	}

	rc, err := body.Open()
	if err != nil {
		return "", err
	}
	defer rc.Close()

	return docxParagraphs(rc)
}

func docxParagraphs(r io.Reader) (string, error) {
	dec := xml.NewDecoder(r)

	var (
		paras  []string
		cur    strings.Builder
		inText bool
		inPara bool
	)

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "p":
				inPara = true
				cur.Reset()
			case "t":
				inText = true
			case "tab":
				cur.WriteString("\t")
			case "br", "cr":
				cur.WriteString("\n")
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				if inPara {
					paras = append(paras, cur.String())
				}
				inPara = false
			}
		case xml.CharData:
			if inText {
				cur.Write(t)
			}
		}
	}

	return strings.Join(paras, "\n"), nil
}
