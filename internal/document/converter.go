package document

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// Converter loads documents from disk for the terminal and headless front-ends.
type Converter struct {
	maxBytes int64
}

// NewConverter creates a converter that refuses files larger than maxBytes.
// A non-positive limit disables the check.
func NewConverter(maxBytes int64) *Converter {
	return &Converter{maxBytes: maxBytes}
}

// Convert reads path and extracts its text.
func (c *Converter) Convert(ctx context.Context, path string) (*Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	if !Supported(absPath) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, filepath.Ext(path))
	}

	info, err := os.Stat(absPath)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("file not found: %s", path)
	}
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", path)
	}
	if c.maxBytes > 0 && info.Size() > c.maxBytes {
		return nil, fmt.Errorf("%s is %s, limit is %s", path,
			Metadata{FileSizeBytes: info.Size()}.FileSizeHuman(),
			Metadata{FileSizeBytes: c.maxBytes}.FileSizeHuman())
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, err
	}
	return Extract(filepath.Base(absPath), data)
}
