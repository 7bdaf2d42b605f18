// Package extract provides text extraction from document files.
package extract

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrUnsupportedType reports a file type outside the supported set. The
// corpus is PDF-only; anything else is rejected before extraction is attempted.
var ErrUnsupportedType = errors.New("unsupported file type")

// Extractor extracts plain text from document files.
type Extractor struct{}

// NewExtractor returns a new Extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// Supported reports whether the extension (with leading dot) can be extracted.
func (e *Extractor) Supported(ext string) bool {
	return strings.ToLower(ext) == ".pdf"
}

// Extract reads the file at path and returns its text content.
func (e *Extractor) Extract(path string) (string, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if !e.Supported(ext) {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedType, ext)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read file: %w", err)
	}
	return e.ExtractBytes(content, ext)
}

// ExtractBytes extracts text from content based on the given extension.
// ext should include the leading dot (e.g. ".pdf").
func (e *Extractor) ExtractBytes(content []byte, ext string) (string, error) {
	switch strings.ToLower(ext) {
	case ".pdf":
		return extractPDF(content)
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedType, ext)
	}
}
