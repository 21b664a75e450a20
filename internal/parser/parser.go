package parser

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/dgallion1/pdfqa/internal/domain"
)

// Result is the plain text of a document in page order.
type Result struct {
	Text      string
	PageCount int
	Engine    string // Which extraction engine produced Text.
}

// Extractor converts raw document bytes into plain text. A document with no
// extractable text is not an error; Extract fails only on input it cannot
// parse.
type Extractor interface {
	Extract(ctx context.Context, data []byte) (Result, error)
}

// SupportedExtensions lists file extensions this service can handle.
var SupportedExtensions = map[string]bool{
	".pdf": true,
}

// IsSupportedExtension checks if a file extension is supported.
func IsSupportedExtension(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	return SupportedExtensions[ext]
}

// CheckFormat rejects uploads whose name does not look like a PDF.
func CheckFormat(filename string) error {
	if !IsSupportedExtension(filename) {
		return fmt.Errorf("%w: file must be a PDF, got %q", domain.ErrUnsupportedFormat, filepath.Ext(filename))
	}
	return nil
}
