// Package loader extracts plain text sections from uploaded files.
package loader

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/cloo-solutions/ragdesk/internal/domain"
)

// Section is one ordered unit of extracted text, such as a PDF page.
// Index is 1-based.
type Section struct {
	Index int
	Text  string
}

const (
	ExtPDF  = "pdf"
	ExtDOCX = "docx"
	ExtDOC  = "doc"
	ExtTXT  = "txt"
)

// SupportedExtensions lists the accepted file extensions without the dot.
var SupportedExtensions = []string{ExtPDF, ExtDOCX, ExtDOC, ExtTXT}

// ExtensionOf returns the lower-cased extension of filename without the dot.
func ExtensionOf(filename string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
}

// Supported reports whether ext (with or without a leading dot) can be loaded.
func Supported(ext string) bool {
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	for _, s := range SupportedExtensions {
		if s == ext {
			return true
		}
	}
	return false
}

// Loader dispatches on file extension. Temporary files live under TempDir
// (the system default when empty) and are removed before Load returns.
type Loader struct {
	TempDir string
}

// New creates a Loader using the system temp directory.
func New() *Loader {
	return &Loader{}
}

// PanicError carries a value recovered from a decoder.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("decoder panicked: %v", e.Value)
}

// Load extracts ordered text sections from content. It does not modify
// content and leaves nothing behind on disk.
// A decoder that panics on a malformed file yields an error instead.
func (l *Loader) Load(ctx context.Context, content []byte, ext string) (sections []Section, err error) {
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	defer func() {
		if p := recover(); p != nil {
			sections, err = nil, fmt.Errorf("failed to decode %s: %w", ext, &PanicError{Value: p})
		}
	}()
	if !Supported(ext) {
		return nil, domain.ErrUnsupportedFormat.Wrap(fmt.Errorf("extension %q", ext))
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	switch ext {
	case ExtPDF:
		return l.loadPDF(ctx, content)
	case ExtDOCX, ExtDOC:
		return loadDOCX(content)
	default:
		return loadText(content)
	}
}
