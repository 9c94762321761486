package loader

import (
	"bytes"
	"fmt"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

var (
	bomUTF16BE = []byte{0xFE, 0xFF}
	bomUTF16LE = []byte{0xFF, 0xFE}
)

// loadText decodes UTF-8 (with or without BOM) and BOM-marked UTF-16 text.
// Content that is neither is read as Latin-1.
func loadText(content []byte) ([]Section, error) {
	decoder := unicode.BOMOverride(unicode.UTF8.NewDecoder())
	if !bytes.HasPrefix(content, bomUTF16BE) && !bytes.HasPrefix(content, bomUTF16LE) && !utf8.Valid(content) {
		decoder = charmap.ISO8859_1.NewDecoder()
	}

	decoded, _, err := transform.Bytes(decoder, content)
	if err != nil {
		return nil, fmt.Errorf("failed to decode text: %w", err)
	}

	return []Section{{Index: 1, Text: string(decoded)}}, nil
}
