package loader

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/phuslu/log"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
)

var pageFilePattern = regexp.MustCompile(`(?i)page_(\d+)`)

// loadPDF extracts one section per page that carries text. Page indexes are
// 1-based and follow the document's page order.
func (l *Loader) loadPDF(ctx context.Context, content []byte) ([]Section, error) {
	workDir, err := os.MkdirTemp(l.TempDir, "ragdesk-pdf-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(workDir)

	src := filepath.Join(workDir, "source.pdf")
	if err := os.WriteFile(src, content, 0o600); err != nil {
		return nil, fmt.Errorf("failed to write temp pdf: %w", err)
	}

	pdfCtx, err := api.ReadContextFile(src)
	if err != nil {
		return nil, fmt.Errorf("failed to read pdf: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	outDir := filepath.Join(workDir, "content")
	if err := os.Mkdir(outDir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create content dir: %w", err)
	}
	if err := api.ExtractContentFile(src, outDir, nil, model.NewDefaultConfiguration()); err != nil {
		return nil, fmt.Errorf("failed to extract pdf content: %w", err)
	}

	entries, err := os.ReadDir(outDir)
	if err != nil {
		return nil, fmt.Errorf("failed to list pdf content: %w", err)
	}

	pages := make(map[int]*strings.Builder)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		m := pageFilePattern.FindStringSubmatch(entry.Name())
		if m == nil {
			continue
		}
		page, err := strconv.Atoi(m[1])
		if err != nil || page < 1 || page > pdfCtx.PageCount {
			continue
		}

		raw, err := os.ReadFile(filepath.Join(outDir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("failed to read page %d content: %w", page, err)
		}

		b, ok := pages[page]
		if !ok {
			b = &strings.Builder{}
			pages[page] = b
		} else {
			b.WriteByte('\n')
		}
		b.WriteString(extractStreamText(raw))
	}

	indexes := make([]int, 0, len(pages))
	for page := range pages {
		indexes = append(indexes, page)
	}
	sort.Ints(indexes)

	sections := make([]Section, 0, len(indexes))
	for _, page := range indexes {
		text := strings.TrimSpace(pages[page].String())
		if text == "" {
			continue
		}
		sections = append(sections, Section{Index: page, Text: text})
	}

	log.Debug().Int("page_count", pdfCtx.PageCount).Int("text_pages", len(sections)).Msg("pdf text extracted")

	return sections, nil
}

// kerningSpace is the TJ displacement (thousandths of an em) treated as a word gap.
const kerningSpace = -200

// extractStreamText pulls the text shown by a page content stream. Text
// positioning operators and the end of a text object start a new line.
func extractStreamText(stream []byte) string {
	s := &streamScanner{data: stream}
	var out strings.Builder
	var operands []string
	var array strings.Builder
	inArray := false

	newline := func() {
		if out.Len() > 0 && !strings.HasSuffix(out.String(), "\n") {
			out.WriteByte('\n')
		}
	}

	for {
		tok, kind, ok := s.next()
		if !ok {
			break
		}
		switch kind {
		case tokenString:
			if inArray {
				array.WriteString(tok)
			} else {
				operands = append(operands, tok)
			}
		case tokenNumber:
			if inArray {
				if n, err := strconv.ParseFloat(tok, 64); err == nil && n <= kerningSpace {
					array.WriteByte(' ')
				}
			}
		case tokenArrayStart:
			inArray = true
			array.Reset()
		case tokenArrayEnd:
			inArray = false
			operands = append(operands, array.String())
		case tokenOperator:
			switch tok {
			case "Tj":
				out.WriteString(last(operands))
			case "TJ":
				out.WriteString(last(operands))
			case "'", `"`:
				newline()
				out.WriteString(last(operands))
			case "Td", "TD", "T*", "ET":
				newline()
			}
			operands = operands[:0]
		}
	}

	return out.String()
}

func last(values []string) string {
	if len(values) == 0 {
		return ""
	}
	return values[len(values)-1]
}

type tokenKind int

const (
	tokenOperator tokenKind = iota
	tokenString
	tokenNumber
	tokenArrayStart
	tokenArrayEnd
	tokenOther
)

type streamScanner struct {
	data []byte
	pos  int
}

func isDelimiter(c byte) bool {
	return bytes.IndexByte([]byte("()<>[]{}/%"), c) >= 0
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\r' || c == '\n' || c == '\f' || c == 0
}

func (s *streamScanner) next() (string, tokenKind, bool) {
	for s.pos < len(s.data) {
		c := s.data[s.pos]
		switch {
		case isSpace(c):
			s.pos++
		case c == '%':
			for s.pos < len(s.data) && s.data[s.pos] != '\n' && s.data[s.pos] != '\r' {
				s.pos++
			}
		case c == '(':
			return decodePDFString(s.literal()), tokenString, true
		case c == '<':
			if s.pos+1 < len(s.data) && s.data[s.pos+1] == '<' {
				s.pos += 2
				return "<<", tokenOther, true
			}
			return decodePDFString(s.hex()), tokenString, true
		case c == '>':
			s.pos++
			if s.pos < len(s.data) && s.data[s.pos] == '>' {
				s.pos++
			}
			return ">>", tokenOther, true
		case c == '[':
			s.pos++
			return "[", tokenArrayStart, true
		case c == ']':
			s.pos++
			return "]", tokenArrayEnd, true
		case c == '/':
			s.pos++
			return "/" + s.word(), tokenOther, true
		case c == '{' || c == '}' || c == ')':
			s.pos++
		default:
			w := s.word()
			if w == "" {
				s.pos++
				continue
			}
			if _, err := strconv.ParseFloat(w, 64); err == nil {
				return w, tokenNumber, true
			}
			return w, tokenOperator, true
		}
	}
	return "", tokenOther, false
}

func (s *streamScanner) word() string {
	start := s.pos
	for s.pos < len(s.data) && !isSpace(s.data[s.pos]) && !isDelimiter(s.data[s.pos]) {
		s.pos++
	}
	return string(s.data[start:s.pos])
}

// literal reads a balanced (...) string and resolves its escapes.
func (s *streamScanner) literal() []byte {
	s.pos++
	var out []byte
	depth := 1
	for s.pos < len(s.data) {
		c := s.data[s.pos]
		s.pos++
		switch c {
		case '\\':
			if s.pos >= len(s.data) {
				return out
			}
			e := s.data[s.pos]
			s.pos++
			switch e {
			case 'n':
				out = append(out, '\n')
			case 'r':
				out = append(out, '\r')
			case 't':
				out = append(out, '\t')
			case 'b':
				out = append(out, '\b')
			case 'f':
				out = append(out, '\f')
			case '\r':
				if s.pos < len(s.data) && s.data[s.pos] == '\n' {
					s.pos++
				}
			case '\n':
			default:
				if e >= '0' && e <= '7' {
					v := int(e - '0')
					for i := 0; i < 2 && s.pos < len(s.data) && s.data[s.pos] >= '0' && s.data[s.pos] <= '7'; i++ {
						v = v*8 + int(s.data[s.pos]-'0')
						s.pos++
					}
					out = append(out, byte(v))
				} else {
					out = append(out, e)
				}
			}
		case '(':
			depth++
			out = append(out, c)
		case ')':
			depth--
			if depth == 0 {
				return out
			}
			out = append(out, c)
		default:
			out = append(out, c)
		}
	}
	return out
}

func (s *streamScanner) hex() []byte {
	s.pos++
	var digits []byte
	for s.pos < len(s.data) && s.data[s.pos] != '>' {
		c := s.data[s.pos]
		if (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F') {
			digits = append(digits, c)
		}
		s.pos++
	}
	s.pos++
	if len(digits)%2 == 1 {
		digits = append(digits, '0')
	}
	out := make([]byte, len(digits)/2)
	for i := range out {
		v, _ := strconv.ParseUint(string(digits[2*i:2*i+2]), 16, 8)
		out[i] = byte(v)
	}
	return out
}

// decodePDFString handles UTF-16BE strings marked with a BOM. Everything else
// is read as Latin-1, which matches PDFDocEncoding for printable text.
func decodePDFString(raw []byte) string {
	if len(raw) >= 2 && raw[0] == 0xFE && raw[1] == 0xFF {
		decoded, err := unicode.UTF16(unicode.BigEndian, unicode.ExpectBOM).NewDecoder().Bytes(raw)
		if err == nil {
			return string(decoded)
		}
	}
	decoded, err := charmap.ISO8859_1.NewDecoder().Bytes(raw)
	if err != nil {
		return string(raw)
	}
	return string(decoded)
}
