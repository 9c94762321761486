package loader

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

const docxBodyPart = "word/document.xml"

var errNotOOXML = errors.New("not an Office Open XML document (legacy binary .doc is not supported)")

// documentXML mirrors the parts of word/document.xml that carry text.
type documentXML struct {
	Body struct {
		Paragraphs []paragraph `xml:"p"`
	} `xml:"body"`
}

type paragraph struct {
	Runs []run `xml:"r"`
}

type run struct {
	Text []textElement `xml:"t"`
	Tabs []struct{}    `xml:"tab"`
}

type textElement struct {
	Content string `xml:",chardata"`
}

// loadDOCX reads the main document part. Paragraphs are joined with newlines
// into a single section.
func loadDOCX(content []byte) ([]Section, error) {
	reader, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("failed to open docx: %w", errors.Join(errNotOOXML, err))
	}

	for _, file := range reader.File {
		if file.Name != docxBodyPart {
			continue
		}

		rc, err := file.Open()
		if err != nil {
			return nil, fmt.Errorf("failed to open %s: %w", docxBodyPart, err)
		}
		raw, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", docxBodyPart, err)
		}

		text, err := parseDocumentXML(raw)
		if err != nil {
			return nil, err
		}
		return []Section{{Index: 1, Text: text}}, nil
	}

	return nil, fmt.Errorf("failed to open docx: %w", errNotOOXML)
}

func parseDocumentXML(raw []byte) (string, error) {
	var doc documentXML
	if err := xml.Unmarshal(raw, &doc); err != nil {
		return "", fmt.Errorf("failed to parse %s: %w", docxBodyPart, err)
	}

	lines := make([]string, 0, len(doc.Body.Paragraphs))
	for _, p := range doc.Body.Paragraphs {
		var line strings.Builder
		for _, r := range p.Runs {
			for range r.Tabs {
				line.WriteByte('\t')
			}
			for _, t := range r.Text {
				line.WriteString(t.Content)
			}
		}
		lines = append(lines, line.String())
	}

	return strings.Join(lines, "\n"), nil
}
