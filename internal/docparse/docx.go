package docparse

import (
	"archive/zip"
	"encoding/xml"
	"fmt"
	"io"
	"strings"
)

// wordDocument mirrors the parts of word/document.xml we read.
type wordDocument struct {
	Body struct {
		Paragraphs []wordParagraph `xml:"p"`
	} `xml:"body"`
}

type wordParagraph struct {
	Runs []wordRun `xml:"r"`
}

type wordRun struct {
	Text []wordText `xml:"t"`
}

type wordText struct {
	Content string `xml:",chardata"`
}

// parseDocx reads paragraphs from word/document.xml inside the OOXML zip.
// Word documents carry no page concept, so page_num is fixed at 1 and
// paragraph numbers increment per non-empty paragraph.
func (p *Parser) parseDocx(path string) (Extraction, error) {
	reader, err := zip.OpenReader(path)
	if err != nil {
		return Extraction{}, fmt.Errorf("open docx archive failed: %w", err)
	}
	defer reader.Close()

	var payload []byte
	for _, file := range reader.File {
		if file.Name != "word/document.xml" {
			continue
		}
		rc, err := file.Open()
		if err != nil {
			return Extraction{}, fmt.Errorf("open document.xml failed: %w", err)
		}
		payload, err = io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return Extraction{}, fmt.Errorf("read document.xml failed: %w", err)
		}
		break
	}
	if payload == nil {
		return Extraction{}, fmt.Errorf("docx has no word/document.xml")
	}

	var doc wordDocument
	if err := xml.Unmarshal(payload, &doc); err != nil {
		return Extraction{}, fmt.Errorf("parse document.xml failed: %w", err)
	}

	var b extractionBuilder
	paragraphNum := 0
	for _, para := range doc.Body.Paragraphs {
		var sb strings.Builder
		for _, run := range para.Runs {
			for _, t := range run.Text {
				sb.WriteString(t.Content)
			}
		}
		text := strings.TrimSpace(sb.String())
		if text == "" {
			continue
		}
		paragraphNum++
		b.addParagraph(1, paragraphNum, text)
	}
	return b.build(), nil
}
