package docparse

import (
	"fmt"
	"os"
	"strings"
)

// parseImage runs OCR over the whole image, producing exactly one span
// (page 1, paragraph 1) when any text is recognized.
func (p *Parser) parseImage(path string) (Extraction, error) {
	if p.ocr == nil {
		return Extraction{}, fmt.Errorf("no ocr engine configured")
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return Extraction{}, fmt.Errorf("read image file failed: %w", err)
	}
	text, err := p.ocr.Recognize(raw)
	if err != nil {
		return Extraction{}, fmt.Errorf("ocr failed: %w", err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return Extraction{}, nil
	}

	var b extractionBuilder
	b.addParagraph(1, 1, text)
	return b.build(), nil
}
