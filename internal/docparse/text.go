package docparse

import (
	"fmt"
	"os"
)

// parseText splits a file into blank-line-separated paragraphs, all on a
// synthetic page 1. This is also the fallback strategy for structured
// formats that fail to parse.
func (p *Parser) parseText(path string) (Extraction, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Extraction{}, fmt.Errorf("read text file failed: %w", err)
	}

	var b extractionBuilder
	for i, para := range splitParagraphs(string(raw)) {
		b.addParagraph(1, i+1, para)
	}
	return b.build(), nil
}
