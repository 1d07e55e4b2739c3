package docparse

import (
	"fmt"

	"github.com/ledongthuc/pdf"
	"go.uber.org/zap"
)

// parsePDF walks pages in order and splits each page's text into
// blank-line-separated paragraphs. Page numbers are 1-based; paragraph
// numbers restart per page.
func (p *Parser) parsePDF(path string) (Extraction, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return Extraction{}, fmt.Errorf("open pdf failed: %w", err)
	}
	defer f.Close()

	var b extractionBuilder
	total := reader.NumPage()
	for pageNum := 1; pageNum <= total; pageNum++ {
		page := reader.Page(pageNum)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			// One unreadable page does not fail the document.
			p.logger.Warn("pdf page extraction failed",
				zap.String("path", path), zap.Int("page", pageNum), zap.Error(err))
			continue
		}
		for i, para := range splitParagraphs(pageText) {
			b.addParagraph(pageNum, i+1, para)
		}
	}
	return b.build(), nil
}
