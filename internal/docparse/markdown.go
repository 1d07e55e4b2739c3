package docparse

import (
	"fmt"
	"os"
	"strings"
)

// parseMarkdown segments a markdown file at heading lines: the text
// accumulated before each heading becomes one span, and the heading opens
// the next. Pages are fixed at 1; paragraph numbers count sections.
func (p *Parser) parseMarkdown(path string) (Extraction, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Extraction{}, fmt.Errorf("read markdown file failed: %w", err)
	}

	content := strings.ReplaceAll(string(raw), "\r\n", "\n")

	var b extractionBuilder
	paragraphNum := 0
	var section strings.Builder

	flush := func() {
		if t := strings.TrimSpace(section.String()); t != "" {
			paragraphNum++
			b.addParagraph(1, paragraphNum, t)
		}
		section.Reset()
	}

	for _, line := range strings.Split(content, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "#") {
			flush()
		}
		section.WriteString(line)
		section.WriteString("\n")
	}
	flush()

	return b.build(), nil
}
