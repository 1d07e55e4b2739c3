package docparse

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

// parseXlsx renders each sheet to a tab-separated textual table. The sheet
// index serves as the page number, with a single paragraph per sheet.
func (p *Parser) parseXlsx(path string) (Extraction, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return Extraction{}, fmt.Errorf("open xlsx failed: %w", err)
	}
	defer f.Close()

	var b extractionBuilder
	for sheetNum, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return Extraction{}, fmt.Errorf("read sheet %q failed: %w", sheet, err)
		}

		var sb strings.Builder
		sb.WriteString("工作表: ")
		sb.WriteString(sheet)
		for _, row := range rows {
			sb.WriteString("\n")
			sb.WriteString(strings.Join(row, "\t"))
		}
		text := strings.TrimSpace(sb.String())
		if text == "" {
			continue
		}
		b.addParagraph(sheetNum+1, 1, text)
	}
	return b.build(), nil
}
