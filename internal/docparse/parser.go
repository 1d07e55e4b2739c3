// Package docparse extracts text plus positional structure (page and
// paragraph spans) from the supported document formats. Offsets are byte
// positions into the reassembled full text, which the chunker uses to map
// chunks back to their source location.
package docparse

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// ErrFileTooLarge marks files skipped before any extraction is attempted.
var ErrFileTooLarge = errors.New("file exceeds size ceiling")

// SupportedExts lists the extensions the parser dispatches on.
var SupportedExts = []string{".txt", ".pdf", ".docx", ".xlsx", ".md", ".png", ".jpg", ".jpeg"}

// Span attributes a stretch of the extracted text to a source location.
// Start/End are byte offsets into Extraction.Text; End is exclusive.
type Span struct {
	PageNum      int
	ParagraphNum int
	Start        int
	End          int
	Text         string
}

// Extraction is the full extracted text of one file with its spans in order.
type Extraction struct {
	Text  string
	Spans []Span
}

// Empty reports whether extraction produced no usable text.
func (e Extraction) Empty() bool {
	return strings.TrimSpace(e.Text) == ""
}

// TextRecognizer turns image bytes into text. Implemented by the OCR engine.
type TextRecognizer interface {
	Recognize(imageData []byte) (string, error)
}

// Parser dispatches per-format extraction by file extension.
type Parser struct {
	maxFileSize int64
	ocr         TextRecognizer
	logger      *zap.Logger
}

func NewParser(maxFileSize int64, ocr TextRecognizer, logger *zap.Logger) *Parser {
	return &Parser{
		maxFileSize: maxFileSize,
		ocr:         ocr,
		logger:      logger,
	}
}

// Supported reports whether the path's extension has an extraction strategy.
func Supported(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, s := range SupportedExts {
		if ext == s {
			return true
		}
	}
	return false
}

// Parse extracts text and spans from one file. A structured-format failure
// falls back to the plain-text strategy on the same file; a total failure
// returns an error so the caller can log and move on.
func (p *Parser) Parse(path string) (Extraction, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Extraction{}, fmt.Errorf("stat file failed: %w", err)
	}
	if p.maxFileSize > 0 && info.Size() > p.maxFileSize {
		return Extraction{}, fmt.Errorf("%w: %s (%d bytes)", ErrFileTooLarge, filepath.Base(path), info.Size())
	}

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".pdf":
		return p.parseWithFallback(path, p.parsePDF)
	case ".docx":
		return p.parseWithFallback(path, p.parseDocx)
	case ".xlsx":
		return p.parseXlsx(path)
	case ".md":
		return p.parseMarkdown(path)
	case ".png", ".jpg", ".jpeg":
		return p.parseImage(path)
	default:
		return p.parseText(path)
	}
}

func (p *Parser) parseWithFallback(path string, parse func(string) (Extraction, error)) (Extraction, error) {
	ex, err := parse(path)
	if err == nil {
		return ex, nil
	}
	p.logger.Warn("structured extraction failed, falling back to plain text",
		zap.String("path", path), zap.Error(err))
	return p.parseText(path)
}

// extractionBuilder accumulates paragraphs into the full text while
// recording each one's offset interval.
type extractionBuilder struct {
	text  strings.Builder
	spans []Span
}

func (b *extractionBuilder) addParagraph(pageNum, paragraphNum int, content string) {
	start := b.text.Len()
	b.spans = append(b.spans, Span{
		PageNum:      pageNum,
		ParagraphNum: paragraphNum,
		Start:        start,
		End:          start + len(content),
		Text:         content,
	})
	b.text.WriteString(content)
	b.text.WriteString("\n\n")
}

func (b *extractionBuilder) build() Extraction {
	return Extraction{Text: b.text.String(), Spans: b.spans}
}

// splitParagraphs breaks text on blank lines, trimming and dropping empties.
func splitParagraphs(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	parts := strings.Split(text, "\n\n")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if t := strings.TrimSpace(part); t != "" {
			out = append(out, t)
		}
	}
	return out
}
