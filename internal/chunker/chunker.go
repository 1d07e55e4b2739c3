// Package chunker splits extracted text into bounded, overlapping segments
// and maps each segment back to its source page/paragraph via the parser's
// spans.
package chunker

import (
	"strings"

	"ragbase/internal/docparse"
)

// Separator ladder, preferred first: paragraph breaks, line breaks, CJK and
// Latin sentence terminators, spaces, then hard character cuts.
var separators = []string{"\n\n", "\n", "。", "！", "？", ".", "!", "?", " ", ""}

// locatorProbeLen is how many runes of a chunk's head are searched for in
// the full text to find its approximate start offset.
const locatorProbeLen = 50

// Chunk is one retained segment with its resolved provenance.
type Chunk struct {
	Content      string
	Index        int
	PageNum      *int
	ParagraphNum *int
}

type Chunker struct {
	size    int // max chunk length in runes
	overlap int // overlap with the preceding chunk in runes
}

func New(size, overlap int) *Chunker {
	if size <= 0 {
		size = 400
	}
	if overlap < 0 || overlap >= size {
		overlap = size / 4
	}
	return &Chunker{size: size, overlap: overlap}
}

// Chunk splits the extraction's text and attributes every retained segment
// to the span whose offset interval contains it (nearest preceding span when
// no interval matches). Empty-after-trim segments are dropped and do not
// consume an index.
func (c *Chunker) Chunk(ex docparse.Extraction) []Chunk {
	if strings.TrimSpace(ex.Text) == "" {
		return nil
	}

	var out []Chunk
	for _, raw := range c.Split(ex.Text) {
		content := strings.TrimSpace(raw)
		if content == "" {
			continue
		}
		page, paragraph := locate(ex.Text, content, ex.Spans)
		out = append(out, Chunk{
			Content:      content,
			Index:        len(out),
			PageNum:      page,
			ParagraphNum: paragraph,
		})
	}
	return out
}

// Split breaks text into segments of at most size runes, each overlapping
// its predecessor by up to overlap runes, preferring the strongest boundary
// available.
func (c *Chunker) Split(text string) []string {
	return c.merge(c.splitRecursive(text, 0))
}

// splitRecursive produces pieces no longer than size runes, descending the
// separator ladder only for pieces that are still too long.
func (c *Chunker) splitRecursive(text string, sepIdx int) []string {
	if runeLen(text) <= c.size {
		if text == "" {
			return nil
		}
		return []string{text}
	}
	if sepIdx >= len(separators) {
		return hardCut(text, c.size)
	}

	sep := separators[sepIdx]
	if sep == "" {
		return hardCut(text, c.size)
	}

	var out []string
	for _, part := range strings.SplitAfter(text, sep) {
		if part == "" {
			continue
		}
		if runeLen(part) <= c.size {
			out = append(out, part)
			continue
		}
		out = append(out, c.splitRecursive(part, sepIdx+1)...)
	}
	return out
}

// merge joins pieces into chunks of at most size runes, carrying trailing
// pieces within the overlap budget into the next chunk.
func (c *Chunker) merge(pieces []string) []string {
	var chunks []string
	var window []string
	curLen := 0

	for _, piece := range pieces {
		pl := runeLen(piece)
		if curLen+pl > c.size && curLen > 0 {
			chunks = append(chunks, strings.Join(window, ""))
			for len(window) > 0 && (curLen > c.overlap || curLen+pl > c.size) {
				curLen -= runeLen(window[0])
				window = window[1:]
			}
		}
		window = append(window, piece)
		curLen += pl
	}
	if curLen > 0 {
		if joined := strings.Join(window, ""); strings.TrimSpace(joined) != "" {
			chunks = append(chunks, joined)
		}
	}
	return chunks
}

// locate finds the chunk's approximate start offset by searching for its
// first locatorProbeLen runes, then picks the span containing that offset,
// falling back to the nearest preceding span. Both results are nil when the
// probe cannot be found or no span precedes it.
func locate(fullText, chunk string, spans []docparse.Span) (pageNum, paragraphNum *int) {
	if len(spans) == 0 {
		return nil, nil
	}
	probe := chunk
	if r := []rune(probe); len(r) > locatorProbeLen {
		probe = string(r[:locatorProbeLen])
	}
	pos := strings.Index(fullText, probe)
	if pos < 0 {
		return nil, nil
	}

	for i := range spans {
		span := spans[i]
		if span.Start <= pos && pos <= span.End {
			return intPtr(span.PageNum), intPtr(span.ParagraphNum)
		}
		if pos >= span.Start {
			pageNum = intPtr(span.PageNum)
			paragraphNum = intPtr(span.ParagraphNum)
		}
	}
	return pageNum, paragraphNum
}

func hardCut(text string, size int) []string {
	runes := []rune(text)
	var out []string
	for i := 0; i < len(runes); i += size {
		end := i + size
		if end > len(runes) {
			end = len(runes)
		}
		out = append(out, string(runes[i:end]))
	}
	return out
}

func runeLen(s string) int {
	return len([]rune(s))
}

func intPtr(v int) *int {
	return &v
}
