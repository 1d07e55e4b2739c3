package docparse

import (
	"archive/zip"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestParser(t *testing.T) *Parser {
	t.Helper()
	return NewParser(0, nil, zap.NewNop())
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestSupported(t *testing.T) {
	assert.True(t, Supported("/data/报告.PDF"))
	assert.True(t, Supported("notes.md"))
	assert.True(t, Supported("scan.jpeg"))
	assert.False(t, Supported("archive.tar.gz"))
	assert.False(t, Supported("presentation.pptx"))
}

func TestParseTextParagraphSpans(t *testing.T) {
	p := newTestParser(t)
	path := writeFile(t, t.TempDir(), "doc.txt",
		"第一段，介绍项目背景。\r\n\r\n第二段，介绍技术选型。\n\n\n\n第三段。")

	ex, err := p.Parse(path)
	require.NoError(t, err)
	require.Len(t, ex.Spans, 3)

	for i, span := range ex.Spans {
		assert.Equal(t, 1, span.PageNum)
		assert.Equal(t, i+1, span.ParagraphNum)
		// Offsets must address the span's own text inside the full text.
		assert.Equal(t, span.Text, ex.Text[span.Start:span.End])
	}
	assert.Contains(t, ex.Text, "技术选型")
}

func TestParseMarkdownSegmentsAtHeadings(t *testing.T) {
	p := newTestParser(t)
	path := writeFile(t, t.TempDir(), "readme.md",
		"# 概述\n这里是概述内容。\n\n## 安装\n执行安装命令。\n\n## 使用\n使用说明。")

	ex, err := p.Parse(path)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(ex.Spans), 3)

	assert.Contains(t, ex.Spans[0].Text, "概述")
	last := ex.Spans[len(ex.Spans)-1]
	assert.Contains(t, last.Text, "使用说明")
	for i, span := range ex.Spans {
		assert.Equal(t, 1, span.PageNum)
		assert.Equal(t, i+1, span.ParagraphNum)
	}
}

func TestParseDocxParagraphs(t *testing.T) {
	const documentXML = `<?xml version="1.0" encoding="UTF-8"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
  <w:body>
    <w:p><w:r><w:t>第一段：</w:t></w:r><w:r><w:t>跨run拼接。</w:t></w:r></w:p>
    <w:p></w:p>
    <w:p><w:r><w:t>第二段内容。</w:t></w:r></w:p>
  </w:body>
</w:document>`

	dir := t.TempDir()
	path := filepath.Join(dir, "doc.docx")
	f, err := os.Create(path)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	entry, err := zw.Create("word/document.xml")
	require.NoError(t, err)
	_, err = entry.Write([]byte(documentXML))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())

	p := newTestParser(t)
	ex, err := p.Parse(path)
	require.NoError(t, err)
	require.Len(t, ex.Spans, 2)
	assert.Equal(t, "第一段：跨run拼接。", ex.Spans[0].Text)
	assert.Equal(t, 1, ex.Spans[0].ParagraphNum)
	assert.Equal(t, "第二段内容。", ex.Spans[1].Text)
	assert.Equal(t, 2, ex.Spans[1].ParagraphNum)
}

func TestParseCorruptDocxFallsBackToText(t *testing.T) {
	p := newTestParser(t)
	path := writeFile(t, t.TempDir(), "broken.docx", "这不是一个zip文件，只是纯文本。")

	ex, err := p.Parse(path)
	require.NoError(t, err)
	require.Len(t, ex.Spans, 1)
	assert.Contains(t, ex.Text, "纯文本")
}

func TestParseRejectsOversizeFile(t *testing.T) {
	p := NewParser(8, nil, zap.NewNop())
	path := writeFile(t, t.TempDir(), "big.txt", strings.Repeat("a", 64))

	_, err := p.Parse(path)
	require.ErrorIs(t, err, ErrFileTooLarge)
}

func TestParseImageWithoutEngine(t *testing.T) {
	p := newTestParser(t)
	path := writeFile(t, t.TempDir(), "scan.png", "not really an image")

	_, err := p.Parse(path)
	require.Error(t, err)
}

func TestFingerprintTracksFileIdentity(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "doc.txt", "内容版本一")

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, os.Chtimes(path, base, base))

	fp1, err := Fingerprint(path)
	require.NoError(t, err)
	fp1Again, err := Fingerprint(path)
	require.NoError(t, err)
	assert.Equal(t, fp1, fp1Again, "fingerprint must be stable for an untouched file")
	assert.Len(t, fp1, 32)

	// Touching mtime alone must change the identity.
	require.NoError(t, os.Chtimes(path, base.Add(time.Second), base.Add(time.Second)))
	fp2, err := Fingerprint(path)
	require.NoError(t, err)
	assert.NotEqual(t, fp1, fp2)

	// So must a size change, even with the old mtime restored.
	require.NoError(t, os.WriteFile(path, []byte("内容版本二，更长一些"), 0o644))
	require.NoError(t, os.Chtimes(path, base, base))
	fp3, err := Fingerprint(path)
	require.NoError(t, err)
	assert.NotEqual(t, fp1, fp3)
}

func TestExtractionEmpty(t *testing.T) {
	assert.True(t, Extraction{}.Empty())
	assert.True(t, Extraction{Text: " \n "}.Empty())
	assert.False(t, Extraction{Text: "内容"}.Empty())
}
