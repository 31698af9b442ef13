package pager

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"pagedoc/internal/domain"
)

func TestClassifyLine(t *testing.T) {
	tests := []struct {
		name     string
		line     string
		wantOK   bool
		wantType domain.BlockType
		wantText string
	}{
		{"blank", "", false, "", ""},
		{"whitespace only", "  \t ", false, "", ""},
		{"upper case heading", "INTRODUCTION", true, domain.BlockTypeHeader, "INTRODUCTION"},
		{"upper case with digits", "SECTION 2", true, domain.BlockTypeHeader, "SECTION 2"},
		{"colon heading", "Key findings:", true, domain.BlockTypeHeader, "Key findings"},
		{"colon heading trimmed", "  Next steps:  ", true, domain.BlockTypeHeader, "Next steps"},
		{"single letter stays paragraph", "A", true, domain.BlockTypeParagraph, "A"},
		{"lone colon", ":", true, domain.BlockTypeParagraph, ":"},
		{"mixed case", "Dear Sir or Madam,", true, domain.BlockTypeParagraph, "Dear Sir or Madam,"},
		{"digits only", "2024", true, domain.BlockTypeParagraph, "2024"},
		{"long upper case", strings.Repeat("LOUD ", 13), true, domain.BlockTypeParagraph, strings.TrimSpace(strings.Repeat("LOUD ", 13))},
		{"long colon line", strings.Repeat("x", 60) + ":", true, domain.BlockTypeParagraph, strings.Repeat("x", 60) + ":"},
		{"59 rune colon line", strings.Repeat("x", 58) + ":", true, domain.BlockTypeHeader, strings.Repeat("x", 58)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, ok := ClassifyLine(tt.line)
			assert.Equal(t, tt.wantOK, ok)
			if !ok {
				return
			}
			assert.Equal(t, tt.wantType, b.Type)
			assert.Equal(t, tt.wantText, b.Text())
			if b.Type == domain.BlockTypeHeader {
				assert.Equal(t, 2, b.HeaderLevel())
			}
		})
	}
}

func TestParseContent_SkipsBlankLines(t *testing.T) {
	blocks := ParseContent("A\n\nB\r\n   \nC\n")
	var got []string
	for _, b := range blocks {
		got = append(got, b.Text())
	}
	assert.Equal(t, []string{"A", "B", "C"}, got)
}

func TestWordCount(t *testing.T) {
	blocks := []domain.Block{
		domain.NewParagraph("Hello <i>brave</i>   new\tworld"),
		domain.NewHeader("Summary", 2),
		{Type: "image", Data: map[string]any{"url": "x.png"}},
		{Type: "paragraph"},
		domain.NewParagraph("a<br>b"),
	}
	assert.Equal(t, 6, WordCount(blocks))
	assert.Equal(t, 0, WordCount(nil))
}
