package pager

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"pagedoc/internal/domain"
)

// headingMaxLen is exclusive: a heading line has fewer runes than this.
const headingMaxLen = 60

var tagPattern = regexp.MustCompile(`<[^>]*>`)

// ParseContent splits text into blocks, one per non-blank line.
func ParseContent(text string) []domain.Block {
	var blocks []domain.Block
	for _, line := range strings.Split(text, "\n") {
		if b, ok := ClassifyLine(line); ok {
			blocks = append(blocks, b)
		}
	}
	return blocks
}

// ClassifyLine turns one line of text into a block. Blank lines are
// skipped (ok is false). Short lines that are all upper-case or end with a
// colon become level-2 headers with the colon stripped; everything else is
// a paragraph.
func ClassifyLine(line string) (domain.Block, bool) {
	line = strings.TrimSpace(line)
	if line == "" {
		return domain.Block{}, false
	}
	if utf8.RuneCountInString(line) < headingMaxLen {
		if strings.HasSuffix(line, ":") {
			if text := strings.TrimSpace(strings.TrimSuffix(line, ":")); text != "" {
				return domain.NewHeader(text, 2), true
			}
		} else if isUpperCase(line) {
			return domain.NewHeader(line, 2), true
		}
	}
	return domain.NewParagraph(line), true
}

// isUpperCase needs at least two letters so that single-letter lines such
// as list markers stay paragraphs.
func isUpperCase(s string) bool {
	letters := 0
	for _, r := range s {
		if !unicode.IsLetter(r) {
			continue
		}
		if unicode.IsLower(r) {
			return false
		}
		letters++
	}
	return letters >= 2
}

// WordCount sums the words of every text-carrying block, ignoring markup.
func WordCount(blocks []domain.Block) int {
	n := 0
	for _, b := range blocks {
		text, ok := b.Data["text"].(string)
		if !ok {
			continue
		}
		n += len(strings.Fields(tagPattern.ReplaceAllString(text, "")))
	}
	return n
}
