package render

import (
	"fmt"
	"strings"

	"pagedoc/internal/domain"
)

// Markdown exports pages as one markdown document. Pages are separated by
// a horizontal rule preceded by a page marker comment.
func Markdown(pages []domain.Page) string {
	var b strings.Builder
	for i, p := range pages {
		if i > 0 {
			b.WriteString("\n---\n\n")
		}
		fmt.Fprintf(&b, "<!-- page %d -->\n\n", p.Number)
		for _, blk := range p.Blocks {
			writeBlock(&b, blk)
		}
	}
	return b.String()
}

func writeBlock(b *strings.Builder, blk domain.Block) {
	text := blk.Text()
	switch blk.Type {
	case domain.BlockTypeHeader:
		level := blk.HeaderLevel()
		if level < 1 || level > 6 {
			level = 2
		}
		fmt.Fprintf(b, "%s %s\n\n", strings.Repeat("#", level), text)
	case domain.BlockTypeQuote:
		fmt.Fprintf(b, "> %s\n\n", text)
	case domain.BlockTypeList:
		for _, item := range listItems(blk) {
			fmt.Fprintf(b, "- %s\n", item)
		}
		b.WriteString("\n")
	default:
		if text == "" {
			return
		}
		fmt.Fprintf(b, "%s\n\n", text)
	}
}

func listItems(blk domain.Block) []string {
	var items []string
	switch raw := blk.Data["items"].(type) {
	case []string:
		items = append(items, raw...)
	case []any:
		for _, it := range raw {
			if s, ok := it.(string); ok {
				items = append(items, s)
			}
		}
	}
	if len(items) == 0 && blk.Text() != "" {
		items = append(items, blk.Text())
	}
	return items
}
