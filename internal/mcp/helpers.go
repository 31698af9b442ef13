package mcpserver

import (
	"encoding/json"
	"fmt"

	"pagedoc/internal/domain"
)

// parseJSON parses a JSON string into the target type.
func parseJSON(data string, target any) error {
	return json.Unmarshal([]byte(data), target)
}

// parseBlocks decodes an insert_blocks payload. Blocks without a type
// become paragraphs.
func parseBlocks(raw string) ([]domain.Block, error) {
	var blocks []domain.Block
	if err := parseJSON(raw, &blocks); err != nil {
		return nil, fmt.Errorf("blocks must be a JSON array of {type, data}: %w", err)
	}
	for i := range blocks {
		if blocks[i].Type == "" {
			blocks[i].Type = domain.BlockTypeParagraph
		}
		if blocks[i].Data == nil {
			blocks[i].Data = map[string]any{}
		}
	}
	return blocks, nil
}

// pageSummary is the agent-facing view of a page.
type pageSummary struct {
	ID        string `json:"id"`
	Number    int    `json:"number"`
	Blocks    int    `json:"blocks"`
	WordCount int    `json:"wordCount"`
	Current   bool   `json:"current"`
	Preview   string `json:"preview,omitempty"`
}

func summarizePages(st *domain.PageState) []pageSummary {
	out := make([]pageSummary, len(st.Pages))
	for i, p := range st.Pages {
		out[i] = pageSummary{
			ID:        p.ID,
			Number:    p.Number,
			Blocks:    len(p.Blocks),
			WordCount: p.WordCount,
			Current:   i == st.CurrentIndex,
		}
		if len(p.Blocks) > 0 {
			out[i].Preview = truncate(p.Blocks[0].Text(), 80)
		}
	}
	return out
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}
