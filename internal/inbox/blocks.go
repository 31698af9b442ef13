package inbox

import (
	"encoding/json"
	"fmt"

	"pagedoc/internal/domain"
)

// BlockFileExt marks inbox files that hold blocks instead of text.
const BlockFileExt = ".json"

// parseBlockFile reads a block file. The root is either an array of
// {"type", "data"} objects or an object with that array under "blocks".
// Blocks without a type become paragraphs.
func parseBlockFile(data []byte) ([]domain.Block, error) {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse json: %w", err)
	}
	if m, ok := raw.(map[string]any); ok {
		inner, found := m["blocks"]
		if !found {
			return nil, fmt.Errorf("block file: no \"blocks\" array")
		}
		raw = inner
	}
	items, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("block file: expected an array, got %T", raw)
	}

	blocks := make([]domain.Block, 0, len(items))
	for i, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("block %d: expected an object", i+1)
		}
		b := domain.Block{Type: domain.BlockTypeParagraph, Data: map[string]any{}}
		if id, ok := obj["id"].(string); ok {
			b.ID = id
		}
		if t, ok := obj["type"].(string); ok && t != "" {
			b.Type = domain.BlockType(t)
		}
		if d, ok := obj["data"].(map[string]any); ok {
			b.Data = d
		}
		blocks = append(blocks, b)
	}
	return blocks, nil
}
