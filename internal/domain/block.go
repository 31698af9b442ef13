package domain

import "strings"

type BlockType string

const (
	BlockTypeParagraph BlockType = "paragraph"
	BlockTypeHeader    BlockType = "header"
	BlockTypeList      BlockType = "list"
	BlockTypeQuote     BlockType = "quote"
)

// Block is one content unit of a page editor. Data is opaque to the pager
// except for the "text" field used for word counts.
type Block struct {
	ID   string         `json:"id,omitempty"`
	Type BlockType      `json:"type"`
	Data map[string]any `json:"data"`
}

// Text returns the block's "text" payload, or "" if it has none.
func (b Block) Text() string {
	if b.Data == nil {
		return ""
	}
	s, _ := b.Data["text"].(string)
	return s
}

// NewParagraph builds a paragraph block.
func NewParagraph(text string) Block {
	return Block{Type: BlockTypeParagraph, Data: map[string]any{"text": text}}
}

// NewHeader builds a header block at the given level.
func NewHeader(text string, level int) Block {
	return Block{Type: BlockTypeHeader, Data: map[string]any{"text": text, "level": level}}
}

// CloneBlocks deep-copies a block slice one level into Data so callers can't
// mutate an editor's internal state through a returned slice.
func CloneBlocks(blocks []Block) []Block {
	if blocks == nil {
		return nil
	}
	out := make([]Block, len(blocks))
	for i, b := range blocks {
		out[i] = Block{ID: b.ID, Type: b.Type}
		if b.Data != nil {
			out[i].Data = make(map[string]any, len(b.Data))
			for k, v := range b.Data {
				out[i].Data[k] = v
			}
		}
	}
	return out
}

// HeaderLevel returns the header level, defaulting to 2.
func (b Block) HeaderLevel() int {
	switch v := b.Data["level"].(type) {
	case int:
		return v
	case float64:
		return int(v)
	}
	return 2
}

// IsText reports whether the block carries a non-blank text payload.
func (b Block) IsText() bool {
	return strings.TrimSpace(b.Text()) != ""
}
