// Package editor defines the contract between the pager and the block
// editor widget that backs each page.
package editor

import (
	"context"

	"pagedoc/internal/domain"
)

// Editor is one block-editor instance bound to a single page container.
type Editor interface {
	// Save returns the editor's current blocks.
	Save(ctx context.Context) ([]domain.Block, error)
	// Insert appends a block at the end of the editor.
	Insert(ctx context.Context, b domain.Block) error
	// BlockCount returns the live number of blocks.
	BlockCount(ctx context.Context) (int, error)
	Focus()
	// Destroy tears the instance down. The editor is unusable afterwards.
	Destroy() error
}

// Config is passed to a Factory when a page is mounted.
type Config struct {
	// Holder is the container id the editor renders into.
	Holder string
	// Blocks seeds the editor when restoring a page.
	Blocks []domain.Block
	// OnChange fires after every content mutation.
	OnChange func()
}

// Factory constructs an editor for a page container.
type Factory func(ctx context.Context, cfg Config) (Editor, error)
