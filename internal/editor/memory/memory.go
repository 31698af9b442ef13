// Package memory is an in-process block editor. It backs headless
// documents (CLI, MCP, inbox) and is the editor used by tests.
package memory

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"

	"pagedoc/internal/domain"
	"pagedoc/internal/editor"
)

var ErrDestroyed = errors.New("editor destroyed")

// Faults lets tests make specific editor calls fail.
type Faults struct {
	Construct error
	Insert    func(b domain.Block) error
	Save      error
	Destroy   error
}

// Editor is a goroutine-safe in-memory block list.
type Editor struct {
	mu        sync.Mutex
	holder    string
	blocks    []domain.Block
	onChange  func()
	focused   bool
	destroyed bool
	faults    *Faults
}

// NewFactory returns an editor.Factory producing memory editors.
// faults may be nil.
func NewFactory(faults *Faults) editor.Factory {
	return func(_ context.Context, cfg editor.Config) (editor.Editor, error) {
		if faults != nil && faults.Construct != nil {
			return nil, faults.Construct
		}
		return New(cfg, faults), nil
	}
}

// New creates an editor seeded with cfg.Blocks.
func New(cfg editor.Config, faults *Faults) *Editor {
	e := &Editor{
		holder:   cfg.Holder,
		blocks:   domain.CloneBlocks(cfg.Blocks),
		onChange: cfg.OnChange,
		faults:   faults,
	}
	for i := range e.blocks {
		if e.blocks[i].ID == "" {
			e.blocks[i].ID = uuid.New().String()
		}
	}
	return e
}

func (e *Editor) Holder() string { return e.holder }

func (e *Editor) Save(_ context.Context) ([]domain.Block, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.destroyed {
		return nil, ErrDestroyed
	}
	if e.faults != nil && e.faults.Save != nil {
		return nil, e.faults.Save
	}
	return domain.CloneBlocks(e.blocks), nil
}

func (e *Editor) Insert(_ context.Context, b domain.Block) error {
	e.mu.Lock()
	if e.destroyed {
		e.mu.Unlock()
		return ErrDestroyed
	}
	if e.faults != nil && e.faults.Insert != nil {
		if err := e.faults.Insert(b); err != nil {
			e.mu.Unlock()
			return err
		}
	}
	nb := domain.CloneBlocks([]domain.Block{b})[0]
	if nb.ID == "" || e.hasID(nb.ID) {
		nb.ID = uuid.New().String()
	}
	e.blocks = append(e.blocks, nb)
	e.mu.Unlock()

	e.changed()
	return nil
}

// hasID reports whether a block with id is already on the page. Callers
// hold e.mu.
func (e *Editor) hasID(id string) bool {
	for _, b := range e.blocks {
		if b.ID == id {
			return true
		}
	}
	return false
}

func (e *Editor) BlockCount(_ context.Context) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.destroyed {
		return 0, ErrDestroyed
	}
	return len(e.blocks), nil
}

func (e *Editor) Focus() {
	e.mu.Lock()
	e.focused = true
	e.mu.Unlock()
}

// Focused reports whether Focus has been called.
func (e *Editor) Focused() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.focused
}

func (e *Editor) Destroy() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.faults != nil && e.faults.Destroy != nil {
		return e.faults.Destroy
	}
	e.destroyed = true
	e.onChange = nil
	return nil
}

// Append simulates a user typing a new block at the end of the page.
func (e *Editor) Append(b domain.Block) error {
	return e.Insert(context.Background(), b)
}

// Replace swaps the whole content, as a paste-over-selection would.
func (e *Editor) Replace(blocks []domain.Block) error {
	e.mu.Lock()
	if e.destroyed {
		e.mu.Unlock()
		return ErrDestroyed
	}
	e.blocks = domain.CloneBlocks(blocks)
	for i := range e.blocks {
		if e.blocks[i].ID == "" {
			e.blocks[i].ID = uuid.New().String()
		}
	}
	e.mu.Unlock()

	e.changed()
	return nil
}

// OnChange is called outside the lock so the handler may read the editor.
func (e *Editor) changed() {
	e.mu.Lock()
	fn := e.onChange
	e.mu.Unlock()
	if fn != nil {
		fn()
	}
}
