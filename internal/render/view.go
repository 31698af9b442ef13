// Package render reacts to pager events. It keeps a model of the page
// containers and the navigation toolbar so a front end (terminal, web view)
// can draw them without touching the pager's state.
package render

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"pagedoc/internal/pager"
)

// Toolbar element ids expected by the HTML front end.
const (
	AddPageButton    = "addPageBtn"
	RemovePageButton = "removePageBtn"
	PrevPageButton   = "prevPageBtn"
	NextPageButton   = "nextPageBtn"
	PageSelect       = "pageSelect"
	PageCountLabel   = "pageCount"
)

// Container is one mounted page wrapper.
type Container struct {
	Holder string `json:"holder"`
	PageID string `json:"pageId"`
	Number int    `json:"number"`
	Active bool   `json:"active"`
}

// ToolbarState is the enabled state and labels of the toolbar elements.
type ToolbarState struct {
	Enabled map[string]bool `json:"enabled"`
	Options []string        `json:"options"` // page select entries
	Label   string          `json:"label"`
	Current int             `json:"current"`
}

// View implements pager.Emitter. Events may arrive from any goroutine.
type View struct {
	mu         sync.Mutex
	containers []Container
	nav        pager.NavState
	next       pager.Emitter
}

// NewView returns a view that forwards every event to next (may be nil).
func NewView(next pager.Emitter) *View {
	return &View{next: next}
}

func (v *View) Emit(ctx context.Context, event string, data any) {
	v.apply(event, data)
	if v.next != nil {
		v.next.Emit(ctx, event, data)
	}
}

func (v *View) apply(event string, data any) {
	v.mu.Lock()
	defer v.mu.Unlock()

	switch event {
	case pager.EventPageMounted:
		ev := data.(pager.PageEvent)
		v.containers = append(v.containers, Container{Holder: ev.Holder, PageID: ev.PageID, Number: ev.Number})
	case pager.EventPageUnmounted:
		ev := data.(pager.PageEvent)
		for i, c := range v.containers {
			if c.PageID == ev.PageID {
				v.containers = append(v.containers[:i], v.containers[i+1:]...)
				break
			}
		}
	case pager.EventPageActivated, pager.EventPageDeactivated:
		ev := data.(pager.PageEvent)
		for i := range v.containers {
			if v.containers[i].PageID == ev.PageID {
				v.containers[i].Active = event == pager.EventPageActivated
			}
		}
	case pager.EventNavigation:
		v.nav = data.(pager.NavState)
		// container numbers follow the page order
		order := make(map[string]int, len(v.nav.PageIDs))
		for i, id := range v.nav.PageIDs {
			order[id] = i + 1
		}
		for i := range v.containers {
			if n, ok := order[v.containers[i].PageID]; ok {
				v.containers[i].Number = n
			}
		}
	}
}

// Containers returns the mounted containers in page order.
func (v *View) Containers() []Container {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]Container, len(v.containers))
	copy(out, v.containers)
	return out
}

// Toolbar derives the toolbar state from the last navigation event.
func (v *View) Toolbar() ToolbarState {
	v.mu.Lock()
	nav := v.nav
	v.mu.Unlock()

	opts := make([]string, nav.Total)
	for i := range opts {
		opts[i] = fmt.Sprintf("Page %d", i+1)
	}
	return ToolbarState{
		Enabled: map[string]bool{
			AddPageButton:    true,
			RemovePageButton: nav.CanRemove,
			PrevPageButton:   nav.CanPrev,
			NextPageButton:   nav.CanNext,
			PageSelect:       nav.Total > 1,
		},
		Options: opts,
		Label:   fmt.Sprintf("Page %d of %d", nav.Current, nav.Total),
		Current: nav.Current,
	}
}

// StatusLine renders the toolbar as one line of text.
func (v *View) StatusLine() string {
	tb := v.Toolbar()
	var b strings.Builder
	b.WriteString(tb.Label)
	for _, id := range []string{PrevPageButton, NextPageButton, RemovePageButton} {
		mark := " "
		if tb.Enabled[id] {
			mark = "x"
		}
		fmt.Fprintf(&b, " [%s]%s", mark, id)
	}
	return b.String()
}
