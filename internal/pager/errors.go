package pager

import (
	"errors"
	"fmt"

	"pagedoc/internal/domain"
)

var (
	ErrLastPage     = errors.New("cannot remove the only page")
	ErrNotConfirmed = errors.New("page removal not confirmed")
	ErrNoEditor     = errors.New("page has no editor")
	ErrPageNotFound = errors.New("page not found")
)

// UnitError records one content unit that could not be inserted.
type UnitError struct {
	Index int
	Block domain.Block
	Err   error
}

func (e UnitError) Error() string {
	return fmt.Sprintf("unit %d (%s): %v", e.Index, e.Block.Type, e.Err)
}

func (e UnitError) Unwrap() error { return e.Err }

// InsertReport summarises a bulk insertion.
type InsertReport struct {
	Units        int         `json:"units"`
	Inserted     int         `json:"inserted"`
	PagesCreated int         `json:"pagesCreated"`
	Failed       []UnitError `json:"-"`
}

// OK reports whether every unit was inserted.
func (r InsertReport) OK() bool { return len(r.Failed) == 0 }

// Err joins the unit failures, or returns nil.
func (r InsertReport) Err() error {
	if len(r.Failed) == 0 {
		return nil
	}
	errs := make([]error, len(r.Failed))
	for i, f := range r.Failed {
		errs[i] = f
	}
	return errors.Join(errs...)
}
