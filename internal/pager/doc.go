// Package pager keeps a multi-page block document consistent.
//
// A [Manager] owns an ordered list of pages, each bound to its own
// [editor.Editor]. It creates pages, navigates between them, removes them
// (after confirmation) and splits content across pages when a page
// reaches its block limit.
//
// There are two overflow paths:
//
//   - typing: [Manager.HandlePageChange] runs on every editor change and
//     appends a page when the last page fills up.
//   - bulk: [Manager.InsertBlocks] and [Manager.InsertContent] check the
//     live block count before every unit and move to a fresh page when
//     the current one is full.
//
// Only one path is active at a time. While a bulk insertion runs the
// typing path is suppressed.
//
// A Manager is not safe for concurrent use. Editors deliver OnChange on
// the mutating goroutine, so callers sharing a Manager must serialise
// both manager calls and direct editor edits.
//
// Rendering is not done here. The manager reports container and
// navigation changes through an [Emitter]; see package render.
package pager
