package pager

const (
	EventPageMounted     = "page:mounted"
	EventPageUnmounted   = "page:unmounted"
	EventPageActivated   = "page:activated"
	EventPageDeactivated = "page:deactivated"
	EventNavigation      = "pager:navigation"
)

// PageEvent is the payload of the page:* events.
type PageEvent struct {
	PageID string `json:"pageId"`
	Holder string `json:"holder"`
	Number int    `json:"number"`
}

// NavState drives the page toolbar.
type NavState struct {
	Current   int      `json:"current"` // 1-based
	Total     int      `json:"total"`
	CanPrev   bool     `json:"canPrev"`
	CanNext   bool     `json:"canNext"`
	CanRemove bool     `json:"canRemove"`
	PageIDs   []string `json:"pageIds"`
}
