package domain

// PageState is the complete state of an open document, returned to
// clients that render the page list.
type PageState struct {
	Document     Document `json:"document"`
	Pages        []Page   `json:"pages"`
	CurrentIndex int      `json:"currentIndex"`
	TotalPages   int      `json:"totalPages"`
}
