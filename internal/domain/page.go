package domain

// Page is one logical division of a document, backed by its own editor.
// Number always equals the page's index+1 in its document.
type Page struct {
	ID        string  `json:"id"`
	Number    int     `json:"number"`
	Holder    string  `json:"holder"`
	Blocks    []Block `json:"blocks"`
	WordCount int     `json:"wordCount"`
}

// IsEmpty reports whether the page holds no blocks.
func (p *Page) IsEmpty() bool {
	return len(p.Blocks) == 0
}

// PageSnapshot is the persisted form of a page.
type PageSnapshot struct {
	ID     string  `json:"id"`
	Number int     `json:"number"`
	Blocks []Block `json:"blocks"`
}
