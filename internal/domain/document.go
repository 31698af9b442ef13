package domain

import "time"

type Document struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type DocumentStore interface {
	CreateDocument(d *Document) error
	GetDocument(id string) (*Document, error)
	ListDocuments() ([]Document, error)
	UpdateDocument(d *Document) error
	DeleteDocument(id string) error

	LoadPages(documentID string) ([]PageSnapshot, error)
	ReplacePages(documentID string, pages []PageSnapshot) error
}
