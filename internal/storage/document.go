package storage

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"pagedoc/internal/domain"
)

// DocumentStore implements domain.DocumentStore using SQLite.
type DocumentStore struct {
	db *DB
}

func NewDocumentStore(db *DB) *DocumentStore {
	return &DocumentStore{db: db}
}

func (s *DocumentStore) CreateDocument(d *domain.Document) error {
	now := time.Now()
	d.CreatedAt = now
	d.UpdatedAt = now
	_, err := s.db.conn.Exec(
		`INSERT INTO documents (id, name, created_at, updated_at) VALUES (?, ?, ?, ?)`,
		d.ID, d.Name, d.CreatedAt, d.UpdatedAt,
	)
	return err
}

func (s *DocumentStore) GetDocument(id string) (*domain.Document, error) {
	d := &domain.Document{}
	err := s.db.conn.QueryRow(
		`SELECT id, name, created_at, updated_at FROM documents WHERE id = ?`, id,
	).Scan(&d.ID, &d.Name, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("get document: %w", err)
	}
	return d, nil
}

func (s *DocumentStore) ListDocuments() ([]domain.Document, error) {
	rows, err := s.db.conn.Query(`SELECT id, name, created_at, updated_at FROM documents ORDER BY updated_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []domain.Document
	for rows.Next() {
		var d domain.Document
		if err := rows.Scan(&d.ID, &d.Name, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, err
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

func (s *DocumentStore) UpdateDocument(d *domain.Document) error {
	d.UpdatedAt = time.Now()
	_, err := s.db.conn.Exec(
		`UPDATE documents SET name = ?, updated_at = ? WHERE id = ?`,
		d.Name, d.UpdatedAt, d.ID,
	)
	return err
}

func (s *DocumentStore) DeleteDocument(id string) error {
	_, err := s.db.conn.Exec(`DELETE FROM documents WHERE id = ?`, id)
	return err
}

// LoadPages returns the document's pages in order with their blocks.
func (s *DocumentStore) LoadPages(documentID string) ([]domain.PageSnapshot, error) {
	rows, err := s.db.conn.Query(
		`SELECT p.id, p.number, b.id, b.type, b.data_json
		 FROM pages p LEFT JOIN blocks b ON b.page_id = p.id
		 WHERE p.document_id = ?
		 ORDER BY p.number ASC, b.position ASC`,
		documentID,
	)
	if err != nil {
		return nil, fmt.Errorf("load pages: %w", err)
	}
	defer rows.Close()

	var pages []domain.PageSnapshot
	for rows.Next() {
		var (
			pageID   string
			number   int
			blockID  *string
			typ      *string
			dataJSON *string
		)
		if err := rows.Scan(&pageID, &number, &blockID, &typ, &dataJSON); err != nil {
			return nil, fmt.Errorf("scan page row: %w", err)
		}
		if len(pages) == 0 || pages[len(pages)-1].ID != pageID {
			pages = append(pages, domain.PageSnapshot{ID: pageID, Number: number})
		}
		if blockID == nil {
			continue
		}
		b := domain.Block{ID: *blockID, Type: domain.BlockType(*typ)}
		if err := json.Unmarshal([]byte(*dataJSON), &b.Data); err != nil {
			return nil, fmt.Errorf("decode block %s: %w", *blockID, err)
		}
		last := &pages[len(pages)-1]
		last.Blocks = append(last.Blocks, b)
	}
	return pages, rows.Err()
}

// ReplacePages atomically replaces every page and block of a document.
func (s *DocumentStore) ReplacePages(documentID string, pages []domain.PageSnapshot) error {
	tx, err := s.db.conn.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM blocks WHERE page_id IN (SELECT id FROM pages WHERE document_id = ?)`, documentID); err != nil {
		return fmt.Errorf("delete blocks: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM pages WHERE document_id = ?`, documentID); err != nil {
		return fmt.Errorf("delete pages: %w", err)
	}

	now := time.Now()
	for i, p := range pages {
		pageID := p.ID
		if pageID == "" {
			pageID = uuid.New().String()
		}
		if _, err := tx.Exec(
			`INSERT INTO pages (id, document_id, number, created_at) VALUES (?, ?, ?, ?)`,
			pageID, documentID, i+1, now,
		); err != nil {
			return fmt.Errorf("insert page %s: %w", pageID, err)
		}
		for pos, b := range p.Blocks {
			blockID := b.ID
			if blockID == "" {
				blockID = uuid.New().String()
			}
			data := b.Data
			if data == nil {
				data = map[string]any{}
			}
			raw, err := json.Marshal(data)
			if err != nil {
				return fmt.Errorf("encode block %s: %w", blockID, err)
			}
			if _, err := tx.Exec(
				`INSERT INTO blocks (id, page_id, position, type, data_json) VALUES (?, ?, ?, ?, ?)`,
				blockID, pageID, pos, string(b.Type), string(raw),
			); err != nil {
				return fmt.Errorf("insert block %s: %w", blockID, err)
			}
		}
	}

	if _, err := tx.Exec(`UPDATE documents SET updated_at = ? WHERE id = ?`, now, documentID); err != nil {
		return fmt.Errorf("touch document: %w", err)
	}
	return tx.Commit()
}
