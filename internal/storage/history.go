package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"pagedoc/internal/domain"
)

// ErrRevisionNotFound is returned when a revision does not exist or
// belongs to another document.
var ErrRevisionNotFound = errors.New("revision not found")

// DefaultMaxRevisions bounds the history kept per document.
const DefaultMaxRevisions = 40

// Revision is one saved snapshot of a document's pages.
type Revision struct {
	ID         string    `json:"id"`
	DocumentID string    `json:"documentId"`
	Label      string    `json:"label"`
	PageCount  int       `json:"pageCount"`
	CreatedAt  time.Time `json:"createdAt"`
}

// HistoryStore keeps a bounded list of page snapshots per document.
type HistoryStore struct {
	db           *DB
	maxRevisions int
}

func NewHistoryStore(db *DB, maxRevisions int) *HistoryStore {
	if maxRevisions <= 0 {
		maxRevisions = DefaultMaxRevisions
	}
	return &HistoryStore{db: db, maxRevisions: maxRevisions}
}

// Push records a snapshot and prunes the oldest revisions over the limit.
func (s *HistoryStore) Push(documentID, label string, pages []domain.PageSnapshot) (*Revision, error) {
	raw, err := json.Marshal(pages)
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	rev := &Revision{
		ID:         uuid.New().String(),
		DocumentID: documentID,
		Label:      label,
		PageCount:  len(pages),
		CreatedAt:  time.Now(),
	}
	_, err = s.db.Conn().Exec(
		`INSERT INTO revisions (id, document_id, label, snapshot_json, created_at) VALUES (?, ?, ?, ?, ?)`,
		rev.ID, documentID, label, string(raw), rev.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert revision: %w", err)
	}
	if err := s.prune(documentID); err != nil {
		return nil, err
	}
	return rev, nil
}

// List returns revisions newest first.
func (s *HistoryStore) List(documentID string) ([]Revision, error) {
	rows, err := s.db.Conn().Query(
		`SELECT id, document_id, label, snapshot_json, created_at
		 FROM revisions WHERE document_id = ? ORDER BY created_at DESC, rowid DESC`, documentID,
	)
	if err != nil {
		return nil, fmt.Errorf("list revisions: %w", err)
	}
	defer rows.Close()

	var revs []Revision
	for rows.Next() {
		var (
			r   Revision
			raw string
		)
		if err := rows.Scan(&r.ID, &r.DocumentID, &r.Label, &raw, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan revision: %w", err)
		}
		var pages []json.RawMessage
		if err := json.Unmarshal([]byte(raw), &pages); err == nil {
			r.PageCount = len(pages)
		}
		revs = append(revs, r)
	}
	return revs, rows.Err()
}

// Load returns the pages stored in one of the document's revisions.
func (s *HistoryStore) Load(documentID, revisionID string) ([]domain.PageSnapshot, error) {
	var raw string
	err := s.db.Conn().QueryRow(
		`SELECT snapshot_json FROM revisions WHERE id = ? AND document_id = ?`, revisionID, documentID,
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("revision %s of document %s: %w", revisionID, documentID, ErrRevisionNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get revision: %w", err)
	}
	var pages []domain.PageSnapshot
	if err := json.Unmarshal([]byte(raw), &pages); err != nil {
		return nil, fmt.Errorf("decode revision: %w", err)
	}
	return pages, nil
}

// Clear removes all history for a document.
func (s *HistoryStore) Clear(documentID string) error {
	_, err := s.db.Conn().Exec(`DELETE FROM revisions WHERE document_id = ?`, documentID)
	return err
}

func (s *HistoryStore) prune(documentID string) error {
	_, err := s.db.Conn().Exec(
		`DELETE FROM revisions WHERE document_id = ? AND id NOT IN (
			SELECT id FROM revisions WHERE document_id = ?
			ORDER BY created_at DESC, rowid DESC LIMIT ?
		)`, documentID, documentID, s.maxRevisions,
	)
	if err != nil {
		return fmt.Errorf("prune revisions: %w", err)
	}
	return nil
}
