package service

import (
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"pagedoc/internal/storage"
)

// ─────────────────────────────────────────────────────────────
// Session persistence
// ─────────────────────────────────────────────────────────────
//
// Remembers the active document and the page each document was left on,
// as key-value rows in app_settings.

// SessionService persists reading positions between runs.
type SessionService struct {
	db *storage.DB
}

// NewSessionService creates a SessionService. A nil db disables persistence.
func NewSessionService(db *storage.DB) *SessionService {
	return &SessionService{db: db}
}

const settingActiveDocument = "active_document"

func cursorKey(documentID string) string { return "cursor:" + documentID }

// ActiveDocument returns the last active document id, or "".
func (s *SessionService) ActiveDocument() string {
	v, _ := s.get(settingActiveDocument)
	return v
}

func (s *SessionService) SetActiveDocument(documentID string) error {
	return s.set(settingActiveDocument, documentID)
}

// Cursor returns the 0-based page index a document was left on.
func (s *SessionService) Cursor(documentID string) int {
	v, err := s.get(cursorKey(documentID))
	if err != nil {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

func (s *SessionService) SaveCursor(documentID string, index int) error {
	return s.set(cursorKey(documentID), strconv.Itoa(index))
}

// Forget drops everything stored for a document.
func (s *SessionService) Forget(documentID string) error {
	if s.db == nil {
		return nil
	}
	if _, err := s.db.Conn().Exec(`DELETE FROM app_settings WHERE key = ?`, cursorKey(documentID)); err != nil {
		return err
	}
	if s.ActiveDocument() == documentID {
		return s.set(settingActiveDocument, "")
	}
	return nil
}

func (s *SessionService) get(key string) (string, error) {
	if s.db == nil {
		return "", sql.ErrNoRows
	}
	var v string
	err := s.db.Conn().QueryRow(`SELECT value FROM app_settings WHERE key = ?`, key).Scan(&v)
	return v, err
}

func (s *SessionService) set(key, value string) error {
	if s.db == nil {
		return errors.New("session: no db")
	}
	_, err := s.db.Conn().Exec(
		`INSERT INTO app_settings (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value,
	)
	if err != nil {
		return fmt.Errorf("save setting %s: %w", key, err)
	}
	return nil
}
