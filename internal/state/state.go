// Package state is the durable substrate shared by the diary store, the
// weather cache and the sync bookkeeping: a small key-value namespace plus
// an ordered document table, backed by sqlite.
package state

import (
	"database/sql"
	"errors"

	log "github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"
)

// Well-known keys in the kv namespace.
const (
	KeyWeatherCache  = "weather_cache"
	KeyLastPosition  = "weather_last_position"
	KeyCurrentSource = "weather_current_source"
	KeyLastSync      = "last_sync_timestamp"
	KeyInitialized   = "hybrid_storage_initialized"
	KeyUserID        = "diary_user_id"
	KeyStorageMode   = "storage_mode"
)

// ErrNotFound is returned when a key or document is absent.
var ErrNotFound = errors.New("state: not found")

// Store wraps the sqlite handle.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path and migrates the
// schema. Use ":memory:" for throwaway stores in tests.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}

	log.WithField("path", path).Debug("state store opened")
	return s, nil
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS kv (
		key   TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS docs (
		id           TEXT PRIMARY KEY,
		timestamp_ms INTEGER NOT NULL,
		body         TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_docs_timestamp ON docs(timestamp_ms DESC);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Get reads a value from the kv namespace.
func (s *Store) Get(key string) (string, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	return value, err
}

// Set writes a value into the kv namespace, replacing any previous value.
func (s *Store) Set(key, value string) error {
	_, err := s.db.Exec(
		`INSERT INTO kv (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value)
	return err
}

// Delete removes a key. Deleting an absent key is not an error.
func (s *Store) Delete(key string) error {
	_, err := s.db.Exec(`DELETE FROM kv WHERE key = ?`, key)
	return err
}

// Doc is one entry in the ordered document table.
type Doc struct {
	ID          string
	TimestampMs int64
	Body        string
}

// PutDoc inserts or replaces a document.
func (s *Store) PutDoc(d Doc) error {
	_, err := s.db.Exec(
		`INSERT INTO docs (id, timestamp_ms, body) VALUES (?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET timestamp_ms = excluded.timestamp_ms, body = excluded.body`,
		d.ID, d.TimestampMs, d.Body)
	return err
}

// ListDocs returns up to limit documents, newest first. limit <= 0 means all.
func (s *Store) ListDocs(limit int) ([]Doc, error) {
	q := `SELECT id, timestamp_ms, body FROM docs ORDER BY timestamp_ms DESC`
	var rows *sql.Rows
	var err error
	if limit > 0 {
		rows, err = s.db.Query(q+` LIMIT ?`, limit)
	} else {
		rows, err = s.db.Query(q)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []Doc
	for rows.Next() {
		var d Doc
		if err := rows.Scan(&d.ID, &d.TimestampMs, &d.Body); err != nil {
			return nil, err
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

// ReplaceDocs atomically swaps the whole document table for docs. On any
// failure the transaction rolls back and the previous contents survive.
func (s *Store) ReplaceDocs(docs []Doc) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM docs`); err != nil {
		return err
	}
	for _, d := range docs {
		_, err := tx.Exec(
			`INSERT INTO docs (id, timestamp_ms, body) VALUES (?, ?, ?)`,
			d.ID, d.TimestampMs, d.Body)
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

// DeleteDoc removes a document by id.
func (s *Store) DeleteDoc(id string) error {
	_, err := s.db.Exec(`DELETE FROM docs WHERE id = ?`, id)
	return err
}

// CountDocs returns the number of stored documents.
func (s *Store) CountDocs() (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM docs`).Scan(&n)
	return n, err
}

// TrimDocs evicts the oldest documents beyond max. Silent on underflow.
func (s *Store) TrimDocs(max int) error {
	if max <= 0 {
		return nil
	}
	_, err := s.db.Exec(
		`DELETE FROM docs WHERE id NOT IN (
			SELECT id FROM docs ORDER BY timestamp_ms DESC LIMIT ?
		)`, max)
	return err
}
