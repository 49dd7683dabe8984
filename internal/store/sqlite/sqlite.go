package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/Keyring-Network/linkchat/internal/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS documents (
	collection TEXT NOT NULL,
	id TEXT NOT NULL,
	data BLOB NOT NULL,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL,
	PRIMARY KEY (collection, id)
);
CREATE INDEX IF NOT EXISTS documents_collection_updated_at_idx ON documents (collection, updated_at);
`

// SQLiteStore keeps documents in a single local database file. Timestamps
// are stored as unix nanoseconds.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

func Open(path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}
	db, err := sql.Open("sqlite", path+"?mode=rwc")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite only supports one writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return &SQLiteStore{db: db, now: time.Now}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteStore) GetDocument(ctx context.Context, collection string, id string) (*store.Document, error) {
	const query = `
		SELECT collection, id, data, created_at, updated_at
		FROM documents
		WHERE collection = ? AND id = ?
	`
	var createdAt, updatedAt int64
	doc := store.Document{}
	if err := s.db.QueryRowContext(ctx, query, collection, id).Scan(
		&doc.Collection,
		&doc.ID,
		&doc.Data,
		&createdAt,
		&updatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	doc.CreatedAt = time.Unix(0, createdAt).UTC()
	doc.UpdatedAt = time.Unix(0, updatedAt).UTC()
	return &doc, nil
}

func (s *SQLiteStore) CreateDocument(ctx context.Context, doc store.Document) error {
	now := s.now().UnixNano()
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO documents (collection, id, data, created_at, updated_at) VALUES (?, ?, ?, ?, ?)",
		doc.Collection, doc.ID, dataOrEmpty(doc.Data), now, now,
	)
	return err
}

func (s *SQLiteStore) UpdateDocument(ctx context.Context, doc store.Document) error {
	result, err := s.db.ExecContext(ctx,
		"UPDATE documents SET data = ?, updated_at = ? WHERE collection = ? AND id = ?",
		dataOrEmpty(doc.Data), s.now().UnixNano(), doc.Collection, doc.ID,
	)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) UpsertDocument(ctx context.Context, doc store.Document) error {
	const query = `
		INSERT INTO documents (collection, id, data, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (collection, id)
		DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at
	`
	now := s.now().UnixNano()
	_, err := s.db.ExecContext(ctx, query, doc.Collection, doc.ID, dataOrEmpty(doc.Data), now, now)
	return err
}

func (s *SQLiteStore) DeleteDocumentsBefore(ctx context.Context, collection string, cutoff time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		"DELETE FROM documents WHERE collection = ? AND updated_at < ?",
		collection, cutoff.UnixNano(),
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// dataOrEmpty keeps the NOT NULL constraint satisfied for nil payloads.
func dataOrEmpty(data []byte) []byte {
	if data == nil {
		return []byte{}
	}
	return data
}
