package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/Keyring-Network/linkchat/internal/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS documents (
	collection TEXT NOT NULL,
	id TEXT NOT NULL,
	data BYTEA NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (collection, id)
);
CREATE INDEX IF NOT EXISTS documents_collection_updated_at_idx ON documents (collection, updated_at);
`

type PostgresStore struct {
	db  *sql.DB
	now func() time.Time
}

var openDB = sql.Open

func New(conn string) (*PostgresStore, error) {
	db, err := openDB("pgx", conn)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := ensureSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &PostgresStore{db: db, now: time.Now}, nil
}

func ensureSchema(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, schema)
	return err
}

func (p *PostgresStore) Close() error {
	return p.db.Close()
}

func (p *PostgresStore) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

func (p *PostgresStore) GetDocument(ctx context.Context, collection string, id string) (*store.Document, error) {
	const query = `
		SELECT collection, id, data, created_at, updated_at
		FROM documents
		WHERE collection = $1 AND id = $2
	`
	doc := store.Document{}
	if err := p.db.QueryRowContext(ctx, query, collection, id).Scan(
		&doc.Collection,
		&doc.ID,
		&doc.Data,
		&doc.CreatedAt,
		&doc.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	doc.CreatedAt = doc.CreatedAt.UTC()
	doc.UpdatedAt = doc.UpdatedAt.UTC()
	return &doc, nil
}

func (p *PostgresStore) CreateDocument(ctx context.Context, doc store.Document) error {
	const query = `
		INSERT INTO documents (collection, id, data, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $4)
	`
	_, err := p.db.ExecContext(ctx, query, doc.Collection, doc.ID, doc.Data, p.now().UTC())
	return err
}

func (p *PostgresStore) UpdateDocument(ctx context.Context, doc store.Document) error {
	const query = `
		UPDATE documents
		SET data = $3, updated_at = $4
		WHERE collection = $1 AND id = $2
	`
	result, err := p.db.ExecContext(ctx, query, doc.Collection, doc.ID, doc.Data, p.now().UTC())
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

func (p *PostgresStore) UpsertDocument(ctx context.Context, doc store.Document) error {
	const query = `
		INSERT INTO documents (collection, id, data, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $4)
		ON CONFLICT (collection, id)
		DO UPDATE SET
			data = EXCLUDED.data,
			updated_at = EXCLUDED.updated_at
	`
	_, err := p.db.ExecContext(ctx, query, doc.Collection, doc.ID, doc.Data, p.now().UTC())
	return err
}

func (p *PostgresStore) DeleteDocumentsBefore(ctx context.Context, collection string, cutoff time.Time) (int64, error) {
	result, err := p.db.ExecContext(ctx, "DELETE FROM documents WHERE collection = $1 AND updated_at < $2", collection, cutoff.UTC())
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
