package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Store implementations when no document exists
// for the requested (collection, id) pair.
var ErrNotFound = errors.New("document not found")

type Document struct {
	Collection string
	ID         string
	Data       []byte
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

type Store interface {
	GetDocument(ctx context.Context, collection string, id string) (*Document, error)
	CreateDocument(ctx context.Context, doc Document) error
	UpdateDocument(ctx context.Context, doc Document) error
}

// Upserter is implemented by backends that can write a document atomically
// whether or not it already exists.
type Upserter interface {
	UpsertDocument(ctx context.Context, doc Document) error
}

// Pruner is implemented by backends that can drop documents that have not
// been written since a cutoff.
type Pruner interface {
	DeleteDocumentsBefore(ctx context.Context, collection string, cutoff time.Time) (int64, error)
}

// Pinger reports backend reachability for readiness checks.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Put writes doc using the backend's native upsert when available. Otherwise
// it tries an update and falls back to a create when the document is missing.
// The fallback is not atomic: two writers creating the same new id can both
// miss on update and race on create, and one of them gets the create error.
func Put(ctx context.Context, st Store, doc Document) error {
	if upserter, ok := st.(Upserter); ok {
		return upserter.UpsertDocument(ctx, doc)
	}
	err := st.UpdateDocument(ctx, doc)
	if err == nil {
		return nil
	}
	if !errors.Is(err, ErrNotFound) {
		return err
	}
	return st.CreateDocument(ctx, doc)
}
