package postgres

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/Keyring-Network/linkchat/internal/store"
)

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newMockStore(t *testing.T) (*PostgresStore, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	cleanup := func() {
		_ = db.Close()
	}
	return &PostgresStore{db: db, now: func() time.Time { return fixedNow }}, mock, cleanup
}

func TestEnsureSchema_ExecError(t *testing.T) {
	ctx := context.Background()
	pgStore, mock, cleanup := newMockStore(t)
	defer cleanup()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS documents").WillReturnError(errors.New("permission denied"))
	if err := ensureSchema(ctx, pgStore.db); err == nil {
		t.Fatalf("expected schema error")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestNew_OpenError(t *testing.T) {
	orig := openDB
	t.Cleanup(func() { openDB = orig })
	openDB = func(driverName, dataSourceName string) (*sql.DB, error) {
		return nil, errors.New("bad dsn")
	}
	if _, err := New("postgres://invalid"); err == nil {
		t.Fatalf("expected open error")
	}
}

func TestGetDocument_Success(t *testing.T) {
	ctx := context.Background()
	pgStore, mock, cleanup := newMockStore(t)
	defer cleanup()

	rows := sqlmock.NewRows([]string{"collection", "id", "data", "created_at", "updated_at"}).
		AddRow("conversations", "c1", []byte(`[{"role":"user","content":"hi"}]`), fixedNow, fixedNow)
	mock.ExpectQuery("SELECT collection, id, data, created_at, updated_at").
		WithArgs("conversations", "c1").
		WillReturnRows(rows)

	doc, err := pgStore.GetDocument(ctx, "conversations", "c1")
	if err != nil {
		t.Fatalf("get document: %v", err)
	}
	if doc.ID != "c1" || doc.Collection != "conversations" {
		t.Fatalf("unexpected document key %s/%s", doc.Collection, doc.ID)
	}
	if string(doc.Data) != `[{"role":"user","content":"hi"}]` {
		t.Fatalf("unexpected data %q", doc.Data)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestGetDocument_NotFound(t *testing.T) {
	ctx := context.Background()
	pgStore, mock, cleanup := newMockStore(t)
	defer cleanup()

	mock.ExpectQuery("SELECT collection, id, data, created_at, updated_at").WillReturnError(sql.ErrNoRows)
	if _, err := pgStore.GetDocument(ctx, "conversations", "missing"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestGetDocument_QueryError(t *testing.T) {
	ctx := context.Background()
	pgStore, mock, cleanup := newMockStore(t)
	defer cleanup()

	mock.ExpectQuery("SELECT collection, id, data, created_at, updated_at").WillReturnError(errors.New("query error"))
	_, err := pgStore.GetDocument(ctx, "conversations", "c1")
	if err == nil || errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected generic query error, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestCreateDocument(t *testing.T) {
	ctx := context.Background()
	pgStore, mock, cleanup := newMockStore(t)
	defer cleanup()

	mock.ExpectExec("INSERT INTO documents").
		WithArgs("ratelimits", "ip_127.0.0.1", []byte(`{}`), fixedNow).
		WillReturnResult(sqlmock.NewResult(0, 1))
	if err := pgStore.CreateDocument(ctx, store.Document{Collection: "ratelimits", ID: "ip_127.0.0.1", Data: []byte(`{}`)}); err != nil {
		t.Fatalf("create document: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestUpdateDocument_NoRows(t *testing.T) {
	ctx := context.Background()
	pgStore, mock, cleanup := newMockStore(t)
	defer cleanup()

	mock.ExpectExec("UPDATE documents").WillReturnResult(sqlmock.NewResult(0, 0))
	err := pgStore.UpdateDocument(ctx, store.Document{Collection: "conversations", ID: "c1"})
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestUpdateDocument_Success(t *testing.T) {
	ctx := context.Background()
	pgStore, mock, cleanup := newMockStore(t)
	defer cleanup()

	mock.ExpectExec("UPDATE documents").
		WithArgs("conversations", "c1", []byte(`[]`), fixedNow).
		WillReturnResult(sqlmock.NewResult(0, 1))
	if err := pgStore.UpdateDocument(ctx, store.Document{Collection: "conversations", ID: "c1", Data: []byte(`[]`)}); err != nil {
		t.Fatalf("update document: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestUpdateDocument_RowsAffectedError(t *testing.T) {
	ctx := context.Background()
	pgStore, mock, cleanup := newMockStore(t)
	defer cleanup()

	mock.ExpectExec("UPDATE documents").WillReturnResult(sqlmock.NewErrorResult(errors.New("rows affected unavailable")))
	if err := pgStore.UpdateDocument(ctx, store.Document{Collection: "conversations", ID: "c1"}); err == nil {
		t.Fatalf("expected rows affected error")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestUpsertDocument(t *testing.T) {
	ctx := context.Background()
	pgStore, mock, cleanup := newMockStore(t)
	defer cleanup()

	mock.ExpectExec("ON CONFLICT").
		WithArgs("conversations", "c1", []byte(`[]`), fixedNow).
		WillReturnResult(sqlmock.NewResult(0, 1))
	if err := pgStore.UpsertDocument(ctx, store.Document{Collection: "conversations", ID: "c1", Data: []byte(`[]`)}); err != nil {
		t.Fatalf("upsert document: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestDeleteDocumentsBefore(t *testing.T) {
	ctx := context.Background()
	pgStore, mock, cleanup := newMockStore(t)
	defer cleanup()

	cutoff := fixedNow.Add(-time.Hour)
	mock.ExpectExec("DELETE FROM documents").
		WithArgs("ratelimits", cutoff).
		WillReturnResult(sqlmock.NewResult(0, 3))
	deleted, err := pgStore.DeleteDocumentsBefore(ctx, "ratelimits", cutoff)
	if err != nil {
		t.Fatalf("delete documents: %v", err)
	}
	if deleted != 3 {
		t.Fatalf("expected 3 deleted, got %d", deleted)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
