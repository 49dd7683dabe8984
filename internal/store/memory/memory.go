package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Keyring-Network/linkchat/internal/store"
)

type MemoryStore struct {
	mu   sync.RWMutex
	docs map[string]map[string]store.Document
	now  func() time.Time
}

func New() *MemoryStore {
	return &MemoryStore{
		docs: map[string]map[string]store.Document{},
		now:  time.Now,
	}
}

func (m *MemoryStore) GetDocument(ctx context.Context, collection string, id string) (*store.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	doc, ok := m.docs[collection][id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cloned := cloneDocument(doc)
	return &cloned, nil
}

func (m *MemoryStore) CreateDocument(ctx context.Context, doc store.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.docs[doc.Collection][doc.ID]; ok {
		return fmt.Errorf("document %s/%s already exists", doc.Collection, doc.ID)
	}
	m.put(doc, m.now().UTC())
	return nil
}

func (m *MemoryStore) UpdateDocument(ctx context.Context, doc store.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.docs[doc.Collection][doc.ID]
	if !ok {
		return store.ErrNotFound
	}
	m.put(doc, existing.CreatedAt)
	return nil
}

func (m *MemoryStore) UpsertDocument(ctx context.Context, doc store.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	createdAt := m.now().UTC()
	if existing, ok := m.docs[doc.Collection][doc.ID]; ok {
		createdAt = existing.CreatedAt
	}
	m.put(doc, createdAt)
	return nil
}

func (m *MemoryStore) DeleteDocumentsBefore(ctx context.Context, collection string, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var deleted int64
	for id, doc := range m.docs[collection] {
		if doc.UpdatedAt.Before(cutoff) {
			delete(m.docs[collection], id)
			deleted++
		}
	}
	return deleted, nil
}

func (m *MemoryStore) Ping(ctx context.Context) error {
	return nil
}

func (m *MemoryStore) put(doc store.Document, createdAt time.Time) {
	if m.docs[doc.Collection] == nil {
		m.docs[doc.Collection] = map[string]store.Document{}
	}
	stored := cloneDocument(doc)
	stored.CreatedAt = createdAt
	stored.UpdatedAt = m.now().UTC()
	m.docs[doc.Collection][doc.ID] = stored
}

func cloneDocument(doc store.Document) store.Document {
	cloned := doc
	cloned.Data = append([]byte(nil), doc.Data...)
	return cloned
}
