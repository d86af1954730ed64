package metadata

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/bigkaa/flashshare/internal/domain/model"
)

// MemoryStore — хранилище метаданных в памяти процесса.
//
// Каждый экземпляр имеет собственную карту: запись, созданная в одном
// процессе, не видна другому. При рестарте все записи теряются.
// Истёкшие записи удаляются только через Delete (очистка выполняется
// сервисом).
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]*model.ShareRecord // id → запись
}

// NewMemoryStore создаёт пустое хранилище.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]*model.ShareRecord)}
}

// Put сохраняет копию записи.
func (m *MemoryStore) Put(_ context.Context, rec *model.ShareRecord) error {
	if rec == nil || rec.ID == "" {
		return fmt.Errorf("metadata: пустая запись или идентификатор")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[rec.ID] = rec.Clone()
	return nil
}

// Get возвращает копию записи или ErrNotFound.
func (m *MemoryStore) Get(_ context.Context, id string) (*model.ShareRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.records[id]
	if !ok {
		return nil, ErrNotFound
	}
	return rec.Clone(), nil
}

// Delete удаляет запись.
func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, id)
	return nil
}

// List возвращает копии всех записей, упорядоченные по времени истечения.
func (m *MemoryStore) List(_ context.Context) ([]*model.ShareRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*model.ShareRecord, 0, len(m.records))
	for _, rec := range m.records {
		result = append(result, rec.Clone())
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].ExpiresAt.Before(result[j].ExpiresAt)
	})
	return result, nil
}

// Count возвращает количество записей.
func (m *MemoryStore) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}

// Ping всегда успешен.
func (m *MemoryStore) Ping(context.Context) error {
	return nil
}

var (
	_ Store  = (*MemoryStore)(nil)
	_ Lister = (*MemoryStore)(nil)
	_ Pinger = (*MemoryStore)(nil)
)
