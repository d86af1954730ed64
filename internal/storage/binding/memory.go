package binding

import (
	"bytes"
	"context"
	"io"
	"sync"
)

// MemoryBucket — Bucket в памяти процесса. Подходит для локального
// запуска без объектного хранилища и для тестов.
type MemoryBucket struct {
	mu      sync.RWMutex
	objects map[string]memoryObject
}

type memoryObject struct {
	data []byte
	meta ObjectMetadata
}

// NewMemoryBucket создаёт пустой bucket.
func NewMemoryBucket() *MemoryBucket {
	return &MemoryBucket{objects: make(map[string]memoryObject)}
}

// Put читает поток целиком и сохраняет объект.
func (m *MemoryBucket) Put(_ context.Context, key string, r io.Reader, meta ObjectMetadata) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = memoryObject{data: data, meta: meta}
	return nil
}

// Get возвращает копию содержимого объекта.
func (m *MemoryBucket) Get(_ context.Context, key string) (io.ReadCloser, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	obj, ok := m.objects[key]
	if !ok {
		return nil, false, nil
	}
	return io.NopCloser(bytes.NewReader(bytes.Clone(obj.data))), true, nil
}

// Delete удаляет объект.
func (m *MemoryBucket) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

// Metadata возвращает метаданные объекта.
func (m *MemoryBucket) Metadata(key string) (ObjectMetadata, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	obj, ok := m.objects[key]
	return obj.meta, ok
}

// Len возвращает количество объектов.
func (m *MemoryBucket) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.objects)
}
