package metadata

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/bigkaa/flashshare/internal/domain/model"
)

// DefaultKeyPrefix — префикс ключей записей в key-value бэкенде.
const DefaultKeyPrefix = "metadata:"

// MinBackingTTL — минимальный TTL ключа в бэкенде. Применяется, когда до
// истечения записи осталось меньше секунды: ключ не должен жить дольше
// самой записи сверх этого минимума.
const MinBackingTTL = time.Second

// KV — внешний key-value сервис с поддержкой TTL.
type KV interface {
	// Get возвращает значение и признак наличия ключа.
	Get(ctx context.Context, key string) (string, bool, error)
	// Put сохраняет значение с временем жизни ttl.
	Put(ctx context.Context, key, value string, ttl time.Duration) error
	// Delete удаляет ключ. Отсутствие ключа не является ошибкой.
	Delete(ctx context.Context, key string) error
}

// ScanKV — key-value сервис, умеющий вернуть все значения по префиксу,
// включая ключи, чей срок уже прошёл, но которые ещё физически хранятся.
type ScanKV interface {
	KV
	Scan(ctx context.Context, prefix string) ([]string, error)
}

// KVOption — опция KVStore.
type KVOption func(*KVStore)

// WithKeyPrefix задаёт префикс ключей.
func WithKeyPrefix(prefix string) KVOption {
	return func(s *KVStore) { s.prefix = prefix }
}

// WithClock задаёт источник текущего времени.
func WithClock(now func() time.Time) KVOption {
	return func(s *KVStore) { s.now = now }
}

// KVStore — хранилище метаданных поверх KV. Значение — JSON ShareRecord.
type KVStore struct {
	kv     KV
	prefix string
	now    func() time.Time
}

// NewKVStore создаёт хранилище поверх kv.
func NewKVStore(kv KV, opts ...KVOption) *KVStore {
	s := &KVStore{kv: kv, prefix: DefaultKeyPrefix, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Key возвращает ключ записи в бэкенде.
func (s *KVStore) Key(id string) string {
	return s.prefix + id
}

// BackingTTL вычисляет TTL ключа: целое число секунд до истечения записи,
// но не меньше MinBackingTTL.
func BackingTTL(expiresAt, now time.Time) time.Duration {
	ttl := expiresAt.Sub(now).Truncate(time.Second)
	if ttl < MinBackingTTL {
		return MinBackingTTL
	}
	return ttl
}

// Put сериализует запись и сохраняет её с TTL до момента истечения.
func (s *KVStore) Put(ctx context.Context, rec *model.ShareRecord) error {
	if rec == nil || rec.ID == "" {
		return fmt.Errorf("metadata: пустая запись или идентификатор")
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("metadata: ошибка сериализации записи %s: %w", rec.ID, err)
	}

	ttl := BackingTTL(rec.ExpiresAt, s.now())
	if err := s.kv.Put(ctx, s.Key(rec.ID), string(data), ttl); err != nil {
		return fmt.Errorf("metadata: ошибка записи %s: %w", rec.ID, err)
	}
	return nil
}

// Get читает запись. Отсутствующий ключ и повреждённое значение — ErrNotFound.
func (s *KVStore) Get(ctx context.Context, id string) (*model.ShareRecord, error) {
	val, ok, err := s.kv.Get(ctx, s.Key(id))
	if err != nil {
		return nil, fmt.Errorf("metadata: ошибка чтения %s: %w", id, err)
	}
	if !ok {
		return nil, ErrNotFound
	}

	rec, err := decodeRecord(val)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrNotFound, id, err)
	}
	return rec, nil
}

// Delete удаляет запись.
func (s *KVStore) Delete(ctx context.Context, id string) error {
	if err := s.kv.Delete(ctx, s.Key(id)); err != nil {
		return fmt.Errorf("metadata: ошибка удаления %s: %w", id, err)
	}
	return nil
}

// List перечисляет записи, если бэкенд реализует ScanKV.
// Повреждённые значения пропускаются.
func (s *KVStore) List(ctx context.Context) ([]*model.ShareRecord, error) {
	scanner, ok := s.kv.(ScanKV)
	if !ok {
		return nil, ErrListUnsupported
	}

	values, err := scanner.Scan(ctx, s.prefix)
	if err != nil {
		return nil, fmt.Errorf("metadata: ошибка перечисления записей: %w", err)
	}

	result := make([]*model.ShareRecord, 0, len(values))
	for _, val := range values {
		rec, err := decodeRecord(val)
		if err != nil {
			continue
		}
		result = append(result, rec)
	}
	return result, nil
}

// Ping проверяет доступность бэкенда, если он это поддерживает.
func (s *KVStore) Ping(ctx context.Context) error {
	if p, ok := s.kv.(Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}

func decodeRecord(val string) (*model.ShareRecord, error) {
	var rec model.ShareRecord
	if err := json.Unmarshal([]byte(val), &rec); err != nil {
		return nil, fmt.Errorf("некорректный JSON записи: %w", err)
	}
	if rec.ID == "" {
		return nil, fmt.Errorf("запись без идентификатора")
	}
	return &rec, nil
}

var (
	_ Store  = (*KVStore)(nil)
	_ Lister = (*KVStore)(nil)
	_ Pinger = (*KVStore)(nil)
)
