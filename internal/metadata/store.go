// Пакет metadata — хранилище метаданных ссылок (id → ShareRecord) с
// истечением по TTL.
//
// Основная реализация — KVStore поверх внешнего key-value сервиса
// (Redis, PostgreSQL, MongoDB). MemoryStore — резервный вариант внутри
// процесса: состояние не разделяется между экземплярами сервиса.
package metadata

import (
	"context"
	"errors"

	"github.com/bigkaa/flashshare/internal/domain/model"
)

// ErrNotFound — записи нет, её значение повреждено или срок хранения
// в бэкенде истёк.
var ErrNotFound = errors.New("metadata: запись не найдена")

// ErrListUnsupported — бэкенд не умеет перечислять записи.
var ErrListUnsupported = errors.New("metadata: перечисление записей не поддерживается")

// Store — хранилище метаданных.
type Store interface {
	// Put сохраняет запись. Ошибка означает, что запись не сохранена.
	Put(ctx context.Context, rec *model.ShareRecord) error
	// Get возвращает запись или ErrNotFound.
	Get(ctx context.Context, id string) (*model.ShareRecord, error)
	// Delete удаляет запись. Отсутствие записи не является ошибкой.
	Delete(ctx context.Context, id string) error
}

// Lister — хранилище, умеющее перечислять все записи (для очистки).
// Возвращает ErrListUnsupported, если нижележащий бэкенд этого не умеет.
type Lister interface {
	List(ctx context.Context) ([]*model.ShareRecord, error)
}

// Pinger — проверка доступности бэкенда для readiness probe.
type Pinger interface {
	Ping(ctx context.Context) error
}
