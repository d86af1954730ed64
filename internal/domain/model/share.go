// Пакет model — доменные модели сервиса временного обмена файлами.
// ShareRecord — единственная хранимая сущность: описание загруженного
// объекта и момента, после которого он недоступен.
package model

import (
	"time"
)

// ShareRecord — метаданные одного загруженного файла.
// Запись неизменяема после создания: допускаются только создание и удаление.
type ShareRecord struct {
	// ID — публичный идентификатор ссылки
	ID string `json:"id"`

	// StorageKey — имя объекта в хранилище: ID + расширение имени файла
	StorageKey string `json:"storageKey"`

	// OriginalName — нормализованное имя файла, переданное пользователем
	OriginalName string `json:"originalName"`

	// MimeType — MIME-тип без параметров, в нижнем регистре
	MimeType string `json:"mimeType"`

	// Size — фактически принятый размер в байтах
	Size int64 `json:"size"`

	// CreatedAt — момент загрузки (UTC)
	CreatedAt time.Time `json:"createdAt"`

	// ExpiresAt — CreatedAt + TTL, не продлевается
	ExpiresAt time.Time `json:"expiresAt"`
}

// IsExpired возвращает true, если срок жизни записи истёк.
// В момент ровно ExpiresAt запись ещё доступна.
func (r *ShareRecord) IsExpired(now time.Time) bool {
	return now.After(r.ExpiresAt)
}

// TTL возвращает оставшееся время жизни записи (не меньше нуля).
func (r *ShareRecord) TTL(now time.Time) time.Duration {
	if d := r.ExpiresAt.Sub(now); d > 0 {
		return d
	}
	return 0
}

// Clone возвращает копию записи.
func (r *ShareRecord) Clone() *ShareRecord {
	if r == nil {
		return nil
	}
	c := *r
	return &c
}
