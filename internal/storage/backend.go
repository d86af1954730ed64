// Пакет storage — абстракция хранилища байтов загруженных файлов.
//
// Реализации:
//   - filestore — локальная файловая система (temp → fsync → rename)
//   - binding — объектное хранилище через переданный извне Bucket
//     (например, клиент AWS SDK, см. binding/s3bucket)
//   - signedrest — S3-совместимый REST API с подписью SigV4
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrObjectNotFound — объекта с таким ключом нет.
var ErrObjectNotFound = errors.New("storage: объект не найден")

// Backend — хранилище байтов.
type Backend interface {
	// Name — короткое имя варианта ("local", "binding", "rest").
	Name() string
	// IsConfigured сообщает, готов ли бэкенд к работе. Без побочных эффектов.
	IsConfigured() bool
	// Put записывает поток r под ключом key и возвращает число записанных байт.
	// dispositionName — имя файла для Content-Disposition при скачивании.
	Put(ctx context.Context, key string, r io.Reader, contentType, dispositionName string) (int64, error)
	// Get открывает объект на чтение или возвращает ErrObjectNotFound.
	// Вызывающий код обязан закрыть ReadCloser.
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	// Delete удаляет объект. Отсутствие объекта не является ошибкой.
	Delete(ctx context.Context, key string) error
}

// ConfigurationError — ни один бэкенд не настроен или настроен неверно.
type ConfigurationError struct {
	Message string
}

func (e *ConfigurationError) Error() string {
	return "storage: " + e.Message
}

// BackendError — ошибка удалённого хранилища. Message не содержит
// учётных данных.
type BackendError struct {
	// Op — операция: put, get, delete
	Op string
	// Key — ключ объекта
	Key string
	// Status — HTTP-статус ответа (0, если ответа не было)
	Status int
	// Message — текст ответа или описание ошибки
	Message string
	// Err — исходная ошибка транспорта
	Err error
}

func (e *BackendError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "storage: %s %s", e.Op, e.Key)
	if e.Status != 0 {
		fmt.Fprintf(&b, ": статус %d", e.Status)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *BackendError) Unwrap() error {
	return e.Err
}

// Select возвращает первый настроенный бэкенд в порядке приоритета.
// nil-элементы пропускаются.
func Select(backends ...Backend) (Backend, error) {
	for _, b := range backends {
		if b != nil && b.IsConfigured() {
			return b, nil
		}
	}
	return nil, &ConfigurationError{Message: "ни один бэкенд хранилища не настроен"}
}

// ValidateKey проверяет, что ключ объекта — одно имя без разделителей пути.
func ValidateKey(key string) error {
	if key == "" || key == "." || strings.Contains(key, "..") || strings.ContainsAny(key, `/\`) {
		return fmt.Errorf("storage: недопустимый ключ объекта %q", key)
	}
	return nil
}

// LimitedReader читает не больше N байт и возвращает ErrTooLarge,
// если в источнике есть ещё данные. Read считает прочитанное в Count.
type LimitedReader struct {
	R     io.Reader
	N     int64
	Count int64
}

// ErrTooLarge — поток длиннее допустимого.
var ErrTooLarge = errors.New("storage: поток превышает допустимый размер")

func (l *LimitedReader) Read(p []byte) (int, error) {
	if l.Count > l.N {
		return 0, ErrTooLarge
	}
	// Читаем на один байт больше лимита, чтобы заметить превышение
	if remaining := l.N + 1 - l.Count; int64(len(p)) > remaining {
		p = p[:remaining]
	}
	n, err := l.R.Read(p)
	l.Count += int64(n)
	if l.Count > l.N {
		return n, ErrTooLarge
	}
	return n, err
}
