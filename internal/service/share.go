// Пакет service — бизнес-логика временного файлообменника.
// share.go — загрузка, получение и удаление истёкших ссылок.
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/bigkaa/flashshare/internal/domain/model"
	"github.com/bigkaa/flashshare/internal/metadata"
	"github.com/bigkaa/flashshare/internal/shareid"
	"github.com/bigkaa/flashshare/internal/storage"
	"github.com/bigkaa/flashshare/internal/validation"
)

// Границы времени жизни ссылки в часах.
const (
	MinTTLHours = 1
	MaxTTLHours = 168
)

// IDGenerator выдаёт идентификаторы ссылок.
type IDGenerator interface {
	Next() (string, error)
}

// UploadParams — параметры загрузки файла.
type UploadParams struct {
	// Reader — поток данных файла
	Reader io.Reader
	// OriginalName — имя файла, заявленное клиентом
	OriginalName string
	// MimeType — MIME-тип, заявленный клиентом
	MimeType string
	// Size — заявленный размер в байтах
	Size int64
	// TTLHours — время жизни ссылки, приводится к [MinTTLHours, MaxTTLHours]
	TTLHours int
}

// Share — найденная ссылка с потоком данных. Body закрывает вызывающий код.
type Share struct {
	Record *model.ShareRecord
	Body   io.ReadCloser
}

// ShareService — фасад над хранилищем метаданных и хранилищем байтов.
type ShareService struct {
	store   metadata.Store
	backend storage.Backend
	ids     IDGenerator
	maxSize int64
	now     func() time.Time
	logger  *slog.Logger

	sweepMu sync.Mutex // один проход очистки одновременно
}

// Option — функциональная опция ShareService.
type Option func(*ShareService)

// WithClock задаёт источник времени.
func WithClock(now func() time.Time) Option {
	return func(s *ShareService) { s.now = now }
}

// WithIDGenerator задаёт генератор идентификаторов.
func WithIDGenerator(g IDGenerator) Option {
	return func(s *ShareService) { s.ids = g }
}

// WithMaxSize задаёт максимальный размер файла.
func WithMaxSize(n int64) Option {
	return func(s *ShareService) {
		if n > 0 {
			s.maxSize = n
		}
	}
}

// WithLogger задаёт логгер.
func WithLogger(l *slog.Logger) Option {
	return func(s *ShareService) { s.logger = l }
}

// NewShareService создаёт сервис. backend может быть nil или не настроен:
// тогда загрузка и получение возвращают *storage.ConfigurationError.
func NewShareService(store metadata.Store, backend storage.Backend, opts ...Option) *ShareService {
	s := &ShareService{
		store:   store,
		backend: backend,
		ids:     shareid.New(shareid.DefaultLength),
		maxSize: validation.DefaultMaxSize,
		now:     time.Now,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With(slog.String("component", "share_service"))
	return s
}

// BackendName — имя активного бэкенда или пустая строка.
func (s *ShareService) BackendName() string {
	if !s.configured() {
		return ""
	}
	return s.backend.Name()
}

// MaxSize — максимальный размер файла.
func (s *ShareService) MaxSize() int64 {
	return s.maxSize
}

// Ready проверяет готовность: бэкенд настроен, хранилище метаданных отвечает.
func (s *ShareService) Ready(ctx context.Context) error {
	if !s.configured() {
		return &storage.ConfigurationError{Message: "бэкенд хранилища не настроен"}
	}
	if p, ok := s.store.(metadata.Pinger); ok {
		if err := p.Ping(ctx); err != nil {
			return fmt.Errorf("хранилище метаданных недоступно: %w", err)
		}
	}
	return nil
}

func (s *ShareService) configured() bool {
	return s.backend != nil && s.backend.IsConfigured()
}

// ClampTTL приводит время жизни к допустимому диапазону.
func ClampTTL(hours int) int {
	return max(MinTTLHours, min(hours, MaxTTLHours))
}

// Upload сохраняет файл и создаёт ссылку.
//
// Поток:
//  1. Проверка бэкенда и файла
//  2. Попутная очистка истёкших ссылок (ошибки не прерывают загрузку)
//  3. Генерация идентификатора, ключ объекта = id + расширение
//  4. Запись байтов, затем метаданных
//
// Метаданные пишутся только после успешной записи байтов. Если запись
// метаданных не удалась, объект остаётся в хранилище.
func (s *ShareService) Upload(ctx context.Context, p UploadParams) (*model.ShareRecord, error) {
	if !s.configured() {
		countOp("upload", resultNotConfigured)
		return nil, &storage.ConfigurationError{Message: "бэкенд хранилища не настроен"}
	}

	res := validation.Validate(validation.FileInfo{
		Name:     p.OriginalName,
		Size:     p.Size,
		MimeType: p.MimeType,
	}, s.maxSize)
	if !res.OK {
		countOp("upload", resultInvalid)
		s.logger.Debug("Файл отклонён",
			slog.String("code", res.Code),
			slog.String("reason", res.Reason),
		)
		return nil, &ValidationError{Code: res.Code, Reason: res.Reason}
	}

	s.sweepInline(ctx)

	ttlHours := ClampTTL(p.TTLHours)
	name := validation.Sanitize(p.OriginalName)
	mimeType := validation.NormalizeMIME(p.MimeType)

	id, err := s.ids.Next()
	if err != nil {
		countOp("upload", resultError)
		return nil, fmt.Errorf("ошибка генерации идентификатора: %w", err)
	}
	key := id + validation.Extension(name)

	limited := &storage.LimitedReader{R: p.Reader, N: s.maxSize}
	written, err := s.backend.Put(ctx, key, limited, mimeType, name)
	if err != nil || limited.Count > s.maxSize {
		if errors.Is(err, storage.ErrTooLarge) || limited.Count > s.maxSize {
			s.discard(ctx, key)
			countOp("upload", resultInvalid)
			return nil, &ValidationError{
				Code:   validation.CodeFileTooLarge,
				Reason: fmt.Sprintf("размер файла превышает максимум %d байт", s.maxSize),
			}
		}
		countOp("upload", resultError)
		s.logger.Error("Ошибка записи файла",
			slog.String("share_id", id),
			slog.String("backend", s.backend.Name()),
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	// Заявленный размер не проверяет фактический поток
	if written == 0 {
		s.discard(ctx, key)
		countOp("upload", resultInvalid)
		return nil, &ValidationError{Code: validation.CodeEmptyFile, Reason: "файл пустой"}
	}

	now := s.now().UTC()
	rec := &model.ShareRecord{
		ID:           id,
		StorageKey:   key,
		OriginalName: name,
		MimeType:     mimeType,
		Size:         written,
		CreatedAt:    now,
		ExpiresAt:    now.Add(time.Duration(ttlHours) * time.Hour),
	}

	if err := s.store.Put(ctx, rec); err != nil {
		countOp("upload", resultError)
		s.logger.Error("Ошибка сохранения метаданных, объект оставлен в хранилище",
			slog.String("share_id", id),
			slog.String("storage_key", key),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("ошибка сохранения метаданных: %w", err)
	}

	countOp("upload", resultOK)
	uploadBytesTotal.Add(float64(written))
	s.logger.Info("Файл загружен",
		slog.String("share_id", id),
		slog.String("backend", s.backend.Name()),
		slog.Int64("size", written),
		slog.Int("ttl_hours", ttlHours),
	)
	return rec, nil
}

// Retrieve находит ссылку и открывает поток данных.
// Отсутствующая, истёкшая или несогласованная ссылка — ErrNotFound.
func (s *ShareService) Retrieve(ctx context.Context, id string) (*Share, error) {
	if !s.configured() {
		countOp("retrieve", resultNotConfigured)
		return nil, &storage.ConfigurationError{Message: "бэкенд хранилища не настроен"}
	}
	if id == "" {
		countOp("retrieve", resultNotFound)
		return nil, ErrNotFound
	}

	rec, err := s.store.Get(ctx, id)
	if err != nil {
		if !errors.Is(err, metadata.ErrNotFound) {
			s.logger.Warn("Ошибка чтения метаданных",
				slog.String("share_id", id),
				slog.String("error", err.Error()),
			)
		}
		countOp("retrieve", resultNotFound)
		return nil, ErrNotFound
	}

	if rec.IsExpired(s.now()) {
		_ = s.reap(ctx, rec)
		countOp("retrieve", resultExpired)
		return nil, ErrNotFound
	}

	body, err := s.backend.Get(ctx, rec.StorageKey)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			s.logger.Warn("Метаданные есть, объекта нет",
				slog.String("share_id", id),
				slog.String("storage_key", rec.StorageKey),
			)
			countOp("retrieve", resultNotFound)
			return nil, ErrNotFound
		}
		countOp("retrieve", resultError)
		s.logger.Error("Ошибка чтения объекта",
			slog.String("share_id", id),
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	countOp("retrieve", resultOK)
	return &Share{Record: rec, Body: body}, nil
}

// reap удаляет байты, затем метаданные одной ссылки. Если удалить байты
// не удалось, метаданные остаются до следующей очистки: только по ним
// очистка найдёт объект снова. Retrieve в этом случае всё равно
// возвращает ErrNotFound по сроку.
func (s *ShareService) reap(ctx context.Context, rec *model.ShareRecord) error {
	if err := s.backend.Delete(ctx, rec.StorageKey); err != nil {
		s.logger.Warn("Ошибка удаления объекта истёкшей ссылки",
			slog.String("share_id", rec.ID),
			slog.String("storage_key", rec.StorageKey),
			slog.String("error", err.Error()),
		)
		return err
	}
	if err := s.store.Delete(ctx, rec.ID); err != nil {
		s.logger.Warn("Ошибка удаления метаданных истёкшей ссылки",
			slog.String("share_id", rec.ID),
			slog.String("error", err.Error()),
		)
		return err
	}
	s.logger.Debug("Истёкшая ссылка удалена", slog.String("share_id", rec.ID))
	return nil
}

// discard удаляет частично записанный объект.
func (s *ShareService) discard(ctx context.Context, key string) {
	if err := s.backend.Delete(ctx, key); err != nil {
		s.logger.Warn("Ошибка удаления отклонённого объекта",
			slog.String("storage_key", key),
			slog.String("error", err.Error()),
		)
	}
}
