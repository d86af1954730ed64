// files.go — обработчики загрузки и скачивания файлов.
package handlers

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/bigkaa/flashshare/internal/api/errors"
	"github.com/bigkaa/flashshare/internal/domain/model"
	"github.com/bigkaa/flashshare/internal/service"
	"github.com/bigkaa/flashshare/internal/storage"
)

// multipartMemory — часть multipart-формы, которая держится в памяти;
// остальное уходит во временные файлы.
const multipartMemory = 32 << 20

// multipartOverhead — запас на заголовки и служебные поля формы.
const multipartOverhead = 1 << 20

// ShareService — операции сервиса, нужные HTTP-слою.
type ShareService interface {
	Upload(ctx context.Context, p service.UploadParams) (*model.ShareRecord, error)
	Retrieve(ctx context.Context, id string) (*service.Share, error)
	BackendName() string
	MaxSize() int64
	Ready(ctx context.Context) error
}

// FilesHandler — обработчик файловых endpoints.
type FilesHandler struct {
	svc             ShareService
	defaultTTLHours int
	logger          *slog.Logger
}

// NewFilesHandler создаёт обработчик файловых endpoints.
func NewFilesHandler(svc ShareService, defaultTTLHours int, logger *slog.Logger) *FilesHandler {
	return &FilesHandler{
		svc:             svc,
		defaultTTLHours: defaultTTLHours,
		logger:          logger.With(slog.String("component", "files_handler")),
	}
}

// uploadResponse — ответ на успешную загрузку.
type uploadResponse struct {
	ID string `json:"id"`
	// ExpiresAt — момент истечения, миллисекунды Unix
	ExpiresAt int64  `json:"expiresAt"`
	Storage   string `json:"storage"`
}

// UploadFile обрабатывает POST /api/v1/upload.
// Multipart form: file (обязательно), expiresIn (часы, опционально).
func (h *FilesHandler) UploadFile(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.svc.MaxSize()+multipartOverhead)

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if stderrors.As(err, &tooLarge) {
			errors.FileTooLarge(w, fmt.Sprintf("Размер запроса превышает максимум %d байт", h.svc.MaxSize()))
			return
		}
		errors.ValidationError(w, "", "Ошибка разбора multipart-формы")
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	ttlHours, ok := h.parseTTL(r.FormValue("expiresIn"))
	if !ok {
		errors.ValidationError(w, errors.CodeInvalidTTL,
			fmt.Sprintf("Срок хранения должен быть целым числом часов от %d до %d", service.MinTTLHours, service.MaxTTLHours))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		errors.ValidationError(w, "", "Поле 'file' обязательно")
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	rec, err := h.svc.Upload(r.Context(), service.UploadParams{
		Reader:       file,
		OriginalName: header.Filename,
		MimeType:     contentType,
		Size:         header.Size,
		TTLHours:     ttlHours,
	})
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, uploadResponse{
		ID:        rec.ID,
		ExpiresAt: rec.ExpiresAt.UnixMilli(),
		Storage:   h.svc.BackendName(),
	})
}

// parseTTL разбирает expiresIn. Пустое значение — срок по умолчанию.
func (h *FilesHandler) parseTTL(raw string) (int, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return h.defaultTTLHours, true
	}
	hours, err := strconv.Atoi(raw)
	if err != nil || hours < service.MinTTLHours || hours > service.MaxTTLHours {
		return 0, false
	}
	return hours, true
}

// DownloadFile обрабатывает GET /api/v1/file/{id}.
// Файл отдаётся потоком, inline, без кэширования.
func (h *FilesHandler) DownloadFile(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	sh, err := h.svc.Retrieve(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	defer sh.Body.Close()

	rec := sh.Record
	hdr := w.Header()
	hdr.Set("Content-Type", rec.MimeType)
	hdr.Set("Content-Disposition", storage.InlineDisposition(rec.OriginalName))
	hdr.Set("Cache-Control", storage.CacheControlNoStore)
	hdr.Set("X-Content-Type-Options", "nosniff")
	// SVG и PDF открываются inline, поэтому скрипты в них запрещены
	hdr.Set("Content-Security-Policy", "default-src 'none'; img-src 'self'; media-src 'self'; style-src 'unsafe-inline'; sandbox")
	if rec.Size > 0 {
		hdr.Set("Content-Length", strconv.FormatInt(rec.Size, 10))
	}
	w.WriteHeader(http.StatusOK)

	if r.Method == http.MethodHead {
		return
	}
	if _, err := io.Copy(w, sh.Body); err != nil {
		h.logger.Warn("Передача файла прервана",
			slog.String("storage_key", rec.StorageKey),
			slog.String("error", err.Error()),
		)
	}
}

// writeServiceError переводит ошибку сервиса в HTTP-ответ.
func (h *FilesHandler) writeServiceError(w http.ResponseWriter, err error) {
	var (
		validationErr *service.ValidationError
		configErr     *storage.ConfigurationError
		backendErr    *storage.BackendError
	)
	switch {
	case stderrors.As(err, &validationErr):
		if validationErr.TooLarge() {
			errors.FileTooLarge(w, validationErr.Reason)
			return
		}
		errors.ValidationError(w, validationErr.Code, validationErr.Reason)
	case stderrors.Is(err, service.ErrNotFound):
		errors.NotFound(w)
	case stderrors.As(err, &configErr):
		errors.StorageNotConfigured(w)
	case stderrors.As(err, &backendErr):
		errors.StorageError(w)
	default:
		h.logger.Error("Внутренняя ошибка", slog.String("error", err.Error()))
		errors.InternalError(w, "Внутренняя ошибка сервера")
	}
}
