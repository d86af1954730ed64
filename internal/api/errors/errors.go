// Пакет errors — ответы с ошибками в едином формате
// {"error": {"code": "...", "message": "..."}}.
// Все HTTP-ответы с ошибками должны использовать WriteError.
package errors //nolint:revive // имя пакета совпадает со stdlib, импортируется как apierrors

import (
	"encoding/json"
	"net/http"
)

// Коды ошибок HTTP API.
const (
	CodeValidationError      = "VALIDATION_ERROR"
	CodeInvalidTTL           = "INVALID_TTL"
	CodeNotFound             = "NOT_FOUND"
	CodeFileTooLarge         = "FILE_TOO_LARGE"
	CodeRateLimited          = "RATE_LIMITED"
	CodeStorageNotConfigured = "STORAGE_NOT_CONFIGURED"
	CodeStorageError         = "STORAGE_ERROR"
	CodeInternalError        = "INTERNAL_ERROR"
)

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// WriteError записывает ответ ошибки.
// statusCode — HTTP статус-код, code — машиночитаемый код, message — описание.
func WriteError(w http.ResponseWriter, statusCode int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(errorBody{
		Error: errorDetail{
			Code:    code,
			Message: message,
		},
	})
}

// ValidationError — 400 некорректные входные данные.
func ValidationError(w http.ResponseWriter, code, message string) {
	if code == "" {
		code = CodeValidationError
	}
	WriteError(w, http.StatusBadRequest, code, message)
}

// NotFound — 404 ссылка не найдена или истекла.
func NotFound(w http.ResponseWriter) {
	WriteError(w, http.StatusNotFound, CodeNotFound, "Файл не найден или срок его хранения истёк")
}

// FileTooLarge — 413 файл превышает лимит.
func FileTooLarge(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusRequestEntityTooLarge, CodeFileTooLarge, message)
}

// RateLimited — 429 слишком много запросов.
func RateLimited(w http.ResponseWriter) {
	WriteError(w, http.StatusTooManyRequests, CodeRateLimited, "Слишком много запросов, повторите позже")
}

// StorageNotConfigured — 503 хранилище не настроено.
func StorageNotConfigured(w http.ResponseWriter) {
	WriteError(w, http.StatusServiceUnavailable, CodeStorageNotConfigured, "Хранилище не настроено")
}

// StorageError — 502 ошибка удалённого хранилища. Подробности только в логах.
func StorageError(w http.ResponseWriter) {
	WriteError(w, http.StatusBadGateway, CodeStorageError, "Ошибка хранилища")
}

// InternalError — 500 внутренняя ошибка.
func InternalError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusInternalServerError, CodeInternalError, message)
}
