package errors

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestWriteError(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, http.StatusTeapot, "TEAPOT", "я чайник")

	if rec.Code != http.StatusTeapot {
		t.Errorf("ожидался статус %d, получено %d", http.StatusTeapot, rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type: %q", ct)
	}

	var body errorBody
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("ошибка декодирования: %v", err)
	}
	if body.Error.Code != "TEAPOT" || body.Error.Message != "я чайник" {
		t.Errorf("тело ответа: %+v", body)
	}
}

func TestHelpers(t *testing.T) {
	tests := []struct {
		name   string
		write  func(w http.ResponseWriter)
		status int
		code   string
	}{
		{"validation", func(w http.ResponseWriter) { ValidationError(w, "", "x") }, http.StatusBadRequest, CodeValidationError},
		{"validation с кодом", func(w http.ResponseWriter) { ValidationError(w, "EMPTY_FILE", "x") }, http.StatusBadRequest, "EMPTY_FILE"},
		{"not found", NotFound, http.StatusNotFound, CodeNotFound},
		{"too large", func(w http.ResponseWriter) { FileTooLarge(w, "x") }, http.StatusRequestEntityTooLarge, CodeFileTooLarge},
		{"rate limited", RateLimited, http.StatusTooManyRequests, CodeRateLimited},
		{"not configured", StorageNotConfigured, http.StatusServiceUnavailable, CodeStorageNotConfigured},
		{"storage", StorageError, http.StatusBadGateway, CodeStorageError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			tt.write(rec)
			if rec.Code != tt.status {
				t.Errorf("ожидался статус %d, получено %d", tt.status, rec.Code)
			}
			var body errorBody
			_ = json.NewDecoder(rec.Body).Decode(&body)
			if body.Error.Code != tt.code {
				t.Errorf("ожидался код %s, получено %s", tt.code, body.Error.Code)
			}
		})
	}
}
