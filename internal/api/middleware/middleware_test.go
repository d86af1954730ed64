package middleware

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestNormalizePath(t *testing.T) {
	tests := map[string]string{
		"/api/v1/upload":             "/api/v1/upload",
		"/api/v1/info":               "/api/v1/info",
		"/health/live":               "/health/live",
		"/metrics":                   "/metrics",
		"/api/v1/file/aB3dE5fG7h":    "/api/v1/file/{id}",
		"/api/v1/file/":              "other",
		"/api/v1/file/a/b":           "other",
		"/wp-admin/setup-config.php": "other",
	}
	for in, want := range tests {
		if got := normalizePath(in); got != want {
			t.Errorf("normalizePath(%q): ожидалось %q, получено %q", in, want, got)
		}
	}
}

func TestRequestLogger_LevelByStatus(t *testing.T) {
	tests := []struct {
		status int
		level  string
	}{
		{http.StatusOK, "INFO"},
		{http.StatusNotFound, "WARN"},
		{http.StatusBadGateway, "ERROR"},
	}
	for _, tt := range tests {
		var buf bytes.Buffer
		logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

		h := RequestID()(RequestLogger(logger)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(tt.status)
			_, _ = w.Write([]byte("abc"))
		})))
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/file/secretID42", nil))

		var entry map[string]any
		if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
			t.Fatalf("ошибка разбора лога: %v", err)
		}
		if entry["level"] != tt.level {
			t.Errorf("статус %d: ожидался уровень %s, получено %v", tt.status, tt.level, entry["level"])
		}
		if entry["bytes"] != float64(3) {
			t.Errorf("ожидалось bytes=3, получено %v", entry["bytes"])
		}
		if strings.Contains(buf.String(), "secretID42") {
			t.Error("идентификатор ссылки не должен попадать в лог")
		}
		if entry["request_id"] == "" {
			t.Error("request_id не записан")
		}
	}
}

func TestRequestID(t *testing.T) {
	var seen string
	h := RequestID()(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		seen = RequestIDFromContext(r.Context())
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if _, err := uuid.Parse(seen); err != nil {
		t.Errorf("ожидался UUID, получено %q", seen)
	}
	if rec.Header().Get(HeaderRequestID) != seen {
		t.Error("идентификатор в ответе не совпадает с контекстом")
	}

	// Корректный идентификатор клиента сохраняется, мусор заменяется
	clientID := uuid.NewString()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderRequestID, clientID)
	h.ServeHTTP(httptest.NewRecorder(), req)
	if seen != clientID {
		t.Errorf("ожидалось %q, получено %q", clientID, seen)
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderRequestID, "<script>")
	h.ServeHTTP(httptest.NewRecorder(), req)
	if seen == "<script>" {
		t.Error("некорректный идентификатор клиента не должен использоваться")
	}
}

func TestMetricsMiddleware_PassesStatus(t *testing.T) {
	h := MetricsMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/upload", nil))
	if rec.Code != http.StatusCreated {
		t.Errorf("ожидался статус 201, получено %d", rec.Code)
	}
}

func TestIPRateLimiter(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	l := NewIPRateLimiter(1, 2)
	l.now = func() time.Time { return now }

	if !l.Allow("10.0.0.1") || !l.Allow("10.0.0.1") {
		t.Fatal("первые два запроса должны проходить (burst=2)")
	}
	if l.Allow("10.0.0.1") {
		t.Error("третий запрос должен быть отклонён")
	}
	if !l.Allow("10.0.0.2") {
		t.Error("лимит другого адреса не должен зависеть от первого")
	}

	now = now.Add(time.Second)
	if !l.Allow("10.0.0.1") {
		t.Error("через секунду должен появиться токен")
	}

	now = now.Add(staleAfter + time.Minute)
	l.Allow("10.0.0.3")
	l.mu.Lock()
	n := len(l.visitors)
	l.mu.Unlock()
	if n != 1 {
		t.Errorf("неактивные адреса должны удаляться, осталось %d", n)
	}
}

func TestIPRateLimiter_Middleware(t *testing.T) {
	l := NewIPRateLimiter(0.001, 1)
	h := l.Middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	codes := make([]int, 0, 2)
	for range 2 {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/v1/upload", nil)
		req.RemoteAddr = "192.0.2.1:5555"
		h.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusTooManyRequests {
		t.Errorf("ожидалось [200 429], получено %v", codes)
	}
}

func TestIPRateLimiter_Disabled(t *testing.T) {
	l := NewIPRateLimiter(0, 1)
	for range 100 {
		if !l.Allow("10.0.0.1") {
			t.Fatal("при нулевом лимите ограничение отключено")
		}
	}
}
