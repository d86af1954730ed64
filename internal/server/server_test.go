package server

import (
	"bytes"
	"context"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/bigkaa/flashshare/internal/api/handlers"
	"github.com/bigkaa/flashshare/internal/api/middleware"
	"github.com/bigkaa/flashshare/internal/config"
	"github.com/bigkaa/flashshare/internal/metadata"
	"github.com/bigkaa/flashshare/internal/service"
	"github.com/bigkaa/flashshare/internal/storage/binding"
)

func newTestServer(t *testing.T, limiter *middleware.IPRateLimiter) *Server {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	svc := service.NewShareService(metadata.NewMemoryStore(), binding.New(binding.NewMemoryBucket()),
		service.WithMaxSize(1<<20),
		service.WithLogger(logger),
	)
	cfg := &config.Config{Port: 8080, DefaultTTLHours: 1, ShutdownTimeout: time.Second}
	return New(cfg, logger, Handlers{
		Files:   handlers.NewFilesHandler(svc, cfg.DefaultTTLHours, logger),
		System:  handlers.NewSystemHandler(svc, cfg.DefaultTTLHours),
		Health:  handlers.NewHealthHandler(svc, nil),
		Limiter: limiter,
	})
}

func uploadRequest(t *testing.T) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="a.txt"`)
	h.Set("Content-Type", "text/plain")
	part, err := mw.CreatePart(h)
	if err != nil {
		t.Fatalf("ошибка создания части: %v", err)
	}
	_, _ = part.Write([]byte("hello"))
	_ = mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.RemoteAddr = "192.0.2.10:5555"
	return req
}

func TestRoutes(t *testing.T) {
	srv := newTestServer(t, nil)

	tests := []struct {
		method string
		path   string
		status int
	}{
		{http.MethodGet, "/health/live", http.StatusOK},
		{http.MethodGet, "/health/ready", http.StatusOK},
		{http.MethodGet, "/api/v1/info", http.StatusOK},
		{http.MethodGet, "/metrics", http.StatusOK},
		{http.MethodGet, "/api/v1/file/missing01", http.StatusNotFound},
		{http.MethodGet, "/nowhere", http.StatusNotFound},
		{http.MethodGet, "/api/v1/upload", http.StatusMethodNotAllowed},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			srv.Handler().ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, nil))
			if rec.Code != tt.status {
				t.Errorf("ожидался статус %d, получено %d", tt.status, rec.Code)
			}
			if rec.Header().Get(middleware.HeaderRequestID) == "" {
				t.Error("ожидался заголовок X-Request-ID")
			}
		})
	}
}

func TestUploadThenDownload(t *testing.T) {
	srv := newTestServer(t, nil)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, uploadRequest(t))
	if rec.Code != http.StatusOK {
		t.Fatalf("ожидался статус 200, получено %d: %s", rec.Code, rec.Body.String())
	}
	body := rec.Body.String()
	start := strings.Index(body, `"id":"`) + len(`"id":"`)
	id := body[start : start+strings.Index(body[start:], `"`)]

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/file/"+id, nil))
	if rec.Code != http.StatusOK || rec.Body.String() != "hello" {
		t.Errorf("скачивание: статус %d, тело %q", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodHead, "/api/v1/file/"+id, nil))
	if rec.Code != http.StatusOK || rec.Body.Len() != 0 {
		t.Errorf("HEAD: статус %d, тело %d байт", rec.Code, rec.Body.Len())
	}
}

func TestUploadRateLimited(t *testing.T) {
	srv := newTestServer(t, middleware.NewIPRateLimiter(0.001, 1))

	first := httptest.NewRecorder()
	srv.Handler().ServeHTTP(first, uploadRequest(t))
	if first.Code != http.StatusOK {
		t.Fatalf("ожидался статус 200, получено %d", first.Code)
	}

	second := httptest.NewRecorder()
	srv.Handler().ServeHTTP(second, uploadRequest(t))
	if second.Code != http.StatusTooManyRequests {
		t.Errorf("ожидался статус 429, получено %d", second.Code)
	}

	// Скачивание лимитом не ограничено
	info := httptest.NewRecorder()
	srv.Handler().ServeHTTP(info, httptest.NewRequest(http.MethodGet, "/api/v1/info", nil))
	if info.Code != http.StatusOK {
		t.Errorf("ожидался статус 200, получено %d", info.Code)
	}
}

func TestRunStopsOnContextCancel(t *testing.T) {
	srv := newTestServer(t, nil)
	srv.httpServer.Addr = "127.0.0.1:0"

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("неожиданная ошибка: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("сервер не остановился")
	}
}
