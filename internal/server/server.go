// Пакет server — HTTP-сервер FlashShare с graceful shutdown.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bigkaa/flashshare/internal/api/handlers"
	"github.com/bigkaa/flashshare/internal/api/middleware"
	"github.com/bigkaa/flashshare/internal/config"
)

// Handlers — обработчики, монтируемые на роутер.
type Handlers struct {
	Files   *handlers.FilesHandler
	System  *handlers.SystemHandler
	Health  *handlers.HealthHandler
	Limiter *middleware.IPRateLimiter
}

// Server — HTTP-сервер FlashShare.
type Server struct {
	httpServer *http.Server
	router     chi.Router
	logger     *slog.Logger
	cfg        *config.Config
}

// New создаёт HTTP-сервер с настроенными routes и middleware.
func New(cfg *config.Config, logger *slog.Logger, h Handlers) *Server {
	router := chi.NewRouter()

	router.Use(chimw.Recoverer)
	router.Use(chimw.RealIP)
	router.Use(middleware.RequestID())
	router.Use(middleware.RequestLogger(logger))
	router.Use(middleware.MetricsMiddleware())

	router.Route("/api/v1", func(r chi.Router) {
		upload := http.Handler(http.HandlerFunc(h.Files.UploadFile))
		if h.Limiter != nil {
			upload = h.Limiter.Middleware(upload)
		}
		r.Method(http.MethodPost, "/upload", upload)
		r.Get("/file/{id}", h.Files.DownloadFile)
		r.Head("/file/{id}", h.Files.DownloadFile)
		r.Get("/info", h.System.GetInfo)
	})

	router.Get("/health/live", h.Health.HealthLive)
	router.Get("/health/ready", h.Health.HealthReady)
	router.Method(http.MethodGet, "/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: router,
		// Время чтения тела не ограничено: загрузка может идти долго
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	return &Server{
		httpServer: srv,
		router:     router,
		logger:     logger.With(slog.String("component", "server")),
		cfg:        cfg,
	}
}

// Handler возвращает корневой обработчик (роутер с middleware).
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run запускает сервер и ожидает сигнала завершения (SIGINT, SIGTERM)
// или отмены ctx. Затем выполняется graceful shutdown с таймаутом
// FS_SHUTDOWN_TIMEOUT.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		s.logger.Info("HTTP-сервер запущен", slog.String("addr", s.httpServer.Addr))

		err := s.httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case sig := <-quit:
		s.logger.Info("Получен сигнал завершения", slog.String("signal", sig.String()))
	case <-ctx.Done():
		s.logger.Info("Контекст сервера отменён")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("ошибка HTTP-сервера: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	s.logger.Info("Выполняется graceful shutdown...")
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("ошибка при graceful shutdown: %w", err)
	}

	s.logger.Info("HTTP-сервер остановлен")
	return nil
}
