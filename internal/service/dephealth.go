// dephealth.go — интеграция с topologymetrics SDK для мониторинга зависимостей.
//
// Сервис мониторит:
//   - S3-совместимое хранилище — HTTP checker к health endpoint (если задан путь)
//   - PostgreSQL — SQL checker через пул pgkv (если метаданные в PostgreSQL)
//
// Метрики доступны на /metrics вместе с остальными Prometheus-метриками.
package service

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/BigKAA/topologymetrics/sdk-go/dephealth"
	_ "github.com/BigKAA/topologymetrics/sdk-go/dephealth/checks/httpcheck" // регистрация HTTP checker factory
	"github.com/BigKAA/topologymetrics/sdk-go/dephealth/checks/pgcheck"
	"github.com/prometheus/client_golang/prometheus"
)

// DephealthGroup — имя группы в метриках зависимостей.
const DephealthGroup = "flashshare"

// ErrNoDependencies — не задано ни одной зависимости для мониторинга.
var ErrNoDependencies = errors.New("dephealth: нет зависимостей для мониторинга")

// DependencyTargets — зависимости, которые нужно мониторить.
type DependencyTargets struct {
	// StorageURL — базовый URL S3-совместимого хранилища
	StorageURL string
	// StorageHealthPath — путь health endpoint хранилища (пусто — не мониторить)
	StorageHealthPath string
	// DB — пул PostgreSQL (nil — не мониторить)
	DB *sql.DB
	// PostgresURL — DSN PostgreSQL для меток
	PostgresURL string
}

// Empty — true, если мониторить нечего.
func (t DependencyTargets) Empty() bool {
	return (t.StorageURL == "" || t.StorageHealthPath == "") && t.DB == nil
}

// DephealthService — сервис мониторинга зависимостей через topologymetrics.
type DephealthService struct {
	dh     *dephealth.DepHealth
	logger *slog.Logger
}

// NewDephealthService создаёт сервис мониторинга зависимостей.
// Метрики регистрируются в глобальном Prometheus registry.
func NewDephealthService(
	serviceID string,
	targets DependencyTargets,
	checkInterval time.Duration,
	logger *slog.Logger,
) (*DephealthService, error) {
	return newDephealthService(serviceID, targets, checkInterval, logger)
}

// NewDephealthServiceWithRegisterer создаёт сервис с указанным Prometheus registerer.
// Используется в тестах для изоляции метрик.
func NewDephealthServiceWithRegisterer(
	serviceID string,
	targets DependencyTargets,
	checkInterval time.Duration,
	logger *slog.Logger,
	registerer prometheus.Registerer,
) (*DephealthService, error) {
	return newDephealthService(serviceID, targets, checkInterval, logger, dephealth.WithRegisterer(registerer))
}

func newDephealthService(
	serviceID string,
	targets DependencyTargets,
	checkInterval time.Duration,
	logger *slog.Logger,
	extraOpts ...dephealth.Option,
) (*DephealthService, error) {
	if targets.Empty() {
		return nil, ErrNoDependencies
	}

	opts := []dephealth.Option{dephealth.WithLogger(logger)}

	if targets.StorageURL != "" && targets.StorageHealthPath != "" {
		opts = append(opts, dephealth.HTTP("object-storage",
			dephealth.FromURL(targets.StorageURL),
			dephealth.WithHTTPHealthPath(targets.StorageHealthPath),
			dephealth.CheckInterval(checkInterval),
			dephealth.Critical(true),
		))
	}

	if targets.DB != nil {
		opts = append(opts, dephealth.AddDependency("postgresql", dephealth.TypePostgres,
			pgcheck.New(pgcheck.WithDB(targets.DB)),
			dephealth.FromURL(targets.PostgresURL),
			dephealth.CheckInterval(checkInterval),
			dephealth.Critical(true),
		))
	}

	opts = append(opts, extraOpts...)

	dh, err := dephealth.New(serviceID, DephealthGroup, opts...)
	if err != nil {
		return nil, err
	}

	return &DephealthService{
		dh:     dh,
		logger: logger.With(slog.String("component", "dephealth")),
	}, nil
}

// Start запускает периодическую проверку зависимостей.
func (ds *DephealthService) Start(ctx context.Context) error {
	ds.logger.Info("Мониторинг зависимостей запущен")
	return ds.dh.Start(ctx)
}

// Stop останавливает мониторинг зависимостей.
func (ds *DephealthService) Stop() {
	ds.dh.Stop()
	ds.logger.Info("Мониторинг зависимостей остановлен")
}

// Health возвращает текущее состояние зависимостей.
// Ключ — имя зависимости, значение — true если ok.
func (ds *DephealthService) Health() map[string]bool {
	return ds.dh.Health()
}
