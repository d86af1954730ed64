// sweep.go — очистка истёкших ссылок.
//
// Sweep вызывается попутно перед каждой загрузкой и, если задан
// FS_SWEEP_INTERVAL, периодически из Sweeper. Работает только с хранилищами
// метаданных, умеющими перечислять записи (metadata.Lister).
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/flashshare/internal/metadata"
)

// Prometheus метрики очистки
var (
	sweepRunsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fs_sweep_runs_total",
		Help: "Общее количество проходов очистки",
	})

	sweepReapedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fs_sweep_reaped_total",
		Help: "Общее количество удалённых истёкших ссылок",
	})

	sweepErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fs_sweep_errors_total",
		Help: "Общее количество ошибок при очистке",
	})

	sweepDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "fs_sweep_duration_seconds",
		Help:    "Длительность прохода очистки в секундах",
		Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30},
	})
)

// SweepResult — результат одного прохода очистки.
type SweepResult struct {
	// Scanned — количество просмотренных записей
	Scanned int
	// Reaped — количество удалённых истёкших ссылок
	Reaped int
	// Errors — количество ошибок (проход при этом не прерывается)
	Errors int
	// Skipped — хранилище не умеет перечислять записи
	Skipped bool
	// Duration — длительность выполнения
	Duration time.Duration
}

// Sweep удаляет все истёкшие ссылки. Потокобезопасен: параллельные
// вызовы выполняются по очереди.
func (s *ShareService) Sweep(ctx context.Context) SweepResult {
	s.sweepMu.Lock()
	defer s.sweepMu.Unlock()
	return s.sweepLocked(ctx)
}

// sweepInline — попутная очистка перед загрузкой. Если очистка уже идёт,
// загрузка её не ждёт.
func (s *ShareService) sweepInline(ctx context.Context) {
	if !s.sweepMu.TryLock() {
		return
	}
	defer s.sweepMu.Unlock()
	s.sweepLocked(ctx)
}

func (s *ShareService) sweepLocked(ctx context.Context) SweepResult {
	start := time.Now()
	result := SweepResult{}

	lister, ok := s.store.(metadata.Lister)
	if !ok || !s.configured() {
		result.Skipped = true
		return result
	}

	records, err := lister.List(ctx)
	if err != nil {
		if errors.Is(err, metadata.ErrListUnsupported) {
			result.Skipped = true
			return result
		}
		s.logger.Warn("Очистка: ошибка перечисления метаданных",
			slog.String("error", err.Error()),
		)
		result.Errors++
		sweepErrorsTotal.Inc()
		return result
	}

	now := s.now()
	for _, rec := range records {
		if ctx.Err() != nil {
			break
		}
		result.Scanned++
		if !rec.IsExpired(now) {
			continue
		}
		if err := s.reap(ctx, rec); err != nil {
			result.Errors++
			continue
		}
		result.Reaped++
	}

	result.Duration = time.Since(start)

	sweepRunsTotal.Inc()
	sweepReapedTotal.Add(float64(result.Reaped))
	sweepErrorsTotal.Add(float64(result.Errors))
	sweepDurationSeconds.Observe(result.Duration.Seconds())

	if result.Reaped > 0 || result.Errors > 0 {
		s.logger.Info("Очистка завершена",
			slog.Int("scanned", result.Scanned),
			slog.Int("reaped", result.Reaped),
			slog.Int("errors", result.Errors),
			slog.Duration("duration", result.Duration),
		)
	}
	return result
}

// Sweeper периодически запускает Sweep.
type Sweeper struct {
	svc      *ShareService
	interval time.Duration
	logger   *slog.Logger

	cancel context.CancelFunc
	done   chan struct{}
}

// NewSweeper создаёт фоновый процесс очистки.
func NewSweeper(svc *ShareService, interval time.Duration, logger *slog.Logger) *Sweeper {
	return &Sweeper{
		svc:      svc,
		interval: interval,
		logger:   logger.With(slog.String("component", "sweeper")),
	}
}

// Start запускает фоновую горутину с тикером.
func (sw *Sweeper) Start(ctx context.Context) {
	sweepCtx, cancel := context.WithCancel(ctx)
	sw.cancel = cancel
	sw.done = make(chan struct{})

	go sw.run(sweepCtx)

	sw.logger.Info("Периодическая очистка запущена",
		slog.String("interval", sw.interval.String()),
	)
}

// Stop останавливает фоновую очистку и ждёт завершения текущего прохода.
func (sw *Sweeper) Stop() {
	if sw.cancel == nil {
		return
	}
	sw.cancel()
	<-sw.done
	sw.logger.Info("Периодическая очистка остановлена")
}

func (sw *Sweeper) run(ctx context.Context) {
	defer close(sw.done)

	ticker := time.NewTicker(sw.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sw.svc.Sweep(ctx)
		}
	}
}
