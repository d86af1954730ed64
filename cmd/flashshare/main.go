// Точка входа FlashShare — сервиса временного обмена файлами по ссылке.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/bigkaa/flashshare/internal/api/handlers"
	"github.com/bigkaa/flashshare/internal/api/middleware"
	"github.com/bigkaa/flashshare/internal/config"
	"github.com/bigkaa/flashshare/internal/metadata"
	"github.com/bigkaa/flashshare/internal/metadata/mongokv"
	"github.com/bigkaa/flashshare/internal/metadata/pgkv"
	"github.com/bigkaa/flashshare/internal/metadata/rediskv"
	"github.com/bigkaa/flashshare/internal/server"
	"github.com/bigkaa/flashshare/internal/service"
	"github.com/bigkaa/flashshare/internal/shareid"
	"github.com/bigkaa/flashshare/internal/sigv4"
	"github.com/bigkaa/flashshare/internal/storage"
	"github.com/bigkaa/flashshare/internal/storage/binding"
	"github.com/bigkaa/flashshare/internal/storage/binding/s3bucket"
	"github.com/bigkaa/flashshare/internal/storage/filestore"
	"github.com/bigkaa/flashshare/internal/storage/signedrest"
)

// startupTimeout — таймаут подключения к внешним хранилищам при старте.
const startupTimeout = 30 * time.Second

func main() {
	if err := config.LoadDotEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "Ошибка конфигурации: %v\n", err)
		os.Exit(1)
	}

	// Загрузка конфигурации из переменных окружения
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Ошибка конфигурации: %v\n", err)
		os.Exit(1)
	}

	logger := config.SetupLogger(cfg)
	logger.Info("FlashShare запускается",
		slog.String("instance_id", cfg.InstanceID),
		slog.String("version", config.Version),
		slog.Int("port", cfg.Port),
		slog.String("storage_backend", cfg.StorageBackend),
		slog.String("metadata_backend", cfg.MetadataBackend),
	)

	ctx := context.Background()

	// 1. Хранилище метаданных
	store, targets, closeStore, err := openMetadataStore(ctx, cfg, logger)
	if err != nil {
		logger.Error("Ошибка инициализации хранилища метаданных", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer closeStore()

	// 2. Бэкенд хранилища байтов
	backend, err := selectBackend(ctx, cfg, logger)
	if err != nil {
		// Сервис стартует, но загрузка и скачивание отвечают 503
		logger.Warn("Бэкенд хранилища не настроен", slog.String("error", err.Error()))
	} else {
		logger.Info("Бэкенд хранилища выбран", slog.String("backend", backend.Name()))
	}

	// 3. Сервис ссылок
	svc := service.NewShareService(store, backend,
		service.WithIDGenerator(shareid.New(cfg.IDLength)),
		service.WithMaxSize(cfg.MaxFileSize),
		service.WithLogger(logger),
	)

	// 4. Фоновые процессы
	var sweeper *service.Sweeper
	if cfg.SweepInterval > 0 {
		sweeper = service.NewSweeper(svc, cfg.SweepInterval, logger)
		sweeper.Start(ctx)
	}

	var deps handlers.DependencyHealth
	targets.StorageURL = cfg.S3Endpoint
	targets.StorageHealthPath = cfg.S3HealthPath
	dephealthSvc, dephealthErr := service.NewDephealthService(
		cfg.InstanceID,
		targets,
		cfg.DephealthCheckInterval,
		logger,
	)
	switch {
	case errors.Is(dephealthErr, service.ErrNoDependencies):
		logger.Info("Мониторинг зависимостей не требуется")
	case dephealthErr != nil:
		logger.Warn("topologymetrics недоступен, запуск без мониторинга зависимостей",
			slog.String("error", dephealthErr.Error()),
		)
	default:
		if startErr := dephealthSvc.Start(ctx); startErr != nil {
			logger.Warn("Ошибка запуска topologymetrics", slog.String("error", startErr.Error()))
			dephealthSvc = nil
		} else {
			deps = dephealthSvc
		}
	}

	// 5. HTTP-сервер
	srv := server.New(cfg, logger, server.Handlers{
		Files:   handlers.NewFilesHandler(svc, cfg.DefaultTTLHours, logger),
		System:  handlers.NewSystemHandler(svc, cfg.DefaultTTLHours),
		Health:  handlers.NewHealthHandler(svc, deps),
		Limiter: middleware.NewIPRateLimiter(cfg.UploadRateLimit, cfg.UploadRateBurst),
	})

	runErr := srv.Run(ctx)

	// --- Graceful shutdown фоновых процессов ---
	logger.Info("Остановка фоновых процессов...")
	if sweeper != nil {
		sweeper.Stop()
	}
	if dephealthSvc != nil {
		dephealthSvc.Stop()
	}

	if runErr != nil {
		logger.Error("Ошибка сервера", slog.String("error", runErr.Error()))
		closeStore()
		os.Exit(1)
	}
	logger.Info("FlashShare остановлен")
}

// openMetadataStore открывает хранилище метаданных по FS_METADATA_BACKEND.
// Возвращает также цели dephealth (пул PostgreSQL) и функцию закрытия.
func openMetadataStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (metadata.Store, service.DependencyTargets, func(), error) {
	var targets service.DependencyTargets
	noop := func() {}

	ctx, cancel := context.WithTimeout(ctx, startupTimeout)
	defer cancel()

	prefix := metadata.WithKeyPrefix(cfg.MetadataKeyPrefix)

	switch cfg.MetadataBackend {
	case config.MetadataRedis:
		kv, err := rediskv.Open(ctx, cfg.RedisURL)
		if err != nil {
			return nil, targets, noop, fmt.Errorf("redis: %w", err)
		}
		logger.Info("Метаданные хранятся в Redis")
		return metadata.NewKVStore(kv, prefix), targets, func() { _ = kv.Close() }, nil

	case config.MetadataPostgres:
		if err := pgkv.Migrate(cfg.PostgresDSN, logger); err != nil {
			return nil, targets, noop, fmt.Errorf("postgres: %w", err)
		}
		pool, err := pgkv.Connect(ctx, cfg.PostgresDSN, logger)
		if err != nil {
			return nil, targets, noop, fmt.Errorf("postgres: %w", err)
		}
		kv := pgkv.New(pool)
		db := kv.DB()
		targets.DB = db
		targets.PostgresURL = cfg.PostgresDSN
		closeFn := func() {
			_ = db.Close()
			kv.Close()
		}
		return metadata.NewKVStore(kv, prefix), targets, closeFn, nil

	case config.MetadataMongo:
		kv, err := mongokv.Open(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			return nil, targets, noop, fmt.Errorf("mongo: %w", err)
		}
		if err := kv.EnsureIndexes(ctx); err != nil {
			_ = kv.Close(context.Background())
			return nil, targets, noop, fmt.Errorf("mongo: %w", err)
		}
		logger.Info("Метаданные хранятся в MongoDB", slog.String("database", cfg.MongoDatabase))
		closeFn := func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = kv.Close(closeCtx)
		}
		return metadata.NewKVStore(kv, prefix), targets, closeFn, nil

	default:
		logger.Warn("Метаданные хранятся в памяти процесса и не разделяются между экземплярами")
		return metadata.NewMemoryStore(), targets, noop, nil
	}
}

// selectBackend собирает бэкенды и выбирает первый настроенный.
// auto: binding → rest → local; явное значение FS_STORAGE_BACKEND
// оставляет только указанный вариант.
func selectBackend(ctx context.Context, cfg *config.Config, logger *slog.Logger) (storage.Backend, error) {
	var (
		bindingBackend storage.Backend
		restBackend    storage.Backend
		localBackend   storage.Backend
	)

	httpClient := &http.Client{Timeout: cfg.S3Timeout}

	if cfg.HasS3Credentials() && (cfg.S3UseSDK || cfg.StorageBackend == config.StorageBinding) {
		bucket, err := s3bucket.New(ctx, s3bucket.Config{
			Endpoint:        cfg.S3Endpoint,
			Region:          cfg.S3Region,
			Bucket:          cfg.S3Bucket,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
			Timeout:         cfg.S3Timeout,
		})
		if err != nil {
			logger.Warn("Ошибка инициализации S3 SDK", slog.String("error", err.Error()))
		} else {
			bindingBackend = binding.New(bucket)
		}
	}

	if cfg.HasS3Credentials() {
		signer, err := sigv4.New(sigv4.Credentials{
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
		}, sigv4.WithRegion(cfg.S3Region))
		if err != nil {
			logger.Warn("Ошибка инициализации подписи запросов", slog.String("error", err.Error()))
		} else {
			restBackend = signedrest.New(signedrest.Config{
				Endpoint: cfg.S3Endpoint,
				Bucket:   cfg.S3Bucket,
				MaxSize:  cfg.MaxFileSize,
				Timeout:  cfg.S3Timeout,
			}, signer, signedrest.WithHTTPClient(httpClient))
		}
	}

	if cfg.StorageBackend == config.StorageAuto || cfg.StorageBackend == config.StorageLocal {
		fs, err := filestore.New(cfg.UploadDir)
		if err != nil {
			logger.Warn("Ошибка инициализации локального хранилища",
				slog.String("dir", cfg.UploadDir),
				slog.String("error", err.Error()),
			)
		} else {
			logger.Debug("Локальное хранилище готово", slog.String("dir", fs.DataDir()))
			localBackend = fs
		}
	}

	switch cfg.StorageBackend {
	case config.StorageBinding:
		return storage.Select(bindingBackend)
	case config.StorageREST:
		return storage.Select(restBackend)
	case config.StorageLocal:
		return storage.Select(localBackend)
	default:
		return storage.Select(bindingBackend, restBackend, localBackend)
	}
}
