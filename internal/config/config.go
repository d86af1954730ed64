// Пакет config — загрузка и валидация конфигурации сервиса
// из переменных окружения (префикс FS_) и файла .env.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Версия приложения, задаётся при сборке через -ldflags.
var Version = "dev"

// Варианты бэкенда хранилища байтов.
const (
	StorageAuto    = "auto"
	StorageBinding = "binding"
	StorageREST    = "rest"
	StorageLocal   = "local"
)

// Варианты хранилища метаданных.
const (
	MetadataMemory   = "memory"
	MetadataRedis    = "redis"
	MetadataPostgres = "postgres"
	MetadataMongo    = "mongo"
)

// Config содержит все параметры конфигурации сервиса.
type Config struct {
	// Порт HTTP-сервера
	Port int
	// Имя экземпляра в логах и метриках зависимостей
	InstanceID string

	// Бэкенд хранилища: auto, binding, rest, local
	StorageBackend string
	// Директория локального бэкенда
	UploadDir string
	// URL S3-совместимого API (или производный от FS_R2_ACCOUNT_ID)
	S3Endpoint        string
	S3AccessKeyID     string
	S3SecretAccessKey string
	S3Bucket          string
	S3Region          string
	// Строить binding поверх AWS SDK
	S3UseSDK bool
	// Таймаут HTTP-клиента REST бэкенда
	S3Timeout time.Duration
	// Путь health endpoint хранилища для dephealth (пусто — не мониторить)
	S3HealthPath string

	// Хранилище метаданных: memory, redis, postgres, mongo
	MetadataBackend   string
	MetadataKeyPrefix string
	RedisURL          string
	PostgresDSN       string
	MongoURI          string
	MongoDatabase     string

	// Максимальный размер файла в байтах
	MaxFileSize int64
	// Длина идентификатора ссылки
	IDLength int
	// Срок хранения по умолчанию, часы
	DefaultTTLHours int
	// Интервал фоновой очистки (0 — только попутная очистка при загрузке)
	SweepInterval time.Duration
	// Лимит загрузок с одного IP, запросов в секунду (0 — без ограничения)
	UploadRateLimit float64
	UploadRateBurst int

	// Интервал проверки зависимостей topologymetrics
	DephealthCheckInterval time.Duration
	// Таймаут graceful shutdown HTTP-сервера
	ShutdownTimeout time.Duration
	// Уровень логирования (debug, info, warn, error)
	LogLevel slog.Level
	// Формат логов (json, text)
	LogFormat string
}

// HasS3Credentials — заданы endpoint, bucket и пара ключей.
func (c *Config) HasS3Credentials() bool {
	return c.S3Endpoint != "" && c.S3Bucket != "" && c.S3AccessKeyID != "" && c.S3SecretAccessKey != ""
}

// LoadDotEnv загружает переменные из файла .env в рабочей директории,
// не перезаписывая уже заданные. Отсутствие файла не является ошибкой.
func LoadDotEnv(filenames ...string) error {
	if err := godotenv.Load(filenames...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("ошибка чтения .env: %w", err)
	}
	return nil
}

// Load загружает конфигурацию из переменных окружения, валидирует
// значения и возвращает Config или ошибку.
func Load() (*Config, error) {
	cfg := &Config{}
	var err error

	// FS_PORT — порт HTTP-сервера (по умолчанию 8080)
	cfg.Port, err = getEnvInt("FS_PORT", 8080)
	if err != nil {
		return nil, fmt.Errorf("FS_PORT: %w", err)
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		return nil, fmt.Errorf("FS_PORT: значение %d вне допустимого диапазона 1-65535", cfg.Port)
	}

	cfg.InstanceID = getEnvDefault("FS_INSTANCE_ID", "flashshare")

	// --- Хранилище байтов ---

	cfg.StorageBackend = strings.ToLower(getEnvDefault("FS_STORAGE_BACKEND", StorageAuto))
	switch cfg.StorageBackend {
	case StorageAuto, StorageBinding, StorageREST, StorageLocal:
	default:
		return nil, fmt.Errorf("FS_STORAGE_BACKEND: недопустимое значение %q, допустимые: auto, binding, rest, local", cfg.StorageBackend)
	}

	cfg.UploadDir = getEnvDefault("FS_UPLOAD_DIR", "./data/uploads")

	// FS_S3_ENDPOINT имеет приоритет над FS_R2_ACCOUNT_ID
	cfg.S3Endpoint = strings.TrimRight(getEnvDefault("FS_S3_ENDPOINT", ""), "/")
	if cfg.S3Endpoint == "" {
		if account := getEnvDefault("FS_R2_ACCOUNT_ID", ""); account != "" {
			cfg.S3Endpoint = "https://" + account + ".r2.cloudflarestorage.com"
		}
	}
	cfg.S3AccessKeyID = getEnvDefault("FS_S3_ACCESS_KEY_ID", "")
	cfg.S3SecretAccessKey = getEnvDefault("FS_S3_SECRET_ACCESS_KEY", "")
	cfg.S3Bucket = getEnvDefault("FS_S3_BUCKET", "temp-media-share")
	cfg.S3Region = getEnvDefault("FS_S3_REGION", "auto")
	cfg.S3HealthPath = getEnvDefault("FS_S3_HEALTH_PATH", "")

	cfg.S3UseSDK, err = getEnvBool("FS_S3_USE_SDK", false)
	if err != nil {
		return nil, fmt.Errorf("FS_S3_USE_SDK: %w", err)
	}

	cfg.S3Timeout, err = getEnvDuration("FS_S3_TIMEOUT", 60*time.Second)
	if err != nil {
		return nil, fmt.Errorf("FS_S3_TIMEOUT: %w", err)
	}

	// Явно выбранный удалённый бэкенд требует учётных данных
	if (cfg.StorageBackend == StorageREST || cfg.StorageBackend == StorageBinding) && !cfg.HasS3Credentials() {
		return nil, fmt.Errorf("FS_STORAGE_BACKEND=%s: требуются FS_S3_ENDPOINT (или FS_R2_ACCOUNT_ID), "+
			"FS_S3_BUCKET, FS_S3_ACCESS_KEY_ID и FS_S3_SECRET_ACCESS_KEY", cfg.StorageBackend)
	}

	// --- Хранилище метаданных ---

	cfg.MetadataBackend = strings.ToLower(getEnvDefault("FS_METADATA_BACKEND", MetadataMemory))
	cfg.MetadataKeyPrefix = getEnvDefault("FS_METADATA_KEY_PREFIX", "metadata:")
	cfg.MongoDatabase = getEnvDefault("FS_MONGO_DATABASE", "flashshare")

	switch cfg.MetadataBackend {
	case MetadataMemory:
	case MetadataRedis:
		if cfg.RedisURL, err = getEnvRequired("FS_REDIS_URL"); err != nil {
			return nil, err
		}
	case MetadataPostgres:
		if cfg.PostgresDSN, err = getEnvRequired("FS_POSTGRES_DSN"); err != nil {
			return nil, err
		}
	case MetadataMongo:
		if cfg.MongoURI, err = getEnvRequired("FS_MONGO_URI"); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("FS_METADATA_BACKEND: недопустимое значение %q, допустимые: memory, redis, postgres, mongo", cfg.MetadataBackend)
	}

	// --- Ограничения ---

	// FS_MAX_FILE_SIZE — максимальный размер файла (по умолчанию 1 GiB)
	cfg.MaxFileSize, err = getEnvInt64("FS_MAX_FILE_SIZE", 1<<30)
	if err != nil {
		return nil, fmt.Errorf("FS_MAX_FILE_SIZE: %w", err)
	}
	if cfg.MaxFileSize <= 0 {
		return nil, fmt.Errorf("FS_MAX_FILE_SIZE: значение должно быть положительным")
	}

	cfg.IDLength, err = getEnvInt("FS_ID_LENGTH", 10)
	if err != nil {
		return nil, fmt.Errorf("FS_ID_LENGTH: %w", err)
	}
	if cfg.IDLength < 6 || cfg.IDLength > 64 {
		return nil, fmt.Errorf("FS_ID_LENGTH: значение %d вне допустимого диапазона 6-64", cfg.IDLength)
	}

	cfg.DefaultTTLHours, err = getEnvInt("FS_DEFAULT_TTL_HOURS", 1)
	if err != nil {
		return nil, fmt.Errorf("FS_DEFAULT_TTL_HOURS: %w", err)
	}
	if cfg.DefaultTTLHours < 1 || cfg.DefaultTTLHours > 168 {
		return nil, fmt.Errorf("FS_DEFAULT_TTL_HOURS: значение %d вне допустимого диапазона 1-168", cfg.DefaultTTLHours)
	}

	cfg.SweepInterval, err = getEnvDuration("FS_SWEEP_INTERVAL", 0)
	if err != nil {
		return nil, fmt.Errorf("FS_SWEEP_INTERVAL: %w", err)
	}
	if cfg.SweepInterval < 0 {
		return nil, fmt.Errorf("FS_SWEEP_INTERVAL: значение не может быть отрицательным")
	}

	cfg.UploadRateLimit, err = getEnvFloat("FS_UPLOAD_RATE_LIMIT", 1)
	if err != nil {
		return nil, fmt.Errorf("FS_UPLOAD_RATE_LIMIT: %w", err)
	}
	if cfg.UploadRateLimit < 0 {
		return nil, fmt.Errorf("FS_UPLOAD_RATE_LIMIT: значение не может быть отрицательным")
	}

	cfg.UploadRateBurst, err = getEnvInt("FS_UPLOAD_RATE_BURST", 5)
	if err != nil {
		return nil, fmt.Errorf("FS_UPLOAD_RATE_BURST: %w", err)
	}
	if cfg.UploadRateBurst < 1 {
		return nil, fmt.Errorf("FS_UPLOAD_RATE_BURST: значение должно быть не меньше 1")
	}

	// --- Инфраструктура ---

	cfg.DephealthCheckInterval, err = getEnvDuration("FS_DEPHEALTH_CHECK_INTERVAL", 15*time.Second)
	if err != nil {
		return nil, fmt.Errorf("FS_DEPHEALTH_CHECK_INTERVAL: %w", err)
	}

	cfg.ShutdownTimeout, err = getEnvDuration("FS_SHUTDOWN_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("FS_SHUTDOWN_TIMEOUT: %w", err)
	}

	cfg.LogLevel, err = parseLogLevel(getEnvDefault("FS_LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("FS_LOG_LEVEL: %w", err)
	}

	cfg.LogFormat = getEnvDefault("FS_LOG_FORMAT", "json")
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return nil, fmt.Errorf("FS_LOG_FORMAT: недопустимое значение %q, допустимые: json, text", cfg.LogFormat)
	}

	return cfg, nil
}

// SetupLogger настраивает глобальный slog-логгер на основе конфигурации.
func SetupLogger(cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}

	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// --- Вспомогательные функции ---

// getEnvRequired возвращает значение переменной окружения или ошибку, если она не задана.
func getEnvRequired(key string) (string, error) {
	val := os.Getenv(key)
	if val == "" {
		return "", fmt.Errorf("%s: обязательная переменная окружения не задана", key)
	}
	return val, nil
}

// getEnvDefault возвращает значение переменной окружения или значение по умолчанию.
func getEnvDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func getEnvInt(key string, defaultVal int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("некорректное целое число: %q", val)
	}
	return n, nil
}

func getEnvInt64(key string, defaultVal int64) (int64, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("некорректное целое число: %q", val)
	}
	return n, nil
}

func getEnvFloat(key string, defaultVal float64) (float64, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return 0, fmt.Errorf("некорректное число: %q", val)
	}
	return f, nil
}

func getEnvBool(key string, defaultVal bool) (bool, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return false, fmt.Errorf("некорректное логическое значение: %q", val)
	}
	return b, nil
}

// getEnvDuration возвращает time.Duration из переменной окружения или значение по умолчанию.
func getEnvDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("некорректная длительность: %q (используйте формат Go: 30s, 1h, 6h)", val)
	}
	return d, nil
}

// parseLogLevel преобразует строку уровня логирования в slog.Level.
func parseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("недопустимый уровень %q, допустимые: debug, info, warn, error", level)
	}
}
