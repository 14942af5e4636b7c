package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vendaro/commerce-engine/internal/app"
)

// Переменные окружения, которыми можно переопределить конфигурацию сервиса.
const (
	envHTTPAddr                    = "VENDARO_HTTP_ADDR"
	envMetricsAddr                 = "VENDARO_METRICS_ADDR"
	envStorageDriver               = "VENDARO_STORAGE_DRIVER"
	envPostgresDSN                 = "VENDARO_POSTGRES_DSN"
	envPostgresAutoMigrate         = "VENDARO_POSTGRES_AUTO_MIGRATE"
	envMemoryDemoSeed              = "VENDARO_MEMORY_DEMO_SEED"
	envKafkaBrokers                = "VENDARO_KAFKA_BROKERS"
	envOutboxPollInterval          = "VENDARO_OUTBOX_POLL_INTERVAL"
	envOutboxBatchSize             = "VENDARO_OUTBOX_BATCH_SIZE"
	envOutboxMaxAttempts           = "VENDARO_OUTBOX_MAX_ATTEMPTS"
	envOutboxRetryDelay            = "VENDARO_OUTBOX_RETRY_DELAY"
	envIdempotencyCleanupInterval  = "VENDARO_IDEMPOTENCY_CLEANUP_INTERVAL"
	envIdempotencyCleanupBatchSize = "VENDARO_IDEMPOTENCY_CLEANUP_BATCH_SIZE"
)

// envLookup позволяет подменить чтение окружения в тестах.
type envLookup func(key string) (string, bool)

// setupLogger настраивает формат и уровень логирования для сервиса.
func setupLogger() {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	log.SetLevel(log.InfoLevel)
}

// readConfigFromEnv формирует конфигурацию приложения из переменных окружения.
// Некорректные значения не останавливают запуск: для них возвращается
// предупреждение, а поле остаётся со значением по умолчанию.
func readConfigFromEnv(lookup envLookup) (app.Config, []string) {
	cfg := app.DefaultConfig()
	var warnings []string

	warn := func(key, value string, err error) {
		warnings = append(warnings, fmt.Sprintf("%s=%q игнорируется: %v", key, value, err))
	}

	if v, ok := lookup(envHTTPAddr); ok && v != "" {
		cfg.HTTPAddr = v
	}
	if v, ok := lookup(envMetricsAddr); ok && v != "" {
		cfg.MetricsAddr = v
	}
	if v, ok := lookup(envStorageDriver); ok && v != "" {
		cfg.StorageDriver = strings.ToLower(strings.TrimSpace(v))
	}
	if v, ok := lookup(envPostgresDSN); ok && v != "" {
		cfg.PostgresDSN = strings.TrimSpace(v)
	}
	if v, ok := lookup(envPostgresAutoMigrate); ok && v != "" {
		parsed, err := parseBool(v)
		if err != nil {
			warn(envPostgresAutoMigrate, v, err)
		} else {
			cfg.PostgresAutoMigrate = parsed
		}
	}
	if v, ok := lookup(envMemoryDemoSeed); ok && v != "" {
		parsed, err := parseBool(v)
		if err != nil {
			warn(envMemoryDemoSeed, v, err)
		} else {
			cfg.MemoryDemoSeed = parsed
		}
	}
	if v, ok := lookup(envKafkaBrokers); ok && v != "" {
		cfg.KafkaBrokers = strings.TrimSpace(v)
	}
	if v, ok := lookup(envOutboxPollInterval); ok && v != "" {
		parsed, err := parseDuration(v, func(d time.Duration) bool { return d > 0 }, "must be > 0")
		if err != nil {
			warn(envOutboxPollInterval, v, err)
		} else {
			cfg.OutboxPollInterval = parsed
		}
	}
	if v, ok := lookup(envOutboxBatchSize); ok && v != "" {
		parsed, err := parseInt(v, func(n int) bool { return n > 0 }, "must be > 0")
		if err != nil {
			warn(envOutboxBatchSize, v, err)
		} else {
			cfg.OutboxBatchSize = parsed
		}
	}
	if v, ok := lookup(envOutboxMaxAttempts); ok && v != "" {
		parsed, err := parseInt(v, func(n int) bool { return n > 0 }, "must be > 0")
		if err != nil {
			warn(envOutboxMaxAttempts, v, err)
		} else {
			cfg.OutboxMaxAttempts = parsed
		}
	}
	if v, ok := lookup(envOutboxRetryDelay); ok && v != "" {
		parsed, err := parseDuration(v, func(d time.Duration) bool { return d >= 0 }, "must be >= 0")
		if err != nil {
			warn(envOutboxRetryDelay, v, err)
		} else {
			cfg.OutboxRetryDelay = parsed
		}
	}
	if v, ok := lookup(envIdempotencyCleanupInterval); ok && v != "" {
		parsed, err := parseDuration(v, func(d time.Duration) bool { return d > 0 }, "must be > 0")
		if err != nil {
			warn(envIdempotencyCleanupInterval, v, err)
		} else {
			cfg.IdempotencyCleanupInterval = parsed
		}
	}
	if v, ok := lookup(envIdempotencyCleanupBatchSize); ok && v != "" {
		parsed, err := parseInt(v, func(n int) bool { return n > 0 }, "must be > 0")
		if err != nil {
			warn(envIdempotencyCleanupBatchSize, v, err)
		} else {
			cfg.IdempotencyCleanupBatchSize = parsed
		}
	}

	return cfg, warnings
}

// parseBool принимает расширенный набор булевых значений вида yes/no и on/off.
func parseBool(value string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "t", "true", "y", "yes", "on":
		return true, nil
	case "0", "f", "false", "n", "no", "off":
		return false, nil
	default:
		return false, fmt.Errorf("invalid bool value %q", value)
	}
}

func parseInt(value string, validate func(int) bool, constraint string) (int, error) {
	parsed, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0, fmt.Errorf("invalid int value %q", value)
	}
	if !validate(parsed) {
		return 0, fmt.Errorf("value %d rejected: %s", parsed, constraint)
	}
	return parsed, nil
}

func parseDuration(value string, validate func(time.Duration) bool, constraint string) (time.Duration, error) {
	parsed, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return 0, fmt.Errorf("invalid duration value %q", value)
	}
	if !validate(parsed) {
		return 0, fmt.Errorf("value %s rejected: %s", parsed, constraint)
	}
	return parsed, nil
}

func main() {
	setupLogger()

	cfg, warnings := readConfigFromEnv(os.LookupEnv)
	for _, warning := range warnings {
		log.Warn(warning)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.WithFields(log.Fields{
		"http_addr":      cfg.HTTPAddr,
		"metrics_addr":   cfg.MetricsAddr,
		"storage_driver": cfg.StorageDriver,
	}).Info("запускаем CatalogService")

	if err := app.Run(ctx, cfg); err != nil && !errors.Is(err, context.Canceled) {
		log.WithError(err).Fatal("приложение завершилось с ошибкой")
	}

	log.Info("CatalogService остановлен")
}
