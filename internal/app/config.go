package app

import "time"

// Поддерживаемые драйверы хранилища.
const (
	StorageDriverMemory   = "memory"
	StorageDriverPostgres = "postgres"
)

// Config описывает настройки запуска приложения.
type Config struct {
	// HTTPAddr — адрес каталожно-корзинного API.
	HTTPAddr string
	// MetricsAddr — адрес /metrics, /healthz, /livez.
	MetricsAddr string

	// StorageDriver — memory или postgres.
	StorageDriver string
	// PostgresDSN обязателен для драйвера postgres.
	PostgresDSN string
	// PostgresAutoMigrate — применять миграции при старте.
	PostgresAutoMigrate bool
	// MemoryDemoSeed — наполнить in-memory хранилище демо-каталогом,
	// чтобы локальный запуск отвечал без настройки арендаторов.
	MemoryDemoSeed bool

	// KafkaBrokers — список брокеров через запятую; пусто = без Kafka.
	KafkaBrokers string

	OutboxPollInterval time.Duration
	OutboxBatchSize    int
	OutboxMaxAttempts  int
	OutboxRetryDelay   time.Duration

	IdempotencyCleanupInterval  time.Duration
	IdempotencyCleanupBatchSize int
}

// DefaultConfig возвращает рабочие значения по умолчанию:
// in-memory хранилище, без Kafka.
func DefaultConfig() Config {
	return Config{
		HTTPAddr:                    ":8080",
		MetricsAddr:                 ":9090",
		StorageDriver:               StorageDriverMemory,
		PostgresAutoMigrate:         true,
		OutboxPollInterval:          time.Second,
		OutboxBatchSize:             100,
		OutboxMaxAttempts:           3,
		OutboxRetryDelay:            500 * time.Millisecond,
		IdempotencyCleanupInterval:  10 * time.Minute,
		IdempotencyCleanupBatchSize: 500,
	}
}
