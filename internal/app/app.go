package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	healthcheck "github.com/vendaro/commerce-engine/internal/health"
	"github.com/vendaro/commerce-engine/internal/httpapi"
	"github.com/vendaro/commerce-engine/internal/messaging/kafka"
	"github.com/vendaro/commerce-engine/internal/service/availability"
	"github.com/vendaro/commerce-engine/internal/service/cart"
	"github.com/vendaro/commerce-engine/internal/service/idempotency"
	"github.com/vendaro/commerce-engine/internal/service/outbox"
	"github.com/vendaro/commerce-engine/internal/service/stock"
	"github.com/vendaro/commerce-engine/internal/service/tenant"
	"github.com/vendaro/commerce-engine/internal/version"
)

// Run собирает зависимости и держит сервис до отмены контекста.
func Run(ctx context.Context, cfg Config) error {
	logger := log.WithField("component", "app")

	deps, err := initRuntimeDependencies(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer deps.close(logger)

	// Kafka опционален: без брокеров события копятся в outbox,
	// но не публикуются.
	producer, _ := initKafkaProducer(cfg.KafkaBrokers, logger)
	defer closeKafka(producer, logger)

	workerCtx, stopWorkers := context.WithCancel(context.Background())
	defer stopWorkers()

	if producer != nil {
		publisher := kafka.NewAggregateRoutingPublisher(producer)
		dlq := kafka.NewOutboxPublisher(producer, kafka.TopicDeadLetterQueue)
		worker := outbox.NewWorker(deps.outboxRepo, publisher,
			outbox.WithLogger(logger.WithField("worker", "outbox")),
			outbox.WithDLQPublisher(dlq),
			outbox.WithPollInterval(cfg.OutboxPollInterval),
			outbox.WithBatchSize(cfg.OutboxBatchSize),
			outbox.WithMaxAttempts(cfg.OutboxMaxAttempts),
			outbox.WithRetryBaseDelay(cfg.OutboxRetryDelay),
		)
		go worker.Run(workerCtx)
	}

	cleanup := idempotency.NewCleanupWorker(deps.idempotencyRepo,
		idempotency.WithLogger(logger.WithField("worker", "idempotency-cleanup")),
		idempotency.WithInterval(cfg.IdempotencyCleanupInterval),
		idempotency.WithBatchSize(cfg.IdempotencyCleanupBatchSize),
	)
	go cleanup.Run(workerCtx)

	ledger := stock.NewLedger(deps.catalog, log.WithField("component", "stock"))
	cartSvc := cart.NewService(deps.carts, deps.catalog, ledger, deps.outboxRepo, log.WithField("component", "cart"))
	resolver := tenant.NewResolver(deps.stores, log.WithField("component", "tenant"))
	evaluator := availability.NewEvaluator(deps.catalog, ledger, log.WithField("component", "availability"))

	api := httpapi.NewServer(resolver, cartSvc, deps.catalog, evaluator, deps.idempotencyRepo,
		log.WithField("component", "httpapi"))

	healthHandler := healthcheck.NewHandler(version.GetVersion())
	if deps.pgStore != nil {
		pgStore := deps.pgStore
		healthHandler.RegisterChecker("postgres", healthcheck.NewSimpleChecker("postgres", func() error {
			pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return pgStore.Ping(pingCtx)
		}))
	}

	metricsSrv := startMetricsServer(ctx, cfg.MetricsAddr, logger, healthHandler)

	apiSrv := &http.Server{Addr: cfg.HTTPAddr, Handler: api.Handler()}
	errCh := make(chan error, 1)
	go func() {
		logger.Infof("HTTP API слушает %s", cfg.HTTPAddr)
		errCh <- apiSrv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("получен сигнал остановки, останавливаем HTTP API")
		shutdownHTTP(apiSrv, logger)
		shutdownHTTP(metricsSrv, logger)
		return ctx.Err()
	case err := <-errCh:
		shutdownHTTP(metricsSrv, logger)
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// startMetricsServer запускает HTTP-обработчик /metrics для Prometheus.
func startMetricsServer(ctx context.Context, addr string, logger *log.Entry, healthHandler http.Handler) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/healthz", healthHandler)
	mux.HandleFunc("/livez", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		logger.Infof("метрики доступны по адресу %s/metrics", addr)
		logger.Infof("health checks: %s/healthz, %s/livez", addr, addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Warn("metrics server failed")
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownHTTP(srv, logger)
	}()

	return srv
}

// shutdownHTTP аккуратно останавливает HTTP-сервер.
func shutdownHTTP(srv *http.Server, logger *log.Entry) {
	if srv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.WithError(err).Warn("http shutdown with error")
	}
}
