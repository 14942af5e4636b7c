package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// CartMetrics содержит метрики операций над корзинами и остатками.
type CartMetrics struct {
	// Счётчики операций по результату
	operations *prometheus.CounterVec

	// Причины отказов
	rejections *prometheus.CounterVec

	// Гистограмма времени выполнения операции
	operationDuration *prometheus.HistogramVec

	// Конфликты записи остатка и повторы
	stockConflicts prometheus.Counter
	stockRetries   prometheus.Counter

	// Счётчик событий outbox
	outboxEvents prometheus.Counter
}

// NewCartMetrics создаёт новый экземпляр метрик корзины.
func NewCartMetrics() *CartMetrics {
	return newCartMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

func newCartMetricsWithRegisterer(registerer prometheus.Registerer) *CartMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &CartMetrics{
		operations: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "vendaro_cart_operations_total",
			Help: "Total number of cart operations by kind and result",
		}, []string{"operation", "result"}),
		rejections: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "vendaro_cart_rejections_total",
			Help: "Total number of rejected cart operations by reason",
		}, []string{"reason"}),
		operationDuration: registerHistogramVec(registerer, prometheus.HistogramOpts{
			Name:    "vendaro_cart_operation_duration_seconds",
			Help:    "Duration of cart operations in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5},
		}, []string{"operation"}),
		stockConflicts: registerCounter(registerer, prometheus.CounterOpts{
			Name: "vendaro_stock_conflicts_total",
			Help: "Total number of storage write conflicts during stock reservation",
		}),
		stockRetries: registerCounter(registerer, prometheus.CounterOpts{
			Name: "vendaro_stock_retries_total",
			Help: "Total number of transparent retries after a write conflict",
		}),
		outboxEvents: registerCounter(registerer, prometheus.CounterOpts{
			Name: "vendaro_outbox_events_total",
			Help: "Total number of events enqueued to the transactional outbox",
		}),
	}
}

func registerCounter(registerer prometheus.Registerer, opts prometheus.CounterOpts) prometheus.Counter {
	collector := prometheus.NewCounter(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Counter)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter %q: %v", opts.Name, err))
	}
	return collector
}

func registerCounterVec(registerer prometheus.Registerer, opts prometheus.CounterOpts, labels []string) *prometheus.CounterVec {
	collector := prometheus.NewCounterVec(opts, labels)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(*prometheus.CounterVec)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter vec %q: %v", opts.Name, err))
	}
	return collector
}

func registerHistogramVec(registerer prometheus.Registerer, opts prometheus.HistogramOpts, labels []string) *prometheus.HistogramVec {
	collector := prometheus.NewHistogramVec(opts, labels)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(*prometheus.HistogramVec)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register histogram vec %q: %v", opts.Name, err))
	}
	return collector
}

// RecordOperation фиксирует результат операции над корзиной.
func (m *CartMetrics) RecordOperation(operation, result string) {
	m.operations.WithLabelValues(operation, result).Inc()
}

// RecordRejection фиксирует причину отказа.
func (m *CartMetrics) RecordRejection(reason string) {
	m.rejections.WithLabelValues(reason).Inc()
}

// RecordOperationDuration записывает время выполнения операции.
func (m *CartMetrics) RecordOperationDuration(operation string, duration time.Duration) {
	m.operationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordStockConflict фиксирует конфликт записи остатка.
func (m *CartMetrics) RecordStockConflict() {
	m.stockConflicts.Inc()
}

// RecordStockRetry фиксирует прозрачный повтор после конфликта.
func (m *CartMetrics) RecordStockRetry() {
	m.stockRetries.Inc()
}

// RecordOutboxEvent увеличивает счётчик событий outbox.
func (m *CartMetrics) RecordOutboxEvent() {
	m.outboxEvents.Inc()
}
