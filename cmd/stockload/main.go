package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"math"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

const (
	idempotencyHeader = "Idempotency-Key"
	buyerHeader       = "X-Buyer-ID"

	outcomeAccepted = "accepted"
	outcomeRejected = "insufficient_stock"
	outcomeError    = "transport_error"
)

type config struct {
	addr        string
	host        string
	product     string
	variant     string
	qty         int64
	total       int
	totalSet    bool
	duration    time.Duration
	concurrency int
	timeout     time.Duration
	buyerTag    string
	outputPath  string
}

type latencySummary struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
	Avg float64 `json:"avg"`
	P50 float64 `json:"p50"`
	P95 float64 `json:"p95"`
	P99 float64 `json:"p99"`
}

type methodReport struct {
	Calls     int64            `json:"calls"`
	Success   int64            `json:"success"`
	Failed    int64            `json:"failed"`
	ErrorRate float64          `json:"error_rate"`
	Outcomes  map[string]int64 `json:"outcomes"`
	LatencyMs latencySummary   `json:"latency_ms"`
}

type stockReport struct {
	InitialStock  int64 `json:"initial_stock"`
	AcceptedUnits int64 `json:"accepted_units"`
	Oversold      bool  `json:"oversold"`
}

type report struct {
	StartedAt         time.Time               `json:"started_at"`
	DurationSeconds   float64                 `json:"duration_seconds"`
	TotalScenarios    int64                   `json:"total_scenarios"`
	SuccessScenarios  int64                   `json:"success_scenarios"`
	FailedScenarios   int64                   `json:"failed_scenarios"`
	ErrorRate         float64                 `json:"error_rate"`
	RPS               float64                 `json:"rps"`
	ScenarioLatencyMs latencySummary          `json:"scenario_latency_ms"`
	Stock             stockReport             `json:"stock"`
	Methods           map[string]methodReport `json:"methods"`
}

type methodStats struct {
	calls     int64
	success   int64
	failed    int64
	outcomes  map[string]int64
	latencies []float64
}

type collector struct {
	mu      sync.Mutex
	methods map[string]*methodStats
}

func newCollector() *collector {
	return &collector{
		methods: make(map[string]*methodStats),
	}
}

// expectedOutcome разделяет штатные исходы нагрузки и реальные ошибки:
// отказ по остаткам при конкурентной скупке является ожидаемым результатом.
func expectedOutcome(outcome string) bool {
	return outcome == outcomeAccepted || outcome == outcomeRejected
}

func (c *collector) record(method string, latency time.Duration, outcome string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats, ok := c.methods[method]
	if !ok {
		stats = &methodStats{
			outcomes: make(map[string]int64),
		}
		c.methods[method] = stats
	}

	stats.calls++
	if expectedOutcome(outcome) {
		stats.success++
	} else {
		stats.failed++
	}
	stats.outcomes[outcome]++
	stats.latencies = append(stats.latencies, float64(latency.Microseconds())/1000.0)
}

func (c *collector) snapshot(name string) (methodReport, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats, ok := c.methods[name]
	if !ok {
		return methodReport{}, false
	}

	outcomesCopy := make(map[string]int64, len(stats.outcomes))
	for outcome, count := range stats.outcomes {
		outcomesCopy[outcome] = count
	}

	return methodReport{
		Calls:     stats.calls,
		Success:   stats.success,
		Failed:    stats.failed,
		ErrorRate: ratio(stats.failed, stats.calls),
		Outcomes:  outcomesCopy,
		LatencyMs: buildLatencySummary(stats.latencies),
	}, true
}

func (c *collector) buildReport(startedAt time.Time, duration time.Duration) report {
	c.mu.Lock()
	defer c.mu.Unlock()

	result := report{
		StartedAt:       startedAt.UTC(),
		DurationSeconds: duration.Seconds(),
		Methods:         make(map[string]methodReport, len(c.methods)),
	}

	scenarioStats := c.methods["scenario"]
	if scenarioStats != nil {
		result.TotalScenarios = scenarioStats.calls
		result.SuccessScenarios = scenarioStats.success
		result.FailedScenarios = scenarioStats.failed
		result.ErrorRate = ratio(scenarioStats.failed, scenarioStats.calls)
		result.ScenarioLatencyMs = buildLatencySummary(scenarioStats.latencies)
	}
	if duration > 0 {
		result.RPS = float64(result.TotalScenarios) / duration.Seconds()
	}

	for name, stats := range c.methods {
		outcomesCopy := make(map[string]int64, len(stats.outcomes))
		for outcome, count := range stats.outcomes {
			outcomesCopy[outcome] = count
		}
		result.Methods[name] = methodReport{
			Calls:     stats.calls,
			Success:   stats.success,
			Failed:    stats.failed,
			ErrorRate: ratio(stats.failed, stats.calls),
			Outcomes:  outcomesCopy,
			LatencyMs: buildLatencySummary(stats.latencies),
		}
	}

	return result
}

func parseConfig() (config, error) {
	var cfg config
	var timeoutValue string
	var durationValue string
	var qtyValue int

	flag.StringVar(&cfg.addr, "addr", "http://localhost:8080", "base URL of the catalog service HTTP API")
	flag.StringVar(&cfg.host, "host", "", "optional Host header for tenant resolution")
	flag.StringVar(&cfg.product, "product", "", "product id to add to carts")
	flag.StringVar(&cfg.variant, "variant", "", "optional variant id")
	flag.IntVar(&qtyValue, "qty", 1, "quantity per add-to-cart request")
	flag.IntVar(&cfg.total, "total", 400, "total scenarios to execute in count mode; in duration mode only used when explicitly set")
	flag.StringVar(&durationValue, "duration", "0s", "optional time-based run duration (e.g. 30s, 5m)")
	flag.IntVar(&cfg.concurrency, "concurrency", 40, "number of concurrent workers")
	flag.StringVar(&timeoutValue, "timeout", "5s", "per-request timeout")
	flag.StringVar(&cfg.buyerTag, "buyer-tag", "load", "buyer id prefix")
	flag.StringVar(&cfg.outputPath, "output", "", "optional JSON report output file path")
	flag.Parse()

	cfg.qty = int64(qtyValue)

	timeout, err := time.ParseDuration(strings.TrimSpace(timeoutValue))
	if err != nil {
		return cfg, fmt.Errorf("parse timeout: %w", err)
	}
	cfg.timeout = timeout

	duration, err := time.ParseDuration(strings.TrimSpace(durationValue))
	if err != nil {
		return cfg, fmt.Errorf("parse duration: %w", err)
	}
	cfg.duration = duration

	flag.CommandLine.Visit(func(f *flag.Flag) {
		if f.Name == "total" {
			cfg.totalSet = true
		}
	})

	if strings.TrimSpace(cfg.addr) == "" {
		return cfg, errors.New("addr is required")
	}
	if strings.TrimSpace(cfg.product) == "" {
		return cfg, errors.New("product is required")
	}
	if cfg.qty <= 0 {
		return cfg, errors.New("qty must be > 0")
	}
	if cfg.duration < 0 {
		return cfg, errors.New("duration must be >= 0")
	}
	if cfg.duration == 0 && cfg.total <= 0 {
		return cfg, errors.New("total must be > 0 when duration is not set")
	}
	if cfg.duration > 0 && cfg.totalSet && cfg.total <= 0 {
		return cfg, errors.New("total must be > 0 when explicitly set with duration")
	}
	if cfg.concurrency <= 0 {
		return cfg, errors.New("concurrency must be > 0")
	}
	if cfg.timeout <= 0 {
		return cfg, errors.New("timeout must be > 0")
	}
	if strings.TrimSpace(cfg.buyerTag) == "" {
		return cfg, errors.New("buyer-tag is required")
	}

	return cfg, nil
}

func main() {
	cfg, err := parseConfig()
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	client := &http.Client{Timeout: cfg.timeout}

	initialStock, err := fetchInitialStock(client, cfg)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "failed to read initial stock: %v\n", err)
		os.Exit(1)
	}

	startedAt := time.Now()
	runID := fmt.Sprintf("%d-%d", startedAt.UnixNano(), os.Getpid())
	col := newCollector()

	jobs := make(chan int, cfg.concurrency*2)
	var acceptedUnits int64
	var failures int64
	var wg sync.WaitGroup

	for workerID := 0; workerID < cfg.concurrency; workerID++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for id := range jobs {
				outcome := runScenario(client, cfg, id, runID, col)
				switch {
				case outcome == outcomeAccepted:
					atomic.AddInt64(&acceptedUnits, cfg.qty)
				case !expectedOutcome(outcome):
					atomic.AddInt64(&failures, 1)
				}
			}
		}()
	}

	dispatchJobs(jobs, cfg)
	wg.Wait()

	duration := time.Since(startedAt)
	result := col.buildReport(startedAt, duration)
	if result.FailedScenarios == 0 && failures > 0 {
		result.FailedScenarios = failures
		result.ErrorRate = ratio(result.FailedScenarios, result.TotalScenarios)
	}

	accepted := atomic.LoadInt64(&acceptedUnits)
	result.Stock = stockReport{
		InitialStock:  initialStock,
		AcceptedUnits: accepted,
		Oversold:      accepted > initialStock,
	}

	printReport(result, cfg)
	if cfg.outputPath != "" {
		if err := writeJSONReport(cfg.outputPath, result); err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "failed to write report: %v\n", err)
			os.Exit(1)
		}
	}

	if result.Stock.Oversold || result.FailedScenarios > 0 {
		os.Exit(1)
	}
}

func dispatchJobs(jobs chan<- int, cfg config) {
	defer close(jobs)

	if cfg.duration <= 0 {
		for i := 0; i < cfg.total; i++ {
			jobs <- i
		}
		return
	}

	timer := time.NewTimer(cfg.duration)
	defer timer.Stop()

	for i := 0; ; i++ {
		if cfg.totalSet && i >= cfg.total {
			return
		}

		select {
		case <-timer.C:
			return
		case jobs <- i:
		}
	}
}

type productStockResponse struct {
	TotalStock     int64 `json:"total_stock"`
	AvailableSizes []struct {
		VariantID string `json:"variant_id"`
		Stock     int64  `json:"stock"`
	} `json:"available_sizes"`
}

func fetchInitialStock(client *http.Client, cfg config) (int64, error) {
	req, err := http.NewRequest(http.MethodGet, cfg.addr+"/api/products/"+cfg.product, nil)
	if err != nil {
		return 0, err
	}
	if cfg.host != "" {
		req.Host = cfg.host
	}

	resp, err := client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return 0, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var product productStockResponse
	if err := json.NewDecoder(resp.Body).Decode(&product); err != nil {
		return 0, err
	}

	if cfg.variant == "" {
		return product.TotalStock, nil
	}
	for _, size := range product.AvailableSizes {
		if size.VariantID == cfg.variant {
			return size.Stock, nil
		}
	}
	return 0, fmt.Errorf("variant %s not found in product response", cfg.variant)
}

type addItemPayload struct {
	ProductID string `json:"product_id"`
	VariantID string `json:"variant_id,omitempty"`
	Quantity  int64  `json:"quantity"`
}

type errorEnvelope struct {
	Error struct {
		Kind string `json:"kind"`
	} `json:"error"`
}

// runScenario выполняет одно добавление товара в корзину уникального покупателя
// и возвращает исход вызова.
func runScenario(client *http.Client, cfg config, index int, runID string, col *collector) string {
	scenarioStart := time.Now()
	outcome := callAddItem(client, cfg, index, runID, col)
	col.record("scenario", time.Since(scenarioStart), outcome)
	return outcome
}

func callAddItem(client *http.Client, cfg config, index int, runID string, col *collector) string {
	payload, err := json.Marshal(addItemPayload{
		ProductID: cfg.product,
		VariantID: cfg.variant,
		Quantity:  cfg.qty,
	})
	if err != nil {
		col.record("AddItem", 0, outcomeError)
		return outcomeError
	}

	start := time.Now()
	req, err := http.NewRequest(http.MethodPost, cfg.addr+"/api/cart/items", bytes.NewReader(payload))
	if err != nil {
		col.record("AddItem", time.Since(start), outcomeError)
		return outcomeError
	}
	if cfg.host != "" {
		req.Host = cfg.host
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(buyerHeader, fmt.Sprintf("%s-%s-%d", cfg.buyerTag, runID, index))
	req.Header.Set(idempotencyHeader, fmt.Sprintf("sl-add-%s-%d", runID, index))

	resp, err := client.Do(req)
	if err != nil {
		col.record("AddItem", time.Since(start), outcomeError)
		return outcomeError
	}
	defer resp.Body.Close()

	outcome := classifyResponse(resp)
	col.record("AddItem", time.Since(start), outcome)
	return outcome
}

// classifyResponse сводит HTTP-ответ к исходу: успешные добавления и отказы
// по остаткам различаются по телу ошибки, остальные ответы считаются сбоями.
func classifyResponse(resp *http.Response) string {
	if resp.StatusCode == http.StatusOK {
		return outcomeAccepted
	}

	var envelope errorEnvelope
	if err := json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&envelope); err == nil && envelope.Error.Kind != "" {
		return envelope.Error.Kind
	}
	return fmt.Sprintf("http_%d", resp.StatusCode)
}

func writeJSONReport(path string, result report) error {
	cleanPath := filepath.Clean(path)
	if cleanPath == "." || cleanPath == string(filepath.Separator) {
		return errors.New("output path must point to a file")
	}
	if cleanPath == ".." || strings.HasPrefix(cleanPath, ".."+string(filepath.Separator)) {
		return fmt.Errorf("output path must be inside current directory: %s", path)
	}

	// #nosec G304 -- path is an explicit CLI output parameter for local load-test reports.
	file, err := os.Create(cleanPath)
	if err != nil {
		return err
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	return encoder.Encode(result)
}

func printReport(result report, cfg config) {
	fmt.Println("Stock load summary")
	fmt.Printf("product=%s run=%s total=%d success=%d failed=%d error_rate=%.4f\n",
		cfg.product,
		runTarget(cfg),
		result.TotalScenarios,
		result.SuccessScenarios,
		result.FailedScenarios,
		result.ErrorRate,
	)
	fmt.Printf("duration=%.2fs rps=%.2f\n", result.DurationSeconds, result.RPS)
	fmt.Printf("stock: initial=%d accepted=%d oversold=%v\n",
		result.Stock.InitialStock,
		result.Stock.AcceptedUnits,
		result.Stock.Oversold,
	)
	fmt.Printf("scenario latency ms: min=%.2f avg=%.2f p50=%.2f p95=%.2f p99=%.2f max=%.2f\n",
		result.ScenarioLatencyMs.Min,
		result.ScenarioLatencyMs.Avg,
		result.ScenarioLatencyMs.P50,
		result.ScenarioLatencyMs.P95,
		result.ScenarioLatencyMs.P99,
		result.ScenarioLatencyMs.Max,
	)

	methodNames := make([]string, 0, len(result.Methods))
	for name := range result.Methods {
		if name == "scenario" {
			continue
		}
		methodNames = append(methodNames, name)
	}
	sort.Strings(methodNames)
	for _, name := range methodNames {
		stats := result.Methods[name]
		fmt.Printf(
			"%s: calls=%d success=%d failed=%d error_rate=%.4f p95=%.2fms\n",
			name,
			stats.Calls,
			stats.Success,
			stats.Failed,
			stats.ErrorRate,
			stats.LatencyMs.P95,
		)
	}
}

func runTarget(cfg config) string {
	if cfg.duration <= 0 {
		return fmt.Sprintf("count:%d", cfg.total)
	}
	if cfg.totalSet {
		return fmt.Sprintf("duration:%s,max-total:%d", cfg.duration, cfg.total)
	}
	return fmt.Sprintf("duration:%s", cfg.duration)
}

func buildLatencySummary(values []float64) latencySummary {
	if len(values) == 0 {
		return latencySummary{}
	}

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	var sum float64
	for _, value := range sorted {
		sum += value
	}

	return latencySummary{
		Min: sorted[0],
		Max: sorted[len(sorted)-1],
		Avg: sum / float64(len(sorted)),
		P50: percentile(sorted, 50),
		P95: percentile(sorted, 95),
		P99: percentile(sorted, 99),
	}
}

func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if len(sorted) == 1 {
		return sorted[0]
	}

	rank := (p / 100.0) * float64(len(sorted)-1)
	lower := int(math.Floor(rank))
	upper := int(math.Ceil(rank))
	if lower == upper {
		return sorted[lower]
	}

	weight := rank - float64(lower)
	return sorted[lower] + (sorted[upper]-sorted[lower])*weight
}

func ratio(failed, total int64) float64 {
	if total <= 0 {
		return 0
	}
	return float64(failed) / float64(total)
}
