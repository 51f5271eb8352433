package benchmarker

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/moamenhredeen/kvctl/internal/models"
	"github.com/moamenhredeen/kvctl/internal/request"
)

// EventType represents the type of benchmark event
type EventType int

const (
	// EventWarmupStarting indicates warmup phase is starting for an operation
	EventWarmupStarting EventType = iota
	// EventWarmupProgress indicates warmup progress
	EventWarmupProgress
	// EventWarmupCompleted indicates warmup phase completed
	EventWarmupCompleted
	// EventBenchmarkStarting indicates benchmark is starting for an operation
	EventBenchmarkStarting
	// EventBenchmarkProgress indicates benchmark progress (periodic updates)
	EventBenchmarkProgress
	// EventBenchmarkCompleted indicates benchmark completed for an operation
	EventBenchmarkCompleted
)

// BenchmarkEvent represents an event during benchmark execution
type BenchmarkEvent struct {
	Type      EventType
	Operation models.Operation
	Result    *models.BenchmarkResult // nil until completed
	Index     int                     // current operation index (0-based)
	Total     int                     // total number of operations
	Progress  int                     // current iteration count
	MaxIter   int                     // max iterations for this phase

	// Running stats (for progress events)
	RunningAvg    time.Duration
	RunningReqSec float64
	ErrorCount    int
}

// OnBenchmarkEvent is a callback function for benchmark events
type OnBenchmarkEvent func(event BenchmarkEvent)

// Performer dispatches one operation and waits for its result
type Performer interface {
	Perform(ctx context.Context, req models.OperationRequest) (models.OperationResult, error)
}

// Config holds benchmark configuration
type Config struct {
	Iterations int     // Number of measured requests per operation
	WarmupRuns int     // Number of warmup iterations (discarded)
	RateLimit  float64 // Max requests per second (0 = unlimited)
	Database   string  // Database the keys live in, empty for the default
	KeyPrefix  string  // Prefix of generated keys
}

// DefaultConfig returns default benchmark configuration
func DefaultConfig() Config {
	return Config{
		Iterations: 100,
		WarmupRuns: 5,
		RateLimit:  0,
		KeyPrefix:  "kvbench",
	}
}

// Supported lists the operations that can be benchmarked
func Supported() []models.Operation {
	return []models.Operation{models.OpPut, models.OpGet, models.OpUpdate}
}

// Benchmarker measures kv operations through a Performer. Requests are
// issued one after another, never overlapping.
type Benchmarker struct {
	config    Config
	performer Performer
	limiter   *rate.Limiter
	newKey    func() string
}

// NewBenchmarker creates a new benchmarker instance
func NewBenchmarker(config Config, performer Performer) *Benchmarker {
	if config.KeyPrefix == "" {
		config.KeyPrefix = DefaultConfig().KeyPrefix
	}

	var limiter *rate.Limiter
	if config.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(config.RateLimit), 1)
	}

	prefix := config.KeyPrefix
	return &Benchmarker{
		config:    config,
		performer: performer,
		limiter:   limiter,
		newKey: func() string {
			return prefix + "-" + uuid.NewString()
		},
	}
}

// requestResult holds the result of a single request
type requestResult struct {
	Duration   time.Duration
	StatusCode int
	Error      string
}

// BenchmarkOperation benchmarks a single kv operation
func (b *Benchmarker) BenchmarkOperation(
	ctx context.Context,
	op models.Operation,
	onEvent OnBenchmarkEvent,
	index, total int,
) (models.BenchmarkResult, error) {
	result := models.BenchmarkResult{
		Operation:   op.String(),
		Database:    b.config.Database,
		Iterations:  b.config.Iterations,
		WarmupRuns:  b.config.WarmupRuns,
		RateLimit:   b.config.RateLimit,
		StatusCodes: make(map[int]int),
	}

	if !isSupported(op) {
		return result, &models.ValidationError{Field: "operation", Message: op.String() + " cannot be benchmarked"}
	}

	// a single key is shared by get and update, seeded once up front
	seedKey := b.newKey()
	next := b.requestFor(op, seedKey)

	probe, err := request.NewRequestBuilder().Build(next(), "probe")
	if err != nil {
		return result, fmt.Errorf("failed to build request: %w", err)
	}
	result.Method = probe.Method
	result.Path = probe.Path

	if op != models.OpPut {
		seed := models.OperationRequest{Operation: models.OpPut, Key: seedKey, Value: "seed", Database: b.config.Database}
		res, err := b.performer.Perform(ctx, seed)
		if err != nil {
			return result, fmt.Errorf("failed to seed key: %w", err)
		}
		if !res.Succeeded {
			return result, fmt.Errorf("failed to seed key: %v", res.Err)
		}
	}

	if b.config.WarmupRuns > 0 && onEvent != nil {
		onEvent(BenchmarkEvent{
			Type:      EventWarmupStarting,
			Operation: op,
			Index:     index,
			Total:     total,
			MaxIter:   b.config.WarmupRuns,
		})
	}

	for i := 0; i < b.config.WarmupRuns; i++ {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		b.executeRequest(ctx, next())

		if onEvent != nil && (i+1)%max(1, b.config.WarmupRuns/5) == 0 {
			onEvent(BenchmarkEvent{
				Type:      EventWarmupProgress,
				Operation: op,
				Index:     index,
				Total:     total,
				Progress:  i + 1,
				MaxIter:   b.config.WarmupRuns,
			})
		}
	}

	if b.config.WarmupRuns > 0 && onEvent != nil {
		onEvent(BenchmarkEvent{
			Type:      EventWarmupCompleted,
			Operation: op,
			Index:     index,
			Total:     total,
		})
	}

	if onEvent != nil {
		onEvent(BenchmarkEvent{
			Type:      EventBenchmarkStarting,
			Operation: op,
			Index:     index,
			Total:     total,
			MaxIter:   b.config.Iterations,
		})
	}

	startTime := time.Now()
	results := b.runSequential(ctx, next, onEvent, op, index, total, startTime)
	result.TotalDuration = time.Since(startTime)

	result = b.processResults(result, results)

	if onEvent != nil {
		onEvent(BenchmarkEvent{
			Type:      EventBenchmarkCompleted,
			Operation: op,
			Result:    &result,
			Index:     index,
			Total:     total,
		})
	}

	return result, nil
}

// requestFor returns a generator of requests for op. Puts write fresh keys,
// get and update reuse the seeded key.
func (b *Benchmarker) requestFor(op models.Operation, seedKey string) func() models.OperationRequest {
	n := 0
	return func() models.OperationRequest {
		n++
		switch op {
		case models.OpPut:
			return models.OperationRequest{Operation: op, Key: b.newKey(), Value: fmt.Sprintf("value-%d", n), Database: b.config.Database}
		case models.OpUpdate:
			return models.OperationRequest{Operation: op, Key: seedKey, Value: fmt.Sprintf("value-%d", n), Database: b.config.Database}
		default:
			return models.OperationRequest{Operation: op, Key: seedKey, Database: b.config.Database}
		}
	}
}

// runSequential executes the measured iterations one at a time
func (b *Benchmarker) runSequential(
	ctx context.Context,
	next func() models.OperationRequest,
	onEvent OnBenchmarkEvent,
	op models.Operation,
	index, total int,
	startTime time.Time,
) []requestResult {
	results := make([]requestResult, 0, b.config.Iterations)

	var totalDuration time.Duration
	var errorCount int

	// ~5% intervals
	progressInterval := max(1, b.config.Iterations/20)

	for i := 0; i < b.config.Iterations; i++ {
		if ctx.Err() != nil {
			break
		}

		if b.limiter != nil {
			if err := b.limiter.Wait(ctx); err != nil {
				break
			}
		}

		res := b.executeRequest(ctx, next())
		results = append(results, res)

		totalDuration += res.Duration
		if res.Error != "" {
			errorCount++
		}

		completed := len(results)
		if onEvent != nil && completed%progressInterval == 0 {
			reqsPerSec := 0.0
			if elapsed := time.Since(startTime); elapsed > 0 {
				reqsPerSec = float64(completed) / elapsed.Seconds()
			}

			onEvent(BenchmarkEvent{
				Type:          EventBenchmarkProgress,
				Operation:     op,
				Index:         index,
				Total:         total,
				Progress:      completed,
				MaxIter:       b.config.Iterations,
				RunningAvg:    totalDuration / time.Duration(completed),
				RunningReqSec: reqsPerSec,
				ErrorCount:    errorCount,
			})
		}
	}

	return results
}

// executeRequest performs a single operation and returns timing
func (b *Benchmarker) executeRequest(ctx context.Context, req models.OperationRequest) requestResult {
	result := requestResult{}

	startTime := time.Now()
	res, err := b.performer.Perform(ctx, req)
	result.Duration = time.Since(startTime)

	if err != nil {
		result.Error = err.Error()
		return result
	}

	result.StatusCode = res.StatusCode
	if !res.Succeeded {
		result.Error = res.ErrorMessage()
	}
	return result
}

// processResults calculates statistics from raw results
func (b *Benchmarker) processResults(result models.BenchmarkResult, rawResults []requestResult) models.BenchmarkResult {
	if len(rawResults) == 0 {
		return result
	}
	// interrupted runs report what actually ran
	result.Iterations = len(rawResults)

	var durations []time.Duration
	var totalDuration time.Duration
	errorSet := make(map[string]bool)

	for _, r := range rawResults {
		if r.Error != "" {
			result.ErrorCount++
			if len(result.SampleErrors) < 5 && !errorSet[r.Error] {
				result.SampleErrors = append(result.SampleErrors, r.Error)
				errorSet[r.Error] = true
			}
		} else {
			result.SuccessCount++
			durations = append(durations, r.Duration)
			totalDuration += r.Duration
		}

		if r.StatusCode > 0 {
			result.StatusCodes[r.StatusCode]++
		}
	}

	// timing stats come from successful requests only
	if len(durations) > 0 {
		sort.Slice(durations, func(i, j int) bool {
			return durations[i] < durations[j]
		})

		result.MinTime = durations[0]
		result.MaxTime = durations[len(durations)-1]
		result.AvgTime = totalDuration / time.Duration(len(durations))
		result.P50Time = percentile(durations, 50)
		result.P90Time = percentile(durations, 90)
		result.P99Time = percentile(durations, 99)
	}

	if result.TotalDuration > 0 {
		result.RequestsPerSec = float64(result.Iterations) / result.TotalDuration.Seconds()
	}

	if result.Iterations > 0 {
		result.ErrorRate = float64(result.ErrorCount) / float64(result.Iterations) * 100
	}

	return result
}

// percentile calculates the p-th percentile from sorted durations
func percentile(sorted []time.Duration, p int) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	if p <= 0 {
		return sorted[0]
	}
	if p >= 100 {
		return sorted[len(sorted)-1]
	}

	index := float64(len(sorted)-1) * float64(p) / 100.0
	lower := int(index)
	upper := lower + 1

	if upper >= len(sorted) {
		return sorted[lower]
	}

	// Linear interpolation
	weight := index - float64(lower)
	return time.Duration(float64(sorted[lower])*(1-weight) + float64(sorted[upper])*weight)
}

// BenchmarkOperations benchmarks several operations in order
func (b *Benchmarker) BenchmarkOperations(
	ctx context.Context,
	operations []models.Operation,
	onEvent OnBenchmarkEvent,
) models.BenchmarkSummary {
	summary := models.BenchmarkSummary{
		Iterations: b.config.Iterations,
		WarmupRuns: b.config.WarmupRuns,
		Results:    make([]models.BenchmarkResult, 0, len(operations)),
	}

	startTime := time.Now()

	for i, op := range operations {
		if ctx.Err() != nil {
			break
		}

		result, err := b.BenchmarkOperation(ctx, op, onEvent, i, len(operations))
		if err != nil {
			result.SampleErrors = append(result.SampleErrors, err.Error())
			result.ErrorCount = result.Iterations
			result.ErrorRate = 100
		}
		summary.AddResult(result)
	}

	summary.Finalize(time.Since(startTime))
	return summary
}

func isSupported(op models.Operation) bool {
	for _, s := range Supported() {
		if s == op {
			return true
		}
	}
	return false
}
