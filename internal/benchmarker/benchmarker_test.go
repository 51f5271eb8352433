package benchmarker

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/moamenhredeen/kvctl/internal/models"
)

type fakePerformer struct {
	mu       sync.Mutex
	inFlight int
	overlap  bool
	requests []models.OperationRequest
	fail     func(req models.OperationRequest) bool
}

func (f *fakePerformer) Perform(ctx context.Context, req models.OperationRequest) (models.OperationResult, error) {
	f.mu.Lock()
	f.inFlight++
	if f.inFlight > 1 {
		f.overlap = true
	}
	f.requests = append(f.requests, req)
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		f.inFlight--
		f.mu.Unlock()
	}()

	time.Sleep(100 * time.Microsecond)
	if f.fail != nil && f.fail(req) {
		return models.OperationResult{
			Operation:  req.Operation.String(),
			StatusCode: 500,
			Err:        &models.ServiceError{StatusCode: 500, Status: "500 Internal Server Error"},
		}, nil
	}
	return models.OperationResult{Operation: req.Operation.String(), StatusCode: 200, Succeeded: true}, nil
}

func TestBenchmarkPut(t *testing.T) {
	performer := &fakePerformer{}
	b := NewBenchmarker(Config{Iterations: 20, WarmupRuns: 3, Database: "db1"}, performer)

	result, err := b.BenchmarkOperation(context.Background(), models.OpPut, nil, 0, 1)
	if err != nil {
		t.Fatalf("Benchmark failed: %v", err)
	}

	if len(performer.requests) != 23 {
		t.Errorf("Expected 23 sequential calls, got %d", len(performer.requests))
	}
	if performer.overlap {
		t.Error("Requests overlapped")
	}
	if result.SuccessCount != 20 || result.ErrorCount != 0 {
		t.Errorf("Unexpected counts: success=%d errors=%d", result.SuccessCount, result.ErrorCount)
	}
	if result.Method != "PUT" || result.Path != "/kvstore/v1/db1" {
		t.Errorf("Unexpected target %s %s", result.Method, result.Path)
	}
	if result.StatusCodes[200] != 20 {
		t.Errorf("Expected 20 status 200, got %v", result.StatusCodes)
	}
	if result.MinTime <= 0 || result.MinTime > result.MaxTime {
		t.Errorf("Inconsistent timings min=%v max=%v", result.MinTime, result.MaxTime)
	}

	seen := map[string]bool{}
	for _, req := range performer.requests {
		if !strings.HasPrefix(req.Key, "kvbench-") {
			t.Errorf("Unexpected key %s", req.Key)
		}
		if seen[req.Key] {
			t.Errorf("Key %s written twice", req.Key)
		}
		seen[req.Key] = true
	}
}

func TestBenchmarkGetSeedsKey(t *testing.T) {
	performer := &fakePerformer{}
	b := NewBenchmarker(Config{Iterations: 10, WarmupRuns: 0}, performer)

	_, err := b.BenchmarkOperation(context.Background(), models.OpGet, nil, 0, 1)
	if err != nil {
		t.Fatalf("Benchmark failed: %v", err)
	}

	if len(performer.requests) != 11 {
		t.Fatalf("Expected seed + 10 gets, got %d", len(performer.requests))
	}
	seed := performer.requests[0]
	if seed.Operation != models.OpPut {
		t.Errorf("Expected seed put, got %s", seed.Operation)
	}
	for _, req := range performer.requests[1:] {
		if req.Operation != models.OpGet || req.Key != seed.Key {
			t.Errorf("Expected get of %s, got %s %s", seed.Key, req.Operation, req.Key)
		}
	}
}

func TestBenchmarkCountsErrors(t *testing.T) {
	calls := 0
	performer := &fakePerformer{fail: func(models.OperationRequest) bool {
		calls++
		return calls%2 == 0
	}}
	b := NewBenchmarker(Config{Iterations: 10}, performer)

	result, err := b.BenchmarkOperation(context.Background(), models.OpPut, nil, 0, 1)
	if err != nil {
		t.Fatalf("Benchmark failed: %v", err)
	}

	if result.ErrorCount != 5 || result.SuccessCount != 5 {
		t.Errorf("Expected 5/5, got success=%d errors=%d", result.SuccessCount, result.ErrorCount)
	}
	if result.ErrorRate != 50 {
		t.Errorf("Expected 50%% error rate, got %.1f", result.ErrorRate)
	}
	if len(result.SampleErrors) != 1 {
		t.Errorf("Expected one distinct sample error, got %v", result.SampleErrors)
	}
}

func TestBenchmarkRejectsUnsupported(t *testing.T) {
	b := NewBenchmarker(DefaultConfig(), &fakePerformer{})
	_, err := b.BenchmarkOperation(context.Background(), models.OpDeleteDB, nil, 0, 1)
	if !errors.Is(err, models.ErrValidation) {
		t.Errorf("Expected validation error, got %v", err)
	}
}

func TestBenchmarkEvents(t *testing.T) {
	b := NewBenchmarker(Config{Iterations: 40, WarmupRuns: 5}, &fakePerformer{})

	var types []EventType
	progress := 0
	_, err := b.BenchmarkOperation(context.Background(), models.OpPut, func(e BenchmarkEvent) {
		if e.Type == EventBenchmarkProgress {
			progress++
			return
		}
		types = append(types, e.Type)
	}, 0, 1)
	if err != nil {
		t.Fatalf("Benchmark failed: %v", err)
	}

	want := []EventType{EventWarmupStarting, EventWarmupProgress, EventWarmupProgress, EventWarmupProgress,
		EventWarmupProgress, EventWarmupProgress, EventWarmupCompleted, EventBenchmarkStarting, EventBenchmarkCompleted}
	if len(types) != len(want) {
		t.Fatalf("Expected events %v, got %v", want, types)
	}
	for i := range want {
		if types[i] != want[i] {
			t.Errorf("Event %d: expected %v, got %v", i, want[i], types[i])
		}
	}
	if progress != 20 {
		t.Errorf("Expected 20 progress events, got %d", progress)
	}
}

func TestBenchmarkOperationsSummary(t *testing.T) {
	b := NewBenchmarker(Config{Iterations: 5}, &fakePerformer{})

	summary := b.BenchmarkOperations(context.Background(), []models.Operation{models.OpPut, models.OpGet, models.OpCacheOn}, nil)

	if summary.TotalOperations != 3 {
		t.Fatalf("Expected 3 results, got %d", summary.TotalOperations)
	}
	if summary.Results[2].ErrorRate != 100 {
		t.Errorf("Unsupported operation should be reported as failed, got %.1f", summary.Results[2].ErrorRate)
	}
	if summary.TotalSuccesses != 10 {
		t.Errorf("Expected 10 successes, got %d", summary.TotalSuccesses)
	}
}

func TestBenchmarkCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	b := NewBenchmarker(Config{Iterations: 10, WarmupRuns: 2}, &fakePerformer{})
	_, err := b.BenchmarkOperation(ctx, models.OpPut, nil, 0, 1)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

func TestPercentile(t *testing.T) {
	sorted := []time.Duration{10, 20, 30, 40, 50}

	tests := []struct {
		p    int
		want time.Duration
	}{
		{0, 10},
		{50, 30},
		{100, 50},
		{25, 20},
	}
	for _, tt := range tests {
		if got := percentile(sorted, tt.p); got != tt.want {
			t.Errorf("percentile(%d) = %v, want %v", tt.p, got, tt.want)
		}
	}

	if got := percentile(nil, 50); got != 0 {
		t.Errorf("Expected 0 for empty input, got %v", got)
	}
}
