package models

import "time"

// BenchmarkResult holds latency statistics for one kv operation
type BenchmarkResult struct {
	Operation string `json:"operation" yaml:"operation"`
	Method    string `json:"method" yaml:"method"`
	Path      string `json:"path" yaml:"path"`
	Database  string `json:"database,omitempty" yaml:"database,omitempty"`

	Iterations int     `json:"iterations" yaml:"iterations"`
	WarmupRuns int     `json:"warmup_runs" yaml:"warmup_runs"`
	RateLimit  float64 `json:"rate_limit,omitempty" yaml:"rate_limit,omitempty"`

	// Timing statistics (nanoseconds in JSON, milliseconds on screen)
	MinTime time.Duration `json:"min_time_ns" yaml:"min_time_ns"`
	MaxTime time.Duration `json:"max_time_ns" yaml:"max_time_ns"`
	AvgTime time.Duration `json:"avg_time_ns" yaml:"avg_time_ns"`
	P50Time time.Duration `json:"p50_time_ns" yaml:"p50_time_ns"`
	P90Time time.Duration `json:"p90_time_ns" yaml:"p90_time_ns"`
	P99Time time.Duration `json:"p99_time_ns" yaml:"p99_time_ns"`

	RequestsPerSec float64       `json:"requests_per_sec" yaml:"requests_per_sec"`
	TotalDuration  time.Duration `json:"total_duration_ns" yaml:"total_duration_ns"`

	SuccessCount int     `json:"success_count" yaml:"success_count"`
	ErrorCount   int     `json:"error_count" yaml:"error_count"`
	ErrorRate    float64 `json:"error_rate" yaml:"error_rate"`

	StatusCodes map[int]int `json:"status_codes" yaml:"status_codes"`

	// First few distinct errors
	SampleErrors []string `json:"sample_errors,omitempty" yaml:"sample_errors,omitempty"`
}

// BenchmarkSummary aggregates the results of a benchmark run
type BenchmarkSummary struct {
	TotalOperations int `json:"total_operations" yaml:"total_operations"`
	Iterations      int `json:"iterations_per_operation" yaml:"iterations_per_operation"`
	WarmupRuns      int `json:"warmup_runs" yaml:"warmup_runs"`

	OverallMinTime time.Duration `json:"overall_min_time_ns" yaml:"overall_min_time_ns"`
	OverallMaxTime time.Duration `json:"overall_max_time_ns" yaml:"overall_max_time_ns"`
	OverallAvgTime time.Duration `json:"overall_avg_time_ns" yaml:"overall_avg_time_ns"`

	TotalRequests     int           `json:"total_requests" yaml:"total_requests"`
	TotalSuccesses    int           `json:"total_successes" yaml:"total_successes"`
	TotalErrors       int           `json:"total_errors" yaml:"total_errors"`
	OverallErrorRate  float64       `json:"overall_error_rate" yaml:"overall_error_rate"`
	TotalDuration     time.Duration `json:"total_duration_ns" yaml:"total_duration_ns"`
	OverallReqsPerSec float64       `json:"overall_requests_per_sec" yaml:"overall_requests_per_sec"`

	Results []BenchmarkResult `json:"results" yaml:"results"`
}

// AddResult adds a benchmark result to the summary and updates aggregates
func (s *BenchmarkSummary) AddResult(result BenchmarkResult) {
	s.Results = append(s.Results, result)
	s.TotalOperations = len(s.Results)
	s.TotalRequests += result.Iterations
	s.TotalSuccesses += result.SuccessCount
	s.TotalErrors += result.ErrorCount

	if s.OverallMinTime == 0 || (result.MinTime > 0 && result.MinTime < s.OverallMinTime) {
		s.OverallMinTime = result.MinTime
	}
	if result.MaxTime > s.OverallMaxTime {
		s.OverallMaxTime = result.MaxTime
	}

	if s.TotalRequests > 0 {
		s.OverallErrorRate = float64(s.TotalErrors) / float64(s.TotalRequests) * 100
	}

	// weighted by iteration count
	var totalWeightedAvg time.Duration
	var totalWeight int
	for _, r := range s.Results {
		totalWeightedAvg += r.AvgTime * time.Duration(r.Iterations)
		totalWeight += r.Iterations
	}
	if totalWeight > 0 {
		s.OverallAvgTime = totalWeightedAvg / time.Duration(totalWeight)
	}
}

// Finalize calculates final aggregate metrics
func (s *BenchmarkSummary) Finalize(totalDuration time.Duration) {
	s.TotalDuration = totalDuration
	if totalDuration > 0 {
		s.OverallReqsPerSec = float64(s.TotalRequests) / totalDuration.Seconds()
	}
}
