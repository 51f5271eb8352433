package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/briandowns/spinner"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/moamenhredeen/kvctl/internal/benchmarker"
	"github.com/moamenhredeen/kvctl/internal/models"
	"github.com/moamenhredeen/kvctl/internal/output"
)

var (
	// Benchmark-specific flags
	benchIterations   int
	benchWarmup       int
	benchRateLimit    float64
	benchDatabase     string
	benchKeyPrefix    string
	benchOutputFormat string
	benchOutputFile   string
)

// benchmarkCmd represents the benchmark command
var benchmarkCmd = &cobra.Command{
	Use:   "benchmark [put|get|update ...]",
	Short: "Benchmark key-value operations",
	Long: `Benchmark key-value operations by measuring client side response
times and throughput.

Requests are sent one at a time through a single authenticated session.
Puts write fresh keys; get and update work on one key seeded before the
run. Without arguments put, get and update are benchmarked in turn.

Examples:
  # Basic benchmark with defaults (100 iterations per operation)
  kvctl benchmark

  # Only reads, 1000 of them, at most 50 per second
  kvctl benchmark get -n 1000 --rate 50

  # Export results to JSON
  kvctl benchmark put update -o json --output-file results.json`,
	ValidArgs: []string{"put", "get", "update"},
	Run:       runBenchmark,
}

func runBenchmark(cmd *cobra.Command, args []string) {
	operations := benchmarker.Supported()
	if len(args) > 0 {
		operations = operations[:0:0]
		for _, arg := range args {
			op, err := models.ParseOperation(arg)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			operations = append(operations, op)
		}
	}

	var format output.Format
	if benchOutputFormat != "" {
		var err error
		if format, err = output.ParseFormat(benchOutputFormat); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	}

	// Create benchmark configuration
	config := benchmarker.Config{
		Iterations: benchIterations,
		WarmupRuns: benchWarmup,
		RateLimit:  benchRateLimit,
		Database:   benchDatabase,
		KeyPrefix:  benchKeyPrefix,
	}

	// Print benchmark info
	fmt.Printf("\n%s\n", white("=== Benchmark Configuration ==="))
	fmt.Printf("Target:      %s\n", viper.GetString("kv_url"))
	fmt.Printf("Operations:  %s\n", joinOperations(operations))
	fmt.Printf("Iterations:  %d per operation\n", config.Iterations)
	fmt.Printf("Warmup:      %d iterations\n", config.WarmupRuns)
	if config.RateLimit > 0 {
		fmt.Printf("Rate Limit:  %.0f req/sec\n", config.RateLimit)
	}
	if config.Database != "" {
		fmt.Printf("Database:    %s\n", config.Database)
	}
	fmt.Printf("Timeout:     %v\n", viper.GetDuration("timeout"))
	fmt.Println()

	// Setup context with signal handling
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Println("\n\nBenchmark interrupted, generating partial results...")
		cancel()
	}()

	s := newSession()
	var authErr error
	withSpinner("Authenticating...", func() {
		_, authErr = s.Authenticate(ctx)
	})
	if authErr != nil {
		fmt.Fprintf(os.Stderr, "Error authenticating: %v\n", authErr)
		os.Exit(1)
	}

	bench := benchmarker.NewBenchmarker(config, s)

	var sp *spinner.Spinner
	var phaseStartTime time.Time

	// Create event handler for live output
	onEvent := func(event benchmarker.BenchmarkEvent) {
		prefix := fmt.Sprintf("[%d/%d]", event.Index+1, event.Total)

		switch event.Type {
		case benchmarker.EventWarmupStarting:
			phaseStartTime = time.Now()
			if isTTY {
				sp = spinner.New(spinner.CharSets[14], 100*time.Millisecond)
				sp.Suffix = fmt.Sprintf(" %s %s - Warming up...", prefix, event.Operation)
				sp.Start()
			} else {
				fmt.Printf("%s %s - Warming up (%d iterations)...\n", prefix, event.Operation, event.MaxIter)
			}

		case benchmarker.EventWarmupProgress:
			if isTTY && sp != nil {
				sp.Suffix = fmt.Sprintf(" %s %s - Warmup %d/%d", prefix, event.Operation, event.Progress, event.MaxIter)
			}

		case benchmarker.EventWarmupCompleted:
			if isTTY && sp != nil {
				sp.Stop()
			}
			elapsed := time.Since(phaseStartTime)
			fmt.Printf("%s %s Warmup completed in %v\n", prefix, yellow("●"), elapsed.Round(time.Millisecond))

		case benchmarker.EventBenchmarkStarting:
			phaseStartTime = time.Now()
			if isTTY {
				sp = spinner.New(spinner.CharSets[14], 100*time.Millisecond)
				sp.Suffix = fmt.Sprintf(" %s %s - Benchmarking 0/%d...", prefix, event.Operation, event.MaxIter)
				sp.Start()
			} else {
				fmt.Printf("%s %s - Running benchmark (%d iterations)...\n", prefix, event.Operation, event.MaxIter)
			}

		case benchmarker.EventBenchmarkProgress:
			if isTTY && sp != nil {
				avgMs := float64(event.RunningAvg.Microseconds()) / 1000
				sp.Suffix = fmt.Sprintf(" %s %s - %d/%d (avg: %.1fms, %.1f req/s, %d errors)",
					prefix, event.Operation, event.Progress, event.MaxIter, avgMs, event.RunningReqSec, event.ErrorCount)
			}

		case benchmarker.EventBenchmarkCompleted:
			if isTTY && sp != nil {
				sp.Stop()
			}
			printBenchmarkResult(prefix, *event.Result, time.Since(phaseStartTime))
		}
	}

	// Run benchmarks
	summary := bench.BenchmarkOperations(ctx, operations, onEvent)
	if isTTY && sp != nil {
		sp.Stop()
	}

	// Handle output format
	if format != "" {
		if err := output.ExportBenchmarkSummary(summary, format, benchOutputFile); err != nil {
			fmt.Fprintf(os.Stderr, "Error exporting results: %v\n", err)
			os.Exit(1)
		}

		// If writing to file, still show summary
		if benchOutputFile != "" {
			fmt.Printf("\nResults exported to: %s\n", benchOutputFile)
			displayBenchmarkSummary(summary)
		}
		return
	}

	displayBenchmarkSummary(summary)
}

func printBenchmarkResult(prefix string, result models.BenchmarkResult, elapsed time.Duration) {
	// Status indicator based on error rate
	var status string
	if result.ErrorRate == 0 {
		status = green("✓")
	} else if result.ErrorRate < 5 {
		status = yellow("●")
	} else {
		status = red("✗")
	}

	fmt.Printf("%s %s %s %s %s\n", prefix, status, result.Operation, result.Method, result.Path)

	avgMs := float64(result.AvgTime.Microseconds()) / 1000
	p99Ms := float64(result.P99Time.Microseconds()) / 1000
	fmt.Printf("    %s avg: %.2fms | p99: %.2fms | %.1f req/s | errors: %d (%.1f%%)\n",
		cyan("→"), avgMs, p99Ms, result.RequestsPerSec, result.ErrorCount, result.ErrorRate)

	if !viper.GetBool("verbose") {
		return
	}

	minMs := float64(result.MinTime.Microseconds()) / 1000
	maxMs := float64(result.MaxTime.Microseconds()) / 1000
	p50Ms := float64(result.P50Time.Microseconds()) / 1000
	p90Ms := float64(result.P90Time.Microseconds()) / 1000

	fmt.Printf("    Latency:  min=%.2fms | p50=%.2fms | p90=%.2fms | max=%.2fms\n", minMs, p50Ms, p90Ms, maxMs)
	fmt.Printf("    Duration: %v | Success: %d | Errors: %d\n",
		elapsed.Round(time.Millisecond), result.SuccessCount, result.ErrorCount)

	if len(result.StatusCodes) > 0 {
		codes := make([]string, 0, len(result.StatusCodes))
		for code, count := range result.StatusCodes {
			codes = append(codes, fmt.Sprintf("%d:%d", code, count))
		}
		sort.Strings(codes)
		fmt.Printf("    Status codes: %s\n", strings.Join(codes, ", "))
	}

	if len(result.SampleErrors) > 0 {
		fmt.Printf("    Sample errors:\n")
		for _, e := range result.SampleErrors {
			fmt.Printf("      - %s\n", red(e))
		}
	}
}

func displayBenchmarkSummary(summary models.BenchmarkSummary) {
	fmt.Println()
	fmt.Printf("%s\n", white("=== Benchmark Summary ==="))
	fmt.Printf("Total Operations:   %d\n", summary.TotalOperations)
	fmt.Printf("Total Requests:     %d\n", summary.TotalRequests)
	fmt.Printf("Total Duration:     %v\n", summary.TotalDuration.Round(time.Millisecond))
	fmt.Printf("Overall Throughput: %s\n", cyan(fmt.Sprintf("%.1f req/sec", summary.OverallReqsPerSec)))
	fmt.Println()

	fmt.Printf("%s\n", white("Latency Overview:"))
	fmt.Printf("  Min: %.2fms\n", float64(summary.OverallMinTime.Microseconds())/1000)
	fmt.Printf("  Avg: %.2fms\n", float64(summary.OverallAvgTime.Microseconds())/1000)
	fmt.Printf("  Max: %.2fms\n", float64(summary.OverallMaxTime.Microseconds())/1000)
	fmt.Println()

	if summary.TotalErrors > 0 {
		fmt.Printf("%s\n", white("Error Summary:"))
		fmt.Printf("  Total Errors: %s\n", red(summary.TotalErrors))
		fmt.Printf("  Error Rate:   %s\n", red(fmt.Sprintf("%.2f%%", summary.OverallErrorRate)))
		fmt.Println()
	} else {
		fmt.Printf("Errors: %s\n", green("0"))
		fmt.Println()
	}

	fmt.Printf("%s\n", white("Per-Operation Results:"))
	fmt.Printf("%-8s %-8s %-28s %10s %10s %10s %8s\n",
		"OP", "METHOD", "PATH", "AVG(ms)", "P99(ms)", "REQ/S", "ERR%")
	fmt.Println(strings.Repeat("-", 88))

	for _, r := range summary.Results {
		path := r.Path
		if len(path) > 26 {
			path = path[:23] + "..."
		}
		fmt.Printf("%-8s %-8s %-28s %10.2f %10.2f %10.1f %8.1f\n",
			r.Operation, r.Method, path,
			float64(r.AvgTime.Microseconds())/1000,
			float64(r.P99Time.Microseconds())/1000,
			r.RequestsPerSec,
			r.ErrorRate)
	}
}

func joinOperations(ops []models.Operation) string {
	names := make([]string, len(ops))
	for i, op := range ops {
		names[i] = op.String()
	}
	return strings.Join(names, ", ")
}

func init() {
	rootCmd.AddCommand(benchmarkCmd)

	defaults := benchmarker.DefaultConfig()

	benchmarkCmd.Flags().IntVarP(&benchIterations, "iterations", "n", defaults.Iterations, "Number of requests per operation")
	benchmarkCmd.Flags().IntVarP(&benchWarmup, "warmup", "w", defaults.WarmupRuns, "Number of warmup iterations (discarded from stats)")
	benchmarkCmd.Flags().Float64VarP(&benchRateLimit, "rate", "r", 0, "Max requests per second (0 = unlimited)")
	benchmarkCmd.Flags().StringVarP(&benchDatabase, "db", "d", "", "Database to write benchmark keys into")
	benchmarkCmd.Flags().StringVar(&benchKeyPrefix, "key-prefix", defaults.KeyPrefix, "Prefix of generated keys")

	// Output flags
	benchmarkCmd.Flags().StringVarP(&benchOutputFormat, "output", "o", "", "Output format: json, yaml, csv")
	benchmarkCmd.Flags().StringVar(&benchOutputFile, "output-file", "", "Write output to file (default: stdout)")
}
