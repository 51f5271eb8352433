package output

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/moamenhredeen/kvctl/internal/models"
)

// Format represents the output format type
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatCSV  Format = "csv"
)

// ExportResult writes a single operation result to filePath, or stdout when
// filePath is empty
func ExportResult(result models.OperationResult, format Format, filePath string) error {
	w, closer, err := getWriter(filePath)
	if err != nil {
		return err
	}
	if closer != nil {
		defer closer.Close()
	}
	return WriteResult(w, result, format)
}

// WriteResult writes a single operation result in the given format
func WriteResult(w io.Writer, result models.OperationResult, format Format) error {
	switch format {
	case FormatJSON:
		return writeJSON(w, resultRecord(result))
	case FormatYAML:
		return writeYAML(w, resultRecord(result))
	case FormatCSV:
		return writeResultCSV(w, result)
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
}

// ExportBenchmarkSummary exports benchmark results to the specified format
func ExportBenchmarkSummary(summary models.BenchmarkSummary, format Format, filePath string) error {
	w, closer, err := getWriter(filePath)
	if err != nil {
		return err
	}
	if closer != nil {
		defer closer.Close()
	}
	return WriteBenchmarkSummary(w, summary, format)
}

// WriteBenchmarkSummary writes benchmark results in the given format
func WriteBenchmarkSummary(w io.Writer, summary models.BenchmarkSummary, format Format) error {
	switch format {
	case FormatJSON:
		return writeJSON(w, summary)
	case FormatYAML:
		return writeYAML(w, summary)
	case FormatCSV:
		return writeBenchmarkCSV(w, summary)
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
}

// record is the exported shape of an operation result; the error is
// flattened to its message
type record struct {
	models.OperationResult `yaml:",inline"`
	Error                  string `json:"error,omitempty" yaml:"error,omitempty"`
}

func resultRecord(result models.OperationResult) record {
	return record{OperationResult: result, Error: result.ErrorMessage()}
}

// getWriter returns an io.Writer for output (stdout or file)
func getWriter(filePath string) (io.Writer, io.Closer, error) {
	if filePath == "" {
		return os.Stdout, nil, nil
	}

	f, err := os.Create(filePath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return f, f, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}

func writeResultCSV(w io.Writer, r models.OperationResult) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	header := []string{
		"operation", "method", "path", "status_code", "succeeded",
		"duration_ms", "body", "error",
	}
	if err := cw.Write(header); err != nil {
		return err
	}

	row := []string{
		r.Operation,
		r.Method,
		r.Path,
		strconv.Itoa(r.StatusCode),
		strconv.FormatBool(r.Succeeded),
		millis(r.Duration.Microseconds()),
		r.Body.String(),
		r.ErrorMessage(),
	}
	if err := cw.Write(row); err != nil {
		return err
	}

	cw.Flush()
	return cw.Error()
}

func writeBenchmarkCSV(w io.Writer, summary models.BenchmarkSummary) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	header := []string{
		"operation", "method", "path", "iterations", "warmup_runs",
		"min_ms", "max_ms", "avg_ms", "p50_ms", "p90_ms", "p99_ms",
		"requests_per_sec", "success_count", "error_count", "error_rate",
		"status_codes",
	}
	if err := cw.Write(header); err != nil {
		return err
	}

	for _, r := range summary.Results {
		row := []string{
			r.Operation,
			r.Method,
			r.Path,
			strconv.Itoa(r.Iterations),
			strconv.Itoa(r.WarmupRuns),
			millis(r.MinTime.Microseconds()),
			millis(r.MaxTime.Microseconds()),
			millis(r.AvgTime.Microseconds()),
			millis(r.P50Time.Microseconds()),
			millis(r.P90Time.Microseconds()),
			millis(r.P99Time.Microseconds()),
			fmt.Sprintf("%.2f", r.RequestsPerSec),
			strconv.Itoa(r.SuccessCount),
			strconv.Itoa(r.ErrorCount),
			fmt.Sprintf("%.2f", r.ErrorRate),
			statusCodes(r.StatusCodes),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

func millis(us int64) string {
	return fmt.Sprintf("%.2f", float64(us)/1000)
}

// statusCodes renders a histogram as "200:10;404:2" in ascending code order
func statusCodes(codes map[int]int) string {
	keys := make([]int, 0, len(codes))
	for code := range codes {
		keys = append(keys, code)
	}
	sort.Ints(keys)

	parts := make([]string, 0, len(keys))
	for _, code := range keys {
		parts = append(parts, fmt.Sprintf("%d:%d", code, codes[code]))
	}
	return strings.Join(parts, ";")
}

// ParseFormat parses a string into a Format, returning error if invalid
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	case "csv":
		return FormatCSV, nil
	default:
		return "", fmt.Errorf("invalid format '%s': must be 'json', 'yaml' or 'csv'", s)
	}
}
