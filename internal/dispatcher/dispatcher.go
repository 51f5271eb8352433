package dispatcher

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/moamenhredeen/kvctl/internal/logging"
	"github.com/moamenhredeen/kvctl/internal/models"
	"github.com/moamenhredeen/kvctl/internal/request"
)

// Dispatcher sends descriptors and turns the single response into an
// OperationResult. It holds no session state.
type Dispatcher struct {
	client  *http.Client
	baseURL string
	logger  *slog.Logger
}

// NewDispatcher creates a dispatcher targeting baseURL
func NewDispatcher(client *http.Client, baseURL string, logger *slog.Logger) *Dispatcher {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &Dispatcher{client: client, baseURL: baseURL, logger: logger}
}

// BaseURL returns the service root the dispatcher targets
func (d *Dispatcher) BaseURL() string {
	return d.baseURL
}

// Send issues exactly one request for desc and waits for its response.
// Failures are reported through the result, never returned or panicked.
func (d *Dispatcher) Send(ctx context.Context, desc *request.Descriptor) models.OperationResult {
	result := models.OperationResult{}
	if desc == nil {
		result.Err = &models.ValidationError{Field: "descriptor", Message: "is nil"}
		return result
	}
	result.Operation = desc.Operation
	result.Method = desc.Method
	result.Path = desc.Path

	req, err := desc.NewHTTPRequest(ctx, d.baseURL)
	if err != nil {
		result.Err = &models.TransportError{Method: desc.Method, URL: d.baseURL + desc.Path, Err: err}
		d.logger.ErrorContext(ctx, "build request failed", "operation", desc.Operation, "error", err)
		return result
	}

	startTime := time.Now()
	resp, err := d.client.Do(req)
	result.Duration = time.Since(startTime)

	if err != nil {
		result.Err = &models.TransportError{Method: req.Method, URL: req.URL.String(), Err: err}
		d.logger.ErrorContext(ctx, "request failed", "operation", desc.Operation, "error", err)
		return result
	}
	defer resp.Body.Close()

	// a response cut short counts as no response at all
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		result.Err = &models.TransportError{Method: req.Method, URL: req.URL.String(), Err: fmt.Errorf("failed to read response body: %w", err)}
		d.logger.ErrorContext(ctx, "reading response failed", "operation", desc.Operation, "status", resp.StatusCode, "error", err)
		return result
	}

	result.StatusCode = resp.StatusCode
	result.Body = models.ParseBody(data)
	result.DisplayText = result.Body.Display()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		result.Err = &models.ServiceError{StatusCode: resp.StatusCode, Status: resp.Status, Body: result.DisplayText}
		d.logger.WarnContext(ctx, "service rejected request",
			"operation", desc.Operation, "status", resp.StatusCode, "body", result.Body.String())
		return result
	}

	result.Succeeded = true
	d.logger.DebugContext(ctx, "request completed",
		"operation", desc.Operation, "status", resp.StatusCode, "duration", result.Duration)
	return result
}
