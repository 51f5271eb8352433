package logging

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const maxLoggedBody = 10000

var sensitiveHeaders = []string{
	"authorization",
	"x-cassandra-token",
	"x-api-key",
	"cookie",
	"set-cookie",
}

// Transport wraps an http.RoundTripper and logs every request and response
// at debug level. Token headers are redacted.
type Transport struct {
	Transport http.RoundTripper
	Logger    *slog.Logger
}

// NewTransport creates a new logging transport wrapper
func NewTransport(transport http.RoundTripper, logger *slog.Logger) *Transport {
	if transport == nil {
		transport = http.DefaultTransport
	}
	if logger == nil {
		logger = Discard()
	}
	return &Transport{Transport: transport, Logger: logger}
}

// RoundTrip executes a single HTTP transaction with logging
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	debug := t.Logger.Enabled(ctx, slog.LevelDebug)
	if debug {
		t.logRequest(ctx, req)
	}

	start := time.Now()
	resp, err := t.Transport.RoundTrip(req)
	duration := time.Since(start)

	if err != nil {
		t.Logger.WarnContext(ctx, "http request failed",
			"method", req.Method, "url", req.URL.String(), "duration", duration, "error", err)
		return nil, err
	}

	if debug {
		t.logResponse(ctx, req, resp, duration)
	}
	return resp, nil
}

func (t *Transport) logRequest(ctx context.Context, req *http.Request) {
	attrs := []any{
		"method", req.Method,
		"url", req.URL.String(),
		"headers", redact(req.Header),
	}

	if req.Body != nil && req.ContentLength > 0 && req.ContentLength < maxLoggedBody {
		bodyBytes, err := io.ReadAll(req.Body)
		if err == nil {
			// restore for the actual request
			req.Body = io.NopCloser(bytes.NewReader(bodyBytes))
			attrs = append(attrs, "body", string(bodyBytes))
		}
	}

	t.Logger.DebugContext(ctx, "http request", attrs...)
}

func (t *Transport) logResponse(ctx context.Context, req *http.Request, resp *http.Response, duration time.Duration) {
	attrs := []any{
		"method", req.Method,
		"path", req.URL.Path,
		"status", resp.StatusCode,
		"duration", duration,
	}

	if resp.Body != nil && resp.ContentLength != 0 {
		bodyBytes, err := io.ReadAll(resp.Body)
		if err == nil {
			resp.Body = io.NopCloser(bytes.NewReader(bodyBytes))
			if len(bodyBytes) > 0 && len(bodyBytes) < maxLoggedBody {
				attrs = append(attrs, "body", string(bodyBytes))
			} else if len(bodyBytes) > 0 {
				attrs = append(attrs, "body_bytes", len(bodyBytes))
			}
		}
	}

	t.Logger.DebugContext(ctx, "http response", attrs...)
}

func redact(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for name, values := range h {
		if isSensitiveHeader(name) {
			out[name] = "[REDACTED]"
			continue
		}
		out[name] = strings.Join(values, ", ")
	}
	return out
}

func isSensitiveHeader(name string) bool {
	lowerName := strings.ToLower(name)
	for _, sensitive := range sensitiveHeaders {
		if lowerName == sensitive {
			return true
		}
	}
	return false
}
