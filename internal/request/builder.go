package request

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/moamenhredeen/kvctl/internal/models"
)

const (
	// BasePath is the root of the key-value resource
	BasePath = "/kvstore/v1"
	// EvaluationPath is the benchmarking endpoint
	EvaluationPath = "/api/evaluation"
	// TokenHeader carries the raw token on key-value requests
	TokenHeader = "X-Cassandra-Token"

	userAgent = "kvctl/1.0"
)

// Descriptor is a fully resolved request, ready to be dispatched
type Descriptor struct {
	Operation string
	Method    string
	Path      string
	Header    http.Header
	Body      []byte
}

// NewHTTPRequest materialises the descriptor against baseURL
func (d *Descriptor) NewHTTPRequest(ctx context.Context, baseURL string) (*http.Request, error) {
	fullURL := strings.TrimRight(baseURL, "/") + d.Path

	var body io.Reader
	if d.Body != nil {
		body = bytes.NewReader(d.Body)
	}

	req, err := http.NewRequestWithContext(ctx, d.Method, fullURL, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	for name, values := range d.Header {
		for _, v := range values {
			req.Header.Add(name, v)
		}
	}
	return req, nil
}

// kvBody is the wire body of key-value requests. Empty fields are omitted
// so the service never sees an empty key or value.
type kvBody struct {
	Key   string `json:"key,omitempty"`
	Value string `json:"value,omitempty"`
	DB    string `json:"db,omitempty"`
	Name  string `json:"name,omitempty"`
}

type evaluationBody struct {
	Operation       string `json:"operation"`
	EvaluationValue int    `json:"evaluationValue"`
}

// Route is the method and path template used by an operation
type Route struct {
	Operation string
	Method    string
	Path      string
}

// RequestBuilder maps logical operations onto wire descriptors
type RequestBuilder struct{}

// NewRequestBuilder creates a new request builder
func NewRequestBuilder() *RequestBuilder {
	return &RequestBuilder{}
}

// Build validates the fields required by the operation and returns its
// descriptor. Nothing is sent; an empty token yields an AuthError.
func (rb *RequestBuilder) Build(req models.OperationRequest, token string) (*Descriptor, error) {
	if err := validate(req); err != nil {
		return nil, err
	}
	if token == "" {
		return nil, &models.AuthError{Reason: "no token, authenticate first"}
	}

	desc := &Descriptor{
		Operation: req.Operation.String(),
		Header:    defaultHeaders(),
	}
	desc.Header.Set(TokenHeader, token)

	var body *kvBody
	switch req.Operation {
	case models.OpPut:
		desc.Method = http.MethodPut
		desc.Path = dbPath(req.Database)
		body = &kvBody{Key: req.Key, Value: req.Value}
	case models.OpGet:
		desc.Method = http.MethodGet
		desc.Path = dbPath(req.Database)
		body = &kvBody{Key: req.Key}
	case models.OpUpdate:
		desc.Method = http.MethodPatch
		desc.Path = dbPath(req.Database)
		body = &kvBody{Key: req.Key, Value: req.Value}
	case models.OpDeleteKey:
		desc.Method = http.MethodDelete
		desc.Path = dbPath(req.Database)
		if req.Database != "" {
			desc.Path = joinPath(desc.Path, "key")
		}
		body = &kvBody{Key: req.Key}
	case models.OpDeleteDB:
		desc.Method = http.MethodDelete
		desc.Path = dbPath(req.Database)
		body = &kvBody{DB: req.Database}
	case models.OpCreateDB:
		desc.Method = http.MethodPost
		desc.Path = BasePath + "/databases"
		body = &kvBody{Name: req.Database}
	case models.OpListDBs:
		desc.Method = http.MethodGet
		desc.Path = BasePath + "/databases"
	case models.OpCacheOn:
		desc.Method = http.MethodPost
		desc.Path = BasePath + "/cache/on"
	case models.OpCacheOff:
		desc.Method = http.MethodPost
		desc.Path = BasePath + "/cache/off"
	default:
		return nil, &models.ValidationError{Field: "operation", Message: fmt.Sprintf("unsupported operation %d", req.Operation)}
	}

	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
		desc.Body = data
	}

	return desc, nil
}

// BuildEvaluation returns the descriptor of an evaluation run.
// Repetition happens on the server.
func (rb *RequestBuilder) BuildEvaluation(op models.EvaluationOperation, repetitions int) (*Descriptor, error) {
	if op != models.EvalPut && op != models.EvalGet {
		return nil, &models.ValidationError{Field: "operation", Message: "unsupported evaluation operation"}
	}
	if repetitions < 0 {
		return nil, &models.ValidationError{Field: "repetitions", Message: "must be a non-negative integer"}
	}

	data, err := json.Marshal(evaluationBody{Operation: op.String(), EvaluationValue: repetitions})
	if err != nil {
		return nil, fmt.Errorf("failed to encode evaluation body: %w", err)
	}

	return &Descriptor{
		Operation: "evaluate:" + op.String(),
		Method:    http.MethodPost,
		Path:      EvaluationPath,
		Header:    defaultHeaders(),
		Body:      data,
	}, nil
}

// Routes lists the path template of every operation, with {db} standing in
// for the database segment
func Routes() []Route {
	routes := make([]Route, 0, len(models.Operations()))
	for _, op := range models.Operations() {
		fields := models.OperationRequest{Operation: op, Key: "k", Value: "v", Database: "{db}"}
		desc, err := NewRequestBuilder().Build(fields, "route")
		if err != nil {
			continue
		}
		path, _ := url.PathUnescape(desc.Path)
		routes = append(routes, Route{Operation: op.String(), Method: desc.Method, Path: path})
	}
	return routes
}

func validate(req models.OperationRequest) error {
	if reservedSegments[req.Database] {
		return &models.ValidationError{Field: "database", Message: "'" + req.Database + "' is a reserved name"}
	}

	switch req.Operation {
	case models.OpPut, models.OpUpdate:
		if req.Key == "" {
			return &models.ValidationError{Field: "key", Message: "is required for " + req.Operation.String()}
		}
		if req.Value == "" {
			return &models.ValidationError{Field: "value", Message: "is required for " + req.Operation.String()}
		}
	case models.OpGet, models.OpDeleteKey:
		if req.Key == "" {
			return &models.ValidationError{Field: "key", Message: "is required for " + req.Operation.String()}
		}
	case models.OpDeleteDB, models.OpCreateDB:
		if req.Database == "" {
			return &models.ValidationError{Field: "database", Message: "is required for " + req.Operation.String()}
		}
	case models.OpListDBs, models.OpCacheOn, models.OpCacheOff:
	default:
		return &models.ValidationError{Field: "operation", Message: "no operation selected"}
	}
	return nil
}

// reservedSegments name the fixed collections under BasePath; a database
// with one of these names would address them instead
var reservedSegments = map[string]bool{
	"databases": true,
	"cache":     true,
}

func defaultHeaders() http.Header {
	h := http.Header{}
	h.Set("Accept", "application/json")
	h.Set("Content-Type", "application/json")
	h.Set("User-Agent", userAgent)
	return h
}

// dbPath returns the resource path, with the database segment only when
// one was supplied
func dbPath(database string) string {
	if database == "" {
		return BasePath + "/"
	}
	return BasePath + "/" + url.PathEscape(database)
}

func joinPath(base, segment string) string {
	return strings.TrimRight(base, "/") + "/" + segment
}
