package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/jmespath/go-jmespath"

	"github.com/moamenhredeen/kvctl/internal/logging"
	"github.com/moamenhredeen/kvctl/internal/models"
)

const (
	// TokenPath is the auth service endpoint issuing tokens
	TokenPath = "/v1/auth/token/generate"
	// DefaultTokenField is the JMESPath expression locating the token
	DefaultTokenField = "authToken"
)

// TokenStore holds the token of the current session.
// Acquire and Clear are the only mutators.
type TokenStore struct {
	client     *http.Client
	authURL    string
	tokenField string
	logger     *slog.Logger

	mu    sync.RWMutex
	token *models.AuthToken
}

// Option configures a TokenStore
type Option func(*TokenStore)

// WithTokenField overrides the JMESPath expression used to extract the token
func WithTokenField(expr string) Option {
	return func(s *TokenStore) {
		if expr != "" {
			s.tokenField = expr
		}
	}
}

// WithLogger sets the logger used to report failed acquisitions
func WithLogger(logger *slog.Logger) Option {
	return func(s *TokenStore) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewTokenStore creates an empty store that authenticates against authURL
func NewTokenStore(client *http.Client, authURL string, opts ...Option) *TokenStore {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	s := &TokenStore{
		client:     client,
		authURL:    strings.TrimRight(authURL, "/"),
		tokenField: DefaultTokenField,
		logger:     logging.Discard(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type loginBody struct {
	Key    string `json:"key"`
	Secret string `json:"secret"`
}

// Acquire exchanges creds for a token and stores it. On failure the
// previously stored token is left untouched.
func (s *TokenStore) Acquire(ctx context.Context, creds models.Credentials) (models.AuthToken, error) {
	data, err := json.Marshal(loginBody{Key: creds.Key, Secret: creds.Secret})
	if err != nil {
		return models.AuthToken{}, &models.AuthError{Err: fmt.Errorf("failed to encode credentials: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.authURL+TokenPath, bytes.NewReader(data))
	if err != nil {
		return models.AuthToken{}, &models.AuthError{Err: fmt.Errorf("failed to create request: %w", err)}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		s.logger.WarnContext(ctx, "authentication failed", "url", req.URL.String(), "error", err)
		return models.AuthToken{}, &models.AuthError{Err: &models.TransportError{Method: req.Method, URL: req.URL.String(), Err: err}}
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		s.logger.WarnContext(ctx, "authentication failed", "status", resp.StatusCode, "error", err)
		return models.AuthToken{}, &models.AuthError{StatusCode: resp.StatusCode, Err: fmt.Errorf("failed to read response body: %w", err)}
	}

	raw := models.ParseBody(payload)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		s.logger.WarnContext(ctx, "authentication rejected", "status", resp.StatusCode, "body", raw.String())
		return models.AuthToken{}, &models.AuthError{StatusCode: resp.StatusCode, Reason: raw.String()}
	}

	token := models.AuthToken{Raw: raw}
	value, err := ExtractToken(raw, s.tokenField)
	if err != nil {
		// the payload is still kept as proof of the exchange
		s.logger.WarnContext(ctx, "authentication payload has no token", "field", s.tokenField, "error", err)
	}
	token.Value = value

	s.mu.Lock()
	s.token = &token
	s.mu.Unlock()

	return token, nil
}

// Current returns the stored token without side effects
func (s *TokenStore) Current() (models.AuthToken, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.token == nil {
		return models.AuthToken{}, false
	}
	return *s.token, true
}

// Clear discards the stored token
func (s *TokenStore) Clear() {
	s.mu.Lock()
	s.token = nil
	s.mu.Unlock()
}

// ExtractToken looks up the token in a structured payload with a JMESPath
// expression. Unstructured payloads carry no token.
func ExtractToken(raw models.Body, expr string) (string, error) {
	if raw.Kind != models.BodyStructured {
		return "", fmt.Errorf("payload is not a JSON document")
	}

	var data any
	if err := json.Unmarshal(raw.JSON, &data); err != nil {
		return "", fmt.Errorf("failed to decode payload: %w", err)
	}

	result, err := jmespath.Search(expr, data)
	if err != nil {
		return "", fmt.Errorf("invalid token expression %s: %w", expr, err)
	}

	switch v := result.(type) {
	case string:
		if v == "" {
			return "", fmt.Errorf("token field %s is empty", expr)
		}
		return v, nil
	case nil:
		return "", fmt.Errorf("token field %s not found", expr)
	default:
		return "", fmt.Errorf("token field %s is not a string", expr)
	}
}
