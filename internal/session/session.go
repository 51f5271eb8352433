package session

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/moamenhredeen/kvctl/internal/auth"
	"github.com/moamenhredeen/kvctl/internal/dispatcher"
	"github.com/moamenhredeen/kvctl/internal/evaluation"
	"github.com/moamenhredeen/kvctl/internal/logging"
	"github.com/moamenhredeen/kvctl/internal/models"
	"github.com/moamenhredeen/kvctl/internal/request"
)

// Config holds the endpoints and credentials of a session
type Config struct {
	AuthURL     string
	KVURL       string
	EvalURL     string
	Credentials models.Credentials
	TokenField  string
	Timeout     time.Duration
}

// DefaultConfig returns the configuration of a local Stargate deployment
func DefaultConfig() Config {
	return Config{
		AuthURL:     "http://localhost:8081",
		KVURL:       "http://localhost:8080",
		EvalURL:     "http://localhost:8080",
		Credentials: models.Credentials{Key: "cassandra", Secret: "cassandra"},
		TokenField:  auth.DefaultTokenField,
		Timeout:     30 * time.Second,
	}
}

// ClientSession is one interactive session: it owns the token and the
// currently displayed result. Requests are serialised so at most one is in
// flight.
type ClientSession struct {
	config  Config
	logger  *slog.Logger
	client  *http.Client
	tokens  *auth.TokenStore
	builder *request.RequestBuilder
	kv      *dispatcher.Dispatcher
	runner  *evaluation.Runner

	flight sync.Mutex

	mu      sync.RWMutex
	display string
	last    *models.OperationResult
}

// Option configures a ClientSession
type Option func(*ClientSession)

// WithHTTPClient replaces the HTTP client. Its transport is still wrapped
// for logging.
func WithHTTPClient(client *http.Client) Option {
	return func(s *ClientSession) {
		if client != nil {
			s.client = client
		}
	}
}

// WithLogger sets the session logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *ClientSession) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New creates an unauthenticated session
func New(cfg Config, opts ...Option) *ClientSession {
	defaults := DefaultConfig()
	if cfg.AuthURL == "" {
		cfg.AuthURL = defaults.AuthURL
	}
	if cfg.KVURL == "" {
		cfg.KVURL = defaults.KVURL
	}
	if cfg.EvalURL == "" {
		cfg.EvalURL = cfg.KVURL
	}
	if cfg.TokenField == "" {
		cfg.TokenField = defaults.TokenField
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaults.Timeout
	}

	s := &ClientSession{
		config:  cfg,
		logger:  logging.Discard(),
		builder: request.NewRequestBuilder(),
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.client == nil {
		s.client = &http.Client{Timeout: cfg.Timeout}
	}
	// copy so the caller's client is not mutated
	client := *s.client
	client.Transport = logging.NewTransport(client.Transport, s.logger)
	s.client = &client

	s.tokens = auth.NewTokenStore(s.client, cfg.AuthURL,
		auth.WithTokenField(cfg.TokenField), auth.WithLogger(s.logger))
	s.kv = dispatcher.NewDispatcher(s.client, cfg.KVURL, s.logger)
	s.runner = evaluation.NewRunner(dispatcher.NewDispatcher(s.client, cfg.EvalURL, s.logger))
	return s
}

// Config returns the effective session configuration
func (s *ClientSession) Config() Config {
	return s.config
}

// Authenticate acquires a token. The returned text is the raw payload,
// shown as proof of authentication. A failed attempt keeps the token
// already held.
func (s *ClientSession) Authenticate(ctx context.Context) (string, error) {
	s.flight.Lock()
	defer s.flight.Unlock()
	return s.acquire(ctx)
}

// Reauthenticate discards the held token before acquiring a new one
func (s *ClientSession) Reauthenticate(ctx context.Context) (string, error) {
	s.flight.Lock()
	defer s.flight.Unlock()
	s.tokens.Clear()
	return s.acquire(ctx)
}

func (s *ClientSession) acquire(ctx context.Context) (string, error) {
	token, err := s.tokens.Acquire(ctx, s.config.Credentials)
	if err != nil {
		return "", err
	}
	if !token.Valid() {
		s.logger.WarnContext(ctx, "authenticated without a usable token", "field", s.config.TokenField)
	}
	return token.Display(), nil
}

// Logout discards the held token
func (s *ClientSession) Logout() {
	s.tokens.Clear()
}

// Token returns the held token, if any
func (s *ClientSession) Token() (models.AuthToken, bool) {
	return s.tokens.Current()
}

// Perform builds and dispatches one operation. Validation and missing
// token errors are returned before anything is sent; everything after
// dispatch is reported through the result.
func (s *ClientSession) Perform(ctx context.Context, req models.OperationRequest) (models.OperationResult, error) {
	s.flight.Lock()
	defer s.flight.Unlock()

	token, ok := s.tokens.Current()
	if !ok {
		if err := s.builderCheck(req); err != nil {
			return models.OperationResult{}, err
		}
		return models.OperationResult{}, &models.AuthError{Reason: "not authenticated"}
	}

	desc, err := s.builder.Build(req, token.Value)
	if err != nil {
		return models.OperationResult{}, err
	}

	result := s.kv.Send(ctx, desc)
	s.record(result)
	return result, nil
}

// Evaluate asks the evaluation endpoint to repeat op
func (s *ClientSession) Evaluate(ctx context.Context, op models.EvaluationOperation, repetitions int) (models.OperationResult, error) {
	s.flight.Lock()
	defer s.flight.Unlock()

	result, err := s.runner.Run(ctx, op, repetitions)
	if err != nil {
		return result, err
	}
	s.record(result)
	return result, nil
}

// Display returns the text currently shown to the user
func (s *ClientSession) Display() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.display
}

// Last returns the last result that updated the display
func (s *ClientSession) Last() (models.OperationResult, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.last == nil {
		return models.OperationResult{}, false
	}
	return *s.last, true
}

// record updates the display only when the server answered. A transport
// failure keeps the previous text on screen.
func (s *ClientSession) record(result models.OperationResult) {
	if !result.Responded() || errors.Is(result.Err, models.ErrTransport) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.display = result.DisplayText
	s.last = &result
}

// builderCheck runs field validation without a token so an unauthenticated
// user still learns about missing fields first
func (s *ClientSession) builderCheck(req models.OperationRequest) error {
	_, err := s.builder.Build(req, "-")
	return err
}
