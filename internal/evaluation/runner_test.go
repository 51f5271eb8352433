package evaluation

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/moamenhredeen/kvctl/internal/dispatcher"
	"github.com/moamenhredeen/kvctl/internal/models"
)

type countingTransport struct {
	calls int
}

func (c *countingTransport) RoundTrip(*http.Request) (*http.Response, error) {
	c.calls++
	return nil, errors.New("unexpected network call")
}

func TestRunRejectsNegativeRepetitions(t *testing.T) {
	transport := &countingTransport{}
	runner := NewRunner(dispatcher.NewDispatcher(&http.Client{Transport: transport}, "http://eval.invalid", nil))

	_, err := runner.Run(context.Background(), models.EvalGet, -1)
	if !errors.Is(err, models.ErrValidation) {
		t.Fatalf("Expected validation error, got %v", err)
	}
	if transport.calls != 0 {
		t.Errorf("Expected no network call, got %d", transport.calls)
	}
}

func TestRunSendsSingleRequest(t *testing.T) {
	requests := 0
	var got map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		if r.Method != http.MethodPost || r.URL.Path != "/api/evaluation" {
			t.Errorf("Unexpected request %s %s", r.Method, r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"operation":"put","count":1000,"avgLatencyMs":1.8}`))
	}))
	defer server.Close()

	runner := NewRunner(dispatcher.NewDispatcher(server.Client(), server.URL, nil))
	result, err := runner.Run(context.Background(), models.EvalPut, 1000)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if requests != 1 {
		t.Errorf("Expected exactly one request, got %d", requests)
	}
	if got["operation"] != "put" || got["evaluationValue"] != float64(1000) {
		t.Errorf("Unexpected body %v", got)
	}
	if !result.Succeeded {
		t.Errorf("Expected success, got %v", result.Err)
	}
	if result.Body.Kind != models.BodyStructured {
		t.Errorf("Expected structured summary, got %s", result.Body.Kind)
	}
}

func TestRunZeroRepetitions(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("nothing to do"))
	}))
	defer server.Close()

	runner := NewRunner(dispatcher.NewDispatcher(server.Client(), server.URL, nil))
	result, err := runner.Run(context.Background(), models.EvalGet, 0)
	if err != nil {
		t.Fatalf("Zero repetitions is valid: %v", err)
	}
	if result.DisplayText != "nothing to do" {
		t.Errorf("Unexpected display %q", result.DisplayText)
	}
}

func TestParseRepetitions(t *testing.T) {
	tests := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{"10", 10, false},
		{" 0 ", 0, false},
		{"-1", 0, true},
		{"ten", 0, true},
		{"", 0, true},
		{"1.5", 0, true},
	}

	for _, tt := range tests {
		got, err := ParseRepetitions(tt.in)
		if tt.wantErr {
			if !errors.Is(err, models.ErrValidation) {
				t.Errorf("ParseRepetitions(%q): expected validation error, got %v", tt.in, err)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("ParseRepetitions(%q) = %d, %v; want %d", tt.in, got, err, tt.want)
		}
	}
}
