package cmd

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/moamenhredeen/kvctl/internal/models"
	"github.com/moamenhredeen/kvctl/internal/session"
)

func TestParseShellLine(t *testing.T) {
	cmd := parseShellLine("  PUT key=a value=1 db=7 extra ")
	if cmd.name != "put" {
		t.Errorf("Expected name put, got %q", cmd.name)
	}
	if cmd.fields["key"] != "a" || cmd.fields["value"] != "1" || cmd.fields["db"] != "7" {
		t.Errorf("Unexpected fields %v", cmd.fields)
	}
	if len(cmd.args) != 1 || cmd.args[0] != "extra" {
		t.Errorf("Unexpected args %v", cmd.args)
	}

	if empty := parseShellLine("   "); empty.name != "" {
		t.Errorf("Expected empty command, got %q", empty.name)
	}
}

func TestShellCommandRequest(t *testing.T) {
	tests := []struct {
		line string
		want models.OperationRequest
	}{
		{"put a 1", models.OperationRequest{Operation: models.OpPut, Key: "a", Value: "1"}},
		{"put key=a 1 db=2", models.OperationRequest{Operation: models.OpPut, Key: "a", Value: "1", Database: "2"}},
		{"get a db=2", models.OperationRequest{Operation: models.OpGet, Key: "a", Database: "2"}},
		{"createDB users", models.OperationRequest{Operation: models.OpCreateDB, Database: "users"}},
		{"deleteDB db=3", models.OperationRequest{Operation: models.OpDeleteDB, Database: "3"}},
		{"listDBs", models.OperationRequest{Operation: models.OpListDBs}},
	}

	for _, tt := range tests {
		cmd := parseShellLine(tt.line)
		op, err := models.ParseOperation(cmd.name)
		if err != nil {
			t.Fatalf("%s: %v", tt.line, err)
		}
		if got := cmd.request(op); got != tt.want {
			t.Errorf("%s: expected %+v, got %+v", tt.line, tt.want, got)
		}
	}
}

func newShellServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/auth/token/generate", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"authToken":"T1"}`))
	})
	mux.HandleFunc("/kvstore/v1/", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Cassandra-Token") != "T1" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Write([]byte(`{"key":"a","value":"1"}`))
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func TestRunShell(t *testing.T) {
	server := newShellServer(t)
	s := session.New(session.Config{AuthURL: server.URL, KVURL: server.URL}, session.WithHTTPClient(server.Client()))

	input := strings.Join([]string{
		"get a",
		"get",
		"auth",
		"token",
		"put a 1",
		"frobnicate",
		"exit",
		"get a",
	}, "\n")

	var out strings.Builder
	if err := runShell(context.Background(), s, strings.NewReader(input), &out, false); err != nil {
		t.Fatalf("Shell failed: %v", err)
	}

	text := out.String()
	for _, want := range []string{
		"run 'auth' first",
		"is required for get",
		`"authToken": "T1"`,
		"\nT1\n",
		"PUT /kvstore/v1/",
		`"value": "1"`,
		`unknown command "frobnicate"`,
	} {
		if !strings.Contains(text, want) {
			t.Errorf("Expected output to contain %q, got:\n%s", want, text)
		}
	}

	if strings.Count(text, "GET /kvstore/v1/") != 0 {
		t.Errorf("Nothing after exit should run, got:\n%s", text)
	}
}
