package request

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/moamenhredeen/kvctl/internal/models"
)

func TestNewRequestBuilder(t *testing.T) {
	rb := NewRequestBuilder()
	if rb == nil {
		t.Fatal("RequestBuilder is nil")
	}
}

func TestBuildPut(t *testing.T) {
	rb := NewRequestBuilder()

	desc, err := rb.Build(models.OperationRequest{Operation: models.OpPut, Key: "k1", Value: "v1"}, "T1")
	if err != nil {
		t.Fatalf("Failed to build request: %v", err)
	}

	if desc.Method != "PUT" {
		t.Errorf("Expected method PUT, got %s", desc.Method)
	}
	if got := string(desc.Body); got != `{"key":"k1","value":"v1"}` {
		t.Errorf("Unexpected body %s", got)
	}
	if got := desc.Header.Get(TokenHeader); got != "T1" {
		t.Errorf("Expected token header T1, got %q", got)
	}
	if !strings.HasPrefix(desc.Path, BasePath) {
		t.Errorf("Expected path under %s, got %s", BasePath, desc.Path)
	}
}

func TestBuildHeaders(t *testing.T) {
	rb := NewRequestBuilder()

	for _, op := range models.Operations() {
		req := models.OperationRequest{Operation: op, Key: "k", Value: "v", Database: "db"}
		desc, err := rb.Build(req, "T1")
		if err != nil {
			t.Fatalf("%s: failed to build request: %v", op, err)
		}

		if desc.Header.Get("Accept") != "application/json" {
			t.Errorf("%s: expected Accept application/json", op)
		}
		if desc.Header.Get("Content-Type") != "application/json" {
			t.Errorf("%s: expected Content-Type application/json", op)
		}
		if desc.Header.Get("X-Cassandra-Token") != "T1" {
			t.Errorf("%s: expected token header", op)
		}
		if desc.Header.Get("Authorization") != "" {
			t.Errorf("%s: token must not be sent as bearer auth", op)
		}
	}
}

func TestBuildValidation(t *testing.T) {
	rb := NewRequestBuilder()

	tests := []struct {
		name    string
		req     models.OperationRequest
		field   string
		wantErr bool
	}{
		{"put without key", models.OperationRequest{Operation: models.OpPut, Value: "v"}, "key", true},
		{"put without value", models.OperationRequest{Operation: models.OpPut, Key: "k"}, "value", true},
		{"put complete", models.OperationRequest{Operation: models.OpPut, Key: "k", Value: "v"}, "", false},
		{"get without key", models.OperationRequest{Operation: models.OpGet}, "key", true},
		{"get ignores value", models.OperationRequest{Operation: models.OpGet, Key: "k"}, "", false},
		{"deleteKey without key", models.OperationRequest{Operation: models.OpDeleteKey, Database: "db"}, "key", true},
		{"deleteKey complete", models.OperationRequest{Operation: models.OpDeleteKey, Key: "k"}, "", false},
		{"update without value", models.OperationRequest{Operation: models.OpUpdate, Key: "k"}, "value", true},
		{"deleteDB without database", models.OperationRequest{Operation: models.OpDeleteDB, Key: "k"}, "database", true},
		{"deleteDB complete", models.OperationRequest{Operation: models.OpDeleteDB, Database: "db"}, "", false},
		{"deleteDB reserved name", models.OperationRequest{Operation: models.OpDeleteDB, Database: "databases"}, "database", true},
		{"put into reserved name", models.OperationRequest{Operation: models.OpPut, Key: "k", Value: "v", Database: "cache"}, "database", true},
		{"createDB reserved name", models.OperationRequest{Operation: models.OpCreateDB, Database: "cache"}, "database", true},
		{"createDB without database", models.OperationRequest{Operation: models.OpCreateDB}, "database", true},
		{"createDB complete", models.OperationRequest{Operation: models.OpCreateDB, Database: "mydb"}, "", false},
		{"listDBs needs nothing", models.OperationRequest{Operation: models.OpListDBs}, "", false},
		{"no operation", models.OperationRequest{}, "operation", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			desc, err := rb.Build(tt.req, "T1")
			if !tt.wantErr {
				if err != nil {
					t.Fatalf("Unexpected error: %v", err)
				}
				return
			}

			if desc != nil {
				t.Error("Expected no descriptor on validation failure")
			}
			var ve *models.ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("Expected ValidationError, got %v", err)
			}
			if ve.Field != tt.field {
				t.Errorf("Expected field %s, got %s", tt.field, ve.Field)
			}
			if !errors.Is(err, models.ErrValidation) {
				t.Error("Expected errors.Is(err, ErrValidation)")
			}
		})
	}
}

func TestBuildGetWithEmptyKey(t *testing.T) {
	desc, err := NewRequestBuilder().Build(models.OperationRequest{Operation: models.OpGet, Key: ""}, "T1")
	if !errors.Is(err, models.ErrValidation) {
		t.Fatalf("Expected validation error, got %v", err)
	}
	if desc != nil {
		t.Error("Expected no descriptor")
	}
}

func TestBuildCreateDB(t *testing.T) {
	desc, err := NewRequestBuilder().Build(models.OperationRequest{Operation: models.OpCreateDB, Database: "mydb"}, "T1")
	if err != nil {
		t.Fatalf("Failed to build request: %v", err)
	}

	if desc.Method != "POST" {
		t.Errorf("Expected method POST, got %s", desc.Method)
	}
	if !strings.HasSuffix(desc.Path, "databases") {
		t.Errorf("Expected path ending in databases, got %s", desc.Path)
	}
	if string(desc.Body) != `{"name":"mydb"}` {
		t.Errorf("Unexpected body %s", desc.Body)
	}
}

func TestBuildOmitsIrrelevantFields(t *testing.T) {
	rb := NewRequestBuilder()

	// value and database are set in the UI state but irrelevant to get
	desc, err := rb.Build(models.OperationRequest{Operation: models.OpGet, Key: "k1", Value: "stale"}, "T1")
	if err != nil {
		t.Fatalf("Failed to build request: %v", err)
	}

	var body map[string]any
	if err := json.Unmarshal(desc.Body, &body); err != nil {
		t.Fatalf("Body is not JSON: %v", err)
	}
	if len(body) != 1 || body["key"] != "k1" {
		t.Errorf("Expected body with only key, got %v", body)
	}

	desc, err = rb.Build(models.OperationRequest{Operation: models.OpDeleteDB, Key: "k1", Value: "v1", Database: "db1"}, "T1")
	if err != nil {
		t.Fatalf("Failed to build request: %v", err)
	}
	if string(desc.Body) != `{"db":"db1"}` {
		t.Errorf("Expected only db in body, got %s", desc.Body)
	}
}

func TestBuildPaths(t *testing.T) {
	rb := NewRequestBuilder()

	tests := []struct {
		req    models.OperationRequest
		method string
		path   string
	}{
		{models.OperationRequest{Operation: models.OpPut, Key: "k", Value: "v", Database: "db1"}, "PUT", "/kvstore/v1/db1"},
		{models.OperationRequest{Operation: models.OpPut, Key: "k", Value: "v"}, "PUT", "/kvstore/v1/"},
		{models.OperationRequest{Operation: models.OpGet, Key: "k", Database: "db1"}, "GET", "/kvstore/v1/db1"},
		{models.OperationRequest{Operation: models.OpUpdate, Key: "k", Value: "v", Database: "db1"}, "PATCH", "/kvstore/v1/db1"},
		{models.OperationRequest{Operation: models.OpDeleteKey, Key: "k", Database: "db1"}, "DELETE", "/kvstore/v1/db1/key"},
		{models.OperationRequest{Operation: models.OpDeleteKey, Key: "k"}, "DELETE", "/kvstore/v1/"},
		{models.OperationRequest{Operation: models.OpDeleteDB, Database: "key"}, "DELETE", "/kvstore/v1/key"},
		{models.OperationRequest{Operation: models.OpDeleteDB, Database: "db 1"}, "DELETE", "/kvstore/v1/db%201"},
		{models.OperationRequest{Operation: models.OpListDBs}, "GET", "/kvstore/v1/databases"},
		{models.OperationRequest{Operation: models.OpCacheOn}, "POST", "/kvstore/v1/cache/on"},
		{models.OperationRequest{Operation: models.OpCacheOff}, "POST", "/kvstore/v1/cache/off"},
	}

	for _, tt := range tests {
		desc, err := rb.Build(tt.req, "T1")
		if err != nil {
			t.Fatalf("%s: failed to build request: %v", tt.req.Operation, err)
		}
		if desc.Method != tt.method || desc.Path != tt.path {
			t.Errorf("%s: expected %s %s, got %s %s", tt.req.Operation, tt.method, tt.path, desc.Method, desc.Path)
		}
	}
}

func TestDeleteKeyNeverAddressesDatabase(t *testing.T) {
	rb := NewRequestBuilder()

	for _, database := range []string{"", "db1"} {
		deleteKey, err := rb.Build(models.OperationRequest{Operation: models.OpDeleteKey, Key: "key", Database: database}, "T1")
		if err != nil {
			t.Fatalf("Build deleteKey failed: %v", err)
		}
		for _, name := range []string{"key", "db1", "db1/key"} {
			deleteDB, err := rb.Build(models.OperationRequest{Operation: models.OpDeleteDB, Database: name}, "T1")
			if err != nil {
				t.Fatalf("Build deleteDB failed: %v", err)
			}
			if deleteKey.Method == deleteDB.Method && deleteKey.Path == deleteDB.Path {
				t.Errorf("deleteKey in %q and deleteDB %q share %s %s", database, name, deleteDB.Method, deleteDB.Path)
			}
		}
	}
}

func TestBuildWithoutToken(t *testing.T) {
	_, err := NewRequestBuilder().Build(models.OperationRequest{Operation: models.OpGet, Key: "k"}, "")
	if !errors.Is(err, models.ErrAuth) {
		t.Errorf("Expected auth error, got %v", err)
	}
}

func TestBuildEvaluation(t *testing.T) {
	rb := NewRequestBuilder()

	desc, err := rb.BuildEvaluation(models.EvalGet, 250)
	if err != nil {
		t.Fatalf("Failed to build evaluation: %v", err)
	}
	if desc.Method != "POST" || desc.Path != "/api/evaluation" {
		t.Errorf("Unexpected target %s %s", desc.Method, desc.Path)
	}
	if string(desc.Body) != `{"operation":"get","evaluationValue":250}` {
		t.Errorf("Unexpected body %s", desc.Body)
	}
	if desc.Header.Get(TokenHeader) != "" {
		t.Error("Evaluation requests carry no token")
	}

	if _, err := rb.BuildEvaluation(models.EvalPut, -1); !errors.Is(err, models.ErrValidation) {
		t.Errorf("Expected validation error for negative repetitions, got %v", err)
	}
}

func TestNewHTTPRequest(t *testing.T) {
	desc, err := NewRequestBuilder().Build(models.OperationRequest{Operation: models.OpPut, Key: "k1", Value: "v1", Database: "db1"}, "T1")
	if err != nil {
		t.Fatalf("Failed to build request: %v", err)
	}

	req, err := desc.NewHTTPRequest(context.Background(), "http://localhost:8080/")
	if err != nil {
		t.Fatalf("Failed to create HTTP request: %v", err)
	}

	if req.URL.String() != "http://localhost:8080/kvstore/v1/db1" {
		t.Errorf("Unexpected URL %s", req.URL)
	}
	if req.Header.Get("X-Cassandra-Token") != "T1" {
		t.Error("Expected token header on HTTP request")
	}
	data, _ := io.ReadAll(req.Body)
	if string(data) != `{"key":"k1","value":"v1"}` {
		t.Errorf("Unexpected body %s", data)
	}
}

func TestRoutes(t *testing.T) {
	routes := Routes()
	if len(routes) != len(models.Operations()) {
		t.Fatalf("Expected %d routes, got %d", len(models.Operations()), len(routes))
	}

	for _, r := range routes {
		if r.Operation == "deleteKey" && r.Path != "/kvstore/v1/{db}/key" {
			t.Errorf("Unexpected deleteKey template %s", r.Path)
		}
		if r.Operation == "createDB" && r.Path != "/kvstore/v1/databases" {
			t.Errorf("Unexpected createDB template %s", r.Path)
		}
	}
}
