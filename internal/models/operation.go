package models

import "strings"

// Operation is a logical action against the key-value store
type Operation int

const (
	OpPut Operation = iota + 1
	OpGet
	OpUpdate
	OpDeleteKey
	OpDeleteDB
	OpCreateDB
	OpListDBs
	OpCacheOn
	OpCacheOff
)

var operationNames = map[Operation]string{
	OpPut:       "put",
	OpGet:       "get",
	OpUpdate:    "update",
	OpDeleteKey: "deleteKey",
	OpDeleteDB:  "deleteDB",
	OpCreateDB:  "createDB",
	OpListDBs:   "listDBs",
	OpCacheOn:   "cacheOn",
	OpCacheOff:  "cacheOff",
}

// Operations returns every supported operation in display order
func Operations() []Operation {
	return []Operation{OpPut, OpGet, OpUpdate, OpDeleteKey, OpDeleteDB, OpCreateDB, OpListDBs, OpCacheOn, OpCacheOff}
}

func (o Operation) String() string {
	if name, ok := operationNames[o]; ok {
		return name
	}
	return "unknown"
}

// ParseOperation maps a user supplied name onto an Operation.
// Matching is case-insensitive so "deletekey" and "deleteKey" are equivalent.
func ParseOperation(s string) (Operation, error) {
	for op, name := range operationNames {
		if strings.EqualFold(name, s) {
			return op, nil
		}
	}
	return 0, &ValidationError{Field: "operation", Message: "unsupported operation '" + s + "'"}
}

// EvaluationOperation is an operation the evaluation endpoint can repeat
type EvaluationOperation int

const (
	EvalPut EvaluationOperation = iota + 1
	EvalGet
)

func (o EvaluationOperation) String() string {
	switch o {
	case EvalPut:
		return "put"
	case EvalGet:
		return "get"
	default:
		return "unknown"
	}
}

// ParseEvaluationOperation accepts "put" or "get"
func ParseEvaluationOperation(s string) (EvaluationOperation, error) {
	switch strings.ToLower(s) {
	case "put":
		return EvalPut, nil
	case "get":
		return EvalGet, nil
	default:
		return 0, &ValidationError{Field: "operation", Message: "evaluation supports only 'put' and 'get', got '" + s + "'"}
	}
}

// OperationRequest holds the user supplied fields for one operation.
// Only the fields relevant to Operation are ever sent.
type OperationRequest struct {
	Operation Operation
	Key       string
	Value     string
	Database  string
}

// Credentials is the key/secret pair exchanged for a token
type Credentials struct {
	Key    string
	Secret string
}
