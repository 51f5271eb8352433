package models

import "time"

// AuthToken is the credential issued by the auth endpoint.
// Value is empty when the payload had no extractable token field.
type AuthToken struct {
	Raw   Body
	Value string
}

// Valid reports whether a token value was extracted
func (t AuthToken) Valid() bool {
	return t.Value != ""
}

// Require returns the token value or an AuthError
func (t AuthToken) Require() (string, error) {
	if !t.Valid() {
		return "", &AuthError{Reason: "no token value in authentication payload"}
	}
	return t.Value, nil
}

// Display renders the raw payload as proof of authentication
func (t AuthToken) Display() string {
	return t.Raw.Display()
}

// OperationResult is the outcome of one dispatched request
type OperationResult struct {
	Operation   string        `json:"operation" yaml:"operation"`
	Method      string        `json:"method" yaml:"method"`
	Path        string        `json:"path" yaml:"path"`
	StatusCode  int           `json:"status_code" yaml:"status_code"`
	Succeeded   bool          `json:"succeeded" yaml:"succeeded"`
	Duration    time.Duration `json:"duration_ns" yaml:"duration_ns"`
	Body        Body          `json:"body" yaml:"body"`
	DisplayText string        `json:"-" yaml:"-"`
	Err         error         `json:"-" yaml:"-"`
}

// Responded reports whether the server answered at all
func (r OperationResult) Responded() bool {
	return r.StatusCode != 0
}

// ErrorMessage returns the error text or an empty string
func (r OperationResult) ErrorMessage() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}
