package evaluation

import (
	"context"
	"strconv"
	"strings"

	"github.com/moamenhredeen/kvctl/internal/dispatcher"
	"github.com/moamenhredeen/kvctl/internal/models"
	"github.com/moamenhredeen/kvctl/internal/request"
)

// Runner asks the evaluation endpoint to repeat one operation.
// The loop runs on the server, the client sends a single request.
type Runner struct {
	builder    *request.RequestBuilder
	dispatcher *dispatcher.Dispatcher
}

// NewRunner creates a runner sending through d
func NewRunner(d *dispatcher.Dispatcher) *Runner {
	return &Runner{builder: request.NewRequestBuilder(), dispatcher: d}
}

// Run validates the repetition count and dispatches the evaluation request.
// Validation failures are returned before any network call.
func (r *Runner) Run(ctx context.Context, op models.EvaluationOperation, repetitions int) (models.OperationResult, error) {
	desc, err := r.builder.BuildEvaluation(op, repetitions)
	if err != nil {
		return models.OperationResult{}, err
	}
	return r.dispatcher.Send(ctx, desc), nil
}

// ParseRepetitions parses a user supplied repetition count
func ParseRepetitions(s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, &models.ValidationError{Field: "repetitions", Message: "'" + s + "' is not a number"}
	}
	if n < 0 {
		return 0, &models.ValidationError{Field: "repetitions", Message: "must be a non-negative integer"}
	}
	return n, nil
}
