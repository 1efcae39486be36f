// Package oracle scores chess positions with external UCI engines.
//
// The Oracle interface is the seam between the analysis pipeline and the
// engine: Pool drives a fixed set of engine processes, Cache memoizes any
// Oracle, and Func adapts a plain function for tests.
package oracle

import (
	"context"
	"errors"
)

var (
	// ErrEvaluationUnavailable indicates no score could be produced for a
	// position, even after a retry on a fresh process.
	ErrEvaluationUnavailable = errors.New("oracle: evaluation unavailable")

	// ErrProcessFailure indicates an engine process failed to start,
	// crashed, or stopped answering.
	ErrProcessFailure = errors.New("oracle: engine process failure")

	// ErrClosed indicates the pool has been closed.
	ErrClosed = errors.New("oracle: pool closed")

	// ErrNoBudget indicates a request without depth or move time.
	ErrNoBudget = errors.New("oracle: budget needs a depth or move time")
)

// Oracle evaluates positions.
type Oracle interface {
	// Evaluate scores fen from the side to move's perspective.
	Evaluate(ctx context.Context, fen string, b Budget) (Evaluation, error)
}

// Func adapts an ordinary function to the Oracle interface.
type Func func(ctx context.Context, fen string, b Budget) (Evaluation, error)

// Compile-time check that Func implements Oracle.
var _ Oracle = Func(nil)

// Evaluate calls f.
func (f Func) Evaluate(ctx context.Context, fen string, b Budget) (Evaluation, error) {
	return f(ctx, fen, b)
}
