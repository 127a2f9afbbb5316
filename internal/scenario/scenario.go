// Package scenario defines how a VU obtains the request for each iteration.
//
// A [Scenario] is shared by every VU of a run, so NextRequest is called from
// many goroutines at once. Implementations must be safe for concurrent use
// and must not keep mutable state beyond what they synchronize themselves.
// The configuration a Scenario captures is treated as immutable once the run
// starts.
package scenario

import (
	"context"
	"fmt"
	"net/http"
)

// Request is one HTTP request produced for an iteration.
type Request struct {
	// Name labels the request in logs and spans. Optional.
	Name   string
	Method string
	URL    string
	Header http.Header
	Body   []byte
}

// Scenario produces the request for each iteration.
type Scenario interface {
	NextRequest(ctx context.Context) (*Request, error)
}

// Func adapts a plain function to Scenario.
type Func func(ctx context.Context) (*Request, error)

func (f Func) NextRequest(ctx context.Context) (*Request, error) {
	return f(ctx)
}

// Error wraps a failure returned by a Scenario. It never reaches the HTTP
// collaborator and is not counted as a request.
type Error struct {
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("scenario: %v", e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Iteration identifies the VU and iteration a request is built for.
type Iteration struct {
	VU     uint64
	Number uint64
}

type iterationKey struct{}

// WithIteration attaches it to ctx for the duration of one iteration.
func WithIteration(ctx context.Context, it Iteration) context.Context {
	return context.WithValue(ctx, iterationKey{}, it)
}

// IterationFrom returns the iteration attached by WithIteration.
func IterationFrom(ctx context.Context) (Iteration, bool) {
	it, ok := ctx.Value(iterationKey{}).(Iteration)
	return it, ok
}
