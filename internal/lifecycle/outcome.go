// Package lifecycle implements the request-lifecycle engine for custom
// resource handlers: the handler contract, per-instance request
// serialization, and the continuation protocol for operations that outlive
// one invocation.
package lifecycle

import (
	"context"
	"time"

	"github.com/Collaborne/custom-cloudformation-resources/internal/cfn"
)

// Result is the definite outcome of a lifecycle operation. Failures are
// expressed as errors returned by the handler, not as a Result.
type Result struct {
	PhysicalResourceID string
	Data               map[string]any
}

// Continuation asks the engine to re-deliver the request after Delay,
// carrying Attributes back to the handler. The attributes are opaque to the
// engine.
type Continuation struct {
	Delay      time.Duration
	Attributes map[string]any
}

// Outcome is what an operation invocation produces: exactly one of Result or
// Continuation is set.
type Outcome struct {
	Result       *Result
	Continuation *Continuation
}

// Done returns a definite successful outcome.
func Done(physicalID string, data map[string]any) *Outcome {
	return &Outcome{Result: &Result{PhysicalResourceID: physicalID, Data: data}}
}

// Continue returns an outcome asking for re-delivery after delay.
func Continue(delay time.Duration, attributes map[string]any) *Outcome {
	return &Outcome{Continuation: &Continuation{Delay: delay, Attributes: attributes}}
}

// Handler is the operation set a concrete resource implements. Each
// operation receives the full request, including the physical resource id,
// the property sets, and any continuation attributes from a prior partial
// execution. Operations must tolerate being invoked again with the same
// physical resource id and continuation attributes; the engine does not
// retry handler logic itself.
type Handler interface {
	Create(ctx context.Context, req *cfn.Request) (*Outcome, error)
	Update(ctx context.Context, req *cfn.Request) (*Outcome, error)
	Delete(ctx context.Context, req *cfn.Request) (*Outcome, error)
}
