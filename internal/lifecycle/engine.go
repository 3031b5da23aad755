package lifecycle

import (
	"context"
	"fmt"

	"github.com/Collaborne/custom-cloudformation-resources/internal/cfn"
	"github.com/Collaborne/custom-cloudformation-resources/internal/logging"
)

// Scheduler manages the external one-shot schedule used to re-deliver a
// request whose operation needs more time than one invocation allows.
type Scheduler interface {
	// Schedule registers a re-delivery of req after c.Delay, carrying
	// c.Attributes. It is idempotent per request.
	Schedule(ctx context.Context, req *cfn.Request, c *Continuation) error
	// Teardown removes the schedule entry that triggered req. Failures are
	// the implementation's to log; they never affect correctness beyond a
	// stale inert rule.
	Teardown(ctx context.Context, req *cfn.Request)
}

// Reporter delivers a terminal status document for a request.
type Reporter interface {
	Send(ctx context.Context, req *cfn.Request, status cfn.Status, reason string, physicalID string, data map[string]any) error
}

// Engine drives one lifecycle event through serialization, handler dispatch,
// the continuation protocol, and the terminal status report.
type Engine struct {
	handlers   *Registry
	reporter   Reporter
	scheduler  Scheduler
	serializer *Serializer
}

// NewEngine wires an engine from its collaborators.
func NewEngine(handlers *Registry, reporter Reporter, scheduler Scheduler) *Engine {
	return &Engine{
		handlers:   handlers,
		reporter:   reporter,
		scheduler:  scheduler,
		serializer: NewSerializer(),
	}
}

// Process admits the request to the serial queue and blocks until it
// settles. The returned error is non-nil only for unrecoverable conditions
// at the engine boundary, i.e. a failed callback delivery; handler failures
// are reported to the orchestrator as a Failed status and settle the request
// normally.
func (e *Engine) Process(ctx context.Context, req *cfn.Request) error {
	return <-e.serializer.Submit(func() error {
		return e.process(ctx, req)
	})
}

func (e *Engine) process(ctx context.Context, req *cfn.Request) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = e.reportFailure(ctx, req, fmt.Errorf("handler panic: %v", r))
		}
	}()

	log := logging.With(
		"requestId", req.RequestID,
		"logicalResourceId", req.LogicalResourceID,
		"requestType", req.RequestType,
		"resourceType", req.ResourceType,
	)
	log.Info("processing request", "continuation", req.IsContinuation())

	handler, err := e.handlers.Get(req.ResourceType)
	if err != nil {
		return e.reportFailure(ctx, req, err)
	}

	req.StripServiceToken()

	var outcome *Outcome
	switch req.RequestType {
	case cfn.RequestCreate:
		outcome, err = handler.Create(ctx, req)
	case cfn.RequestUpdate:
		outcome, err = handler.Update(ctx, req)
	case cfn.RequestDelete:
		outcome, err = handler.Delete(ctx, req)
	default:
		err = fmt.Errorf("unknown request type %q", req.RequestType)
	}
	if err != nil {
		return e.reportFailure(ctx, req, err)
	}
	if outcome == nil || (outcome.Result == nil) == (outcome.Continuation == nil) {
		return e.reportFailure(ctx, req, fmt.Errorf("handler returned an invalid outcome for %s", req.RequestType))
	}

	if c := outcome.Continuation; c != nil {
		if schedErr := e.scheduler.Schedule(ctx, req, c); schedErr != nil {
			return e.reportFailure(ctx, req, fmt.Errorf("failed to schedule continuation: %w", schedErr))
		}
		// Suspended: no terminal status until the re-delivered event settles.
		log.Info("operation suspended for continuation", "delay", c.Delay)
		return nil
	}

	if req.IsContinuation() {
		e.scheduler.Teardown(ctx, req)
	}

	physicalID := outcome.Result.PhysicalResourceID
	if physicalID == "" {
		physicalID = req.PhysicalResourceID
	}
	log.Info("operation succeeded", "physicalResourceId", physicalID)
	return e.reporter.Send(ctx, req, cfn.StatusSuccess, "", physicalID, outcome.Result.Data)
}

// reportFailure converts a handler-level error into a Failed status report.
// A failure is as terminal as a success, so a continuation schedule that
// triggered this delivery is torn down here as well.
func (e *Engine) reportFailure(ctx context.Context, req *cfn.Request, opErr error) error {
	logging.Error("operation failed",
		"requestId", req.RequestID,
		"logicalResourceId", req.LogicalResourceID,
		"error", opErr)
	if req.IsContinuation() {
		e.scheduler.Teardown(ctx, req)
	}
	return e.reporter.Send(ctx, req, cfn.StatusFailed, opErr.Error(), req.PhysicalResourceID, nil)
}
