package lifecycle

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Collaborne/custom-cloudformation-resources/internal/cfn"
)

type fakeHandler struct {
	create func(ctx context.Context, req *cfn.Request) (*Outcome, error)
	update func(ctx context.Context, req *cfn.Request) (*Outcome, error)
	del    func(ctx context.Context, req *cfn.Request) (*Outcome, error)
}

func (h *fakeHandler) Create(ctx context.Context, req *cfn.Request) (*Outcome, error) {
	return h.create(ctx, req)
}

func (h *fakeHandler) Update(ctx context.Context, req *cfn.Request) (*Outcome, error) {
	return h.update(ctx, req)
}

func (h *fakeHandler) Delete(ctx context.Context, req *cfn.Request) (*Outcome, error) {
	return h.del(ctx, req)
}

type sentReport struct {
	status     cfn.Status
	reason     string
	physicalID string
	data       map[string]any
}

type fakeReporter struct {
	sent []sentReport
	err  error
}

func (r *fakeReporter) Send(_ context.Context, _ *cfn.Request, status cfn.Status, reason string, physicalID string, data map[string]any) error {
	r.sent = append(r.sent, sentReport{status: status, reason: reason, physicalID: physicalID, data: data})
	return r.err
}

type fakeScheduler struct {
	scheduled []*Continuation
	tornDown  int
	err       error
}

func (s *fakeScheduler) Schedule(_ context.Context, _ *cfn.Request, c *Continuation) error {
	s.scheduled = append(s.scheduled, c)
	return s.err
}

func (s *fakeScheduler) Teardown(_ context.Context, _ *cfn.Request) {
	s.tornDown++
}

func newTestEngine(h Handler) (*Engine, *fakeReporter, *fakeScheduler) {
	handlers := NewRegistry()
	handlers.Register("Custom::Test", h)
	reporter := &fakeReporter{}
	scheduler := &fakeScheduler{}
	return NewEngine(handlers, reporter, scheduler), reporter, scheduler
}

func testRequest(kind cfn.RequestType) *cfn.Request {
	return &cfn.Request{
		RequestType:       kind,
		ResponseURL:       "https://callback.example.com/response",
		StackID:           "arn:aws:cloudformation:us-east-1:123456789012:stack/test/abc",
		RequestID:         "req-1",
		LogicalResourceID: "TestResource",
		ResourceType:      "Custom::Test",
		ResourceProperties: map[string]any{
			"ServiceToken": "arn:aws:lambda:us-east-1:123456789012:function:handler",
			"Name":         "value",
		},
	}
}

func TestProcessReportsSuccess(t *testing.T) {
	h := &fakeHandler{
		create: func(_ context.Context, req *cfn.Request) (*Outcome, error) {
			// ServiceToken must be stripped before the handler sees the properties.
			assert.NotContains(t, req.ResourceProperties, "ServiceToken")
			return Done("phys-1", map[string]any{"Key": "val"}), nil
		},
	}
	engine, reporter, scheduler := newTestEngine(h)

	err := engine.Process(context.Background(), testRequest(cfn.RequestCreate))
	require.NoError(t, err)

	require.Len(t, reporter.sent, 1)
	assert.Equal(t, cfn.StatusSuccess, reporter.sent[0].status)
	assert.Equal(t, "phys-1", reporter.sent[0].physicalID)
	assert.Equal(t, map[string]any{"Key": "val"}, reporter.sent[0].data)
	assert.Empty(t, scheduler.scheduled)
	assert.Zero(t, scheduler.tornDown)
}

func TestProcessReportsHandlerFailure(t *testing.T) {
	h := &fakeHandler{
		create: func(_ context.Context, _ *cfn.Request) (*Outcome, error) {
			return nil, errors.New("issuance rejected")
		},
	}
	engine, reporter, _ := newTestEngine(h)

	err := engine.Process(context.Background(), testRequest(cfn.RequestCreate))
	require.NoError(t, err)

	require.Len(t, reporter.sent, 1)
	assert.Equal(t, cfn.StatusFailed, reporter.sent[0].status)
	assert.Equal(t, "issuance rejected", reporter.sent[0].reason)
}

func TestProcessContinuationSchedulesWithoutReporting(t *testing.T) {
	h := &fakeHandler{
		create: func(_ context.Context, _ *cfn.Request) (*Outcome, error) {
			return Continue(90*time.Second, map[string]any{"Arn": "arn:..."}), nil
		},
	}
	engine, reporter, scheduler := newTestEngine(h)

	err := engine.Process(context.Background(), testRequest(cfn.RequestCreate))
	require.NoError(t, err)

	require.Len(t, scheduler.scheduled, 1)
	assert.Equal(t, 90*time.Second, scheduler.scheduled[0].Delay)
	// Suspended: no terminal status may reach the orchestrator.
	assert.Empty(t, reporter.sent)
}

func TestProcessContinuationScheduleFailureReported(t *testing.T) {
	h := &fakeHandler{
		create: func(_ context.Context, _ *cfn.Request) (*Outcome, error) {
			return Continue(time.Minute, nil), nil
		},
	}
	engine, reporter, scheduler := newTestEngine(h)
	scheduler.err = errors.New("rule limit reached")

	err := engine.Process(context.Background(), testRequest(cfn.RequestCreate))
	require.NoError(t, err)

	require.Len(t, reporter.sent, 1)
	assert.Equal(t, cfn.StatusFailed, reporter.sent[0].status)
	assert.Contains(t, reporter.sent[0].reason, "rule limit reached")
}

func TestProcessDefiniteAfterContinuationTearsDown(t *testing.T) {
	h := &fakeHandler{
		create: func(_ context.Context, _ *cfn.Request) (*Outcome, error) {
			return Done("phys-1", nil), nil
		},
	}
	engine, reporter, scheduler := newTestEngine(h)

	req := testRequest(cfn.RequestCreate)
	req.ContinuationAttributes = map[string]any{"Arn": "arn:..."}

	err := engine.Process(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, 1, scheduler.tornDown)
	require.Len(t, reporter.sent, 1)
	assert.Equal(t, cfn.StatusSuccess, reporter.sent[0].status)
}

func TestProcessFailureAfterContinuationTearsDown(t *testing.T) {
	h := &fakeHandler{
		create: func(_ context.Context, _ *cfn.Request) (*Outcome, error) {
			return nil, errors.New("still broken")
		},
	}
	engine, reporter, scheduler := newTestEngine(h)

	req := testRequest(cfn.RequestCreate)
	req.ContinuationAttributes = map[string]any{"Arn": "arn:..."}

	require.NoError(t, engine.Process(context.Background(), req))
	assert.Equal(t, 1, scheduler.tornDown)
	require.Len(t, reporter.sent, 1)
	assert.Equal(t, cfn.StatusFailed, reporter.sent[0].status)
}

func TestProcessUnknownResourceTypeReportsFailure(t *testing.T) {
	engine, reporter, _ := newTestEngine(&fakeHandler{})

	req := testRequest(cfn.RequestCreate)
	req.ResourceType = "Custom::Unknown"

	require.NoError(t, engine.Process(context.Background(), req))
	require.Len(t, reporter.sent, 1)
	assert.Equal(t, cfn.StatusFailed, reporter.sent[0].status)
	assert.Contains(t, reporter.sent[0].reason, "Custom::Unknown")
}

func TestProcessInvalidOutcomeReportsFailure(t *testing.T) {
	h := &fakeHandler{
		update: func(_ context.Context, _ *cfn.Request) (*Outcome, error) {
			return &Outcome{}, nil
		},
	}
	engine, reporter, _ := newTestEngine(h)

	require.NoError(t, engine.Process(context.Background(), testRequest(cfn.RequestUpdate)))
	require.Len(t, reporter.sent, 1)
	assert.Equal(t, cfn.StatusFailed, reporter.sent[0].status)
}

func TestProcessPanicReportedAsFailure(t *testing.T) {
	h := &fakeHandler{
		del: func(_ context.Context, _ *cfn.Request) (*Outcome, error) {
			panic("nil dereference somewhere")
		},
	}
	engine, reporter, _ := newTestEngine(h)

	require.NoError(t, engine.Process(context.Background(), testRequest(cfn.RequestDelete)))
	require.Len(t, reporter.sent, 1)
	assert.Equal(t, cfn.StatusFailed, reporter.sent[0].status)
	assert.Contains(t, reporter.sent[0].reason, "panic")
}

func TestProcessDeliveryFailurePropagates(t *testing.T) {
	h := &fakeHandler{
		create: func(_ context.Context, _ *cfn.Request) (*Outcome, error) {
			return Done("phys-1", nil), nil
		},
	}
	handlers := NewRegistry()
	handlers.Register("Custom::Test", h)
	reporter := &fakeReporter{err: errors.New("callback returned status 403")}
	engine := NewEngine(handlers, reporter, &fakeScheduler{})

	err := engine.Process(context.Background(), testRequest(cfn.RequestCreate))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
}

func TestRegistryGetUnknown(t *testing.T) {
	r := NewRegistry()
	_, err := r.Get("Custom::Missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Custom::Missing")
}
