package harness

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/roach88/storysync/internal/connectivity"
	"github.com/roach88/storysync/internal/store"
	"github.com/roach88/storysync/internal/story"
	"github.com/roach88/storysync/internal/syncer"
	"github.com/roach88/storysync/internal/testutil"
)

// maxLocalIDs bounds the queue entries one scenario may create.
const maxLocalIDs = 64

// Harness is the scenario execution engine. It wires a real coordinator to
// an in-memory store, a connectivity monitor and a scripted gateway, and
// records everything that happens in a trace.
type Harness struct {
	store   *store.Store
	gateway *testutil.FakeGateway
	monitor *connectivity.Monitor
	coord   *syncer.Coordinator
	logger  *zap.Logger

	ctx     context.Context
	result  *Result
	tracing bool
	hookErr error
}

// Run executes a scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database with deterministic local
// ids and timestamps. An error is returned when a step cannot be executed
// at all; failed expectations and assertions are reported in the result.
func Run(scenario *Scenario) (*Result, error) {
	return RunContext(context.Background(), scenario)
}

// RunContext is Run with a caller-supplied context.
func RunContext(ctx context.Context, scenario *Scenario) (*Result, error) {
	ids := make([]string, maxLocalIDs)
	for i := range ids {
		ids[i] = fmt.Sprintf("L%d", i+1)
	}

	st, err := store.Open(":memory:",
		store.WithIDGenerator(story.NewFixedGenerator(ids...)),
		store.WithClock(testutil.NewStepClock()),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	h := &Harness{
		store:   st,
		gateway: testutil.NewFakeGateway(),
		logger:  zap.NewNop(),
		ctx:     ctx,
		result:  NewResult(),
	}
	h.monitor = connectivity.NewMonitor(scenario.Online, connectivity.WithReconnectHook(h.reconnect))
	h.monitor.Subscribe(func(online bool) {
		h.notice("Connectivity.changed", map[string]any{"online": online})
	})
	h.coord = syncer.New(st, tracingGateway{h: h}, h.monitor,
		syncer.WithNotifier(syncer.NotifierFunc(h.recordNotice)),
		syncer.WithLogger(h.logger),
	)

	if err := h.executeSetup(scenario.Setup); err != nil {
		return nil, fmt.Errorf("failed to execute setup: %w", err)
	}

	if err := h.executeFlow(scenario.Flow); err != nil {
		return nil, fmt.Errorf("failed to execute flow: %w", err)
	}

	actx := &AssertionContext{
		Store: st,
		Ctx:   ctx,
	}
	for _, errMsg := range EvaluateAssertions(h.result, scenario.Assertions, actx) {
		h.result.AddError(errMsg)
	}

	return h.result, nil
}

// executeSetup runs the setup steps with tracing off.
func (h *Harness) executeSetup(setup []ActionStep) error {
	h.tracing = false
	for i, step := range setup {
		if _, _, err := h.invoke(step.Action, step.Args); err != nil {
			return fmt.Errorf("setup step %d (%s): %w", i, step.Action, err)
		}
	}
	return nil
}

// executeFlow runs the flow steps and checks their expect clauses.
func (h *Harness) executeFlow(flow []FlowStep) error {
	h.tracing = true
	for i, step := range flow {
		h.invocation(step.Invoke, step.Args)

		outputCase, result, err := h.invoke(step.Invoke, step.Args)
		if err != nil {
			return fmt.Errorf("flow step %d (%s): %w", i, step.Invoke, err)
		}
		h.completion(outputCase, result)

		if step.Expect == nil {
			continue
		}
		if outputCase != step.Expect.Case {
			h.result.AddError(fmt.Sprintf("flow[%d] %s: expected case %s, got %s", i, step.Invoke, step.Expect.Case, outputCase))
			continue
		}
		for key, want := range step.Expect.Result {
			got, ok := result[key]
			if !ok || !stateValuesEqual(want, got) {
				h.result.AddError(fmt.Sprintf("flow[%d] %s: expected result %s = %v, got %v", i, step.Invoke, key, want, got))
			}
		}
	}
	return nil
}

func (h *Harness) invoke(action string, args map[string]any) (string, map[string]any, error) {
	fn, ok := actions[action]
	if !ok {
		return "", nil, fmt.Errorf("unknown action %q", action)
	}
	outputCase, result, err := fn(h, args)
	if err != nil {
		return "", nil, err
	}
	if h.hookErr != nil {
		err, h.hookErr = h.hookErr, nil
		return "", nil, fmt.Errorf("reconnect drain: %w", err)
	}
	return outputCase, result, nil
}

func (h *Harness) invocation(action string, args map[string]any) {
	if h.tracing {
		h.result.AddInvocationTrace(action, args)
	}
}

func (h *Harness) completion(outputCase string, result map[string]any) {
	if h.tracing {
		h.result.AddCompletionTrace(outputCase, result)
	}
}

func (h *Harness) notice(action string, result map[string]any) {
	if h.tracing {
		h.result.AddNoticeTrace(action, result)
	}
}

func (h *Harness) recordNotice(n syncer.Notice) {
	switch n := n.(type) {
	case syncer.NoticeSent:
		h.notice("Notice.sent", nil)
	case syncer.NoticeQueued:
		h.notice("Notice.queued", map[string]any{"local_id": n.Pending.LocalID})
	case syncer.NoticeSynced:
		h.notice("Notice.synced", map[string]any{"count": n.Count})
	}
}

// reconnect is the monitor's reconnect hook. It drains synchronously so
// the drain shows up inside the Connectivity.set step that caused it.
func (h *Harness) reconnect() {
	h.invocation("Coordinator.drain", map[string]any{"trigger": "reconnect"})
	outputCase, result, err := drain(h, nil)
	if err != nil {
		h.hookErr = err
		return
	}
	h.completion(outputCase, result)
}

// tracingGateway records every create attempt around the scripted gateway.
type tracingGateway struct {
	h *Harness
}

func (g tracingGateway) CreateStory(ctx context.Context, sub story.Submission) (*story.Record, error) {
	g.h.invocation("Gateway.createStory", map[string]any{"description": sub.Description})
	rec, err := g.h.gateway.CreateStory(ctx, sub)

	var result map[string]any
	if rec != nil {
		result = map[string]any{"id": rec.ID}
	}
	g.h.completion(errorCase(err), result)
	return rec, err
}

// errorCase names the output case for a gateway result.
func errorCase(err error) string {
	switch {
	case err == nil:
		return "Success"
	case story.CodeOf(err) == story.ErrCodeRemoteRejected:
		return "RemoteRejected"
	case story.CodeOf(err) == story.ErrCodeNetworkUnreachable:
		return "NetworkUnreachable"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "Cancelled"
	default:
		return "Error"
	}
}

type actionFunc func(h *Harness, args map[string]any) (string, map[string]any, error)

var actions = map[string]actionFunc{
	"Connectivity.set":    setOnline,
	"Coordinator.submit":  submit,
	"Coordinator.drain":   drain,
	"Store.enqueue":       enqueue,
	"Store.markSynced":    markSynced,
	"Store.deletePending": deletePending,
	"Store.prune":         prune,
	"Gateway.failNext":    failNext,
	"Gateway.failOn":      failOn,
	"Gateway.echo":        echo,
}

func setOnline(h *Harness, args map[string]any) (string, map[string]any, error) {
	online, err := argBool(args, "online")
	if err != nil {
		return "", nil, err
	}
	outputCase := "Unchanged"
	if h.monitor.Set(online) {
		outputCase = "Changed"
	}
	return outputCase, map[string]any{"online": online}, nil
}

func submission(args map[string]any) (story.Submission, error) {
	desc, err := argString(args, "description")
	if err != nil {
		return story.Submission{}, err
	}
	sub := story.Submission{Description: desc}
	if sub.Lat, err = argFloat(args, "lat"); err != nil {
		return story.Submission{}, err
	}
	if sub.Lon, err = argFloat(args, "lon"); err != nil {
		return story.Submission{}, err
	}
	return sub, nil
}

func submit(h *Harness, args map[string]any) (string, map[string]any, error) {
	sub, err := submission(args)
	if err != nil {
		return "", nil, err
	}
	res, err := h.coord.Submit(h.ctx, sub)
	if err != nil {
		return "", nil, err
	}

	result := map[string]any{}
	if res.Outcome == syncer.OutcomeSent {
		if res.Record != nil {
			result["id"] = res.Record.ID
		}
		return "Sent", result, nil
	}
	result["local_id"] = res.Pending.LocalID
	if res.Cause != nil {
		result["cause"] = errorCase(res.Cause)
	}
	return "Queued", result, nil
}

func drain(h *Harness, _ map[string]any) (string, map[string]any, error) {
	report, err := h.coord.Drain(h.ctx)
	if err != nil {
		return "", nil, err
	}
	outputCase := "Success"
	if report.Interrupted {
		outputCase = "Interrupted"
	}
	return outputCase, map[string]any{
		"attempted": report.Attempted,
		"synced":    report.Synced,
		"failed":    report.Failed,
		"unmarked":  report.Unmarked,
	}, nil
}

func enqueue(h *Harness, args map[string]any) (string, map[string]any, error) {
	sub, err := submission(args)
	if err != nil {
		return "", nil, err
	}
	p, err := h.store.EnqueuePending(h.ctx, sub)
	if err != nil {
		return "", nil, err
	}
	return "Success", map[string]any{"local_id": p.LocalID}, nil
}

func markSynced(h *Harness, args map[string]any) (string, map[string]any, error) {
	id, err := argString(args, "local_id")
	if err != nil {
		return "", nil, err
	}
	found, err := h.store.MarkSynced(h.ctx, id)
	if err != nil {
		return "", nil, err
	}
	if !found {
		return "NotFound", nil, nil
	}
	return "Found", nil, nil
}

func deletePending(h *Harness, args map[string]any) (string, map[string]any, error) {
	id, err := argString(args, "local_id")
	if err != nil {
		return "", nil, err
	}
	if err := h.store.DeletePending(h.ctx, id); err != nil {
		return "", nil, err
	}
	return "Success", nil, nil
}

func prune(h *Harness, _ map[string]any) (string, map[string]any, error) {
	n, err := h.store.PruneSynced(h.ctx)
	if err != nil {
		return "", nil, err
	}
	return "Success", map[string]any{"pruned": n}, nil
}

func failNext(h *Harness, args map[string]any) (string, map[string]any, error) {
	raw, ok := args["errors"].([]any)
	if !ok {
		return "", nil, fmt.Errorf("errors must be a list")
	}
	errs := make([]error, len(raw))
	for i, v := range raw {
		name, ok := v.(string)
		if !ok {
			return "", nil, fmt.Errorf("errors[%d] must be a string", i)
		}
		e, err := scriptedError(name)
		if err != nil {
			return "", nil, fmt.Errorf("errors[%d]: %w", i, err)
		}
		errs[i] = e
	}
	h.gateway.FailNext(errs...)
	return "Success", nil, nil
}

func failOn(h *Harness, args map[string]any) (string, map[string]any, error) {
	desc, err := argString(args, "description")
	if err != nil {
		return "", nil, err
	}
	name, _ := args["error"].(string)
	var e error
	if name != "" {
		if e, err = scriptedError(name); err != nil {
			return "", nil, err
		}
	}
	h.gateway.FailOn(desc, e)
	return "Success", nil, nil
}

func echo(h *Harness, args map[string]any) (string, map[string]any, error) {
	on, err := argBool(args, "on")
	if err != nil {
		return "", nil, err
	}
	h.gateway.EchoRecords(on)
	return "Success", nil, nil
}

// scriptedError maps a scenario error name to what the real gateway returns.
func scriptedError(name string) (error, error) {
	switch name {
	case "network":
		return testutil.NetworkDown(), nil
	case "rejected":
		return testutil.Rejected(500, "scripted rejection"), nil
	case "ok":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown error %q (want network, rejected or ok)", name)
	}
}

func argString(args map[string]any, key string) (string, error) {
	v, ok := args[key].(string)
	if !ok {
		return "", fmt.Errorf("%s must be a string", key)
	}
	return v, nil
}

func argBool(args map[string]any, key string) (bool, error) {
	v, ok := args[key].(bool)
	if !ok {
		return false, fmt.Errorf("%s must be a boolean", key)
	}
	return v, nil
}

// argFloat reads an optional coordinate. YAML decodes whole numbers as int.
func argFloat(args map[string]any, key string) (*float64, error) {
	v, ok := args[key]
	if !ok || v == nil {
		return nil, nil
	}
	switch n := v.(type) {
	case int:
		return story.Float(float64(n)), nil
	case float64:
		return story.Float(n), nil
	default:
		return nil, fmt.Errorf("%s must be a number", key)
	}
}
