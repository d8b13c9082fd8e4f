package harness

// Trace event types.
const (
	EventInvocation = "invocation"
	EventCompletion = "completion"
	EventNotice     = "notice"
)

// TraceEvent is one entry of a scenario trace. Invocations and notices
// carry an action; completions carry the output case of the invocation
// they close.
type TraceEvent struct {
	Type       string         `json:"type"`
	ActionURI  string         `json:"action_uri,omitempty"`
	Args       map[string]any `json:"args,omitempty"`
	OutputCase string         `json:"output_case,omitempty"`
	Result     map[string]any `json:"result,omitempty"`
	Seq        int64          `json:"seq"`
}

// isAction reports whether the event names an action, which is what the
// trace assertions match against.
func (e TraceEvent) isAction() bool {
	return e.Type == EventInvocation || e.Type == EventNotice
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when every expect clause and assertion held.
	Pass bool `json:"pass"`

	// Trace contains invocations, notices and completions in order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains validation error messages. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

func (r *Result) add(ev TraceEvent) {
	ev.Seq = int64(len(r.Trace) + 1)
	r.Trace = append(r.Trace, ev)
}

// AddInvocationTrace adds an invocation to the trace.
func (r *Result) AddInvocationTrace(actionURI string, args map[string]any) {
	r.add(TraceEvent{Type: EventInvocation, ActionURI: actionURI, Args: args})
}

// AddCompletionTrace adds a completion to the trace.
func (r *Result) AddCompletionTrace(outputCase string, result map[string]any) {
	r.add(TraceEvent{Type: EventCompletion, OutputCase: outputCase, Result: result})
}

// AddNoticeTrace adds a user notice to the trace.
func (r *Result) AddNoticeTrace(actionURI string, result map[string]any) {
	r.add(TraceEvent{Type: EventNotice, ActionURI: actionURI, Result: result})
}
