package harness

// TraceEvent records one executed step.
//
// Seq is zero for steps that never reached the journal (advance, refused
// calls). Events lists the kinds deposited by the call.
type TraceEvent struct {
	Step        int      `json:"step"`
	Op          string   `json:"op"`
	Seq         int64    `json:"seq,omitempty"`
	Block       uint64   `json:"block"`
	Caller      string   `json:"caller,omitempty"`
	Receiver    string   `json:"receiver,omitempty"`
	Fingerprint []byte   `json:"fingerprint,omitempty"`
	Outcome     string   `json:"outcome,omitempty"`
	Events      []string `json:"events,omitempty"`
}

// ClaimState is a live claim at the end of a scenario.
type ClaimState struct {
	Fingerprint  string `json:"fingerprint"`
	Owner        string `json:"owner"`
	RegisteredAt uint64 `json:"registered_at"`
}

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass indicates overall test success.
	// True if all expectations and assertions hold.
	Pass bool `json:"pass"`

	// Trace contains every executed step in order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Claims is the final registry state, sorted by fingerprint.
	Claims []ClaimState `json:"claims"`
}

// NewResult creates a new passing result.
// Used as the starting point for test execution.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
		Claims: []ClaimState{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddTrace appends an executed step to the trace.
func (r *Result) AddTrace(ev TraceEvent) {
	r.Trace = append(r.Trace, ev)
}
