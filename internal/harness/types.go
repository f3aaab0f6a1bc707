package harness

// Trace entry kinds.
const (
	KindStartup = "startup"
	KindEvent   = "event"
	KindCommand = "command"
	KindLink    = "link"
	KindUnlink  = "unlink"
)

// TraceEvent is one line of a scenario trace.
type TraceEvent struct {
	// Step is the 1-based scenario step, 0 for the startup pass.
	Step int    `json:"step"`
	Kind string `json:"kind"`

	// Port and Registered describe a topology event.
	Port       string `json:"port,omitempty"`
	Registered *bool  `json:"registered,omitempty"`

	// Batch, Seq, Action, From, To and Result describe a dispatched command
	// (or, for link/unlink, a manual change).
	Batch  string `json:"batch,omitempty"`
	Seq    int64  `json:"seq,omitempty"`
	Action string `json:"action,omitempty"`
	From   string `json:"from,omitempty"`
	To     string `json:"to,omitempty"`
	Result string `json:"result,omitempty"`
}

// Command renders a command entry the way trace_order assertions spell it.
func (e TraceEvent) Command() string {
	return e.Action + " " + e.From + " -> " + e.To
}

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass indicates overall test success.
	// True if every assertion held.
	Pass bool `json:"pass"`

	// Trace contains startup, events and commands in order.
	Trace []TraceEvent `json:"trace"`

	// Connections is the final link set, sorted.
	Connections [][2]string `json:"connections"`

	// Errors contains assertion failure messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
// Used as the starting point for test execution.
func NewResult() *Result {
	return &Result{
		Pass:        true,
		Trace:       []TraceEvent{},
		Connections: [][2]string{},
		Errors:      []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// Commands returns the command entries of the trace.
func (r *Result) Commands() []TraceEvent {
	var out []TraceEvent
	for _, e := range r.Trace {
		if e.Kind == KindCommand {
			out = append(out, e)
		}
	}
	return out
}
