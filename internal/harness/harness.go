package harness

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/roach88/portwire/internal/engine"
	"github.com/roach88/portwire/internal/graph"
	"github.com/roach88/portwire/internal/logging"
	"github.com/roach88/portwire/internal/rules"
	"github.com/roach88/portwire/internal/store"
	"github.com/roach88/portwire/internal/testutil"
)

// Harness is the test execution engine.
// It drives an in-memory graph through a scenario with deterministic batch
// ids and a synchronous dispatcher.
type Harness struct {
	graph    *graph.Memory
	store    *store.Store
	service  *engine.Service
	recorder *recorder
	logger   *slog.Logger
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation.
//
// Execution flow:
// 1. Create fresh in-memory database and graph
// 2. Compile the rules
// 3. Register initial ports, then start the service: startup pass,
//    drain, subscribe, exactly as the daemon does
// 4. Apply each step, draining after each
// 5. Evaluate assertions and return the trace
//
// An error is returned when the scenario itself cannot run (bad rules, a
// step that registers a duplicate port). Failed commands are not errors;
// they are recorded in the trace.
func Run(scenario *Scenario) (*Result, error) {
	return RunWithLogger(scenario, logging.Discard())
}

// RunWithLogger is Run with pipeline logging sent to logger.
func RunWithLogger(scenario *Scenario, logger *slog.Logger) (*Result, error) {
	rs, err := scenario.RuleSet()
	if err != nil {
		return nil, fmt.Errorf("failed to compile rules: %w", err)
	}

	// Create fresh in-memory SQLite database
	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	m := graph.NewMemory()
	for _, p := range scenario.Ports {
		if _, err := m.Register(p.Name, p.PortType(), p.PortFlags()); err != nil {
			return nil, fmt.Errorf("initial ports: %w", err)
		}
	}

	rec := &recorder{}
	opts := []engine.Option{
		engine.WithLogger(logger),
		engine.WithBatchIDs(testutil.NewSequenceGenerator("batch")),
		engine.WithFilter(engine.FilterOptions{
			SkipSelf: scenario.Options.SkipSelf,
			Dedupe:   scenario.Options.Dedupe,
		}),
		engine.WithObserver(engine.Observers{rec, store.NewJournal(st, logger)}),
	}

	h := &Harness{
		graph:    m,
		store:    st,
		service:  engine.NewService(m, rules.NewHolder(rs), append(opts, engine.WithManualDispatch())...),
		recorder: rec,
		logger:   logger,
	}

	ctx := context.Background()

	// Same startup path as the daemon: startup pass, drain, subscribe.
	rec.setStep(0)
	rec.append(TraceEvent{Kind: KindStartup})
	if err := h.service.Start(ctx); err != nil {
		return nil, err
	}
	defer h.service.Stop()

	for i, step := range scenario.Steps {
		if err := h.executeStep(ctx, i+1, step); err != nil {
			return nil, fmt.Errorf("steps[%d]: %w", i, err)
		}
	}

	result := NewResult()
	result.Trace = rec.events()
	if conns := m.Connections(); len(conns) > 0 {
		result.Connections = conns
	}

	// Evaluate assertions against the result
	actx := &AssertionContext{
		Graph: m,
		Store: st,
		Ctx:   ctx,
	}
	for _, errMsg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(errMsg)
	}

	return result, nil
}

// executeStep applies one topology change and drains whatever the listener
// enqueued in response.
func (h *Harness) executeStep(ctx context.Context, n int, step Step) error {
	h.recorder.setStep(n)

	switch {
	case step.Register != nil:
		p := step.Register
		if _, err := h.graph.Register(p.Name, p.PortType(), p.PortFlags()); err != nil {
			return err
		}
	case step.Unregister != "":
		if err := h.graph.Unregister(step.Unregister); err != nil {
			return err
		}
	case step.Link != nil:
		err := h.graph.Connect(step.Link.From, step.Link.To)
		h.recorder.append(manualChange(KindLink, step.Link, err))
	case step.Unlink != nil:
		err := h.graph.Disconnect(step.Unlink.From, step.Unlink.To)
		h.recorder.append(manualChange(KindUnlink, step.Unlink, err))
	}

	h.service.Drain(ctx)
	return nil
}

func manualChange(kind string, l *LinkSpec, err error) TraceEvent {
	return TraceEvent{Kind: kind, From: l.From, To: l.To, Result: resultOf(err)}
}

func resultOf(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// recorder turns observer callbacks into trace entries tagged with the
// current step.
type recorder struct {
	mu    sync.Mutex
	step  int
	trace []TraceEvent
}

var _ engine.Observer = (*recorder)(nil)

func (r *recorder) setStep(n int) {
	r.mu.Lock()
	r.step = n
	r.mu.Unlock()
}

func (r *recorder) append(e TraceEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e.Step = r.step
	r.trace = append(r.trace, e)
}

func (r *recorder) events() []TraceEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]TraceEvent, len(r.trace))
	copy(out, r.trace)
	return out
}

func (r *recorder) EventReceived(ev graph.Event) {
	registered := ev.Registered
	r.append(TraceEvent{Kind: KindEvent, Port: ev.Port, Registered: &registered})
}

func (r *recorder) CommandsEnqueued([]engine.Command) {}

func (r *recorder) CommandApplied(cmd engine.Command, err error) {
	r.append(TraceEvent{
		Kind:   KindCommand,
		Batch:  cmd.Batch,
		Seq:    cmd.Seq,
		Action: cmd.Action.String(),
		From:   cmd.From,
		To:     cmd.To,
		Result: resultOf(err),
	})
}
