package harness

import (
	"context"
	"fmt"
	"strings"

	"github.com/roach88/portwire/internal/graph"
	"github.com/roach88/portwire/internal/store"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	// Header with assertion type
	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)

	// Expected vs Actual (most important info)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) == 0 {
		return buf.String()
	}

	// Dispatched commands for context
	fmt.Fprintf(&buf, "\nDispatched commands:\n")
	for _, event := range e.Trace {
		if event.Kind == KindCommand {
			fmt.Fprintf(&buf, "  [%d] %s (%s)\n", event.Seq, event.Command(), event.Result)
		}
	}

	return buf.String()
}

// assertConnected checks the final graph for a link.
func assertConnected(g *graph.Memory, trace []TraceEvent, assertion Assertion, want bool) error {
	if g.Connected(assertion.From, assertion.To) == want {
		return nil
	}

	expected, actual := "linked", "not linked"
	if !want {
		expected, actual = actual, expected
	}
	return &AssertionError{
		Type:     assertion.Type,
		Expected: fmt.Sprintf("%s -> %s %s", assertion.From, assertion.To, expected),
		Actual:   actual,
		Trace:    trace,
	}
}

// assertTraceCount checks how many commands were dispatched, optionally
// narrowed by action and result.
func assertTraceCount(trace []TraceEvent, assertion Assertion) error {
	count := 0
	for _, event := range trace {
		if event.Kind != KindCommand {
			continue
		}
		if assertion.Action != "" && event.Action != assertion.Action {
			continue
		}
		if assertion.Result != "" && event.Result != assertion.Result {
			continue
		}
		count++
	}

	if count != assertion.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d commands%s", assertion.Count, describeNarrowing(assertion)),
			Actual:   fmt.Sprintf("%d commands", count),
			Trace:    trace,
		}
	}
	return nil
}

// assertTraceOrder checks that the listed commands were dispatched in this
// order. Other commands may appear in between.
func assertTraceOrder(trace []TraceEvent, assertion Assertion) error {
	next := 0
	for _, event := range trace {
		if next == len(assertion.Commands) {
			break
		}
		if event.Kind == KindCommand && event.Command() == normalizeCommand(assertion.Commands[next]) {
			next++
		}
	}

	if next < len(assertion.Commands) {
		return &AssertionError{
			Type:     AssertTraceOrder,
			Expected: fmt.Sprintf("commands in order: %v", assertion.Commands),
			Actual:   fmt.Sprintf("%q not found after %d matched", assertion.Commands[next], next),
			Trace:    trace,
		}
	}
	return nil
}

// assertJournalCount counts journal rows, optionally narrowed by result.
func assertJournalCount(ctx context.Context, st *store.Store, assertion Assertion) error {
	rows, err := st.RecentDispatches(ctx, 0)
	if err != nil {
		return fmt.Errorf("read journal: %w", err)
	}

	count := 0
	for _, d := range rows {
		if assertion.Action != "" && d.Action != assertion.Action {
			continue
		}
		if assertion.Result == "ok" && !d.OK || assertion.Result == "error" && d.OK {
			continue
		}
		count++
	}

	if count != assertion.Count {
		return &AssertionError{
			Type:     AssertJournalCount,
			Expected: fmt.Sprintf("%d journal rows%s", assertion.Count, describeNarrowing(assertion)),
			Actual:   fmt.Sprintf("%d journal rows", count),
		}
	}
	return nil
}

func describeNarrowing(a Assertion) string {
	var parts []string
	if a.Action != "" {
		parts = append(parts, "action="+a.Action)
	}
	if a.Result != "" {
		parts = append(parts, "result="+a.Result)
	}
	if len(parts) == 0 {
		return ""
	}
	return " with " + strings.Join(parts, " ")
}

// normalizeCommand collapses runs of whitespace so "connect a  ->  b"
// matches.
func normalizeCommand(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// AssertionContext provides context for evaluating assertions.
type AssertionContext struct {
	Graph *graph.Memory
	Store *store.Store
	Ctx   context.Context
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
// The actx parameter provides the final graph and the journal.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertConnected, AssertNotConnected:
			if actx == nil || actx.Graph == nil {
				err = fmt.Errorf("assertion[%d]: %s requires graph context", i, assertion.Type)
			} else {
				err = assertConnected(actx.Graph, result.Trace, assertion, assertion.Type == AssertConnected)
			}
		case AssertTraceCount:
			err = assertTraceCount(result.Trace, assertion)
		case AssertTraceOrder:
			err = assertTraceOrder(result.Trace, assertion)
		case AssertJournalCount:
			if actx == nil || actx.Store == nil {
				err = fmt.Errorf("assertion[%d]: journal_count requires database context", i)
			} else {
				err = assertJournalCount(actx.Ctx, actx.Store, assertion)
			}
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}
