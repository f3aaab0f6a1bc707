// Package harness runs portwire scenarios against an in-memory port graph.
//
// A scenario describes rules, the ports that exist at startup and a list of
// topology steps. The harness runs the same pipeline as the daemon
// (listener, command channel, dispatcher) and records what happened into a
// trace, which can be checked with assertions and compared against golden
// files.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: scenario_name
//	description: "What this scenario validates"
//	rules:
//	  connect:
//	    "^deadbeef:deadbeef_1$": "^Non-Mixer/music:in-1$"
//	  disconnect:
//	    - from: "^system:capture_"
//	      to: "^Non-Mixer/"
//	options:
//	  dedupe: true
//	ports:
//	  - name: Non-Mixer/music:in-1
//	    flags: [input]
//	steps:
//	  - register: { name: "deadbeef:deadbeef_1", flags: [output] }
//	  - unregister: "deadbeef:deadbeef_1"
//	  - link: { from: "a:out", to: "b:in" }
//	assertions:
//	  - type: connected
//	    from: "deadbeef:deadbeef_1"
//	    to: "Non-Mixer/music:in-1"
//
// rules may be replaced by rules_file, a path relative to the scenario file
// in any format the rule loader accepts.
//
// link and unlink change the graph directly, the way a user patching by hand
// would. They produce no registration event.
//
// # Assertion Types
//
//   - connected / not_connected: the final graph has (or lacks) a link
//   - trace_count: number of dispatched commands, optionally by action and result
//   - trace_order: commands (as "connect a -> b") were dispatched in this order
//   - journal_count: number of rows in the dispatch journal
//
// # Deterministic Testing
//
// The graph delivers notifications synchronously and the harness drains the
// command channel after every step, so traces do not depend on goroutine
// scheduling. Batch ids come from testutil.SequenceGenerator and every run
// journals into a fresh in-memory SQLite database.
package harness
