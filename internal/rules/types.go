package rules

import (
	"encoding/json"
	"sync/atomic"
)

// Action is what a rule (or a command derived from it) does to a port pair.
type Action int

const (
	// Connect links a source port to a destination port.
	Connect Action = iota + 1
	// Disconnect removes an existing link.
	Disconnect
)

// String returns the lower-case action name used in rule files and logs.
func (a Action) String() string {
	switch a {
	case Connect:
		return "connect"
	case Disconnect:
		return "disconnect"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (a Action) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// Rule pairs a source and destination pattern with an action.
type Rule struct {
	Action Action
	Source Pattern
	Dest   Pattern
}

// RuleSet is the ordered, read-only rule table.
//
// Connect and Disconnect are evaluated independently, connect first,
// each in declaration order.
type RuleSet struct {
	Connect    []Rule
	Disconnect []Rule
}

// Len returns the total number of rules.
func (rs *RuleSet) Len() int {
	if rs == nil {
		return 0
	}
	return len(rs.Connect) + len(rs.Disconnect)
}

type ruleJSON struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// MarshalJSON renders the rule set in the sequence form accepted by Load.
func (rs *RuleSet) MarshalJSON() ([]byte, error) {
	out := struct {
		Connect    []ruleJSON `json:"connect"`
		Disconnect []ruleJSON `json:"disconnect"`
	}{
		Connect:    []ruleJSON{},
		Disconnect: []ruleJSON{},
	}
	if rs != nil {
		for _, r := range rs.Connect {
			out.Connect = append(out.Connect, ruleJSON{From: r.Source.String(), To: r.Dest.String()})
		}
		for _, r := range rs.Disconnect {
			out.Disconnect = append(out.Disconnect, ruleJSON{From: r.Source.String(), To: r.Dest.String()})
		}
	}
	return json.Marshal(out)
}

// Holder shares the current RuleSet between the notification path and the
// reload path. Readers always see a complete RuleSet; writers replace it
// wholesale.
type Holder struct {
	current atomic.Pointer[RuleSet]
}

// NewHolder returns a Holder seeded with rs.
func NewHolder(rs *RuleSet) *Holder {
	h := &Holder{}
	h.Store(rs)
	return h
}

// Load returns the current RuleSet. Never nil.
func (h *Holder) Load() *RuleSet {
	if rs := h.current.Load(); rs != nil {
		return rs
	}
	return &RuleSet{}
}

// Store replaces the current RuleSet.
func (h *Holder) Store(rs *RuleSet) {
	if rs == nil {
		rs = &RuleSet{}
	}
	h.current.Store(rs)
}
