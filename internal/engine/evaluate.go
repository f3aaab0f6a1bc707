package engine

import (
	"github.com/roach88/portwire/internal/rules"
)

// Evaluate matches a port snapshot against a RuleSet.
//
// For each connect rule in declaration order, every snapshot port matching
// the source pattern is paired with every snapshot port matching the
// destination pattern, both in snapshot order. The disconnect rules follow
// the same way. Self-pairs and duplicates across rules are kept; see Filter.
//
// Evaluate has no side effects and returns nil when nothing matches.
func Evaluate(snapshot []string, rs *rules.RuleSet) []Command {
	if rs == nil || len(snapshot) == 0 {
		return nil
	}

	var cmds []Command
	cmds = appendMatches(cmds, snapshot, rs.Connect, rules.Connect)
	cmds = appendMatches(cmds, snapshot, rs.Disconnect, rules.Disconnect)
	return cmds
}

func appendMatches(cmds []Command, snapshot []string, rs []rules.Rule, action rules.Action) []Command {
	for _, r := range rs {
		var dests []string
		for _, from := range snapshot {
			if !r.Source.Match(from) {
				continue
			}
			// Computed once per rule, on the first source match.
			if dests == nil {
				dests = matching(snapshot, r.Dest)
			}
			for _, to := range dests {
				cmds = append(cmds, Command{Action: action, From: from, To: to})
			}
		}
	}
	return cmds
}

func matching(snapshot []string, p rules.Pattern) []string {
	out := make([]string, 0, 4)
	for _, name := range snapshot {
		if p.Match(name) {
			out = append(out, name)
		}
	}
	return out
}

// FilterOptions selects which commands Filter drops.
type FilterOptions struct {
	// SkipSelf drops commands whose From equals To.
	SkipSelf bool
	// Dedupe keeps only the first command for each (action, from, to).
	Dedupe bool
}

// Enabled reports whether any filtering is requested.
func (o FilterOptions) Enabled() bool {
	return o.SkipSelf || o.Dedupe
}

// Filter applies opts to cmds, preserving order. With zero options it
// returns cmds unchanged.
func Filter(cmds []Command, opts FilterOptions) []Command {
	if !opts.Enabled() || len(cmds) == 0 {
		return cmds
	}

	type key struct {
		action   rules.Action
		from, to string
	}
	var seen map[key]struct{}
	if opts.Dedupe {
		seen = make(map[key]struct{}, len(cmds))
	}

	out := make([]Command, 0, len(cmds))
	for _, c := range cmds {
		if opts.SkipSelf && c.From == c.To {
			continue
		}
		if opts.Dedupe {
			k := key{c.Action, c.From, c.To}
			if _, dup := seen[k]; dup {
				continue
			}
			seen[k] = struct{}{}
		}
		out = append(out, c)
	}
	return out
}
