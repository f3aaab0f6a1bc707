// Package rules holds the rule model for portwire: compiled port-name
// patterns, connect/disconnect rules, and the RuleSet that groups them.
//
// A RuleSet is built once by Load (or Build) and is never mutated afterwards.
// Consumers that need to observe reloads read it through a Holder, which
// swaps whole RuleSets atomically.
//
// Rule files are YAML, JSON or CUE. Declaration order is preserved in every
// format because evaluation order is significant:
//
//	connect:
//	  "^app:out$": "^mixer:in$"
//	  "glob:synth:out_*": ["^system:playback_1$", "^system:playback_2$"]
//	disconnect:
//	  - from: "=system:capture_1"
//	    to: "^app:in$"
package rules
