// Package testutil holds deterministic helpers shared by package tests and
// the scenario harness.
package testutil

import (
	"fmt"
	"sync"
)

// SequenceGenerator generates numbered batch ids: "batch-1", "batch-2", ...
//
// This enables deterministic test execution and golden snapshot comparison.
// The same scenario with a fresh SequenceGenerator produces byte-identical
// traces.
//
// Unlike engine.FixedGenerator, which panics once its list is exhausted,
// SequenceGenerator never runs out.
//
// Thread-safety: SequenceGenerator is safe for concurrent use via internal mutex.
type SequenceGenerator struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewSequenceGenerator creates a generator. If prefix is empty, "batch" is
// used.
func NewSequenceGenerator(prefix string) *SequenceGenerator {
	if prefix == "" {
		prefix = "batch"
	}
	return &SequenceGenerator{prefix: prefix}
}

// Generate returns the next id.
//
// Implements engine.BatchIDGenerator interface.
func (g *SequenceGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s-%d", g.prefix, g.n)
}

// Reset restarts numbering at 1.
func (g *SequenceGenerator) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n = 0
}
