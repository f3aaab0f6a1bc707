package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

// createTestStore creates a new file-backed store for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestDispatch creates a successful connect row.
func createTestDispatch(batch string, seq int64, from, to string) Dispatch {
	return Dispatch{
		Batch:      batch,
		Seq:        seq,
		Action:     "connect",
		From:       from,
		To:         to,
		OK:         true,
		RecordedAt: time.UnixMilli(1_700_000_000_000 + seq),
	}
}

// testContext stands in for testing.T.Context (Go 1.24+): a context that is
// canceled just before the test's Cleanup functions run.
func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return ctx
}
