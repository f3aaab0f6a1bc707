package store

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/roach88/portwire/internal/engine"
	"github.com/roach88/portwire/internal/graph"
)

func TestWriteDispatch_AssignsIncreasingIDs(t *testing.T) {
	s := createTestStore(t)
	ctx := testContext(t)

	id1, err := s.WriteDispatch(ctx, createTestDispatch("b1", 1, "a:out", "b:in"))
	if err != nil {
		t.Fatalf("WriteDispatch() failed: %v", err)
	}
	id2, err := s.WriteDispatch(ctx, createTestDispatch("b1", 2, "a:out", "c:in"))
	if err != nil {
		t.Fatalf("WriteDispatch() failed: %v", err)
	}
	if id2 <= id1 {
		t.Errorf("ids not increasing: %d then %d", id1, id2)
	}
}

func TestWriteDispatch_RequiresAction(t *testing.T) {
	s := createTestStore(t)

	_, err := s.WriteDispatch(testContext(t), Dispatch{From: "a", To: "b"})
	if err == nil {
		t.Fatal("expected error for missing action")
	}
}

func TestWriteDispatch_DefaultsRecordedAt(t *testing.T) {
	s := createTestStore(t)
	before := time.Now().Add(-time.Second)

	d := createTestDispatch("b1", 1, "a:out", "b:in")
	d.RecordedAt = time.Time{}
	if _, err := s.WriteDispatch(testContext(t), d); err != nil {
		t.Fatalf("WriteDispatch() failed: %v", err)
	}

	got, err := s.RecentDispatches(testContext(t), 1)
	if err != nil {
		t.Fatalf("RecentDispatches() failed: %v", err)
	}
	if got[0].RecordedAt.Before(before) {
		t.Errorf("recorded_at = %v, want now", got[0].RecordedAt)
	}
}

func TestRecentDispatches_OrderAndLimit(t *testing.T) {
	s := createTestStore(t)
	ctx := testContext(t)

	for i, to := range []string{"p1", "p2", "p3", "p4"} {
		if _, err := s.WriteDispatch(ctx, createTestDispatch("b", int64(i+1), "src", to)); err != nil {
			t.Fatalf("WriteDispatch() failed: %v", err)
		}
	}

	last2, err := s.RecentDispatches(ctx, 2)
	if err != nil {
		t.Fatalf("RecentDispatches() failed: %v", err)
	}
	if len(last2) != 2 || last2[0].To != "p3" || last2[1].To != "p4" {
		t.Errorf("RecentDispatches(2) = %+v, want p3 then p4", last2)
	}

	all, err := s.RecentDispatches(ctx, 0)
	if err != nil {
		t.Fatalf("RecentDispatches() failed: %v", err)
	}
	if len(all) != 4 || all[0].To != "p1" {
		t.Errorf("RecentDispatches(0) = %+v, want all four oldest first", all)
	}
}

func TestRecentDispatches_EmptyIsNotNil(t *testing.T) {
	s := createTestStore(t)

	got, err := s.RecentDispatches(testContext(t), 10)
	if err != nil {
		t.Fatalf("RecentDispatches() failed: %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Errorf("RecentDispatches() = %#v, want empty non-nil slice", got)
	}
}

func TestReadBatch(t *testing.T) {
	s := createTestStore(t)
	ctx := testContext(t)

	writes := []Dispatch{
		createTestDispatch("b1", 1, "a:out", "x:in"),
		createTestDispatch("b2", 2, "c:out", "x:in"),
		createTestDispatch("b1", 3, "a:out", "y:in"),
	}
	for _, d := range writes {
		if _, err := s.WriteDispatch(ctx, d); err != nil {
			t.Fatalf("WriteDispatch() failed: %v", err)
		}
	}

	got, err := s.ReadBatch(ctx, "b1")
	if err != nil {
		t.Fatalf("ReadBatch() failed: %v", err)
	}
	if len(got) != 2 || got[0].To != "x:in" || got[1].To != "y:in" {
		t.Errorf("ReadBatch(b1) = %+v", got)
	}
}

func TestDispatchesForPort(t *testing.T) {
	s := createTestStore(t)
	ctx := testContext(t)

	writes := []Dispatch{
		createTestDispatch("b", 1, "synth:out", "mix:in"),
		createTestDispatch("b", 2, "other:out", "rec:in"),
		createTestDispatch("b", 3, "mix:out", "synth:in"),
	}
	for _, d := range writes {
		if _, err := s.WriteDispatch(ctx, d); err != nil {
			t.Fatalf("WriteDispatch() failed: %v", err)
		}
	}

	got, err := s.DispatchesForPort(ctx, "mix:in", 0)
	if err != nil {
		t.Fatalf("DispatchesForPort() failed: %v", err)
	}
	if len(got) != 1 || got[0].From != "synth:out" {
		t.Errorf("DispatchesForPort(mix:in) = %+v", got)
	}
}

func TestJournal_RecordsOutcomes(t *testing.T) {
	s := createTestStore(t)
	j := NewJournal(s, slog.New(slog.NewTextHandler(io.Discard, nil)))
	j.now = func() time.Time { return time.UnixMilli(1_700_000_000_000) }

	ok := engine.ConnectCmd("a:out", "b:in")
	ok.Batch, ok.Seq = "batch-1", 1
	failed := engine.DisconnectCmd("a:out", "c:in")
	failed.Batch, failed.Seq = "batch-1", 2

	// Non-dispatch notifications are ignored.
	j.EventReceived(graph.Event{Port: "a:out", Registered: true})
	j.CommandsEnqueued([]engine.Command{ok, failed})

	j.CommandApplied(ok, nil)
	j.CommandApplied(failed, errors.New("ports not connected"))

	got, err := s.RecentDispatches(testContext(t), 0)
	if err != nil {
		t.Fatalf("RecentDispatches() failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d rows, want 2", len(got))
	}

	first := got[0]
	if first.Batch != "batch-1" || first.Seq != 1 || first.Action != "connect" || !first.OK || first.Error != "" {
		t.Errorf("first row = %+v", first)
	}
	if !first.RecordedAt.Equal(time.UnixMilli(1_700_000_000_000)) {
		t.Errorf("recorded_at = %v", first.RecordedAt)
	}

	second := got[1]
	if second.Action != "disconnect" || second.OK || second.Error != "ports not connected" {
		t.Errorf("second row = %+v", second)
	}
}

func TestJournal_WriteFailureIsLogged(t *testing.T) {
	s := createTestStore(t)
	var buf bytes.Buffer
	j := NewJournal(s, slog.New(slog.NewTextHandler(&buf, nil)))

	s.Close()
	j.CommandApplied(engine.ConnectCmd("a:out", "b:in"), nil)

	if !strings.Contains(buf.String(), "journal write failed") {
		t.Errorf("expected warning, got %q", buf.String())
	}
}
