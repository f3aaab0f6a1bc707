package store

import (
	"context"
	"log/slog"
	"time"

	"github.com/roach88/portwire/internal/engine"
	"github.com/roach88/portwire/internal/graph"
)

// Journal records every applied command. It implements engine.Observer;
// only CommandApplied writes, from the dispatcher goroutine.
//
// A journal write failure is logged and never affects dispatch.
type Journal struct {
	store   *Store
	logger  *slog.Logger
	now     func() time.Time
	timeout time.Duration
}

var _ engine.Observer = (*Journal)(nil)

// NewJournal returns a Journal writing to s.
func NewJournal(s *Store, logger *slog.Logger) *Journal {
	if logger == nil {
		logger = slog.Default()
	}
	return &Journal{
		store:   s,
		logger:  logger,
		now:     time.Now,
		timeout: 5 * time.Second,
	}
}

// EventReceived implements engine.Observer.
func (j *Journal) EventReceived(graph.Event) {}

// CommandsEnqueued implements engine.Observer.
func (j *Journal) CommandsEnqueued([]engine.Command) {}

// CommandApplied implements engine.Observer.
func (j *Journal) CommandApplied(cmd engine.Command, err error) {
	d := Dispatch{
		Batch:      cmd.Batch,
		Seq:        cmd.Seq,
		Action:     cmd.Action.String(),
		From:       cmd.From,
		To:         cmd.To,
		OK:         err == nil,
		RecordedAt: j.now(),
	}
	if err != nil {
		d.Error = err.Error()
	}

	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()
	if _, werr := j.store.WriteDispatch(ctx, d); werr != nil {
		j.logger.Warn("journal write failed", "batch", cmd.Batch, "seq", cmd.Seq, "error", werr)
	}
}
