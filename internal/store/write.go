package store

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Dispatch is one journal row.
type Dispatch struct {
	ID         int64     `json:"id"`
	Batch      string    `json:"batch"`
	Seq        int64     `json:"seq"`
	Action     string    `json:"action"`
	From       string    `json:"from"`
	To         string    `json:"to"`
	OK         bool      `json:"ok"`
	Error      string    `json:"error,omitempty"`
	RecordedAt time.Time `json:"recorded_at"`
}

// WriteDispatch appends d to the journal and returns its id. d.ID is
// ignored; a zero RecordedAt is stored as the current time.
func (s *Store) WriteDispatch(ctx context.Context, d Dispatch) (int64, error) {
	if d.Action == "" {
		return 0, errors.New("write dispatch: action is required")
	}
	if d.RecordedAt.IsZero() {
		d.RecordedAt = time.Now()
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO dispatches
		(batch, seq, action, src, dst, ok, error, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		d.Batch,
		d.Seq,
		d.Action,
		d.From,
		d.To,
		boolToInt(d.OK),
		d.Error,
		d.RecordedAt.UnixMilli(),
	)
	if err != nil {
		return 0, fmt.Errorf("write dispatch: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("write dispatch: %w", err)
	}
	return id, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
