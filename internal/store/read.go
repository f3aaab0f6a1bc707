package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

const dispatchColumns = `id, batch, seq, action, src, dst, ok, error, recorded_at`

// RecentDispatches returns the last limit rows in insertion order (oldest
// first). A limit <= 0 returns every row.
//
// Returns an empty slice (not nil) if the journal is empty.
func (s *Store) RecentDispatches(ctx context.Context, limit int) ([]Dispatch, error) {
	if limit <= 0 {
		return s.queryDispatches(ctx, `
			SELECT `+dispatchColumns+`
			FROM dispatches
			ORDER BY id ASC
		`)
	}
	return s.queryDispatches(ctx, `
		SELECT `+dispatchColumns+` FROM (
			SELECT `+dispatchColumns+`
			FROM dispatches
			ORDER BY id DESC
			LIMIT ?
		)
		ORDER BY id ASC
	`, limit)
}

// ReadBatch returns every row of one evaluation pass, in dispatch order.
func (s *Store) ReadBatch(ctx context.Context, batch string) ([]Dispatch, error) {
	return s.queryDispatches(ctx, `
		SELECT `+dispatchColumns+`
		FROM dispatches
		WHERE batch = ?
		ORDER BY id ASC
	`, batch)
}

// DispatchesForPort returns the last limit rows where port was the source
// or the destination, oldest first.
func (s *Store) DispatchesForPort(ctx context.Context, port string, limit int) ([]Dispatch, error) {
	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}
	return s.queryDispatches(ctx, `
		SELECT `+dispatchColumns+` FROM (
			SELECT `+dispatchColumns+`
			FROM dispatches
			WHERE src = ? OR dst = ?
			ORDER BY id DESC
			LIMIT ?
		)
		ORDER BY id ASC
	`, port, port, limit)
}

func (s *Store) queryDispatches(ctx context.Context, query string, args ...any) ([]Dispatch, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query dispatches: %w", err)
	}
	defer rows.Close()

	dispatches := []Dispatch{}
	for rows.Next() {
		d, err := scanDispatch(rows)
		if err != nil {
			return nil, err
		}
		dispatches = append(dispatches, d)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate dispatches: %w", err)
	}
	return dispatches, nil
}

func scanDispatch(rows *sql.Rows) (Dispatch, error) {
	var (
		d          Dispatch
		ok         int
		recordedAt int64
	)
	if err := rows.Scan(&d.ID, &d.Batch, &d.Seq, &d.Action, &d.From, &d.To, &ok, &d.Error, &recordedAt); err != nil {
		return Dispatch{}, fmt.Errorf("scan dispatch: %w", err)
	}
	d.OK = ok == 1
	d.RecordedAt = time.UnixMilli(recordedAt)
	return d, nil
}
