package engine

import (
	"context"
	"fmt"

	"github.com/roach88/portwire/internal/graph"
	"github.com/roach88/portwire/internal/rules"
)

// Dispatcher is the single consumer of the Channel. It applies Commands to
// the server one at a time, in FIFO order.
//
// Thread-safety model:
//   - Run(): must be called from exactly one goroutine
//   - Drain(): must not run concurrently with Run
//   - Apply(): safe from any goroutine the server allows blocking calls on
type Dispatcher struct {
	server graph.Server
	ch     *Channel
	opts   options
}

// NewDispatcher creates a Dispatcher draining ch into server.
func NewDispatcher(server graph.Server, ch *Channel, opts ...Option) *Dispatcher {
	return &Dispatcher{
		server: server,
		ch:     ch,
		opts:   buildOptions(opts),
	}
}

// Run receives and applies Commands until the Channel is closed and drained
// (returns nil) or ctx is cancelled (returns ctx.Err()).
//
// ERROR HANDLING: a failed Command is logged and the loop continues. Failed
// Commands are never retried; by then the snapshot they came from is stale.
func (d *Dispatcher) Run(ctx context.Context) error {
	d.opts.logger.Info("dispatcher starting")

	for {
		cmd, ok := d.ch.Receive(ctx)
		if !ok {
			if err := ctx.Err(); err != nil {
				d.opts.logger.Info("dispatcher stopping: context cancelled")
				return err
			}
			d.opts.logger.Info("dispatcher stopping: channel closed")
			return nil
		}
		_ = d.Apply(cmd)
	}
}

// Drain applies every queued Command without waiting for more and returns
// how many were taken off the Channel.
func (d *Dispatcher) Drain(ctx context.Context) int {
	n := 0
	for ctx.Err() == nil {
		cmd, ok := d.ch.TryReceive()
		if !ok {
			break
		}
		_ = d.Apply(cmd)
		n++
	}
	return n
}

// Apply performs one Command against the server. The returned error, if
// any, is a *DispatchError; it has already been logged and reported to the
// Observer.
func (d *Dispatcher) Apply(cmd Command) error {
	err := d.apply(cmd)
	if err != nil {
		err = &DispatchError{Command: cmd, Err: err}
		d.opts.logger.Warn("command failed",
			"batch", cmd.Batch,
			"seq", cmd.Seq,
			"action", cmd.Action.String(),
			"from", cmd.From,
			"to", cmd.To,
			"error", err,
		)
	} else {
		d.opts.logger.Debug("command applied",
			"batch", cmd.Batch,
			"seq", cmd.Seq,
			"action", cmd.Action.String(),
			"from", cmd.From,
			"to", cmd.To,
			"dry_run", d.opts.dryRun,
		)
	}

	d.opts.observer.CommandApplied(cmd, err)
	return err
}

func (d *Dispatcher) apply(cmd Command) error {
	if cmd.Action != rules.Connect && cmd.Action != rules.Disconnect {
		return fmt.Errorf("%w: %d", ErrUnknownAction, cmd.Action)
	}
	if d.opts.dryRun {
		d.opts.logger.Info("dry run", "command", cmd.String(), "batch", cmd.Batch)
		return nil
	}

	if cmd.Action == rules.Connect {
		return d.server.Connect(cmd.From, cmd.To)
	}
	return d.server.Disconnect(cmd.From, cmd.To)
}
