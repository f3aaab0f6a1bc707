package engine

import (
	"fmt"

	"github.com/roach88/portwire/internal/graph"
	"github.com/roach88/portwire/internal/rules"
)

// Listener bridges server topology events into Commands on a Channel.
//
// HandleEvent runs in the server's notification context. It only reads the
// port list, evaluates rules and performs a non-blocking send; it never
// calls Connect or Disconnect.
//
// Listener has no state between events: every registration is evaluated
// independently against a fresh snapshot.
type Listener struct {
	server graph.Server
	rules  *rules.Holder
	ch     *Channel
	opts   options
}

// NewListener creates a Listener feeding ch.
func NewListener(server graph.Server, holder *rules.Holder, ch *Channel, opts ...Option) *Listener {
	return &Listener{
		server: server,
		rules:  holder,
		ch:     ch,
		opts:   buildOptions(opts),
	}
}

// HandleEvent is the graph.Handler installed with Server.Subscribe.
// Deregistrations are ignored.
func (l *Listener) HandleEvent(ev graph.Event) {
	l.opts.observer.EventReceived(ev)

	if !ev.Registered {
		return
	}

	if _, err := l.Enforce(); err != nil {
		l.opts.logger.Warn("skipping registration event", "port", ev.Port, "id", ev.ID, "error", err)
	}
}

// Enforce evaluates the current snapshot and enqueues the resulting
// Commands. Returns the number of Commands accepted by the Channel.
func (l *Listener) Enforce() (int, error) {
	snapshot, err := l.server.Ports(graph.Filter{})
	if err != nil {
		return 0, fmt.Errorf("list ports: %w", err)
	}

	cmds := Filter(Evaluate(snapshot, l.rules.Load()), l.opts.filter)
	if len(cmds) == 0 {
		return 0, nil
	}

	batch := l.opts.batches.Generate()
	for i := range cmds {
		cmds[i].Batch = batch
	}

	n := l.ch.SendAll(cmds)
	if n == 0 {
		// Consumer is gone; shutting down.
		l.opts.logger.Debug("channel closed, dropping commands", "batch", batch, "count", len(cmds))
		return 0, nil
	}

	l.opts.observer.CommandsEnqueued(cmds)
	l.opts.logger.Debug("commands enqueued", "batch", batch, "count", n, "ports", len(snapshot))
	return n, nil
}
