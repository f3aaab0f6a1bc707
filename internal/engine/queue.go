package engine

import (
	"context"
	"sync"
)

// Channel is the multi-producer, single-consumer Command queue between the
// notification context and the Dispatcher.
//
// The queue is unbounded so that Send never blocks the audio server's
// notification goroutine, however many commands a rule set produces.
//
// A buffered signal channel of size 1 wakes the consumer; multiple sends
// coalesce into one wake-up and the consumer drains until empty.
type Channel struct {
	mu     sync.Mutex
	cmds   []Command
	closed bool
	signal chan struct{} // Signals command availability (buffered, size 1)
	clock  *Clock
}

// NewChannel creates an empty, open channel.
func NewChannel() *Channel {
	return &Channel{
		cmds:   make([]Command, 0, 64),
		signal: make(chan struct{}, 1),
		clock:  NewClock(),
	}
}

// Send enqueues one command. Never blocks.
// Returns false if the channel has been closed; the command is dropped.
func (c *Channel) Send(cmd Command) bool {
	return c.SendAll([]Command{cmd}) == 1
}

// SendAll enqueues cmds contiguously and in order under a single lock, so
// commands from one evaluation are never interleaved with another producer's.
// Each accepted command's Seq is stamped in cmds as well as in the queue,
// so the caller can report exactly what was enqueued.
// Returns the number of commands accepted: len(cmds), or 0 once closed.
func (c *Channel) SendAll(cmds []Command) int {
	if len(cmds) == 0 {
		return 0
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return 0
	}

	for i := range cmds {
		cmds[i].Seq = c.clock.Next()
		c.cmds = append(c.cmds, cmds[i])
	}

	// Non-blocking: a pending signal already covers these commands.
	select {
	case c.signal <- struct{}{}:
	default:
	}

	return len(cmds)
}

// TryReceive removes and returns the front command without blocking.
// Returns (Command{}, false) if the channel is empty.
func (c *Channel) TryReceive() (Command, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.cmds) == 0 {
		return Command{}, false
	}

	cmd := c.cmds[0]
	c.cmds[0] = Command{}

	if len(c.cmds) == 1 {
		c.cmds = c.cmds[:0]
	} else {
		c.cmds = c.cmds[1:]
	}

	return cmd, true
}

// Receive blocks until a command is available.
// Returns (Command{}, false) when the channel is closed and drained, or when
// ctx is done.
func (c *Channel) Receive(ctx context.Context) (Command, bool) {
	for {
		if cmd, ok := c.TryReceive(); ok {
			return cmd, true
		}

		if c.isDrained() {
			return Command{}, false
		}

		select {
		case <-ctx.Done():
			return Command{}, false
		case <-c.signal:
			// Loop back to TryReceive. After Close the signal channel is
			// closed and this case fires immediately.
		}
	}
}

// Len returns the number of queued commands.
func (c *Channel) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.cmds)
}

// Close stops accepting commands and wakes the consumer. Commands already
// queued can still be received. Safe to call more than once.
func (c *Channel) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}

	c.closed = true
	close(c.signal)
}

// Closed reports whether Close has been called.
func (c *Channel) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *Channel) isDrained() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed && len(c.cmds) == 0
}
