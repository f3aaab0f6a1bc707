package engine

import (
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/roach88/portwire/internal/graph"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// guardedServer wraps a Memory graph and counts graph mutations attempted
// while a notification is being delivered.
type guardedServer struct {
	*graph.Memory

	inCallback atomic.Bool
	violations atomic.Int32

	portsErr     error
	subscribeErr error
}

func newGuardedServer() *guardedServer {
	return &guardedServer{Memory: graph.NewMemory()}
}

func (g *guardedServer) Ports(f graph.Filter) ([]string, error) {
	if g.portsErr != nil {
		return nil, g.portsErr
	}
	return g.Memory.Ports(f)
}

func (g *guardedServer) Subscribe(h graph.Handler) (func(), error) {
	if g.subscribeErr != nil {
		return nil, g.subscribeErr
	}
	return g.Memory.Subscribe(func(ev graph.Event) {
		g.inCallback.Store(true)
		defer g.inCallback.Store(false)
		h(ev)
	})
}

func (g *guardedServer) Connect(from, to string) error {
	if g.inCallback.Load() {
		g.violations.Add(1)
	}
	return g.Memory.Connect(from, to)
}

func (g *guardedServer) Disconnect(from, to string) error {
	if g.inCallback.Load() {
		g.violations.Add(1)
	}
	return g.Memory.Disconnect(from, to)
}

var errServerDown = errors.New("server down")

// recordingObserver keeps everything it is told.
type recordingObserver struct {
	mu       sync.Mutex
	events   []graph.Event
	enqueued []Command
	applied  []Command
	failed   []Command
}

func (r *recordingObserver) EventReceived(ev graph.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recordingObserver) CommandsEnqueued(cmds []Command) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.enqueued = append(r.enqueued, cmds...)
}

func (r *recordingObserver) CommandApplied(cmd Command, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err != nil {
		r.failed = append(r.failed, cmd)
		return
	}
	r.applied = append(r.applied, cmd)
}

func (r *recordingObserver) counts() (applied, failed int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.applied), len(r.failed)
}
