package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/roach88/portwire/internal/graph"
	"github.com/roach88/portwire/internal/rules"
)

// Service wires a Listener, a Channel and a Dispatcher to one server and
// owns their startup order.
type Service struct {
	server     graph.Server
	ch         *Channel
	listener   *Listener
	dispatcher *Dispatcher
	opts       options

	mu          sync.Mutex
	started     bool
	unsubscribe func()
	done        chan struct{}
	runErr      error
}

// NewService builds the pipeline. Options apply to every component.
func NewService(server graph.Server, holder *rules.Holder, opts ...Option) *Service {
	ch := NewChannel()
	return &Service{
		server:     server,
		ch:         ch,
		listener:   NewListener(server, holder, ch, opts...),
		dispatcher: NewDispatcher(server, ch, opts...),
		opts:       buildOptions(opts),
		done:       make(chan struct{}),
	}
}

// Channel exposes the command queue (for queue-depth metrics).
func (s *Service) Channel() *Channel { return s.ch }

// Listener returns the notification handler.
func (s *Service) Listener() *Listener { return s.listener }

// Dispatcher returns the command consumer.
func (s *Service) Dispatcher() *Dispatcher { return s.dispatcher }

// Start runs the startup pass and brings the pipeline up:
//
//  1. evaluate the ports that already exist and enqueue the Commands
//  2. drain the Channel synchronously, wiring existing ports
//  3. install the Listener on the server
//  4. start the Dispatcher goroutine, unless WithManualDispatch is set
//
// A failure in steps 1 or 3 means the server is unusable and is returned.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return errors.New("service already started")
	}

	enqueued, err := s.listener.Enforce()
	if err != nil {
		return fmt.Errorf("startup pass: %w", err)
	}
	applied := s.dispatcher.Drain(ctx)
	s.opts.logger.Info("startup pass complete", "enqueued", enqueued, "applied", applied)

	unsubscribe, err := s.server.Subscribe(s.listener.HandleEvent)
	if err != nil {
		return fmt.Errorf("subscribe to port registrations: %w", err)
	}
	s.unsubscribe = unsubscribe
	s.started = true

	if s.opts.manual {
		close(s.done)
		return nil
	}

	go func() {
		defer close(s.done)
		s.runErr = s.dispatcher.Run(ctx)
	}()

	return nil
}

// Drain applies every queued Command on the calling goroutine and returns
// how many were applied. It is how commands are dispatched under
// WithManualDispatch.
func (s *Service) Drain(ctx context.Context) int {
	return s.dispatcher.Drain(ctx)
}

// Stop removes the Listener and closes the Channel. The Dispatcher applies
// what is already queued, then exits. Safe to call more than once.
func (s *Service) Stop() {
	s.mu.Lock()
	unsubscribe := s.unsubscribe
	s.unsubscribe = nil
	s.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
	s.ch.Close()
}

// Wait blocks until the Dispatcher exits and returns its error.
// Returns immediately with nil if Start was never called successfully.
func (s *Service) Wait() error {
	s.mu.Lock()
	started := s.started
	s.mu.Unlock()
	if !started {
		return nil
	}

	<-s.done
	return s.runErr
}
