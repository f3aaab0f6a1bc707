// Package jackcli drives a running JACK server (or PipeWire's JACK layer)
// through the stock JACK command line tools.
//
// Port listings come from jack_lsp, links are made and broken with
// jack_connect and jack_disconnect, and topology events are read from a
// long-running jack_evmon. Every command line is configurable, so wrappers
// such as `pw-jack jack_lsp` work unchanged.
//
// jack_evmon reports numeric port ids only. The client keeps the last
// listing and diffs it against a fresh one to name the ports an event is
// about.
package jackcli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/shlex"

	"github.com/roach88/portwire/internal/graph"
)

// Commands holds the command lines for each JACK tool. Each is split into
// argv with shell quoting rules.
type Commands struct {
	LSP        string
	Connect    string
	Disconnect string
	Evmon      string
}

// DefaultCommands uses the JACK example clients from $PATH. jack_evmon is
// run line-buffered because it does not flush its output.
func DefaultCommands() Commands {
	return Commands{
		LSP:        "jack_lsp",
		Connect:    "jack_connect",
		Disconnect: "jack_disconnect",
		Evmon:      "stdbuf -oL jack_evmon",
	}
}

type argvs struct {
	lsp, connect, disconnect, evmon []string
}

func splitCommands(c Commands) (argvs, error) {
	var a argvs
	for _, f := range []struct {
		key  string
		line string
		dst  *[]string
	}{
		{"lsp", c.LSP, &a.lsp},
		{"connect", c.Connect, &a.connect},
		{"disconnect", c.Disconnect, &a.disconnect},
		{"evmon", c.Evmon, &a.evmon},
	} {
		argv, err := shlex.Split(f.line)
		if err != nil {
			return argvs{}, fmt.Errorf("jack.%s: %w", f.key, err)
		}
		if len(argv) == 0 {
			return argvs{}, fmt.Errorf("jack.%s: empty command line", f.key)
		}
		*f.dst = argv
	}
	return a, nil
}

// Option configures a Client.
type Option func(*Client)

// WithRunner replaces the process runner.
func WithRunner(r Runner) Option {
	return func(c *Client) { c.runner = r }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithTimeout bounds each one-shot tool invocation (default 5s).
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// WithShutdownHandler is called when jack_evmon exits on its own, which
// happens when the server goes away.
func WithShutdownHandler(fn func(error)) Option {
	return func(c *Client) { c.onShutdown = fn }
}

// Client implements graph.Server on top of the JACK tools.
type Client struct {
	argv       argvs
	runner     Runner
	logger     *slog.Logger
	timeout    time.Duration
	onShutdown func(error)

	// mu guards known, the last listing used to name evmon events.
	mu    sync.Mutex
	known []graph.Port
}

var _ graph.Server = (*Client)(nil)
var _ graph.Describer = (*Client)(nil)

// New returns a Client for the given command lines. Child processes never
// start a JACK server on their own.
func New(cmds Commands, opts ...Option) (*Client, error) {
	argv, err := splitCommands(cmds)
	if err != nil {
		return nil, err
	}

	c := &Client{
		argv:    argv,
		runner:  ExecRunner{Env: []string{"JACK_NO_START_SERVER=1"}},
		logger:  slog.Default(),
		timeout: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Ports lists port names in the order jack_lsp prints them.
func (c *Client) Ports(filter graph.Filter) ([]string, error) {
	ports, err := c.Describe(filter)
	if err != nil {
		return nil, err
	}
	return graph.Names(ports), nil
}

// Describe lists ports with type and flags.
func (c *Client) Describe(filter graph.Filter) ([]graph.Port, error) {
	ports, err := c.list()
	if err != nil {
		return nil, err
	}
	return graph.Select(ports, filter)
}

func (c *Client) list() ([]graph.Port, error) {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	out, err := c.runner.Run(ctx, append(clone(c.argv.lsp), "-p", "-t"))
	if err != nil {
		return nil, fmt.Errorf("list ports: %w", err)
	}
	ports, err := ParseListing(out)
	if err != nil {
		return nil, fmt.Errorf("list ports: %w", err)
	}
	return ports, nil
}

// Connect runs jack_connect.
func (c *Client) Connect(from, to string) error {
	return c.link(c.argv.connect, from, to)
}

// Disconnect runs jack_disconnect.
func (c *Client) Disconnect(from, to string) error {
	return c.link(c.argv.disconnect, from, to)
}

func (c *Client) link(base []string, from, to string) error {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	_, err := c.runner.Run(ctx, append(clone(base), from, to))
	return err
}

// Subscribe starts jack_evmon and calls h for every port registration and
// deregistration it reports. Events are delivered one at a time from a
// single goroutine. The returned function stops jack_evmon and waits for
// delivery to end.
func (c *Client) Subscribe(h graph.Handler) (func(), error) {
	if h == nil {
		return nil, errors.New("nil handler")
	}

	// Seed the listing so the first event diffs against the current graph.
	seed, err := c.list()
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.known = seed
	c.mu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	stdout, wait, err := c.runner.Start(ctx, c.argv.evmon)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("start event monitor: %w", err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		c.readEvents(stdout, h)
		_ = stdout.Close()
		err := wait()

		if ctx.Err() != nil {
			return
		}
		if err == nil {
			err = io.EOF
		}
		c.logger.Error("event monitor exited", "error", err)
		if c.onShutdown != nil {
			c.onShutdown(err)
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			<-done
		})
	}, nil
}

func (c *Client) readEvents(r io.Reader, h graph.Handler) {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		id, registered, ok := parseEvent(sc.Text())
		if !ok {
			continue
		}
		h(c.resolve(id, registered))
	}
}

// resolve turns one evmon line into exactly one event. The port is named
// only when the listing diff finds a single changed port; when several ports
// changed between listings (a client registering ports in a burst) or none
// did, the event is nameless. Handlers re-evaluate the whole listing either
// way.
func (c *Client) resolve(id uint32, registered bool) graph.Event {
	ev := graph.Event{ID: id, Registered: registered}

	current, err := c.list()
	if err != nil {
		c.logger.Warn("cannot name port from event", "id", id, "error", err)
		return ev
	}

	c.mu.Lock()
	previous := c.known
	c.known = current
	c.mu.Unlock()

	var changed []string
	if registered {
		changed = difference(current, previous)
	} else {
		changed = difference(previous, current)
	}
	if len(changed) == 1 {
		ev.Port = changed[0]
	}
	return ev
}

// difference returns names in a that are not in b, in a's order.
func difference(a, b []graph.Port) []string {
	seen := make(map[string]struct{}, len(b))
	for _, p := range b {
		seen[p.Name] = struct{}{}
	}
	var out []string
	for _, p := range a {
		if _, ok := seen[p.Name]; !ok {
			out = append(out, p.Name)
		}
	}
	return out
}

func clone(s []string) []string {
	return append([]string(nil), s...)
}
