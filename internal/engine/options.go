package engine

import (
	"io"
	"log/slog"
)

type options struct {
	logger   *slog.Logger
	batches  BatchIDGenerator
	filter   FilterOptions
	observer Observer
	dryRun   bool
	manual   bool
}

func defaultOptions() options {
	return options{
		logger:   slog.Default(),
		batches:  UUIDv7Generator{},
		observer: NopObserver{},
	}
}

func buildOptions(opts []Option) options {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Option configures a Listener, Dispatcher or Service.
type Option func(*options)

// WithLogger sets the structured logger. A nil logger discards output.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l == nil {
			l = slog.New(slog.NewTextHandler(io.Discard, nil))
		}
		o.logger = l
	}
}

// WithBatchIDs sets the batch id generator (default UUIDv7Generator).
func WithBatchIDs(g BatchIDGenerator) Option {
	return func(o *options) {
		o.batches = g
	}
}

// WithFilter drops self-links and/or duplicates before enqueueing.
// Default: no filtering.
func WithFilter(f FilterOptions) Option {
	return func(o *options) {
		o.filter = f
	}
}

// WithObserver installs an Observer (default NopObserver).
func WithObserver(obs Observer) Option {
	return func(o *options) {
		if obs == nil {
			obs = NopObserver{}
		}
		o.observer = obs
	}
}

// WithDryRun makes the Dispatcher log commands instead of applying them.
func WithDryRun(dry bool) Option {
	return func(o *options) {
		o.dryRun = dry
	}
}

// WithManualDispatch stops Service.Start from launching the Dispatcher
// goroutine. The caller applies queued commands with Service.Drain, which
// makes dispatch deterministic for simulations.
func WithManualDispatch() Option {
	return func(o *options) {
		o.manual = true
	}
}
