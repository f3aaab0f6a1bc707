package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/portwire/internal/config"
	"github.com/roach88/portwire/internal/engine"
	"github.com/roach88/portwire/internal/graph"
	"github.com/roach88/portwire/internal/jackcli"
	"github.com/roach88/portwire/internal/metrics"
	"github.com/roach88/portwire/internal/rules"
	"github.com/roach88/portwire/internal/store"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	RulesFile   string
	DryRun      bool
	Watch       bool
	MetricsAddr string

	// Server allows replacing the JACK backend (for testing).
	// If nil, the jack_* tools from the settings are used.
	Server graph.Server

	// BatchIDs allows overriding the batch id generator (for testing).
	// If nil, defaults to UUIDv7Generator.
	BatchIDs engine.BatchIDGenerator
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	return newRunCommand(&RunOptions{RootOptions: rootOpts})
}

func newRunCommand(opts *RunOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Keep the port graph wired",
		Long: `Attach to the running JACK server and apply the rule file.

Ports that already exist are wired first. After that every port
registration re-evaluates all rules against the current port list and the
resulting connect and disconnect commands are applied in order. Failed
commands are logged and skipped. The server is never started on demand.

Example:
  portwire run
  portwire run --rules ./studio.yaml --watch
  portwire run --dry-run --verbose
  portwire run --metrics-addr 127.0.0.1:9469`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemon(opts, cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.RulesFile, "rules", "r", "", "rule file (default from settings)")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "log commands instead of applying them")
	cmd.Flags().BoolVar(&opts.Watch, "watch", false, "reload the rule file when it changes")
	cmd.Flags().StringVar(&opts.MetricsAddr, "metrics-addr", "", "serve /metrics, /healthz and /rules on this address")

	return cmd
}

func runDaemon(opts *RunOptions, cmd *cobra.Command) error {
	settings, err := loadSettings(opts.RootOptions)
	if err != nil {
		return err
	}
	applyRunFlags(opts, cmd, settings)

	logger, closer, err := newLogger(settings, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer closer.Close()
	logger = logger.With("client", settings.ClientName)

	if _, err := config.EnsureDir(); err != nil {
		logger.Warn("cannot create config directory", "error", err)
	}

	// Rule errors are fatal at startup
	rs, err := rules.Load(settings.RulesFile)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to load rules", err)
	}
	holder := rules.NewHolder(rs)
	logger.Info("rules loaded", "path", settings.RulesFile,
		"connect", len(rs.Connect), "disconnect", len(rs.Disconnect))

	// Setup signal handling for graceful shutdown
	// Use command's context if available (for testing), otherwise create one
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan) // Prevent signal handler leak

	go func() {
		select {
		case sig := <-sigChan:
			logger.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
			// Parent context cancelled (e.g., from test)
		}
	}()

	// The server may go away underneath us; that ends the run.
	lost := &serverLoss{}
	server := opts.Server
	if server == nil {
		client, err := newJACKClient(settings, logger, nil, jackcli.WithShutdownHandler(func(err error) {
			lost.set(err)
			cancel()
		}))
		if err != nil {
			return err
		}
		server = client
	}

	var svc *engine.Service
	m := metrics.New(func() int { return svc.Channel().Len() })
	observers := engine.Observers{m}

	if settings.Journal.Path != "" && !opts.DryRun {
		st, err := store.Open(settings.Journal.Path)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open journal", err)
		}
		defer func() {
			if closeErr := st.Close(); closeErr != nil {
				logger.Error("error closing journal", "error", closeErr)
			}
		}()
		observers = append(observers, store.NewJournal(st, logger))
		logger.Info("journal ready", "path", settings.Journal.Path)
	}

	svcOpts := []engine.Option{
		engine.WithLogger(logger),
		engine.WithObserver(observers),
		engine.WithFilter(engine.FilterOptions{SkipSelf: settings.SkipSelf, Dedupe: settings.Dedupe}),
		engine.WithDryRun(opts.DryRun),
	}
	if opts.BatchIDs != nil {
		svcOpts = append(svcOpts, engine.WithBatchIDs(opts.BatchIDs))
	}
	svc = engine.NewService(server, holder, svcOpts...)

	// The dispatcher outlives the signal: Stop drains what is queued.
	if err := svc.Start(context.WithoutCancel(ctx)); err != nil {
		return WrapExitError(ExitFailure, "failed to start", err)
	}
	logger.Info("portwire started", "dry_run", opts.DryRun, "watch", settings.Watch)
	fmt.Fprintln(cmd.OutOrStdout(), "portwire started. Press Ctrl-C to stop.")

	g, gctx := errgroup.WithContext(ctx)

	if settings.Watch {
		w := &rules.Watcher{
			Path:     settings.RulesFile,
			Holder:   holder,
			Logger:   logger,
			OnReload: m.RuleReload,
		}
		g.Go(func() error { return ignoreCanceled(w.Run(gctx)) })
	}

	if settings.Metrics.Addr != "" {
		srv := &metrics.Server{
			Addr:    settings.Metrics.Addr,
			Handler: metrics.NewHandler(m, holder, lost.err),
			Logger:  logger,
		}
		g.Go(func() error {
			if err := srv.Run(gctx); err != nil {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		svc.Stop()
		return ignoreCanceled(svc.Wait())
	})

	runErr := g.Wait()
	if err := lost.err(); err != nil {
		return WrapExitError(ExitFailure, "audio server went away", err)
	}
	if runErr != nil {
		return WrapExitError(ExitFailure, "run failed", runErr)
	}

	logger.Info("portwire stopped gracefully")
	return nil
}

// applyRunFlags lets explicit flags override the settings.
func applyRunFlags(opts *RunOptions, cmd *cobra.Command, s *config.Settings) {
	if opts.RulesFile != "" {
		s.RulesFile = opts.RulesFile
	}
	if cmd.Flags().Changed("watch") {
		s.Watch = opts.Watch
	}
	if opts.MetricsAddr != "" {
		s.Metrics.Addr = opts.MetricsAddr
	}
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// serverLoss records why the audio server connection ended. It doubles as
// the /healthz check.
type serverLoss struct {
	mu    sync.Mutex
	cause error
}

func (l *serverLoss) set(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.cause == nil {
		l.cause = err
	}
}

func (l *serverLoss) err() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cause
}
