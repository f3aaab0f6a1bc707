package cli

import (
	"io"
	"log/slog"

	"github.com/roach88/portwire/internal/config"
	"github.com/roach88/portwire/internal/jackcli"
	"github.com/roach88/portwire/internal/logging"
)

// loadSettings reads the settings file named by --config (or the XDG
// default). --verbose raises the log level to debug.
func loadSettings(opts *RootOptions) (*config.Settings, error) {
	s, err := config.Load(opts.Config)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load settings", err)
	}
	if opts.Verbose {
		s.Log.Level = "debug"
	}
	return s, nil
}

// newLogger builds the logger described by the settings.
func newLogger(s *config.Settings, stderr io.Writer) (*slog.Logger, io.Closer, error) {
	logger, closer, err := logging.New(logging.Options{
		Level:      s.Log.Level,
		Format:     s.Log.Format,
		File:       s.Log.File,
		MaxSizeMB:  s.Log.MaxSizeMB,
		MaxBackups: s.Log.MaxBackups,
		MaxAgeDays: s.Log.MaxAgeDays,
	}, stderr)
	if err != nil {
		return nil, nil, WrapExitError(ExitCommandError, "failed to configure logging", err)
	}
	return logger, closer, nil
}

// newJACKClient builds the JACK backend from the settings. runner replaces
// the process runner when non-nil.
func newJACKClient(s *config.Settings, logger *slog.Logger, runner jackcli.Runner, opts ...jackcli.Option) (*jackcli.Client, error) {
	opts = append([]jackcli.Option{
		jackcli.WithLogger(logger),
		jackcli.WithTimeout(s.JACK.Timeout),
	}, opts...)
	if runner != nil {
		opts = append(opts, jackcli.WithRunner(runner))
	}

	client, err := jackcli.New(jackcli.Commands{
		LSP:        s.JACK.LSP,
		Connect:    s.JACK.Connect,
		Disconnect: s.JACK.Disconnect,
		Evmon:      s.JACK.Evmon,
	}, opts...)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid jack settings", err)
	}
	return client, nil
}
