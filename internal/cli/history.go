package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/portwire/internal/store"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	Database string
	Limit    int
	Port     string
	Batch    string
}

// HistoryResult holds the journal rows that were selected.
type HistoryResult struct {
	Dispatches []store.Dispatch `json:"dispatches"`
	Failed     int              `json:"failed"`
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show dispatched commands from the journal",
		Long: `Print the dispatch journal written by "portwire run" when
journal.path is set. Rows are shown oldest first.

Examples:
  portwire history
  portwire history --limit 10
  portwire history --port system:playback_1
  portwire history --batch 0192f1e4-7a8b-7c3d-9e0f-123456789abc --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "journal database (default journal.path from settings)")
	cmd.Flags().IntVarP(&opts.Limit, "limit", "n", 50, "maximum rows to show (0 = all)")
	cmd.Flags().StringVar(&opts.Port, "port", "", "only rows where this port is the source or destination")
	cmd.Flags().StringVar(&opts.Batch, "batch", "", "only rows from this evaluation pass")

	return cmd
}

func runHistory(opts *HistoryOptions, cmd *cobra.Command) error {
	if opts.Port != "" && opts.Batch != "" {
		return NewExitError(ExitCommandError, "--port and --batch cannot be combined")
	}

	path := opts.Database
	if path == "" {
		settings, err := loadSettings(opts.RootOptions)
		if err != nil {
			return err
		}
		path = settings.Journal.Path
	}
	if path == "" {
		return NewExitError(ExitCommandError, "no journal configured: set journal.path or pass --db")
	}

	// Opening would create an empty database; a missing journal is an error.
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return NewExitError(ExitCommandError, fmt.Sprintf("journal not found: %s", path))
	}

	st, err := store.Open(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open journal", err)
	}
	defer st.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	var rows []store.Dispatch
	switch {
	case opts.Batch != "":
		rows, err = st.ReadBatch(ctx, opts.Batch)
	case opts.Port != "":
		rows, err = st.DispatchesForPort(ctx, opts.Port, opts.Limit)
	default:
		rows, err = st.RecentDispatches(ctx, opts.Limit)
	}
	if err != nil {
		return WrapExitError(ExitFailure, "failed to read journal", err)
	}

	result := HistoryResult{Dispatches: rows}
	for _, d := range rows {
		if !d.OK {
			result.Failed++
		}
	}

	formatter := newFormatter(opts.RootOptions, cmd)
	return formatter.Result(result, func(w io.Writer) {
		outputHistoryText(w, result)
	})
}

func outputHistoryText(w io.Writer, result HistoryResult) {
	if len(result.Dispatches) == 0 {
		fmt.Fprintln(w, "No dispatches recorded.")
		return
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, d := range result.Dispatches {
		status := "ok"
		if !d.OK {
			status = "FAILED: " + d.Error
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s %s -> %s\t%s\n",
			d.RecordedAt.Format(time.DateTime), shortBatch(d.Batch), d.Seq, d.Action, d.From, d.To, status)
	}
	_ = tw.Flush()

	fmt.Fprintf(w, "\n%d dispatch(es), %d failed\n", len(result.Dispatches), result.Failed)
}

// shortBatch trims UUID batch ids to their first group for display.
func shortBatch(batch string) string {
	if len(batch) > 8 {
		return batch[:8]
	}
	return batch
}
