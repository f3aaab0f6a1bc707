package cli

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/portwire/internal/graph"
	"github.com/roach88/portwire/internal/jackcli"
)

// PortsOptions holds flags for the ports command.
type PortsOptions struct {
	*RootOptions
	Name  string
	Type  string
	Flags string
	Long  bool

	// Runner allows replacing the process runner (for testing).
	Runner jackcli.Runner
}

// NewPortsCommand creates the ports command.
func NewPortsCommand(rootOpts *RootOptions) *cobra.Command {
	return newPortsCommand(&PortsOptions{RootOptions: rootOpts})
}

func newPortsCommand(opts *PortsOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ports",
		Short: "List ports on the running server",
		Long: `List the ports of the running JACK server in registration order.

--name and --type are regular expressions; --flags is a comma separated
list of input, output, physical, can-monitor and terminal, all of which
must be set on a listed port.

Examples:
  portwire ports
  portwire ports --flags output,physical --long
  portwire ports --name '^system:' --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPorts(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Name, "name", "", "port name regular expression")
	cmd.Flags().StringVar(&opts.Type, "type", "", "port type regular expression")
	cmd.Flags().StringVar(&opts.Flags, "flags", "", "required port flags, comma separated")
	cmd.Flags().BoolVarP(&opts.Long, "long", "l", false, "show type and flags")

	return cmd
}

func runPorts(opts *PortsOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	settings, err := loadSettings(opts.RootOptions)
	if err != nil {
		return err
	}
	logger, closer, err := newLogger(settings, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer closer.Close()

	client, err := newJACKClient(settings, logger, opts.Runner)
	if err != nil {
		return err
	}

	ports, err := client.Describe(graph.Filter{
		Name:  opts.Name,
		Type:  opts.Type,
		Flags: graph.ParseFlags(opts.Flags),
	})
	if err != nil {
		_ = formatter.Error("E100", err.Error(), nil)
		return WrapExitError(ExitFailure, "failed to list ports", err)
	}

	return formatter.Result(ports, func(w io.Writer) {
		if !opts.Long {
			for _, p := range ports {
				fmt.Fprintln(w, p.Name)
			}
			return
		}
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		for _, p := range ports {
			fmt.Fprintf(tw, "%s\t%s\t%s\n", p.Name, p.Type, p.Flags)
		}
		_ = tw.Flush()
	})
}
