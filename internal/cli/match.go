package cli

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/portwire/internal/engine"
	"github.com/roach88/portwire/internal/rules"
)

// MatchOptions holds flags for the match command.
type MatchOptions struct {
	*RootOptions
	SkipSelf bool
	Dedupe   bool
}

// MatchResult lists the commands a port list would produce.
type MatchResult struct {
	Ports    int              `json:"ports"`
	Commands []engine.Command `json:"commands"`
}

// NewMatchCommand creates the match command.
func NewMatchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &MatchOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "match <rules-file> [port...]",
		Short: "Show the commands a port list would produce",
		Long: `Evaluate a rule file against a list of port names without touching
any server. Ports are taken from the arguments or, when there are none, one
per line from stdin. Indented lines are skipped, so the output of
"jack_lsp -p" can be piped in directly.

Examples:
  portwire match rules.yaml system:capture_1 app:in
  jack_lsp | portwire match rules.yaml --dedupe`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMatch(opts, args[0], args[1:], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.SkipSelf, "skip-self", false, "drop commands linking a port to itself")
	cmd.Flags().BoolVar(&opts.Dedupe, "dedupe", false, "drop repeated commands")

	return cmd
}

func runMatch(opts *MatchOptions, rulesPath string, ports []string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	rs, err := rules.Load(rulesPath)
	if err != nil {
		return outputCheckError(formatter, rulesPath, err)
	}

	if len(ports) == 0 {
		ports, err = readPortNames(cmd.InOrStdin())
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read ports", err)
		}
	}
	formatter.VerboseLog("Evaluating %d rule(s) against %d port(s)", rs.Len(), len(ports))

	cmds := engine.Filter(engine.Evaluate(ports, rs), engine.FilterOptions{
		SkipSelf: opts.SkipSelf,
		Dedupe:   opts.Dedupe,
	})

	result := MatchResult{Ports: len(ports), Commands: cmds}
	if result.Commands == nil {
		result.Commands = []engine.Command{}
	}
	return formatter.Result(result, func(w io.Writer) {
		if len(cmds) == 0 {
			fmt.Fprintln(w, "No commands.")
			return
		}
		for _, c := range cmds {
			fmt.Fprintln(w, c.String())
		}
	})
}

// readPortNames reads one port name per line, skipping blank and indented
// lines.
func readPortNames(r io.Reader) ([]string, error) {
	var names []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := sc.Text()
		if line == "" || line[0] == ' ' || line[0] == '\t' {
			continue
		}
		names = append(names, strings.TrimRight(line, " \t\r"))
	}
	return names, sc.Err()
}
