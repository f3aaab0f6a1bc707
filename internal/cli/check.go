package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/portwire/internal/rules"
)

// CheckResult summarizes a valid rule file.
type CheckResult struct {
	Path       string         `json:"path"`
	Valid      bool           `json:"valid"`
	Connect    int            `json:"connect"`
	Disconnect int            `json:"disconnect"`
	Rules      *rules.RuleSet `json:"rules"`
}

// NewCheckCommand creates the check command.
func NewCheckCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check [rules-file]",
		Short: "Validate a rule file",
		Long: `Load a rule file, compile every pattern and print the rules in
evaluation order. Without an argument the rule file from the settings is
checked.

Exit codes:
  0 - Rules are valid
  1 - The rule file has errors
  2 - Command error (unreadable settings, etc.)

Examples:
  portwire check
  portwire check ./studio.yaml
  portwire check ./studio.cue --format json`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) == 1 {
				path = args[0]
			}
			return runCheck(rootOpts, path, cmd)
		},
	}

	return cmd
}

func runCheck(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	if path == "" {
		settings, err := loadSettings(opts)
		if err != nil {
			return err
		}
		path = settings.RulesFile
	}
	formatter.VerboseLog("Checking %s", path)

	rs, err := rules.Load(path)
	if err != nil {
		return outputCheckError(formatter, path, err)
	}

	result := CheckResult{
		Path:       path,
		Valid:      true,
		Connect:    len(rs.Connect),
		Disconnect: len(rs.Disconnect),
		Rules:      rs,
	}
	return formatter.Result(result, func(w io.Writer) {
		fmt.Fprintf(w, "✓ %s: %d connect, %d disconnect\n", path, result.Connect, result.Disconnect)
		printRules(w, rs)
	})
}

// printRules lists rules in evaluation order.
func printRules(w io.Writer, rs *rules.RuleSet) {
	for _, section := range [][]rules.Rule{rs.Connect, rs.Disconnect} {
		for _, r := range section {
			fmt.Fprintf(w, "  %-10s %s -> %s\n", r.Action, r.Source, r.Dest)
		}
	}
}

// outputCheckError reports a rule file error with its stable code.
func outputCheckError(formatter *OutputFormatter, path string, err error) error {
	code := rules.ErrorCode(err)
	_ = formatter.Error(code, err.Error(), map[string]string{"path": path})
	return WrapExitError(ExitFailure, fmt.Sprintf("invalid rules in %s", path), err)
}
