package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/portwire/internal/harness"
)

// SimulateOptions holds flags for the simulate command.
type SimulateOptions struct {
	*RootOptions
	Filter string // scenario filter (glob pattern)
	Trace  bool   // print every trace entry
}

// ScenarioResult holds the result of a single scenario execution.
type ScenarioResult struct {
	Name        string               `json:"name"`
	Pass        bool                 `json:"pass"`
	Errors      []string             `json:"errors,omitempty"`
	Trace       []harness.TraceEvent `json:"trace,omitempty"`
	Connections [][2]string          `json:"connections,omitempty"`
}

// SimulateResult holds the overall simulation result.
type SimulateResult struct {
	Scenarios []ScenarioResult `json:"scenarios"`
	Passed    int              `json:"passed"`
	Failed    int              `json:"failed"`
	Total     int              `json:"total"`
}

// NewSimulateCommand creates the simulate command.
func NewSimulateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SimulateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "simulate <scenario.yaml|dir>...",
		Short: "Run rule scenarios against an in-memory graph",
		Long: `Run scenario files through the same listener, command channel and
dispatcher as "portwire run", against an in-memory port graph instead of a
JACK server. Each scenario lists rules, initial ports, topology steps and
assertions about the resulting trace and links.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (invalid paths, etc.)

Examples:
  portwire simulate ./scenarios
  portwire simulate ./scenarios/deadbeef.yaml --trace
  portwire simulate ./scenarios --filter "deadbeef*" --format json`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSimulate(opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Filter, "filter", "", "filter scenarios by glob pattern")
	cmd.Flags().BoolVar(&opts.Trace, "trace", false, "print the full trace of each scenario")

	return cmd
}

func runSimulate(opts *SimulateOptions, paths []string, cmd *cobra.Command) error {
	var scenarioFiles []string
	for _, path := range paths {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return NewExitError(ExitCommandError, fmt.Sprintf("scenario path not found: %s", path))
		}
		files, err := findScenarioFiles(path, opts.Filter)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to find scenarios", err)
		}
		scenarioFiles = append(scenarioFiles, files...)
	}

	if len(scenarioFiles) == 0 {
		if opts.Format == "json" {
			return outputSimulateJSON(cmd, SimulateResult{Scenarios: []ScenarioResult{}})
		}
		fmt.Fprintln(cmd.OutOrStdout(), "No scenarios found.")
		return nil
	}

	result := SimulateResult{
		Scenarios: make([]ScenarioResult, 0, len(scenarioFiles)),
		Total:     len(scenarioFiles),
	}

	for _, scenarioFile := range scenarioFiles {
		scenResult := runScenario(scenarioFile, opts, cmd)
		result.Scenarios = append(result.Scenarios, scenResult)

		if scenResult.Pass {
			result.Passed++
		} else {
			result.Failed++
		}
	}

	if opts.Format == "json" {
		if err := outputSimulateJSON(cmd, result); err != nil {
			return err
		}
	} else {
		fmt.Fprintf(cmd.OutOrStdout(), "\n%d passed, %d failed, %d total\n", result.Passed, result.Failed, result.Total)
	}

	if result.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", result.Failed))
	}
	return nil
}

// findScenarioFiles returns path itself if it is a file, or every YAML file
// below it if it is a directory.
func findScenarioFiles(path string, filter string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		ok, err := matchesFilter(path, filter)
		if err != nil || !ok {
			return nil, err
		}
		return []string{path}, nil
	}

	var files []string
	err = filepath.Walk(path, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}

		// Only process .yaml and .yml files
		ext := filepath.Ext(p)
		if ext != ".yaml" && ext != ".yml" {
			return nil
		}

		ok, err := matchesFilter(p, filter)
		if err != nil {
			return err
		}
		if ok {
			files = append(files, p)
		}
		return nil
	})

	return files, err
}

func matchesFilter(path, filter string) (bool, error) {
	if filter == "" {
		return true, nil
	}
	base := filepath.Base(path)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	matched, err := filepath.Match(filter, name)
	if err != nil {
		return false, fmt.Errorf("invalid filter pattern: %w", err)
	}
	return matched, nil
}

// runScenario executes a single scenario and returns the result.
func runScenario(scenarioFile string, opts *SimulateOptions, cmd *cobra.Command) ScenarioResult {
	w := cmd.OutOrStdout()
	text := opts.Format != "json"

	scenario, err := harness.LoadScenario(scenarioFile)
	if err != nil {
		if text {
			fmt.Fprintf(w, "✗ %s\n", filepath.Base(scenarioFile))
			fmt.Fprintf(w, "  Load error: %v\n", err)
		}
		return ScenarioResult{
			Name:   filepath.Base(scenarioFile),
			Pass:   false,
			Errors: []string{fmt.Sprintf("failed to load scenario: %v", err)},
		}
	}

	result, err := harness.Run(scenario)
	if err != nil {
		if text {
			fmt.Fprintf(w, "✗ %s\n", scenario.Name)
			fmt.Fprintf(w, "  Execution error: %v\n", err)
		}
		return ScenarioResult{
			Name:   scenario.Name,
			Pass:   false,
			Errors: []string{fmt.Sprintf("execution failed: %v", err)},
		}
	}

	scenResult := ScenarioResult{
		Name:        scenario.Name,
		Pass:        result.Pass,
		Errors:      result.Errors,
		Connections: result.Connections,
	}
	if opts.Trace {
		scenResult.Trace = result.Trace
	}

	if text {
		mark := "✓"
		if !result.Pass {
			mark = "✗"
		}
		fmt.Fprintf(w, "%s %s\n", mark, scenario.Name)
		for _, e := range result.Errors {
			fmt.Fprintf(w, "  %s\n", strings.ReplaceAll(strings.TrimRight(e, "\n"), "\n", "\n  "))
		}
		if opts.Trace {
			outputTraceText(w, result.Trace)
		}
	}

	return scenResult
}

// outputTraceText prints one line per trace entry.
func outputTraceText(w io.Writer, trace []harness.TraceEvent) {
	for _, e := range trace {
		switch e.Kind {
		case harness.KindStartup:
			fmt.Fprintf(w, "    [%d] startup\n", e.Step)
		case harness.KindEvent:
			state := "unregistered"
			if e.Registered != nil && *e.Registered {
				state = "registered"
			}
			fmt.Fprintf(w, "    [%d] %s %s\n", e.Step, e.Port, state)
		case harness.KindCommand:
			fmt.Fprintf(w, "    [%d] %s #%d %s (%s)\n", e.Step, e.Batch, e.Seq, e.Command(), e.Result)
		case harness.KindLink, harness.KindUnlink:
			fmt.Fprintf(w, "    [%d] manual %s %s -> %s (%s)\n", e.Step, e.Kind, e.From, e.To, e.Result)
		}
	}
}

func outputSimulateJSON(cmd *cobra.Command, result SimulateResult) error {
	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	return encoder.Encode(CLIResponse{Status: statusOf(result.Failed == 0), Data: result})
}

func statusOf(ok bool) string {
	if ok {
		return "ok"
	}
	return "error"
}
