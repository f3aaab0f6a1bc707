package jackcli

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"
)

// Runner starts the JACK command line tools. The default runner executes
// them as child processes; tests substitute a fake.
type Runner interface {
	// Run executes argv to completion and returns its standard output.
	Run(ctx context.Context, argv []string) ([]byte, error)
	// Start launches a long-running argv. The returned reader yields its
	// standard output; wait reaps the process once the reader is drained.
	Start(ctx context.Context, argv []string) (stdout io.ReadCloser, wait func() error, err error)
}

// ExecRunner runs commands with os/exec. Env is appended to the parent
// environment of every child.
type ExecRunner struct {
	Env []string
}

// Run implements Runner. A non-zero exit is an error carrying stderr.
func (r ExecRunner) Run(ctx context.Context, argv []string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Env = append(cmd.Environ(), r.Env...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, &CommandError{Argv: argv, Stderr: strings.TrimSpace(stderr.String()), Err: err}
	}
	return stdout.Bytes(), nil
}

// Start implements Runner.
func (r ExecRunner) Start(ctx context.Context, argv []string) (io.ReadCloser, func() error, error) {
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Env = append(cmd.Environ(), r.Env...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", argv[0], err)
	}
	if err := cmd.Start(); err != nil {
		return nil, nil, &CommandError{Argv: argv, Err: err}
	}

	wait := func() error {
		if err := cmd.Wait(); err != nil {
			return &CommandError{Argv: argv, Stderr: strings.TrimSpace(stderr.String()), Err: err}
		}
		return nil
	}
	return stdout, wait, nil
}

// CommandError reports a JACK tool that failed to start or exited non-zero.
type CommandError struct {
	Argv   []string
	Stderr string
	Err    error
}

func (e *CommandError) Error() string {
	name := strings.Join(e.Argv, " ")
	if e.Stderr != "" {
		return fmt.Sprintf("%s: %v: %s", name, e.Err, e.Stderr)
	}
	return fmt.Sprintf("%s: %v", name, e.Err)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}
