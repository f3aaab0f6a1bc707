package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const lspListing = `system:capture_1
	properties: output,physical,terminal,
	32 bit float mono audio
system:playback_1
	properties: input,physical,terminal,
	32 bit float mono audio
system:midi_capture_1
	properties: output,physical,terminal,
	8 bit raw midi
deadbeef:deadbeef_1
	properties: output,
	32 bit float mono audio
`

// stubRunner answers every Run with a fixed jack_lsp listing.
type stubRunner struct {
	out  string
	err  error
	argv []string
}

func (r *stubRunner) Run(_ context.Context, argv []string) ([]byte, error) {
	r.argv = argv
	return []byte(r.out), r.err
}

func (r *stubRunner) Start(context.Context, []string) (io.ReadCloser, func() error, error) {
	return nil, nil, errors.New("not supported")
}

func runPortsCommand(t *testing.T, format string, runner *stubRunner, args ...string) (string, error) {
	t.Helper()
	dir := t.TempDir()
	settings := writeSettings(t, dir, writeFile(t, dir, "rules.yaml", ""), "")

	buf := &bytes.Buffer{}
	cmd := newPortsCommand(&PortsOptions{
		RootOptions: &RootOptions{Format: format, Config: settings},
		Runner:      runner,
	})
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestPorts_Names(t *testing.T) {
	r := &stubRunner{out: lspListing}
	out, err := runPortsCommand(t, "text", r)
	require.NoError(t, err)

	assert.Equal(t, "system:capture_1\nsystem:playback_1\nsystem:midi_capture_1\ndeadbeef:deadbeef_1\n", out)
	assert.Equal(t, []string{"jack_lsp", "-p", "-t"}, r.argv)
}

func TestPorts_FilteredLong(t *testing.T) {
	out, err := runPortsCommand(t, "text", &stubRunner{out: lspListing},
		"--flags", "output,physical", "--type", "audio", "--long")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], "system:capture_1")
	assert.Contains(t, lines[0], "32 bit float mono audio")
	assert.Contains(t, lines[0], "output,physical,terminal")
}

func TestPorts_JSON(t *testing.T) {
	out, err := runPortsCommand(t, "json", &stubRunner{out: lspListing}, "--name", "^deadbeef:")
	require.NoError(t, err)

	var resp struct {
		Status string `json:"status"`
		Data   []struct {
			Name  string `json:"name"`
			Flags string `json:"flags"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	require.Len(t, resp.Data, 1)
	assert.Equal(t, "deadbeef:deadbeef_1", resp.Data[0].Name)
	assert.Equal(t, "output", resp.Data[0].Flags)
}

func TestPorts_ServerUnavailable(t *testing.T) {
	out, err := runPortsCommand(t, "json", &stubRunner{err: errors.New("cannot connect to server")})
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, `"E100"`)
	assert.Contains(t, out, "cannot connect to server")
}

func TestPorts_BadNamePattern(t *testing.T) {
	_, err := runPortsCommand(t, "text", &stubRunner{out: lspListing}, "--name", "(")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
}
