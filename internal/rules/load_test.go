package rules

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func sources(rs []Rule) [][2]string {
	out := make([][2]string, 0, len(rs))
	for _, r := range rs {
		out = append(out, [2]string{r.Source.String(), r.Dest.String()})
	}
	return out
}

func TestLoad_YAMLMappingKeepsOrder(t *testing.T) {
	path := writeFile(t, "rules.yaml", `
connect:
  "^z:out$": "^mixer:in$"
  "^a:out$": "^mixer:in$"
  "^m:out$":
    - "^system:playback_1$"
    - "^system:playback_2$"
disconnect:
  "^system:capture_1$": "^app:in$"
`)

	rs, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, [][2]string{
		{"^z:out$", "^mixer:in$"},
		{"^a:out$", "^mixer:in$"},
		{"^m:out$", "^system:playback_1$"},
		{"^m:out$", "^system:playback_2$"},
	}, sources(rs.Connect))
	assert.Equal(t, [][2]string{{"^system:capture_1$", "^app:in$"}}, sources(rs.Disconnect))

	for _, r := range rs.Connect {
		assert.Equal(t, Connect, r.Action)
	}
	assert.Equal(t, Disconnect, rs.Disconnect[0].Action)
	assert.Equal(t, 5, rs.Len())
}

func TestLoad_YAMLSequenceForm(t *testing.T) {
	path := writeFile(t, "rules.yml", `
connect:
  - from: "glob:synth:*"
    to: "=system:playback_1"
  - {from: "^b:.*$", to: "^c:.*$"}
`)

	rs, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, [][2]string{
		{"glob:synth:*", "=system:playback_1"},
		{"^b:.*$", "^c:.*$"},
	}, sources(rs.Connect))
	assert.Empty(t, rs.Disconnect)
}

func TestLoad_JSON(t *testing.T) {
	path := writeFile(t, "rules.json", `{
  "connect": {
    "deadbeef:deadbeef_1": "Non-Mixer/music:in-1",
    "deadbeef:deadbeef_2": "Non-Mixer/music:in-2"
  },
  "disconnect": {}
}`)

	rs, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, [][2]string{
		{"deadbeef:deadbeef_1", "Non-Mixer/music:in-1"},
		{"deadbeef:deadbeef_2", "Non-Mixer/music:in-2"},
	}, sources(rs.Connect))
	assert.Empty(t, rs.Disconnect)
}

func TestLoad_CUE(t *testing.T) {
	path := writeFile(t, "rules.cue", `
connect: {
	"^z:out$": "^mixer:in$"
	"^a:out$": ["^p:1$", "^p:2$"]
}
disconnect: [
	{from: "=x:out", to: "=y:in"},
]
`)

	rs, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, [][2]string{
		{"^z:out$", "^mixer:in$"},
		{"^a:out$", "^p:1$"},
		{"^a:out$", "^p:2$"},
	}, sources(rs.Connect))
	assert.Equal(t, [][2]string{{"=x:out", "=y:in"}}, sources(rs.Disconnect))
}

func TestLoad_EmptyFile(t *testing.T) {
	path := writeFile(t, "rules.yaml", "")

	rs, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 0, rs.Len())
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
		code    string
	}{
		{"non-string value", "r.yaml", "connect:\n  \"^a$\": 42\n", ErrCodeNonString},
		{"non-string list item", "r.yaml", "connect:\n  \"^a$\": [\"^b$\", true]\n", ErrCodeNonString},
		{"json non-string value", "r.json", `{"connect": {"a:out": null}}`, ErrCodeNonString},
		{"unknown section", "r.yaml", "route:\n  a: b\n", ErrCodeUnknownSection},
		{"invalid pattern", "r.yaml", "connect:\n  \"(\": \"b\"\n", ErrCodeInvalidPattern},
		{"invalid dest pattern", "r.yaml", "connect:\n  \"a\": \"[\"\n", ErrCodeInvalidPattern},
		{"entry missing to", "r.yaml", "connect:\n  - from: a\n", ErrCodeMalformedEntry},
		{"entry not a mapping", "r.yaml", "connect:\n  - a\n", ErrCodeMalformedEntry},
		{"section scalar", "r.yaml", "connect: nope\n", ErrCodeMalformedSection},
		{"syntax error", "r.yaml", "connect: [\n", ErrCodeParseFailed},
		{"top-level list", "r.yaml", "- a\n", ErrCodeParseFailed},
		{"unsupported extension", "r.ini", "connect = a", ErrCodeUnsupported},
		{"cue non-string", "r.cue", "connect: {\"a\": 1}\n", ErrCodeNonString},
		{"cue unknown section", "r.cue", "routes: {}\n", ErrCodeUnknownSection},
		{"cue syntax", "r.cue", "connect: {\n", ErrCodeParseFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, tt.file, tt.content)

			rs, err := Load(path)
			require.Error(t, err)
			assert.Nil(t, rs)
			assert.True(t, IsLoadError(err), "expected *LoadError, got %T", err)
			assert.Equal(t, tt.code, ErrorCode(err))
			assert.Contains(t, err.Error(), path)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Equal(t, ErrCodeReadFailed, ErrorCode(err))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestBuild_NilDocument(t *testing.T) {
	rs, err := Build(nil)
	require.NoError(t, err)
	assert.Equal(t, 0, rs.Len())
}

func TestRuleSet_MarshalJSON(t *testing.T) {
	rs, err := Build(&Document{
		Connect:    []Spec{{From: "^a$", To: "^b$"}},
		Disconnect: []Spec{{From: "=c", To: "glob:d*"}},
	})
	require.NoError(t, err)

	data, err := json.Marshal(rs)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"connect": [{"from": "^a$", "to": "^b$"}],
		"disconnect": [{"from": "=c", "to": "glob:d*"}]
	}`, string(data))

	empty, err := json.Marshal(&RuleSet{})
	require.NoError(t, err)
	assert.JSONEq(t, `{"connect": [], "disconnect": []}`, string(empty))
}

func TestHolder_SwapsWholeRuleSet(t *testing.T) {
	first := &RuleSet{Connect: []Rule{{Action: Connect, Source: MustCompile("a"), Dest: MustCompile("b")}}}
	second := &RuleSet{}

	h := NewHolder(first)
	assert.Same(t, first, h.Load())

	h.Store(second)
	assert.Same(t, second, h.Load())

	h.Store(nil)
	require.NotNil(t, h.Load())
	assert.Equal(t, 0, h.Load().Len())

	var zero Holder
	assert.NotNil(t, zero.Load())
}

func TestParseNode_EmbeddedRules(t *testing.T) {
	var outer struct {
		Rules yaml.Node `yaml:"rules"`
	}
	require.NoError(t, yaml.Unmarshal([]byte(`
rules:
  connect:
    "^a:out$": "^b:in$"
`), &outer))

	doc, err := ParseNode(&outer.Rules)
	require.NoError(t, err)
	assert.Equal(t, []Spec{{From: "^a:out$", To: "^b:in$"}}, doc.Connect)
	assert.Empty(t, doc.Disconnect)
}

func TestParseNode_EmptyAndInvalid(t *testing.T) {
	doc, err := ParseNode(nil)
	require.NoError(t, err)
	assert.Empty(t, doc.Connect)

	doc, err = ParseNode(&yaml.Node{})
	require.NoError(t, err)
	assert.Empty(t, doc.Connect)

	var list yaml.Node
	require.NoError(t, yaml.Unmarshal([]byte(`[a, b]`), &list))
	_, err = ParseNode(&list)
	require.Error(t, err)
	assert.True(t, IsLoadError(err))
}
