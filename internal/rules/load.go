package rules

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Spec is an uncompiled rule as authored: two pattern sources.
type Spec struct {
	From string `json:"from" yaml:"from"`
	To   string `json:"to" yaml:"to"`
}

// Document is a parsed but uncompiled rule file.
type Document struct {
	Connect    []Spec
	Disconnect []Spec
}

// Load reads, parses and compiles the rule file at path. The format is
// chosen by extension: .yaml, .yml and .json use the YAML parser, .cue uses
// CUE.
func Load(path string) (*RuleSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeReadFailed, Path: path, Message: "cannot read rule file", Err: err}
	}

	doc, err := Parse(data, FormatFor(path))
	if err != nil {
		return nil, withPath(err, path)
	}

	rs, err := Build(doc)
	if err != nil {
		return nil, withPath(err, path)
	}
	return rs, nil
}

// Format identifies a rule file syntax.
type Format string

const (
	FormatYAML Format = "yaml" // Also covers JSON
	FormatCUE  Format = "cue"
)

// FormatFor picks a Format from a file extension. Unknown extensions map to
// the empty Format, which Parse rejects.
func FormatFor(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml", ".json":
		return FormatYAML
	case ".cue":
		return FormatCUE
	default:
		return ""
	}
}

// Parse decodes rule file content without compiling patterns.
func Parse(data []byte, format Format) (*Document, error) {
	switch format {
	case FormatYAML:
		return parseYAML(data)
	case FormatCUE:
		return parseCUE(data)
	default:
		return nil, &LoadError{Code: ErrCodeUnsupported, Message: fmt.Sprintf("unsupported rule file format %q", format)}
	}
}

// Build compiles every pattern in doc. The first invalid pattern aborts the
// build; a RuleSet is only returned when every rule compiled.
func Build(doc *Document) (*RuleSet, error) {
	rs := &RuleSet{}
	if doc == nil {
		return rs, nil
	}

	var err error
	if rs.Connect, err = compileSection(Connect, doc.Connect); err != nil {
		return nil, err
	}
	if rs.Disconnect, err = compileSection(Disconnect, doc.Disconnect); err != nil {
		return nil, err
	}
	return rs, nil
}

func compileSection(action Action, specs []Spec) ([]Rule, error) {
	out := make([]Rule, 0, len(specs))
	for i, s := range specs {
		where := fmt.Sprintf("%s[%d]", action, i)

		src, err := Compile(s.From)
		if err != nil {
			return nil, &LoadError{Code: ErrCodeInvalidPattern, Where: where + ".from", Message: err.Error(), Err: err}
		}
		dst, err := Compile(s.To)
		if err != nil {
			return nil, &LoadError{Code: ErrCodeInvalidPattern, Where: where + ".to", Message: err.Error(), Err: err}
		}

		out = append(out, Rule{Action: action, Source: src, Dest: dst})
	}
	return out, nil
}

func withPath(err error, path string) error {
	if le, ok := err.(*LoadError); ok && le.Path == "" {
		le.Path = path
		return le
	}
	return err
}
