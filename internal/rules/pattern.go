package rules

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/gobwas/glob"
)

// Pattern matches whole port names such as "system:playback_1".
type Pattern interface {
	Match(name string) bool
	// String returns the source text the pattern was compiled from,
	// including any syntax prefix.
	String() string
}

// Syntax prefixes. A pattern without a prefix is a regular expression.
const (
	prefixRegexp = "re:"
	prefixGlob   = "glob:"
	prefixExact  = "="
)

// Compile builds a Pattern from its source text.
//
//	"^app:out$"        regular expression (unanchored search)
//	"re:^app:out$"     same, explicit
//	"glob:synth:out_*" shell-style glob over the whole name
//	"=system:capture_1" exact name
func Compile(src string) (Pattern, error) {
	switch {
	case strings.HasPrefix(src, prefixGlob):
		g, err := glob.Compile(strings.TrimPrefix(src, prefixGlob))
		if err != nil {
			return nil, fmt.Errorf("invalid glob %q: %w", src, err)
		}
		return &globPattern{src: src, g: g}, nil

	case strings.HasPrefix(src, prefixExact):
		return exactPattern(src), nil

	default:
		expr := strings.TrimPrefix(src, prefixRegexp)
		re, err := regexp.Compile(expr)
		if err != nil {
			return nil, fmt.Errorf("invalid regular expression %q: %w", src, err)
		}
		return &regexpPattern{src: src, re: re}, nil
	}
}

// MustCompile is like Compile but panics on error. For tests and literals.
func MustCompile(src string) Pattern {
	p, err := Compile(src)
	if err != nil {
		panic(err)
	}
	return p
}

type regexpPattern struct {
	src string
	re  *regexp.Regexp
}

func (p *regexpPattern) Match(name string) bool { return p.re.MatchString(name) }
func (p *regexpPattern) String() string { return p.src }

type globPattern struct {
	src string
	g   glob.Glob
}

func (p *globPattern) Match(name string) bool { return p.g.Match(name) }
func (p *globPattern) String() string { return p.src }

type exactPattern string

func (p exactPattern) Match(name string) bool { return name == strings.TrimPrefix(string(p), prefixExact) }
func (p exactPattern) String() string { return string(p) }
