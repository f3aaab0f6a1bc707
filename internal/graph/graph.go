// Package graph describes the audio server's port graph as seen by portwire
// and provides an in-memory implementation of it.
//
// A Server is the client handle to a running audio server. Notifications
// delivered through Subscribe run in a context owned by the server: callbacks
// may read the port list but must not call Connect or Disconnect, and must
// not block.
package graph

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// PortFlags mirrors the JACK port flag bits.
type PortFlags uint32

const (
	FlagInput PortFlags = 1 << iota
	FlagOutput
	FlagPhysical
	FlagCanMonitor
	FlagTerminal
)

// Has reports whether every bit of want is set in f.
func (f PortFlags) Has(want PortFlags) bool {
	return f&want == want
}

var flagNames = []struct {
	flag PortFlags
	name string
}{
	{FlagInput, "input"},
	{FlagOutput, "output"},
	{FlagPhysical, "physical"},
	{FlagCanMonitor, "can-monitor"},
	{FlagTerminal, "terminal"},
}

// String lists the set flags the way jack_lsp prints them, comma separated.
func (f PortFlags) String() string {
	var parts []string
	for _, fn := range flagNames {
		if f.Has(fn.flag) {
			parts = append(parts, fn.name)
		}
	}
	return strings.Join(parts, ",")
}

// MarshalText encodes the flag list as text.
func (f PortFlags) MarshalText() ([]byte, error) {
	return []byte(f.String()), nil
}

// ParseFlags reads a comma separated flag list. Unknown names are ignored.
func ParseFlags(s string) PortFlags {
	var f PortFlags
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		for _, fn := range flagNames {
			if part == fn.name {
				f |= fn.flag
			}
		}
	}
	return f
}

// Common port type names.
const (
	TypeAudio = "32 bit float mono audio"
	TypeMIDI  = "8 bit raw midi"
)

// Filter narrows a port listing. The zero Filter lists every port.
type Filter struct {
	// Name is a regular expression matched against the full port name.
	Name string
	// Type is a regular expression matched against the port type.
	Type string
	// Flags must all be present on a listed port.
	Flags PortFlags
}

// Port describes one registered port.
type Port struct {
	ID    uint32    `json:"id,omitempty"`
	Name  string    `json:"name"`
	Type  string    `json:"type"`
	Flags PortFlags `json:"flags"`
}

// Select returns the ports that pass f, keeping their order.
func Select(ports []Port, f Filter) ([]Port, error) {
	var nameRe, typeRe *regexp.Regexp
	var err error
	if f.Name != "" {
		if nameRe, err = regexp.Compile(f.Name); err != nil {
			return nil, fmt.Errorf("port name filter: %w", err)
		}
	}
	if f.Type != "" {
		if typeRe, err = regexp.Compile(f.Type); err != nil {
			return nil, fmt.Errorf("port type filter: %w", err)
		}
	}

	out := make([]Port, 0, len(ports))
	for _, p := range ports {
		if nameRe != nil && !nameRe.MatchString(p.Name) {
			continue
		}
		if typeRe != nil && !typeRe.MatchString(p.Type) {
			continue
		}
		if !p.Flags.Has(f.Flags) {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

// Names returns the port names in order.
func Names(ports []Port) []string {
	names := make([]string, len(ports))
	for i, p := range ports {
		names[i] = p.Name
	}
	return names
}

// Event is a port topology notification.
type Event struct {
	// ID is the server's numeric port id, when the server reports one.
	ID uint32
	// Port is the port name, when known.
	Port string
	// Registered is true for registration and false for deregistration.
	Registered bool
}

// Handler receives topology events.
type Handler func(Event)

// Server is the audio server client handle.
type Server interface {
	// Ports lists port names in the order the server reports them.
	Ports(filter Filter) ([]string, error)
	// Connect links from (an output) to to (an input).
	Connect(from, to string) error
	// Disconnect removes an existing link.
	Disconnect(from, to string) error
	// Subscribe installs h for port registration events. The returned
	// function removes it.
	Subscribe(h Handler) (unsubscribe func(), err error)
}

// Describer is implemented by servers that can report port types and flags.
type Describer interface {
	Describe(filter Filter) ([]Port, error)
}

// Sentinel errors reported by the in-memory graph. Backends that talk to a
// real server may report opaque errors instead; callers treat all of them as
// transient.
var (
	ErrPortNotFound     = errors.New("port not found")
	ErrAlreadyConnected = errors.New("ports already connected")
	ErrNotConnected     = errors.New("ports not connected")
	ErrPortExists       = errors.New("port already registered")
)
