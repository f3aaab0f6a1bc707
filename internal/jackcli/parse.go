package jackcli

import (
	"bufio"
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/roach88/portwire/internal/graph"
)

// ParseListing reads the output of `jack_lsp -p -t`.
//
// Every port is a line with its full name followed by tab-indented detail
// lines: "properties: input,physical," for the flags and the bare port type.
// Other detail lines (connections, aliases, latencies) are skipped.
func ParseListing(out []byte) ([]graph.Port, error) {
	var ports []graph.Port

	sc := bufio.NewScanner(bytes.NewReader(out))
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := sc.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}

		if line[0] != ' ' && line[0] != '\t' {
			ports = append(ports, graph.Port{Name: line})
			continue
		}

		if len(ports) == 0 {
			return nil, fmt.Errorf("line %d: detail line before any port name", lineNo)
		}
		cur := &ports[len(ports)-1]
		detail := strings.TrimSpace(line)

		switch {
		case strings.HasPrefix(detail, "properties:"):
			cur.Flags = graph.ParseFlags(strings.TrimPrefix(detail, "properties:"))
		case isPortType(detail):
			cur.Type = detail
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return ports, nil
}

// isPortType recognizes the type line printed by `jack_lsp -t`. Registered
// JACK types look like "32 bit float mono audio" or "8 bit raw midi".
func isPortType(detail string) bool {
	if detail == graph.TypeAudio || detail == graph.TypeMIDI {
		return true
	}
	return strings.Contains(detail, " bit ")
}

// parseEvent reads one `jack_evmon` line. Only port registration lines are
// recognized: "Port 12 registered" and "Port 12 unregistered".
func parseEvent(line string) (id uint32, registered bool, ok bool) {
	fields := strings.Fields(line)
	if len(fields) != 3 || fields[0] != "Port" {
		return 0, false, false
	}

	n, err := strconv.ParseUint(fields[1], 10, 32)
	if err != nil {
		return 0, false, false
	}

	switch fields[2] {
	case "registered":
		return uint32(n), true, true
	case "unregistered":
		return uint32(n), false, true
	}
	return 0, false, false
}
