package graph

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrWrongDirection is returned when a link would not go from an output to
// an input port.
var ErrWrongDirection = errors.New("link must go from an output port to an input port")

type link struct{ from, to string }

// Memory is an in-process port graph. It behaves like a small audio server:
// ports are listed in registration order, links are checked the way a real
// server checks them, and registration events are delivered to subscribers
// one at a time on the goroutine that changed the topology.
//
// Memory is safe for concurrent use.
type Memory struct {
	mu       sync.Mutex
	ports    []Port
	links    []link
	nextID   uint32
	handlers map[int]Handler
	nextSub  int

	// deliver serializes notifications, so no two handlers run at once.
	deliver sync.Mutex
}

// NewMemory returns an empty graph.
func NewMemory() *Memory {
	return &Memory{handlers: make(map[int]Handler)}
}

// Register adds a port and notifies subscribers.
func (m *Memory) Register(name, portType string, flags PortFlags) (Port, error) {
	m.mu.Lock()
	if m.indexOf(name) >= 0 {
		m.mu.Unlock()
		return Port{}, fmt.Errorf("register %s: %w", name, ErrPortExists)
	}
	m.nextID++
	p := Port{ID: m.nextID, Name: name, Type: portType, Flags: flags}
	m.ports = append(m.ports, p)
	handlers := m.snapshotHandlers()
	m.mu.Unlock()

	m.notify(handlers, Event{ID: p.ID, Port: name, Registered: true})
	return p, nil
}

// Unregister removes a port, drops its links and notifies subscribers.
func (m *Memory) Unregister(name string) error {
	m.mu.Lock()
	i := m.indexOf(name)
	if i < 0 {
		m.mu.Unlock()
		return fmt.Errorf("unregister %s: %w", name, ErrPortNotFound)
	}
	p := m.ports[i]
	m.ports = append(m.ports[:i], m.ports[i+1:]...)

	kept := m.links[:0]
	for _, l := range m.links {
		if l.from != name && l.to != name {
			kept = append(kept, l)
		}
	}
	m.links = kept
	handlers := m.snapshotHandlers()
	m.mu.Unlock()

	m.notify(handlers, Event{ID: p.ID, Port: name, Registered: false})
	return nil
}

// Ports lists port names in registration order.
func (m *Memory) Ports(filter Filter) ([]string, error) {
	ports, err := m.Describe(filter)
	if err != nil {
		return nil, err
	}
	return Names(ports), nil
}

// Describe lists ports with their type and flags, in registration order.
func (m *Memory) Describe(filter Filter) ([]Port, error) {
	m.mu.Lock()
	ports := make([]Port, len(m.ports))
	copy(ports, m.ports)
	m.mu.Unlock()

	return Select(ports, filter)
}

// Connect links two ports.
func (m *Memory) Connect(from, to string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.checkLink(from, to); err != nil {
		return fmt.Errorf("connect %s -> %s: %w", from, to, err)
	}
	if m.linkIndex(from, to) >= 0 {
		return fmt.Errorf("connect %s -> %s: %w", from, to, ErrAlreadyConnected)
	}
	m.links = append(m.links, link{from: from, to: to})
	return nil
}

// Disconnect removes a link.
func (m *Memory) Disconnect(from, to string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.checkLink(from, to); err != nil {
		return fmt.Errorf("disconnect %s -> %s: %w", from, to, err)
	}
	i := m.linkIndex(from, to)
	if i < 0 {
		return fmt.Errorf("disconnect %s -> %s: %w", from, to, ErrNotConnected)
	}
	m.links = append(m.links[:i], m.links[i+1:]...)
	return nil
}

// Subscribe installs h for registration events.
func (m *Memory) Subscribe(h Handler) (func(), error) {
	if h == nil {
		return nil, errors.New("subscribe: nil handler")
	}

	m.mu.Lock()
	id := m.nextSub
	m.nextSub++
	m.handlers[id] = h
	m.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.handlers, id)
			m.mu.Unlock()
		})
	}, nil
}

// Connected reports whether from is linked to to.
func (m *Memory) Connected(from, to string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.linkIndex(from, to) >= 0
}

// Connections returns every link as [from, to] pairs, sorted.
func (m *Memory) Connections() [][2]string {
	m.mu.Lock()
	out := make([][2]string, 0, len(m.links))
	for _, l := range m.links {
		out = append(out, [2]string{l.from, l.to})
	}
	m.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i][0] != out[j][0] {
			return out[i][0] < out[j][0]
		}
		return out[i][1] < out[j][1]
	})
	return out
}

func (m *Memory) checkLink(from, to string) error {
	fi, ti := m.indexOf(from), m.indexOf(to)
	if fi < 0 || ti < 0 {
		return ErrPortNotFound
	}
	src, dst := m.ports[fi], m.ports[ti]

	// Ports registered without direction flags accept either role.
	if src.Flags&(FlagInput|FlagOutput) != 0 && !src.Flags.Has(FlagOutput) {
		return ErrWrongDirection
	}
	if dst.Flags&(FlagInput|FlagOutput) != 0 && !dst.Flags.Has(FlagInput) {
		return ErrWrongDirection
	}
	return nil
}

func (m *Memory) indexOf(name string) int {
	for i, p := range m.ports {
		if p.Name == name {
			return i
		}
	}
	return -1
}

func (m *Memory) linkIndex(from, to string) int {
	for i, l := range m.links {
		if l.from == from && l.to == to {
			return i
		}
	}
	return -1
}

// snapshotHandlers copies the subscriber list in subscription order.
// Caller holds m.mu.
func (m *Memory) snapshotHandlers() []Handler {
	ids := make([]int, 0, len(m.handlers))
	for id := range m.handlers {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	hs := make([]Handler, 0, len(ids))
	for _, id := range ids {
		hs = append(hs, m.handlers[id])
	}
	return hs
}

func (m *Memory) notify(handlers []Handler, ev Event) {
	m.deliver.Lock()
	defer m.deliver.Unlock()
	for _, h := range handlers {
		h(ev)
	}
}
