package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory_PortsInRegistrationOrder(t *testing.T) {
	m := NewMemory()
	_, err := m.Register("b:out", TypeAudio, FlagOutput)
	require.NoError(t, err)
	_, err = m.Register("a:in", TypeAudio, FlagInput|FlagPhysical)
	require.NoError(t, err)
	_, err = m.Register("c:midi", TypeMIDI, FlagOutput)
	require.NoError(t, err)

	all, err := m.Ports(Filter{})
	require.NoError(t, err)
	assert.Equal(t, []string{"b:out", "a:in", "c:midi"}, all)

	audio, err := m.Ports(Filter{Type: "audio"})
	require.NoError(t, err)
	assert.Equal(t, []string{"b:out", "a:in"}, audio)

	physical, err := m.Ports(Filter{Flags: FlagPhysical})
	require.NoError(t, err)
	assert.Equal(t, []string{"a:in"}, physical)

	named, err := m.Ports(Filter{Name: "^c:"})
	require.NoError(t, err)
	assert.Equal(t, []string{"c:midi"}, named)

	_, err = m.Ports(Filter{Name: "("})
	assert.Error(t, err)
}

func TestMemory_RegisterDuplicate(t *testing.T) {
	m := NewMemory()
	p, err := m.Register("a:out", TypeAudio, FlagOutput)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), p.ID)

	_, err = m.Register("a:out", TypeAudio, FlagOutput)
	assert.ErrorIs(t, err, ErrPortExists)
}

func TestMemory_ConnectDisconnect(t *testing.T) {
	m := NewMemory()
	_, _ = m.Register("app:out", TypeAudio, FlagOutput)
	_, _ = m.Register("mixer:in", TypeAudio, FlagInput)

	require.NoError(t, m.Connect("app:out", "mixer:in"))
	assert.True(t, m.Connected("app:out", "mixer:in"))

	err := m.Connect("app:out", "mixer:in")
	assert.ErrorIs(t, err, ErrAlreadyConnected)
	assert.Equal(t, [][2]string{{"app:out", "mixer:in"}}, m.Connections())

	require.NoError(t, m.Disconnect("app:out", "mixer:in"))
	assert.False(t, m.Connected("app:out", "mixer:in"))

	err = m.Disconnect("app:out", "mixer:in")
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestMemory_LinkChecks(t *testing.T) {
	m := NewMemory()
	_, _ = m.Register("app:out", TypeAudio, FlagOutput)
	_, _ = m.Register("mixer:in", TypeAudio, FlagInput)
	_, _ = m.Register("loose:port", TypeAudio, 0)

	assert.ErrorIs(t, m.Connect("app:out", "gone:in"), ErrPortNotFound)
	assert.ErrorIs(t, m.Connect("mixer:in", "app:out"), ErrWrongDirection)
	assert.ErrorIs(t, m.Connect("app:out", "app:out"), ErrWrongDirection)

	// Ports without direction flags accept either role.
	require.NoError(t, m.Connect("loose:port", "loose:port"))
}

func TestMemory_UnregisterDropsLinks(t *testing.T) {
	m := NewMemory()
	_, _ = m.Register("app:out", TypeAudio, FlagOutput)
	_, _ = m.Register("mixer:in", TypeAudio, FlagInput)
	_, _ = m.Register("rec:in", TypeAudio, FlagInput)
	require.NoError(t, m.Connect("app:out", "mixer:in"))
	require.NoError(t, m.Connect("app:out", "rec:in"))

	require.NoError(t, m.Unregister("mixer:in"))
	assert.Equal(t, [][2]string{{"app:out", "rec:in"}}, m.Connections())

	assert.ErrorIs(t, m.Unregister("mixer:in"), ErrPortNotFound)
}

func TestMemory_SubscribeDeliversEvents(t *testing.T) {
	m := NewMemory()

	var got []Event
	unsubscribe, err := m.Subscribe(func(ev Event) {
		// Reading the port list from inside a notification is allowed.
		ports, err := m.Ports(Filter{})
		require.NoError(t, err)
		assert.Contains(t, append(ports, ev.Port), ev.Port)
		got = append(got, ev)
	})
	require.NoError(t, err)

	_, _ = m.Register("a:out", TypeAudio, FlagOutput)
	require.NoError(t, m.Unregister("a:out"))

	unsubscribe()
	unsubscribe()
	_, _ = m.Register("b:out", TypeAudio, FlagOutput)

	assert.Equal(t, []Event{
		{ID: 1, Port: "a:out", Registered: true},
		{ID: 1, Port: "a:out", Registered: false},
	}, got)

	_, err = m.Subscribe(nil)
	assert.Error(t, err)
}

func TestPortFlags_Has(t *testing.T) {
	f := FlagOutput | FlagPhysical
	assert.True(t, f.Has(FlagOutput))
	assert.True(t, f.Has(FlagOutput|FlagPhysical))
	assert.False(t, f.Has(FlagInput))
	assert.True(t, f.Has(0))
}

func TestPortFlags_Text(t *testing.T) {
	f := FlagOutput | FlagPhysical | FlagTerminal
	assert.Equal(t, "output,physical,terminal", f.String())
	assert.Equal(t, f, ParseFlags("output,physical,terminal,"))
	assert.Equal(t, FlagInput, ParseFlags(" input , bogus"))
	assert.Equal(t, "", PortFlags(0).String())
}

func TestMemory_Describe(t *testing.T) {
	m := NewMemory()
	_, _ = m.Register("sys:capture_1", TypeAudio, FlagOutput|FlagPhysical)
	_, _ = m.Register("midi:in", TypeMIDI, FlagInput)

	ports, err := m.Describe(Filter{Type: "midi"})
	require.NoError(t, err)
	require.Len(t, ports, 1)
	assert.Equal(t, Port{ID: 2, Name: "midi:in", Type: TypeMIDI, Flags: FlagInput}, ports[0])

	var _ Describer = m
}

func TestSelect_KeepsOrder(t *testing.T) {
	ports := []Port{
		{Name: "b:out", Flags: FlagOutput},
		{Name: "a:in", Flags: FlagInput},
		{Name: "a:out", Flags: FlagOutput},
	}

	got, err := Select(ports, Filter{Flags: FlagOutput})
	require.NoError(t, err)
	assert.Equal(t, []string{"b:out", "a:out"}, Names(got))

	_, err = Select(ports, Filter{Type: "["})
	assert.Error(t, err)
}
