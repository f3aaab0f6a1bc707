package engine

import "github.com/roach88/portwire/internal/graph"

// Observer is notified of pipeline activity; metrics and the dispatch
// journal plug in here.
//
// EventReceived and CommandsEnqueued are called from the server's
// notification context and must not block. CommandApplied is called from the
// Dispatcher goroutine and may.
type Observer interface {
	EventReceived(ev graph.Event)
	CommandsEnqueued(cmds []Command)
	CommandApplied(cmd Command, err error)
}

// Observers fans out to every element in order.
type Observers []Observer

func (o Observers) EventReceived(ev graph.Event) {
	for _, obs := range o {
		obs.EventReceived(ev)
	}
}

func (o Observers) CommandsEnqueued(cmds []Command) {
	for _, obs := range o {
		obs.CommandsEnqueued(cmds)
	}
}

func (o Observers) CommandApplied(cmd Command, err error) {
	for _, obs := range o {
		obs.CommandApplied(cmd, err)
	}
}

// NopObserver ignores everything.
type NopObserver struct{}

func (NopObserver) EventReceived(graph.Event) {}
func (NopObserver) CommandsEnqueued([]Command) {}
func (NopObserver) CommandApplied(Command, error) {}
