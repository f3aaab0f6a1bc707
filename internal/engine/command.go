package engine

import (
	"fmt"

	"github.com/roach88/portwire/internal/rules"
)

// Command is one graph mutation produced by Evaluate and consumed exactly
// once by the Dispatcher.
type Command struct {
	Action rules.Action `json:"action"`
	From   string       `json:"from"`
	To     string       `json:"to"`

	// Batch identifies the evaluation pass that produced the command.
	Batch string `json:"batch,omitempty"`

	// Seq is stamped by the Channel when the command is accepted. Seq order
	// is delivery order.
	Seq int64 `json:"seq,omitempty"`
}

// String renders the command for logs, e.g. "connect app:out -> mixer:in".
func (c Command) String() string {
	return fmt.Sprintf("%s %s -> %s", c.Action, c.From, c.To)
}

// ConnectCmd builds a connect Command.
func ConnectCmd(from, to string) Command {
	return Command{Action: rules.Connect, From: from, To: to}
}

// DisconnectCmd builds a disconnect Command.
func DisconnectCmd(from, to string) Command {
	return Command{Action: rules.Disconnect, From: from, To: to}
}
