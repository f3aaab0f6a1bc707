// Package engine implements the portwire autoconnect core.
//
// The engine turns port registration events into graph mutations without ever
// mutating the graph from the context that delivered the event.
//
// ARCHITECTURE:
//
// Callback-to-Worker Hand-off:
// The audio server delivers notifications on a goroutine it owns. That
// context may read the port list and compute, but must not block and must not
// call Connect/Disconnect. Work therefore crosses a Channel:
//
//  1. Listener.HandleEvent runs in the server's notification context
//  2. It reads a fresh port Snapshot and calls Evaluate against the RuleSet
//  3. The resulting Commands are sent to the Channel (never blocks)
//  4. Dispatcher.Run, on its own goroutine, receives Commands in FIFO order
//  5. Each Command is applied with Connect/Disconnect; failures are logged
//
// Startup:
// Service.Start evaluates the ports that already exist and drains the Channel
// synchronously before the Listener is installed, so a freshly started
// process wires existing ports without waiting for a new registration.
//
// ORDERING:
//
// Evaluate is pure and deterministic: connect rules first, then disconnect
// rules, each in declaration order, each as a full cross product over the
// snapshot in server order. Commands from one evaluation are enqueued
// contiguously and applied in that order. Commands from two evaluations that
// race may interleave; graph operations tolerate that.
//
// ERROR HANDLING:
//
// Graph mutation failures (port gone, already linked, not linked) are
// expected under topology churn. They are logged and the loop continues.
// Nothing is retried: the next registration event re-evaluates against a
// fresh snapshot.
package engine
