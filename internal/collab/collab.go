// Package collab defines the collaborator capability interface and its
// built-in implementations.
//
// Every external dependency of the orchestrator — the news/sentiment
// service, the per-platform share service — is reached through this one
// interface, with the concrete variant selected by configuration. Wire
// formats are the collaborator's problem; the engine only sees Input/Output.
package collab

import "context"

// Input is what the engine hands a collaborator.
type Input struct {
	Tenant   string
	Content  string
	Platform string // empty for non-platform collaborators
	Variant  string // competitor strategy, empty for plain tasks
}

// Output is what a collaborator hands back. Signal is the opaque numeric
// result the engine scores with (sentiment for news, reach for share).
type Output struct {
	Signal  float64
	Payload map[string]string
}

// Collaborator is a single capability an orchestrated call depends on.
// Implementations must honor ctx cancellation — the circuit breaker
// enforces the per-collaborator timeout through it.
type Collaborator interface {
	Name() string
	Call(ctx context.Context, in Input) (Output, error)
}
