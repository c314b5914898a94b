// Package model contains domain models passed between layers.
package model

import "time"

// Cause names the operation that changed the global counter.
type Cause string

// Counter change causes.
const (
	CauseIncrement Cause = "increment"
	CauseSet       Cause = "set"
	CauseAdd       Cause = "add"
	CauseReset     Cause = "reset"
)

// CountEvent announces a new global counter value to stream subscribers.
type CountEvent struct {
	Count int64     // counter value after the change
	Cause Cause     // operation that produced it
	TS    time.Time // when the change was observed
}

// Payload is the JSON body pushed to subscribers.
func (e CountEvent) Payload() map[string]int64 {
	return map[string]int64{"count": e.Count}
}
