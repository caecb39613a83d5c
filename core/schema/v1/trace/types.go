// Package trace defines the hash-chained trace event wire types.
package trace

import "time"

// EventType is the closed set of lifecycle events a trace may record.
// Unrecognized types are rejected at append time rather than becoming
// silent no-ops downstream.
type EventType string

const (
	EventGateStart       EventType = "gate.start"
	EventGateEnd         EventType = "gate.end"
	EventEnforceStart    EventType = "enforce.start"
	EventEnforceEnd      EventType = "enforce.end"
	EventExecuteStart    EventType = "execute.start"
	EventExecuteEnd      EventType = "execute.end"
	EventEvidenceWritten EventType = "evidence.written"
)

var knownEventTypes = map[EventType]struct{}{
	EventGateStart:       {},
	EventGateEnd:         {},
	EventEnforceStart:    {},
	EventEnforceEnd:      {},
	EventExecuteStart:    {},
	EventExecuteEnd:      {},
	EventEvidenceWritten: {},
}

// Valid reports whether the event type belongs to the closed set.
func (t EventType) Valid() bool {
	_, ok := knownEventTypes[t]
	return ok
}

// Event is one entry in a trace's append-only log. Events are immutable
// once written; the hash at sequence n can only be recomputed if every
// event 0..n is present and unmodified.
type Event struct {
	TraceID      string    `json:"trace_id"`
	SpanID       string    `json:"span_id,omitempty"`
	ParentSpanID string    `json:"parent_span_id,omitempty"`
	Seq          int64     `json:"seq"`
	Type         EventType `json:"type"`
	Payload      any       `json:"payload"`
	TS           time.Time `json:"ts"`
	HashPrev     *string   `json:"hash_prev"`
	Hash         string    `json:"hash"`
}
