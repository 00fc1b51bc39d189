package models

import "encoding/json"

// EventType discriminates protocol events on the turn stream.
type EventType string

const (
	EventText         EventType = "text"
	EventFunctionCall EventType = "function_call"
	EventDocument     EventType = "document"
	EventError        EventType = "error"
	EventDone         EventType = "done"
)

// Error kinds carried by EventError payloads.
const (
	ErrKindValidation  = "validation_error"
	ErrKindUnknownTool = "unknown_tool"
	ErrKindNoDocument  = "no_document"
	ErrKindRender      = "render_error"
	ErrKindUpstream    = "upstream_error"
)

// Event is one unit of the ordered stream sent to the client during a turn.
// On the wire it is a single JSON object whose "type" field is the event
// type and whose remaining fields come from Payload.
type Event struct {
	Type    EventType
	Payload map[string]any
}

// MarshalJSON flattens the payload alongside the type discriminator.
func (e Event) MarshalJSON() ([]byte, error) {
	obj := make(map[string]any, len(e.Payload)+1)
	for k, v := range e.Payload {
		obj[k] = v
	}
	obj["type"] = string(e.Type)
	return json.Marshal(obj)
}

// TextEvent is an incremental narration chunk.
func TextEvent(content string) Event {
	return Event{Type: EventText, Payload: map[string]any{"content": content}}
}

// ErrorEvent reports a failed operation with its taxonomy kind.
func ErrorEvent(kind, message string) Event {
	return Event{Type: EventError, Payload: map[string]any{"kind": kind, "message": message}}
}

// DoneEvent is the sole terminal marker of a turn stream.
func DoneEvent() Event {
	return Event{Type: EventDone}
}
