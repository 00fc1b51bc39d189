package models

import "time"

// Role identifies who produced a message in a conversation.
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// Message is one entry of a conversation history. Parts holds the ordered
// text segments of the message; a model message that invoked tools carries
// one trailing part per invocation with a JSON record of the call.
// Messages are immutable once appended.
type Message struct {
	Role      Role      `json:"role"`
	Parts     []string  `json:"parts"`
	CreatedAt time.Time `json:"created_at"`
}

// Text joins the message parts into a single string for display and for
// replay to the model.
func (m Message) Text() string {
	switch len(m.Parts) {
	case 0:
		return ""
	case 1:
		return m.Parts[0]
	}
	out := m.Parts[0]
	for _, p := range m.Parts[1:] {
		out += "\n" + p
	}
	return out
}

// Clone returns a deep copy so callers can hand out snapshots without
// sharing the parts slice.
func (m Message) Clone() Message {
	c := m
	c.Parts = append([]string(nil), m.Parts...)
	return c
}
