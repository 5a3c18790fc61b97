package session

import "time"

// LifecycleTopic is the in-process pub/sub topic session lifecycle events are
// published on. Payload is a JSON-encoded Event.
const LifecycleTopic = "session.lifecycle"

type EventType string

const (
	EventCreated     EventType = "created"
	EventReplaced    EventType = "replaced"
	EventInvalidated EventType = "invalidated"
)

// Event describes one session lifecycle transition. Events carry no handle
// internals; they exist for observability consumers only.
type Event struct {
	Type      EventType `json:"type"`
	SessionID string    `json:"session_id"`
	At        time.Time `json:"at"`
}
