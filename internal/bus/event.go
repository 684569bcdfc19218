package bus

import "time"

// Kind names a runtime event. Kinds are dot-namespaced so subscribers
// can filter by prefix, "conn." matches every connection event.
type Kind string

const (
	ConnStateChanged   Kind = "conn.state_changed"
	MessageReceived    Kind = "message.received"
	MessageUpdated     Kind = "message.updated"
	RosterUpdated      Kind = "roster.updated"
	ConversationLoaded Kind = "conversation.loaded"
	TypingStarted      Kind = "typing.started"
	TypingStopped      Kind = "typing.stopped"
	UnreadChanged      Kind = "unread.changed"
)

// Event represents a client-runtime event published on the bus.
type Event struct {
	Kind      Kind
	Timestamp time.Time
	Payload   any
}
