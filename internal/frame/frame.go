package frame

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Kind discriminates the frame types exchanged over the chat socket.
type Kind string

const (
	KindMessage    Kind = "message"
	KindAck        Kind = "ack"
	KindTyping     Kind = "typing"
	KindUserStatus Kind = "user_status"
)

var (
	// ErrMissingKind is returned for frames without a kind discriminator
	// that the untyped-frame compatibility path does not recognize.
	ErrMissingKind = errors.New("frame has no kind")

	// ErrUnknownKind is returned for frames whose kind matches no variant.
	ErrUnknownKind = errors.New("unknown frame kind")
)

// Inbound is the closed set of frames the server pushes to the client.
type Inbound interface {
	FrameKind() Kind
}

// Message is a chat message pushed for one of our conversations.
type Message struct {
	Content        string
	AuthorID       int64
	ConversationID int64
}

func (Message) FrameKind() Kind { return KindMessage }

// Ack confirms delivery of a message we sent, correlated by temp id.
// It carries the server-assigned conversation id, which matters for the
// first message to a contact we had no conversation with yet.
type Ack struct {
	TempID         int64
	ConversationID int64
}

func (Ack) FrameKind() Kind { return KindAck }

// Typing signals that the peer in a conversation is composing.
type Typing struct {
	ConversationID int64
}

func (Typing) FrameKind() Kind { return KindTyping }

// UserStatus reports a contact going online or offline.
type UserStatus struct {
	UserID int64
	Online bool
}

func (UserStatus) FrameKind() Kind { return KindUserStatus }

// rawID accepts a conversation id sent either as a bare number or as the
// server's SQL null wrapper object {"Int64": n, "Valid": true}.
type rawID int64

func (r *rawID) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*r = 0
		return nil
	}
	var n int64
	if err := json.Unmarshal(data, &n); err == nil {
		*r = rawID(n)
		return nil
	}
	var wrapped struct {
		Int64 int64 `json:"Int64"`
		Valid bool  `json:"Valid"`
	}
	if err := json.Unmarshal(data, &wrapped); err != nil {
		return fmt.Errorf("conversation id: %w", err)
	}
	if !wrapped.Valid {
		*r = 0
		return nil
	}
	*r = rawID(wrapped.Int64)
	return nil
}

// Decoder turns raw socket payloads into typed inbound frames.
type Decoder struct {
	// AllowUntyped enables the compatibility path for servers that push
	// message frames without a kind: a frame carrying both content and an
	// author id is treated as a message frame.
	AllowUntyped bool
}

// Decode parses a raw frame payload into exactly one inbound variant.
func (d Decoder) Decode(data []byte) (Inbound, error) {
	var env struct {
		Kind           string `json:"kind"`
		Content        string `json:"content"`
		AuthorID       int64  `json:"author_id"`
		ConversationID rawID  `json:"conversation_id"`
		TempID         int64  `json:"temp_id"`
		UserID         int64  `json:"id"`
		Online         bool   `json:"isOnline"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}

	kind := Kind(env.Kind)
	if env.Kind == "" {
		if d.AllowUntyped && env.Content != "" && env.AuthorID != 0 {
			kind = KindMessage
		} else {
			return nil, ErrMissingKind
		}
	}

	switch kind {
	case KindMessage:
		return Message{
			Content:        env.Content,
			AuthorID:       env.AuthorID,
			ConversationID: int64(env.ConversationID),
		}, nil
	case KindAck:
		return Ack{
			TempID:         env.TempID,
			ConversationID: int64(env.ConversationID),
		}, nil
	case KindTyping:
		return Typing{ConversationID: int64(env.ConversationID)}, nil
	case KindUserStatus:
		return UserStatus{UserID: env.UserID, Online: env.Online}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, env.Kind)
	}
}

// OutboundMessage is a locally originated chat message.
type OutboundMessage struct {
	Kind           Kind   `json:"kind"`
	Content        string `json:"content"`
	ConversationID int64  `json:"conversation_id"`
	RecipientID    int64  `json:"recipient_id"`
	TempID         int64  `json:"temp_id"`
}

// NewOutboundMessage builds a message frame with the kind set.
func NewOutboundMessage(content string, conversationID, recipientID, tempID int64) OutboundMessage {
	return OutboundMessage{
		Kind:           KindMessage,
		Content:        content,
		ConversationID: conversationID,
		RecipientID:    recipientID,
		TempID:         tempID,
	}
}

// OutboundTyping announces local composing activity for a conversation.
type OutboundTyping struct {
	Kind           Kind  `json:"kind"`
	ConversationID int64 `json:"conversation_id"`
}

// NewOutboundTyping builds a typing frame with the kind set.
func NewOutboundTyping(conversationID int64) OutboundTyping {
	return OutboundTyping{Kind: KindTyping, ConversationID: conversationID}
}
