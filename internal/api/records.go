package api

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/brunodmn/ripple/internal/roster"
)

// MessageRecord is one message as returned by /conversation.
type MessageRecord struct {
	ID             int64     `json:"id"`
	AuthorID       int64     `json:"author_id"`
	ConversationID nullID    `json:"conversation_id"`
	Content        string    `json:"content"`
	SentAt         time.Time `json:"sent_at"`
	IsOutgoing     bool      `json:"is_outgoing"`
}

// contactRecord is one roster entry as returned by /recent.
type contactRecord struct {
	ID                 int64    `json:"id"`
	FirstName          string   `json:"first_name"`
	LastName           string   `json:"last_name"`
	Username           string   `json:"username"`
	AvatarURL          string   `json:"profile_img"`
	IsOnline           bool     `json:"is_online"`
	LastMessageAt      nullTime `json:"last_message_at"`
	LastMessageContent string   `json:"last_message_content"`
	UnreadCount        int      `json:"unread_count"`
	ConversationID     nullID   `json:"conversation_id"`
}

func (r contactRecord) toContact() roster.Contact {
	return roster.Contact{
		ID:                 r.ID,
		FirstName:          r.FirstName,
		LastName:           r.LastName,
		Username:           r.Username,
		AvatarURL:          r.AvatarURL,
		Online:             r.IsOnline,
		LastMessageAt:      time.Time(r.LastMessageAt),
		LastMessagePreview: r.LastMessageContent,
		Unread:             r.UnreadCount,
		ConversationID:     int64(r.ConversationID),
	}
}

// nullID accepts an id sent as a bare number, null, or the server's SQL
// null wrapper {"Int64": n, "Valid": bool}.
type nullID int64

func (n *nullID) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*n = 0
		return nil
	}
	var v int64
	if err := json.Unmarshal(data, &v); err == nil {
		*n = nullID(v)
		return nil
	}
	var wrapped struct {
		Int64 int64 `json:"Int64"`
		Valid bool  `json:"Valid"`
	}
	if err := json.Unmarshal(data, &wrapped); err != nil {
		return fmt.Errorf("id: %w", err)
	}
	if !wrapped.Valid {
		*n = 0
		return nil
	}
	*n = nullID(wrapped.Int64)
	return nil
}

// nullTime accepts a timestamp sent as an RFC3339 or SQL datetime string,
// null, or the server's SQL null wrapper {"String"/"Time": ..., "Valid": bool}.
type nullTime time.Time

var timeLayouts = []string{time.RFC3339Nano, time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"}

func (n *nullTime) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*n = nullTime(time.Time{})
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		return n.parse(s)
	}
	var wrapped struct {
		String string `json:"String"`
		Time   string `json:"Time"`
		Valid  bool   `json:"Valid"`
	}
	if err := json.Unmarshal(data, &wrapped); err != nil {
		return fmt.Errorf("timestamp: %w", err)
	}
	if !wrapped.Valid {
		*n = nullTime(time.Time{})
		return nil
	}
	if wrapped.String != "" {
		return n.parse(wrapped.String)
	}
	return n.parse(wrapped.Time)
}

func (n *nullTime) parse(s string) error {
	if s == "" {
		*n = nullTime(time.Time{})
		return nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			*n = nullTime(t)
			return nil
		}
	}
	return fmt.Errorf("timestamp: unrecognized format %q", s)
}
