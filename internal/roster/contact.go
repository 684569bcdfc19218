package roster

import "time"

// Contact is one entry in the ranked contact list. Contacts come from the
// initial bulk load and are mutated in place by merges for the rest of the
// session; push events never add or remove entries.
type Contact struct {
	ID        int64
	FirstName string
	LastName  string
	Username  string
	AvatarURL string

	Online bool

	// LastMessageAt is zero for contacts we never exchanged a message with.
	LastMessageAt      time.Time
	LastMessagePreview string

	Unread int

	// ConversationID is zero until a first message creates the
	// conversation server-side.
	ConversationID int64
}

// FullName returns the display name used for sorting and rendering. It
// is empty when both name parts are, so callers can fall back to the
// username.
func (c Contact) FullName() string {
	if c.FirstName == "" {
		return c.LastName
	}
	if c.LastName == "" {
		return c.FirstName
	}
	return c.FirstName + " " + c.LastName
}

// Patch is a shallow partial update applied by Model.Merge. Nil fields are
// left untouched.
type Patch struct {
	Online             *bool
	LastMessageAt      *time.Time
	LastMessagePreview *string
	Unread             *int
	ConversationID     *int64
}
