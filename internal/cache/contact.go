package cache

import (
	"fmt"
	"time"

	"github.com/brunodmn/ripple/internal/roster"
)

// ReplaceContacts swaps the cached roster for the given one in a single
// transaction. Presence is not stored, it is stale the moment the
// process exits.
func (db *DB) ReplaceContacts(contacts []roster.Contact) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`DELETE FROM contacts`); err != nil {
		return fmt.Errorf("clear contacts: %w", err)
	}

	now := time.Now().UnixMilli()
	for _, c := range contacts {
		var lastAt int64
		if !c.LastMessageAt.IsZero() {
			lastAt = c.LastMessageAt.UnixMilli()
		}
		if _, err := tx.Exec(`
			INSERT INTO contacts (id, first_name, last_name, username, avatar_url,
				last_message_at, last_message_content, unread_count, conversation_id, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			c.ID, c.FirstName, c.LastName, c.Username, c.AvatarURL,
			lastAt, c.LastMessagePreview, c.Unread, c.ConversationID, now); err != nil {
			return fmt.Errorf("insert contact %d: %w", c.ID, err)
		}
	}
	return tx.Commit()
}

// ListContacts returns every cached contact. Presence always comes back
// offline, only the server knows who is connected.
func (db *DB) ListContacts() ([]roster.Contact, error) {
	rows, err := db.Query(`
		SELECT id, first_name, last_name, username, avatar_url,
			last_message_at, last_message_content, unread_count, conversation_id
		FROM contacts`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var contacts []roster.Contact
	for rows.Next() {
		var c roster.Contact
		var lastAt int64
		if err := rows.Scan(&c.ID, &c.FirstName, &c.LastName, &c.Username, &c.AvatarURL,
			&lastAt, &c.LastMessagePreview, &c.Unread, &c.ConversationID); err != nil {
			return nil, err
		}
		if lastAt != 0 {
			c.LastMessageAt = time.UnixMilli(lastAt)
		}
		contacts = append(contacts, c)
	}
	return contacts, rows.Err()
}
