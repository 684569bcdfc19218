package cache

import (
	"fmt"
	"time"

	"github.com/brunodmn/ripple/internal/convo"
)

// UpsertMessages stores delivered messages for warm starts. Pending and
// failed messages are skipped, they have no server id to key on.
func (db *DB) UpsertMessages(msgs []convo.Message) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UnixMilli()
	for _, m := range msgs {
		if m.ID == 0 || m.State != convo.Delivered {
			continue
		}
		if _, err := tx.Exec(`
			INSERT INTO messages (id, conversation_id, author_id, content, sent_at, is_outgoing, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				content = excluded.content,
				updated_at = excluded.updated_at`,
			m.ID, m.ConversationID, m.AuthorID, m.Content, m.SentAt.UnixMilli(), m.Outgoing, now); err != nil {
			return fmt.Errorf("upsert message %d: %w", m.ID, err)
		}
	}
	return tx.Commit()
}

// RecentMessages returns up to limit cached messages for a conversation
// in ascending send order.
func (db *DB) RecentMessages(conversationID int64, limit int) ([]convo.Message, error) {
	rows, err := db.Query(`
		SELECT id, conversation_id, author_id, content, sent_at, is_outgoing
		FROM messages
		WHERE conversation_id = ?
		ORDER BY id DESC
		LIMIT ?`, conversationID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var msgs []convo.Message
	for rows.Next() {
		var m convo.Message
		var sentAt int64
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.AuthorID, &m.Content, &sentAt, &m.Outgoing); err != nil {
			return nil, err
		}
		m.SentAt = time.UnixMilli(sentAt)
		m.State = convo.Delivered
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Flip newest-first rows into display order.
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}
