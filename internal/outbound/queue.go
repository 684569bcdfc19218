// Package outbound sends local messages over the socket and reconciles
// server acknowledgements with the optimistic copies shown in the UI.
package outbound

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/brunodmn/ripple/internal/convo"
	"github.com/brunodmn/ripple/internal/frame"
	"github.com/brunodmn/ripple/internal/roster"
	"github.com/brunodmn/ripple/internal/session"
)

var ErrEmptyContent = errors.New("outbound: empty message")

// Sender is the slice of the connection manager the queue needs.
type Sender interface {
	Connected() bool
	Send(ctx context.Context, v any) error
}

// Queue appends outgoing messages to the conversation before sending
// them, so the composer feels instant, and flips them to delivered or
// failed once the socket settles the matter.
type Queue struct {
	conn   Sender
	store  *convo.Store
	roster *roster.Model
	sess   *session.Context
	logger *zap.Logger

	mu         sync.Mutex
	lastTempID int64
	pending    map[int64]int64 // temp id -> recipient id
}

func NewQueue(conn Sender, store *convo.Store, r *roster.Model, sess *session.Context, logger *zap.Logger) *Queue {
	return &Queue{
		conn:    conn,
		store:   store,
		roster:  r,
		sess:    sess,
		logger:  logger,
		pending: map[int64]int64{},
	}
}

// Send dispatches content to recipientID. conversationID may be zero
// when no conversation exists yet, the server assigns one and reports
// it back in the acknowledgement.
func (q *Queue) Send(ctx context.Context, conversationID, recipientID int64, content string) error {
	content = strings.TrimSpace(content)
	if content == "" {
		return ErrEmptyContent
	}

	now := time.Now()
	tempID := q.nextTempID(now)

	q.mu.Lock()
	q.pending[tempID] = recipientID
	q.mu.Unlock()

	q.store.AppendLocal(convo.Message{
		TempID:         tempID,
		ConversationID: conversationID,
		AuthorID:       q.sess.User().ID,
		Content:        content,
		SentAt:         now,
		Outgoing:       true,
		State:          convo.Pending,
	})
	q.roster.ApplyMessage(recipientID, content, now, true)

	if !q.conn.Connected() {
		q.fail(tempID)
		return errors.New("outbound: not connected")
	}
	if err := q.conn.Send(ctx, frame.NewOutboundMessage(content, conversationID, recipientID, tempID)); err != nil {
		q.logger.Warn("send failed", zap.Int64("temp_id", tempID), zap.Error(err))
		q.fail(tempID)
		return err
	}
	return nil
}

// HandleAck settles the pending message carrying the acknowledged temp
// id. The conversation id the server assigned is adopted everywhere a
// zero placeholder was used.
func (q *Queue) HandleAck(tempID, conversationID int64) {
	q.mu.Lock()
	recipientID, ok := q.pending[tempID]
	delete(q.pending, tempID)
	q.mu.Unlock()

	if !q.store.ResolveTempID(tempID, conversationID) {
		q.logger.Debug("acknowledgement for unknown message", zap.Int64("temp_id", tempID))
		return
	}
	if conversationID == 0 {
		return
	}
	if q.sess.OpenConversation() == 0 {
		q.sess.SetOpenConversation(conversationID)
	}
	if ok {
		q.roster.Merge(recipientID, roster.Patch{ConversationID: &conversationID})
	}
}

func (q *Queue) fail(tempID int64) {
	q.mu.Lock()
	delete(q.pending, tempID)
	q.mu.Unlock()
	q.store.MarkFailed(tempID)
}

// nextTempID returns millisecond timestamps, bumped past the previous
// id so two sends in the same millisecond stay distinguishable.
func (q *Queue) nextTempID(now time.Time) int64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	id := now.UnixMilli()
	if id <= q.lastTempID {
		id = q.lastTempID + 1
	}
	q.lastTempID = id
	return id
}
