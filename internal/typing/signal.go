// Package typing relays composing indicators in both directions,
// throttling what the local keyboard produces and expiring what the
// peer's silence leaves behind.
package typing

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/brunodmn/ripple/internal/bus"
	"github.com/brunodmn/ripple/internal/frame"
	"github.com/brunodmn/ripple/internal/session"
)

// Sender is the slice of the connection manager the signal needs.
type Sender interface {
	Connected() bool
	Send(ctx context.Context, v any) error
}

// Indicator is the payload on "typing.started" and "typing.stopped".
type Indicator struct {
	ConversationID int64
}

// Signal translates keystrokes into at most one typing frame per
// interval and shows the peer's indicator until it goes quiet for the
// configured time to live.
type Signal struct {
	conn    Sender
	sess    *session.Context
	bus     *bus.Bus
	logger  *zap.Logger
	limiter *rate.Limiter
	ttl     time.Duration

	mu       sync.Mutex
	activeID int64
	expire   *time.Timer
}

func New(conn Sender, sess *session.Context, b *bus.Bus, interval, ttl time.Duration, logger *zap.Logger) *Signal {
	return &Signal{
		conn:    conn,
		sess:    sess,
		bus:     b,
		logger:  logger,
		limiter: rate.NewLimiter(rate.Every(interval), 1),
		ttl:     ttl,
	}
}

// InputActivity reports a keystroke in the composer. Frames go out at
// most once per interval, and only while a conversation is open and
// the socket is up.
func (s *Signal) InputActivity(ctx context.Context) {
	convID := s.sess.OpenConversation()
	if convID == 0 || !s.conn.Connected() {
		return
	}
	if !s.limiter.Allow() {
		return
	}
	if err := s.conn.Send(ctx, frame.NewOutboundTyping(convID)); err != nil {
		s.logger.Debug("typing frame dropped", zap.Error(err))
	}
}

// HandleTyping shows the peer's indicator for the open conversation and
// extends it on every repeat. Indicators for other conversations are
// ignored.
func (s *Signal) HandleTyping(conversationID int64) {
	if conversationID == 0 || !s.sess.IsOpen(conversationID) {
		return
	}

	s.mu.Lock()
	started := s.activeID != conversationID
	s.activeID = conversationID
	if s.expire != nil {
		s.expire.Stop()
	}
	s.expire = time.AfterFunc(s.ttl, func() { s.Clear(conversationID) })
	s.mu.Unlock()

	if started {
		s.publish(bus.TypingStarted, conversationID)
	}
}

// Clear drops the indicator for conversationID, typically because a
// message from it just arrived.
func (s *Signal) Clear(conversationID int64) {
	s.mu.Lock()
	if s.activeID != conversationID {
		s.mu.Unlock()
		return
	}
	s.activeID = 0
	if s.expire != nil {
		s.expire.Stop()
		s.expire = nil
	}
	s.mu.Unlock()

	s.publish(bus.TypingStopped, conversationID)
}

// Active returns the conversation currently showing an indicator, zero
// when none is.
func (s *Signal) Active() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeID
}

func (s *Signal) publish(kind bus.Kind, conversationID int64) {
	if s.bus == nil {
		return
	}
	s.bus.Emit(kind, Indicator{ConversationID: conversationID})
}
