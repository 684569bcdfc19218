// Package unread counts messages that arrived while the user was not
// looking at their conversation, and renders the badge shown next to
// the application title.
package unread

import (
	"strconv"
	"sync"

	"go.uber.org/zap"

	"github.com/brunodmn/ripple/internal/bus"
	"github.com/brunodmn/ripple/internal/session"
)

// Changed is the payload on "unread.changed".
type Changed struct {
	Total int
}

// Tracker accumulates per conversation counts. A message only counts
// while the chat surface is hidden, and never for the open
// conversation, whose count stays zero for the whole time it is open.
type Tracker struct {
	sess   *session.Context
	bus    *bus.Bus
	logger *zap.Logger

	mu     sync.Mutex
	counts map[int64]int
}

func NewTracker(sess *session.Context, b *bus.Bus, logger *zap.Logger) *Tracker {
	return &Tracker{
		sess:   sess,
		bus:    b,
		logger: logger,
		counts: map[int64]int{},
	}
}

// HandleMessage records an inbound message for conversationID.
func (t *Tracker) HandleMessage(conversationID int64) {
	if conversationID == 0 {
		return
	}
	if t.sess.ChatVisible() || t.sess.IsOpen(conversationID) {
		return
	}

	t.mu.Lock()
	t.counts[conversationID]++
	total := t.totalLocked()
	t.mu.Unlock()

	t.publish(total)
}

// MarkRead clears the count for conversationID, typically when the
// user opens it or brings the chat surface back into view.
func (t *Tracker) MarkRead(conversationID int64) {
	t.mu.Lock()
	if t.counts[conversationID] == 0 {
		t.mu.Unlock()
		return
	}
	delete(t.counts, conversationID)
	total := t.totalLocked()
	t.mu.Unlock()

	t.publish(total)
}

// Reset clears every count.
func (t *Tracker) Reset() {
	t.mu.Lock()
	if len(t.counts) == 0 {
		t.mu.Unlock()
		return
	}
	t.counts = map[int64]int{}
	t.mu.Unlock()

	t.publish(0)
}

func (t *Tracker) Total() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.totalLocked()
}

// Badge renders the total for the title bar, empty when nothing is
// unread and capped at "9+".
func (t *Tracker) Badge() string {
	total := t.Total()
	switch {
	case total == 0:
		return ""
	case total > 9:
		return "9+"
	default:
		return strconv.Itoa(total)
	}
}

func (t *Tracker) totalLocked() int {
	total := 0
	for _, n := range t.counts {
		total += n
	}
	return total
}

func (t *Tracker) publish(total int) {
	if t.bus == nil {
		return
	}
	t.bus.Emit(bus.UnreadChanged, Changed{Total: total})
}
