package roster

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/brunodmn/ripple/internal/bus"
	"go.uber.org/zap"
)

// Model holds every known contact with presence and last-message metadata
// and keeps them in display order. Ordering is a total order: online
// contacts precede offline; within each group, contacts with a last
// message precede those without, newest first; ties break by
// case-insensitive full name ascending.
type Model struct {
	mu     sync.RWMutex
	byID   map[int64]*Contact
	order  []*Contact
	bus    *bus.Bus
	logger *zap.Logger
}

// NewModel creates an empty roster model.
func NewModel(b *bus.Bus, logger *zap.Logger) *Model {
	return &Model{
		byID:   make(map[int64]*Contact),
		bus:    b,
		logger: logger,
	}
}

// Load replaces the roster with a bulk-loaded contact list.
func (m *Model) Load(contacts []Contact) {
	m.mu.Lock()
	m.byID = make(map[int64]*Contact, len(contacts))
	m.order = m.order[:0]
	for i := range contacts {
		c := contacts[i]
		m.byID[c.ID] = &c
		m.order = append(m.order, &c)
	}
	m.sortLocked()
	m.mu.Unlock()

	m.publish()
}

// Merge shallow-merges a patch into the matching contact, then resorts.
// Unknown ids are a no-op: the roster only grows through Load.
func (m *Model) Merge(id int64, p Patch) bool {
	m.mu.Lock()
	c, ok := m.byID[id]
	if !ok {
		m.mu.Unlock()
		m.logger.Debug("merge for unknown contact", zap.Int64("contact_id", id))
		return false
	}
	if p.Online != nil {
		c.Online = *p.Online
	}
	if p.LastMessageAt != nil {
		c.LastMessageAt = *p.LastMessageAt
	}
	if p.LastMessagePreview != nil {
		c.LastMessagePreview = *p.LastMessagePreview
	}
	if p.Unread != nil {
		c.Unread = *p.Unread
	}
	if p.ConversationID != nil {
		c.ConversationID = *p.ConversationID
	}
	m.sortLocked()
	m.mu.Unlock()

	m.publish()
	return true
}

// ApplyMessage records message activity against a contact: preview and
// timestamp always move forward; unread increments unless the affected
// conversation is the open one, in which case it clamps to zero.
func (m *Model) ApplyMessage(contactID int64, preview string, at time.Time, conversationOpen bool) bool {
	m.mu.RLock()
	c, ok := m.byID[contactID]
	var unread int
	if ok && !conversationOpen {
		unread = c.Unread + 1
	}
	m.mu.RUnlock()
	if !ok {
		return false
	}

	return m.Merge(contactID, Patch{
		LastMessageAt:      &at,
		LastMessagePreview: &preview,
		Unread:             &unread,
	})
}

// Get returns a copy of the contact with the given id.
func (m *Model) Get(id int64) (Contact, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.byID[id]
	if !ok {
		return Contact{}, false
	}
	return *c, true
}

// ByConversation returns a copy of the contact bound to the given
// conversation id, if any.
func (m *Model) ByConversation(conversationID int64) (Contact, bool) {
	if conversationID == 0 {
		return Contact{}, false
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, c := range m.order {
		if c.ConversationID == conversationID {
			return *c, true
		}
	}
	return Contact{}, false
}

// Contacts returns a snapshot of the roster in display order.
func (m *Model) Contacts() []Contact {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Contact, len(m.order))
	for i, c := range m.order {
		out[i] = *c
	}
	return out
}

// OnlineCount returns how many contacts are currently online.
func (m *Model) OnlineCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, c := range m.order {
		if c.Online {
			n++
		}
	}
	return n
}

// sortLocked recomputes display order. The roster is small, so a full
// resort on every merge is fine.
func (m *Model) sortLocked() {
	sort.SliceStable(m.order, func(i, j int) bool {
		return less(m.order[i], m.order[j])
	})
}

func less(a, b *Contact) bool {
	if a.Online != b.Online {
		return a.Online
	}
	aHas, bHas := !a.LastMessageAt.IsZero(), !b.LastMessageAt.IsZero()
	if aHas != bHas {
		return aHas
	}
	if aHas && !a.LastMessageAt.Equal(b.LastMessageAt) {
		return a.LastMessageAt.After(b.LastMessageAt)
	}
	return strings.ToLower(a.FullName()) < strings.ToLower(b.FullName())
}

func (m *Model) publish() {
	if m.bus == nil {
		return
	}
	m.bus.Emit(bus.RosterUpdated, nil)
}
