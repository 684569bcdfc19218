// Package convo holds the message history of the currently open
// conversation and pages older history in from the server on demand.
package convo

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/brunodmn/ripple/internal/api"
	"github.com/brunodmn/ripple/internal/bus"
)

// MessageState tracks delivery of an outgoing message.
type MessageState int

const (
	Delivered MessageState = iota
	Pending
	Failed
)

func (s MessageState) String() string {
	switch s {
	case Pending:
		return "PENDING"
	case Failed:
		return "FAILED"
	default:
		return "DELIVERED"
	}
}

// Message is one entry in the open conversation, either fetched from the
// server or appended locally before the server has acknowledged it.
type Message struct {
	ID             int64
	TempID         int64
	ConversationID int64
	AuthorID       int64
	Content        string
	SentAt         time.Time
	Outgoing       bool
	State          MessageState
}

// Fetcher is the slice of the HTTP client the store needs.
type Fetcher interface {
	ConversationPage(ctx context.Context, conversationID, startID int64, pageSize int) ([]api.MessageRecord, error)
	MarkSeen(ctx context.Context, conversationID int64) error
}

// WarmSource supplies cached history to paint before the first server
// round trip. The profile cache satisfies it; nil disables warm starts.
type WarmSource interface {
	RecentMessages(conversationID int64, limit int) ([]Message, error)
}

// Loaded is published on "conversation.loaded" after a page lands.
type Loaded struct {
	ConversationID int64
	Prepended      int
	Initial        bool
}

// Store keeps the open conversation's messages in ascending send order.
// Opening another conversation discards the previous history, and any
// page still in flight for it is dropped when it arrives.
type Store struct {
	fetcher  Fetcher
	warm     WarmSource
	bus      *bus.Bus
	logger   *zap.Logger
	pageSize int

	mu           sync.Mutex
	convID       int64
	gen          uint64
	cursor       int64
	endOfHistory bool
	loading      bool
	messages     []Message
}

func NewStore(fetcher Fetcher, warm WarmSource, b *bus.Bus, pageSize int, logger *zap.Logger) *Store {
	return &Store{
		fetcher:  fetcher,
		warm:     warm,
		bus:      b,
		logger:   logger,
		pageSize: pageSize,
		cursor:   api.StartSentinel,
	}
}

// Open switches the store to conversationID, paints cached history if
// any, and loads the most recent server page synchronously. History
// already held for another conversation is discarded. The initial load
// holds the single-flight guard, so a LoadOlder racing it is a no-op.
func (s *Store) Open(ctx context.Context, conversationID int64) error {
	s.mu.Lock()
	s.convID = conversationID
	s.gen++
	gen := s.gen
	s.cursor = api.StartSentinel
	s.endOfHistory = false
	s.loading = conversationID != 0
	s.messages = nil
	s.mu.Unlock()

	if conversationID == 0 {
		// Contact without a conversation yet, nothing to fetch.
		return nil
	}

	s.warmStart(conversationID, gen)
	return s.load(ctx, gen, conversationID, api.StartSentinel, true)
}

// warmStart paints cached messages before the server round trip. The
// initial load replaces them with the server's page when it lands.
func (s *Store) warmStart(conversationID int64, gen uint64) {
	if s.warm == nil {
		return
	}
	cached, err := s.warm.RecentMessages(conversationID, s.pageSize)
	if err != nil {
		s.logger.Debug("cache read failed", zap.Int64("conversation_id", conversationID), zap.Error(err))
		return
	}
	if len(cached) == 0 {
		return
	}

	s.mu.Lock()
	if s.gen != gen {
		s.mu.Unlock()
		return
	}
	s.messages = cached
	s.mu.Unlock()

	s.publish(bus.ConversationLoaded, Loaded{ConversationID: conversationID, Prepended: len(cached), Initial: true})
}

// LoadOlder fetches the page preceding the oldest loaded message. It is
// a no-op while another load is in flight or once history is exhausted.
func (s *Store) LoadOlder(ctx context.Context) error {
	s.mu.Lock()
	if s.convID == 0 || s.loading || s.endOfHistory {
		s.mu.Unlock()
		return nil
	}
	s.loading = true
	gen := s.gen
	convID := s.convID
	cursor := s.cursor
	s.mu.Unlock()

	return s.load(ctx, gen, convID, cursor, false)
}

func (s *Store) load(ctx context.Context, gen uint64, convID, startID int64, initial bool) error {
	page, err := s.fetcher.ConversationPage(ctx, convID, startID, s.pageSize)

	s.mu.Lock()
	if s.gen != gen {
		// The user opened another conversation while this page was in
		// flight. Its history no longer exists here, drop the page and
		// leave the in-flight flag to the newer load that owns it.
		s.mu.Unlock()
		s.logger.Debug("discarding stale page", zap.Int64("conversation_id", convID))
		return nil
	}
	s.loading = false
	if err != nil {
		s.mu.Unlock()
		s.logger.Warn("history load failed", zap.Int64("conversation_id", convID), zap.Error(err))
		return err
	}

	if len(page) == 0 {
		s.endOfHistory = true
	} else {
		// The server sends pages newest first, prepend them oldest first.
		older := make([]Message, 0, len(page))
		for i := len(page) - 1; i >= 0; i-- {
			older = append(older, fromRecord(page[i]))
		}
		if initial {
			// The server page supersedes whatever the warm start painted.
			s.messages = older
		} else {
			s.messages = append(older, s.messages...)
		}
		s.cursor = page[len(page)-1].ID
	}
	prepended := len(page)
	s.mu.Unlock()

	s.publish(bus.ConversationLoaded, Loaded{ConversationID: convID, Prepended: prepended, Initial: initial})

	// Seen state is best effort, the server reconciles on next /recent.
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.fetcher.MarkSeen(ctx, convID); err != nil {
			s.logger.Debug("mark seen failed", zap.Int64("conversation_id", convID), zap.Error(err))
		}
	}()
	return nil
}

func fromRecord(r api.MessageRecord) Message {
	return Message{
		ID:             r.ID,
		ConversationID: int64(r.ConversationID),
		AuthorID:       r.AuthorID,
		Content:        r.Content,
		SentAt:         r.SentAt,
		Outgoing:       r.IsOutgoing,
		State:          Delivered,
	}
}

// AppendLocal adds an outgoing message before the server has seen it.
func (s *Store) AppendLocal(msg Message) {
	s.mu.Lock()
	s.messages = append(s.messages, msg)
	s.mu.Unlock()

	s.publish(bus.MessageReceived, msg)
}

// HandleInbound appends a message from the wire when it targets the open
// conversation. Messages for other conversations are not kept, the
// roster and unread tracker account for those.
func (s *Store) HandleInbound(conversationID, authorID int64, content string) bool {
	msg := Message{
		ConversationID: conversationID,
		AuthorID:       authorID,
		Content:        content,
		SentAt:         time.Now(),
		State:          Delivered,
	}

	s.mu.Lock()
	if s.convID == 0 || conversationID != s.convID {
		s.mu.Unlock()
		return false
	}
	s.messages = append(s.messages, msg)
	s.mu.Unlock()

	s.publish(bus.MessageReceived, msg)
	return true
}

// ResolveTempID marks the pending message carrying tempID as delivered
// and records the conversation id the server assigned it. It reports
// whether a pending message matched; repeated acknowledgements for the
// same id match nothing.
func (s *Store) ResolveTempID(tempID, conversationID int64) bool {
	s.mu.Lock()
	var resolved *Message
	for i := range s.messages {
		m := &s.messages[i]
		if m.State == Pending && m.TempID == tempID {
			m.State = Delivered
			if conversationID != 0 {
				m.ConversationID = conversationID
			}
			resolved = m
			break
		}
	}
	if resolved != nil && s.convID == 0 && conversationID != 0 {
		// First message to this contact, adopt the conversation the
		// server created for it.
		s.convID = conversationID
	}
	var copied Message
	if resolved != nil {
		copied = *resolved
	}
	s.mu.Unlock()

	if resolved == nil {
		return false
	}
	s.publish(bus.MessageUpdated, copied)
	return true
}

// MarkFailed flags the pending message carrying tempID as failed.
func (s *Store) MarkFailed(tempID int64) {
	s.mu.Lock()
	var failed *Message
	for i := range s.messages {
		m := &s.messages[i]
		if m.State == Pending && m.TempID == tempID {
			m.State = Failed
			failed = m
			break
		}
	}
	var copied Message
	if failed != nil {
		copied = *failed
	}
	s.mu.Unlock()

	if failed == nil {
		return
	}
	s.publish(bus.MessageUpdated, copied)
}

// OpenID returns the conversation currently held, zero when none is.
func (s *Store) OpenID() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.convID
}

// EndOfHistory reports whether all older history has been loaded.
func (s *Store) EndOfHistory() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.endOfHistory
}

// Messages returns a snapshot of the open conversation in send order.
func (s *Store) Messages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Message, len(s.messages))
	copy(out, s.messages)
	return out
}

func (s *Store) publish(kind bus.Kind, payload any) {
	if s.bus != nil {
		s.bus.Emit(kind, payload)
	}
}
