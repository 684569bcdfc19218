package outbound

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/brunodmn/ripple/internal/api"
	"github.com/brunodmn/ripple/internal/convo"
	"github.com/brunodmn/ripple/internal/frame"
	"github.com/brunodmn/ripple/internal/roster"
	"github.com/brunodmn/ripple/internal/session"
)

type fakeSender struct {
	connected bool
	err       error
	frames    []any
}

func (f *fakeSender) Connected() bool { return f.connected }

func (f *fakeSender) Send(_ context.Context, v any) error {
	if f.err != nil {
		return f.err
	}
	f.frames = append(f.frames, v)
	return nil
}

type noFetch struct{}

func (noFetch) ConversationPage(context.Context, int64, int64, int) ([]api.MessageRecord, error) {
	return nil, nil
}

func (noFetch) MarkSeen(context.Context, int64) error { return nil }

func newFixture(connected bool) (*Queue, *fakeSender, *convo.Store, *roster.Model, *session.Context) {
	sender := &fakeSender{connected: connected}
	store := convo.NewStore(noFetch{}, nil, nil, 10, zap.NewNop())
	r := roster.NewModel(nil, zap.NewNop())
	r.Load([]roster.Contact{{ID: 5, FirstName: "Ana"}})
	sess := session.NewContext()
	sess.SetUser(session.User{ID: 1, Username: "me"})
	q := NewQueue(sender, store, r, sess, zap.NewNop())
	return q, sender, store, r, sess
}

func TestSendRejectsEmptyContent(t *testing.T) {
	q, sender, store, _, _ := newFixture(true)

	for _, content := range []string{"", "   ", "\n\t"} {
		if err := q.Send(context.Background(), 0, 5, content); !errors.Is(err, ErrEmptyContent) {
			t.Errorf("Send(%q) error = %v, want ErrEmptyContent", content, err)
		}
	}
	if len(sender.frames) != 0 {
		t.Error("empty sends reached the socket")
	}
	if len(store.Messages()) != 0 {
		t.Error("empty sends were appended to the conversation")
	}
}

func TestSendAppendsPendingAndWritesFrame(t *testing.T) {
	q, sender, store, _, _ := newFixture(true)

	if err := q.Send(context.Background(), 0, 5, " hello "); err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	msgs := store.Messages()
	if len(msgs) != 1 {
		t.Fatalf("messages = %d, want 1", len(msgs))
	}
	if msgs[0].State != convo.Pending {
		t.Errorf("state = %s, want PENDING", msgs[0].State)
	}
	if msgs[0].Content != "hello" {
		t.Errorf("content = %q, want trimmed %q", msgs[0].Content, "hello")
	}

	if len(sender.frames) != 1 {
		t.Fatalf("frames = %d, want 1", len(sender.frames))
	}
	out, ok := sender.frames[0].(frame.OutboundMessage)
	if !ok {
		t.Fatalf("frame type = %T, want OutboundMessage", sender.frames[0])
	}
	if out.TempID != msgs[0].TempID {
		t.Errorf("frame temp id = %d, message temp id = %d", out.TempID, msgs[0].TempID)
	}
	if out.RecipientID != 5 {
		t.Errorf("recipient = %d, want 5", out.RecipientID)
	}
}

func TestSendWhileDisconnectedFailsImmediately(t *testing.T) {
	q, sender, store, _, _ := newFixture(false)

	if err := q.Send(context.Background(), 0, 5, "hello"); err == nil {
		t.Fatal("Send() expected an error while disconnected")
	}
	if len(sender.frames) != 0 {
		t.Error("frame written while disconnected")
	}
	if got := store.Messages()[0].State; got != convo.Failed {
		t.Errorf("state = %s, want FAILED", got)
	}
}

func TestSendFailureMarksMessageFailed(t *testing.T) {
	q, sender, store, _, _ := newFixture(true)
	sender.err = errors.New("broken pipe")

	if err := q.Send(context.Background(), 0, 5, "hello"); err == nil {
		t.Fatal("Send() expected the write error")
	}
	if got := store.Messages()[0].State; got != convo.Failed {
		t.Errorf("state = %s, want FAILED", got)
	}
}

func TestHandleAckSettlesMessageAndAdoptsConversation(t *testing.T) {
	q, sender, store, r, sess := newFixture(true)

	if err := q.Send(context.Background(), 0, 5, "hello"); err != nil {
		t.Fatal(err)
	}
	tempID := sender.frames[0].(frame.OutboundMessage).TempID

	q.HandleAck(tempID, 9)

	msg := store.Messages()[0]
	if msg.State != convo.Delivered {
		t.Errorf("state = %s, want DELIVERED", msg.State)
	}
	if msg.ConversationID != 9 {
		t.Errorf("conversation id = %d, want 9", msg.ConversationID)
	}
	if sess.OpenConversation() != 9 {
		t.Errorf("open conversation = %d, want 9", sess.OpenConversation())
	}
	c, ok := r.Get(5)
	if !ok {
		t.Fatal("contact 5 missing")
	}
	if c.ConversationID != 9 {
		t.Errorf("contact conversation id = %d, want 9", c.ConversationID)
	}
}

func TestHandleAckIsIdempotent(t *testing.T) {
	q, sender, store, _, _ := newFixture(true)

	if err := q.Send(context.Background(), 0, 5, "hello"); err != nil {
		t.Fatal(err)
	}
	tempID := sender.frames[0].(frame.OutboundMessage).TempID

	q.HandleAck(tempID, 9)
	q.HandleAck(tempID, 9)

	if got := store.Messages()[0].State; got != convo.Delivered {
		t.Errorf("state = %s, want DELIVERED", got)
	}
}

func TestTempIDsIncreaseWithinMillisecond(t *testing.T) {
	q, sender, _, _, _ := newFixture(true)

	for i := 0; i < 5; i++ {
		if err := q.Send(context.Background(), 1, 5, "x"); err != nil {
			t.Fatal(err)
		}
	}
	var prev int64
	for _, f := range sender.frames {
		id := f.(frame.OutboundMessage).TempID
		if id <= prev {
			t.Fatalf("temp id %d not greater than previous %d", id, prev)
		}
		prev = id
	}
}
