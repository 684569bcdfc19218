package roster

import (
	"testing"
	"time"

	"github.com/brunodmn/ripple/internal/bus"
	"go.uber.org/zap"
)

func date(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func newModel() *Model {
	return NewModel(nil, zap.NewNop())
}

func ids(contacts []Contact) []int64 {
	out := make([]int64, len(contacts))
	for i, c := range contacts {
		out[i] = c.ID
	}
	return out
}

func TestOrderOnlineFirst(t *testing.T) {
	m := newModel()
	m.Load([]Contact{
		{ID: 1, FirstName: "Ana", LastName: "Reis", Online: false},
		{ID: 2, FirstName: "Zeca", LastName: "Melo", Online: true},
	})

	got := ids(m.Contacts())
	if got[0] != 2 || got[1] != 1 {
		t.Errorf("order = %v, want [2 1]", got)
	}
}

func TestOrderByLastMessageWithinGroup(t *testing.T) {
	m := newModel()
	m.Load([]Contact{
		{ID: 1, Online: true, LastMessageAt: date("2024-01-01")},
		{ID: 2, Online: true, LastMessageAt: date("2024-03-01")},
		{ID: 3, Online: true}, // no message history, sorts after both
	})

	got := ids(m.Contacts())
	want := []int64{2, 1, 3}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order = %v, want %v", got, want)
		}
	}
}

func TestOrderTiesByName(t *testing.T) {
	m := newModel()
	m.Load([]Contact{
		{ID: 1, FirstName: "zoe", LastName: "a"},
		{ID: 2, FirstName: "Bea", LastName: "a"},
		{ID: 3, FirstName: "ana", LastName: "a"},
	})

	got := ids(m.Contacts())
	want := []int64{3, 2, 1} // case-insensitive ascending
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order = %v, want %v", got, want)
		}
	}
}

func TestMergePresenceResorts(t *testing.T) {
	// Contact 1 comes online; contact 2 keeps its timestamp edge.
	m := newModel()
	m.Load([]Contact{
		{ID: 1, Online: false},
		{ID: 2, Online: true, LastMessageAt: date("2024-01-01")},
	})

	online := true
	if !m.Merge(1, Patch{Online: &online}) {
		t.Fatal("Merge() = false, want true")
	}

	got := ids(m.Contacts())
	if got[0] != 2 || got[1] != 1 {
		t.Errorf("order = %v, want [2 1] (both online, 2 has a timestamp)", got)
	}
}

func TestMergeUnknownIDIsNoop(t *testing.T) {
	m := newModel()
	m.Load([]Contact{{ID: 1}})

	online := true
	if m.Merge(42, Patch{Online: &online}) {
		t.Error("Merge(42) = true, want false for unknown contact")
	}
	if len(m.Contacts()) != 1 {
		t.Error("roster grew from a push event")
	}
}

func TestMergePublishesUpdate(t *testing.T) {
	b := bus.New()
	ch, unsub := b.Subscribe("roster.", 10)
	defer unsub()

	m := NewModel(b, zap.NewNop())
	m.Load([]Contact{{ID: 1}})
	<-ch // load event

	online := true
	m.Merge(1, Patch{Online: &online})

	select {
	case evt := <-ch:
		if evt.Kind != "roster.updated" {
			t.Errorf("event kind = %q, want roster.updated", evt.Kind)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for roster.updated")
	}
}

func TestApplyMessageIncrementsUnread(t *testing.T) {
	m := newModel()
	m.Load([]Contact{{ID: 1, Unread: 2}})

	m.ApplyMessage(1, "hi there", time.Now(), false)

	c, _ := m.Get(1)
	if c.Unread != 3 {
		t.Errorf("Unread = %d, want 3", c.Unread)
	}
	if c.LastMessagePreview != "hi there" {
		t.Errorf("preview = %q, want %q", c.LastMessagePreview, "hi there")
	}
}

func TestApplyMessageOpenConversationClampsUnread(t *testing.T) {
	m := newModel()
	m.Load([]Contact{{ID: 1, Unread: 5}})

	m.ApplyMessage(1, "hi", time.Now(), true)

	c, _ := m.Get(1)
	if c.Unread != 0 {
		t.Errorf("Unread = %d, want 0 for the open conversation", c.Unread)
	}
}

func TestPresenceMergeScenario(t *testing.T) {
	// id 1 offline with no history, id 2 online with history; bringing id 1
	// online keeps id 2 first because it has a last-message timestamp.
	m := newModel()
	m.Load([]Contact{
		{ID: 1, Online: false},
		{ID: 2, Online: true, LastMessageAt: date("2024-01-01")},
	})

	online := true
	m.Merge(1, Patch{Online: &online})

	got := ids(m.Contacts())
	if got[0] != 2 || got[1] != 1 {
		t.Errorf("order = %v, want [2 1]", got)
	}
	if m.OnlineCount() != 2 {
		t.Errorf("OnlineCount() = %d, want 2", m.OnlineCount())
	}
}

func TestByConversation(t *testing.T) {
	m := newModel()
	m.Load([]Contact{{ID: 1, ConversationID: 30}, {ID: 2}})

	c, ok := m.ByConversation(30)
	if !ok || c.ID != 1 {
		t.Errorf("ByConversation(30) = %+v %v, want contact 1", c, ok)
	}
	if _, ok := m.ByConversation(0); ok {
		t.Error("ByConversation(0) matched; zero means unbound")
	}
}

func TestFullName(t *testing.T) {
	cases := []struct {
		first, last, want string
	}{
		{"Ana", "Reis", "Ana Reis"},
		{"Ana", "", "Ana"},
		{"", "Reis", "Reis"},
		{"", "", ""},
	}
	for _, c := range cases {
		got := Contact{FirstName: c.first, LastName: c.last}.FullName()
		if got != c.want {
			t.Errorf("FullName(%q, %q) = %q, want %q", c.first, c.last, got, c.want)
		}
	}
}
