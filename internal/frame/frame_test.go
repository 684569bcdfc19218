package frame

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestDecodeMessage(t *testing.T) {
	dec := Decoder{}
	f, err := dec.Decode([]byte(`{"kind":"message","content":"hey","author_id":3,"conversation_id":12}`))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	msg, ok := f.(Message)
	if !ok {
		t.Fatalf("frame type = %T, want Message", f)
	}
	if msg.Content != "hey" || msg.AuthorID != 3 || msg.ConversationID != 12 {
		t.Errorf("message = %+v, want {hey 3 12}", msg)
	}
}

func TestDecodeWrappedConversationID(t *testing.T) {
	// Older servers serialize conversation ids as SQL null wrappers.
	dec := Decoder{}
	f, err := dec.Decode([]byte(`{"kind":"ack","temp_id":99,"conversation_id":{"Int64":7,"Valid":true}}`))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	ack, ok := f.(Ack)
	if !ok {
		t.Fatalf("frame type = %T, want Ack", f)
	}
	if ack.TempID != 99 || ack.ConversationID != 7 {
		t.Errorf("ack = %+v, want {99 7}", ack)
	}
}

func TestDecodeInvalidConversationID(t *testing.T) {
	dec := Decoder{}
	f, err := dec.Decode([]byte(`{"kind":"typing","conversation_id":{"Int64":7,"Valid":false}}`))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	ty := f.(Typing)
	if ty.ConversationID != 0 {
		t.Errorf("ConversationID = %d, want 0 for invalid wrapper", ty.ConversationID)
	}
}

func TestDecodeUserStatus(t *testing.T) {
	dec := Decoder{}
	f, err := dec.Decode([]byte(`{"kind":"user_status","id":5,"isOnline":true}`))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	st, ok := f.(UserStatus)
	if !ok {
		t.Fatalf("frame type = %T, want UserStatus", f)
	}
	if st.UserID != 5 || !st.Online {
		t.Errorf("status = %+v, want {5 true}", st)
	}
}

func TestDecodeUntypedMessageCompat(t *testing.T) {
	raw := []byte(`{"content":"hi","author_id":2,"conversation_id":4}`)

	// Compat enabled: treated as a message frame.
	f, err := Decoder{AllowUntyped: true}.Decode(raw)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if _, ok := f.(Message); !ok {
		t.Fatalf("frame type = %T, want Message", f)
	}

	// Compat disabled: dropped.
	_, err = Decoder{}.Decode(raw)
	if !errors.Is(err, ErrMissingKind) {
		t.Errorf("Decode() error = %v, want ErrMissingKind", err)
	}
}

func TestDecodeUntypedNonMessage(t *testing.T) {
	// No content/author: never reinterpreted even with compat on.
	_, err := Decoder{AllowUntyped: true}.Decode([]byte(`{"conversation_id":4}`))
	if !errors.Is(err, ErrMissingKind) {
		t.Errorf("Decode() error = %v, want ErrMissingKind", err)
	}
}

func TestDecodeUnknownKind(t *testing.T) {
	_, err := Decoder{}.Decode([]byte(`{"kind":"presence_v2"}`))
	if !errors.Is(err, ErrUnknownKind) {
		t.Errorf("Decode() error = %v, want ErrUnknownKind", err)
	}
}

func TestDecodeGarbage(t *testing.T) {
	_, err := Decoder{}.Decode([]byte(`{nope`))
	if err == nil {
		t.Error("Decode() expected error for invalid JSON")
	}
}

func TestOutboundMessageEncoding(t *testing.T) {
	out := NewOutboundMessage("hello", 3, 8, 1700000000000)
	data, err := json.Marshal(out)
	if err != nil {
		t.Fatal(err)
	}

	var got map[string]any
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatal(err)
	}
	if got["kind"] != "message" {
		t.Errorf("kind = %v, want message", got["kind"])
	}
	if got["recipient_id"] != float64(8) {
		t.Errorf("recipient_id = %v, want 8", got["recipient_id"])
	}
	if got["temp_id"] != float64(1700000000000) {
		t.Errorf("temp_id = %v, want 1700000000000", got["temp_id"])
	}
}

func TestOutboundTypingEncoding(t *testing.T) {
	data, err := json.Marshal(NewOutboundTyping(6))
	if err != nil {
		t.Fatal(err)
	}
	want := `{"kind":"typing","conversation_id":6}`
	if string(data) != want {
		t.Errorf("encoded = %s, want %s", data, want)
	}
}
