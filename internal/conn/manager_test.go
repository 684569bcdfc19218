package conn

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"
	"go.uber.org/zap"
)

type fakeTransport struct {
	in     chan []byte
	done   chan struct{}
	once   sync.Once
	mu     sync.Mutex
	writes [][]byte
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		in:   make(chan []byte, 16),
		done: make(chan struct{}),
	}
}

func (f *fakeTransport) Read(ctx context.Context) (websocket.MessageType, []byte, error) {
	select {
	case data := <-f.in:
		return websocket.MessageText, data, nil
	case <-f.done:
		return 0, nil, errors.New("transport closed")
	case <-ctx.Done():
		return 0, nil, ctx.Err()
	}
}

func (f *fakeTransport) Write(_ context.Context, _ websocket.MessageType, data []byte) error {
	f.mu.Lock()
	f.writes = append(f.writes, data)
	f.mu.Unlock()
	return nil
}

func (f *fakeTransport) Close(websocket.StatusCode, string) error {
	f.once.Do(func() { close(f.done) })
	return nil
}

func (f *fakeTransport) writeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.writes)
}

// dialer hands out fake transports and counts dials.
type dialer struct {
	mu         sync.Mutex
	transports []*fakeTransport
	failFirst  int
}

func (d *dialer) dial(context.Context) (Transport, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.failFirst > 0 {
		d.failFirst--
		return nil, errors.New("connection refused")
	}
	t := newFakeTransport()
	d.transports = append(d.transports, t)
	return t, nil
}

func (d *dialer) dials() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.transports)
}

func (d *dialer) transport(i int) *fakeTransport {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.transports[i]
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timeout waiting for %s", what)
}

func newTestManager(d *dialer, onFrame func([]byte)) *Manager {
	return NewManager(d.dial, NewMachine(nil), 20*time.Millisecond, onFrame, zap.NewNop())
}

func TestOpenIsIdempotent(t *testing.T) {
	d := &dialer{}
	m := newTestManager(d, nil)

	if err := m.Open(context.Background()); err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if err := m.Open(context.Background()); err != nil {
		t.Fatalf("second Open() error = %v", err)
	}

	if d.dials() != 1 {
		t.Errorf("dials = %d, want 1 (open transport must be reused)", d.dials())
	}
	if m.State() != Open {
		t.Errorf("state = %s, want OPEN", m.State())
	}
}

func TestSendWithoutConnection(t *testing.T) {
	d := &dialer{}
	m := newTestManager(d, nil)

	err := m.Send(context.Background(), map[string]string{"kind": "typing"})
	if !errors.Is(err, ErrNotConnected) {
		t.Errorf("Send() error = %v, want ErrNotConnected", err)
	}
	if d.dials() != 0 {
		t.Error("Send dialed; only Open may create transports")
	}
}

func TestSendWritesFrame(t *testing.T) {
	d := &dialer{}
	m := newTestManager(d, nil)
	if err := m.Open(context.Background()); err != nil {
		t.Fatal(err)
	}

	if err := m.Send(context.Background(), map[string]string{"kind": "typing"}); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if got := d.transport(0).writeCount(); got != 1 {
		t.Errorf("writes = %d, want 1", got)
	}
}

func TestInboundFramesReachCallback(t *testing.T) {
	var mu sync.Mutex
	var got [][]byte
	d := &dialer{}
	m := newTestManager(d, func(data []byte) {
		mu.Lock()
		got = append(got, data)
		mu.Unlock()
	})
	if err := m.Open(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer m.Close()

	d.transport(0).in <- []byte(`{"kind":"typing","conversation_id":1}`)

	waitFor(t, "frame callback", func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 1
	})
}

func TestReconnectAfterClosure(t *testing.T) {
	d := &dialer{}
	m := newTestManager(d, nil)
	if err := m.Open(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer m.Close()

	// Simulate server-side closure.
	_ = d.transport(0).Close(websocket.StatusNormalClosure, "")

	waitFor(t, "reconnect dial", func() bool { return d.dials() == 2 })
	waitFor(t, "state OPEN", func() bool { return m.State() == Open })
}

func TestCloseSuppressesReconnect(t *testing.T) {
	d := &dialer{}
	m := newTestManager(d, nil)
	if err := m.Open(context.Background()); err != nil {
		t.Fatal(err)
	}

	m.Close()

	if m.State() != Closed {
		t.Errorf("state = %s, want CLOSED", m.State())
	}
	// Give any stray reconnect timer a chance to fire.
	time.Sleep(80 * time.Millisecond)
	if d.dials() != 1 {
		t.Errorf("dials = %d, want 1 (Close must suppress reconnection)", d.dials())
	}
}

func TestDialFailureKeepsRetrying(t *testing.T) {
	d := &dialer{failFirst: 2}
	m := newTestManager(d, nil)

	if err := m.Open(context.Background()); err == nil {
		t.Fatal("Open() expected error on refused dial")
	}
	defer m.Close()

	waitFor(t, "eventual connect", func() bool { return m.State() == Open })
	if d.dials() != 1 {
		t.Errorf("successful dials = %d, want 1", d.dials())
	}
}
