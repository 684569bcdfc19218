package conn

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"go.uber.org/zap"
)

// ErrNotConnected is returned by Send when no open transport exists.
var ErrNotConnected = errors.New("not connected")

// Transport is the subset of the websocket connection the manager uses.
// *websocket.Conn satisfies it; tests substitute fakes.
type Transport interface {
	Read(ctx context.Context) (websocket.MessageType, []byte, error)
	Write(ctx context.Context, typ websocket.MessageType, data []byte) error
	Close(code websocket.StatusCode, reason string) error
}

// DialFunc opens a new transport to the chat endpoint.
type DialFunc func(ctx context.Context) (Transport, error)

// Dial returns a DialFunc for the given websocket URL with bearer auth.
func Dial(url, token string) DialFunc {
	return func(ctx context.Context) (Transport, error) {
		header := http.Header{}
		if token != "" {
			header.Set("Authorization", "Bearer "+token)
		}
		c, _, err := websocket.Dial(ctx, url, &websocket.DialOptions{HTTPHeader: header})
		if err != nil {
			return nil, fmt.Errorf("dial chat endpoint: %w", err)
		}
		return c, nil
	}
}

// Manager owns the single live transport to the chat endpoint. Consumers
// never touch the transport directly: they Send frames and watch
// conn.state_changed events. On closure the manager retries forever at a
// fixed delay; Close suppresses the retry for deliberate shutdown.
type Manager struct {
	dial    DialFunc
	machine *Machine
	delay   time.Duration
	onFrame func([]byte)
	logger  *zap.Logger

	mu        sync.Mutex
	transport Transport
	open      bool
	dialing   bool
	closed    bool
	retry     *time.Timer
}

// NewManager creates a connection manager. onFrame receives every raw
// inbound payload; it must not block.
func NewManager(dial DialFunc, machine *Machine, delay time.Duration, onFrame func([]byte), logger *zap.Logger) *Manager {
	return &Manager{
		dial:    dial,
		machine: machine,
		delay:   delay,
		onFrame: onFrame,
		logger:  logger,
	}
}

// Open ensures a live transport, dialing only if none exists or the
// existing one is no longer open. Idempotent: a second call while open or
// while a dial is in flight does nothing.
func (m *Manager) Open(ctx context.Context) error {
	m.mu.Lock()
	m.closed = false
	if (m.open && m.transport != nil) || m.dialing {
		m.mu.Unlock()
		return nil
	}
	m.dialing = true
	m.mu.Unlock()

	if cur := m.machine.Current(); cur != Connecting {
		_ = m.machine.Transition(Connecting)
	}

	t, err := m.dial(ctx)

	m.mu.Lock()
	m.dialing = false
	if m.closed {
		m.mu.Unlock()
		if t != nil {
			_ = t.Close(websocket.StatusNormalClosure, "client shutdown")
		}
		return nil
	}
	if err != nil {
		m.mu.Unlock()
		m.logger.Warn("dial failed", zap.Error(err))
		m.scheduleReconnect()
		return err
	}
	m.transport = t
	m.open = true
	m.mu.Unlock()

	m.logger.Info("connection open")
	_ = m.machine.Transition(Open)
	go m.readLoop(t)
	return nil
}

// Send encodes a frame as JSON and writes it to the open transport.
// Returns ErrNotConnected when there is none. Write errors are logged and
// returned; they do not close the connection, which is driven solely by
// the read loop observing closure.
func (m *Manager) Send(ctx context.Context, f any) error {
	m.mu.Lock()
	t, open := m.transport, m.open
	m.mu.Unlock()
	if !open || t == nil {
		return ErrNotConnected
	}

	data, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("encode frame: %w", err)
	}
	if err := t.Write(ctx, websocket.MessageText, data); err != nil {
		m.logger.Warn("write failed", zap.Error(err))
		return fmt.Errorf("send frame: %w", err)
	}
	return nil
}

// Connected reports whether an open transport exists.
func (m *Manager) Connected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.open && m.transport != nil
}

// State returns the current connection state.
func (m *Manager) State() State {
	return m.machine.Current()
}

// Close tears the connection down for good: the transport is closed and no
// reconnect is scheduled. A later Open starts over.
func (m *Manager) Close() {
	m.mu.Lock()
	m.closed = true
	if m.retry != nil {
		m.retry.Stop()
		m.retry = nil
	}
	t := m.transport
	m.transport = nil
	m.open = false
	m.mu.Unlock()

	if t != nil {
		_ = t.Close(websocket.StatusNormalClosure, "client shutdown")
	}
	_ = m.machine.Transition(Closed)
	m.logger.Info("connection closed")
}

func (m *Manager) readLoop(t Transport) {
	for {
		_, data, err := t.Read(context.Background())
		if err != nil {
			m.handleClosure(t, err)
			return
		}
		if m.onFrame != nil {
			m.onFrame(data)
		}
	}
}

func (m *Manager) handleClosure(t Transport, err error) {
	m.mu.Lock()
	if m.transport != t {
		// A stale read loop from a transport we already replaced or shut
		// down; the current one owns closure handling.
		m.mu.Unlock()
		return
	}
	m.transport = nil
	m.open = false
	closed := m.closed
	m.mu.Unlock()

	if closed {
		return
	}
	m.logger.Warn("connection lost", zap.Error(err))
	m.scheduleReconnect()
}

func (m *Manager) scheduleReconnect() {
	_ = m.machine.Transition(Reconnecting)

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.retry = time.AfterFunc(m.delay, func() {
		m.mu.Lock()
		closed := m.closed
		m.mu.Unlock()
		if closed {
			return
		}
		// Open schedules the next retry itself if the dial fails, so the
		// cycle continues at a fixed cadence until Close.
		_ = m.Open(context.Background())
	})
}
