// Package api is the REST boundary to the feed server. The websocket
// carries pushes; everything request/response shaped (identity, roster,
// history pages, mark-seen) goes through here.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/brunodmn/ripple/internal/roster"
	"github.com/brunodmn/ripple/internal/session"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// StartSentinel is the start_id value requesting the most recent page.
const StartSentinel = -1

// Client performs authenticated requests against the feed server.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	logger  *zap.Logger
}

// New creates a REST client for the given server base URL.
func New(baseURL, token string, logger *zap.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: 15 * time.Second},
		logger:  logger,
	}
}

// Me fetches the authenticated user's identity.
func (c *Client) Me(ctx context.Context) (session.User, error) {
	var u session.User
	if err := c.post(ctx, "/me", nil, &u); err != nil {
		return session.User{}, err
	}
	return u, nil
}

// Roster fetches the full contact list with presence and last-message
// metadata.
func (c *Client) Roster(ctx context.Context) ([]roster.Contact, error) {
	var records []contactRecord
	if err := c.post(ctx, "/recent", nil, &records); err != nil {
		return nil, err
	}
	contacts := make([]roster.Contact, 0, len(records))
	for _, r := range records {
		contacts = append(contacts, r.toContact())
	}
	return contacts, nil
}

// ConversationPage fetches up to pageSize messages strictly older than
// startID, in descending-id order. Pass StartSentinel for the most recent
// page. An empty slice means no older messages remain.
func (c *Client) ConversationPage(ctx context.Context, conversationID, startID int64, pageSize int) ([]MessageRecord, error) {
	req := struct {
		ConversationID int64 `json:"conversation_id"`
		StartID        int64 `json:"start_id"`
		NMessage       int   `json:"n_message"`
	}{conversationID, startID, pageSize}

	var msgs []MessageRecord
	if err := c.post(ctx, "/conversation", req, &msgs); err != nil {
		return nil, err
	}
	return msgs, nil
}

// MarkSeen tells the server the conversation has been read. Callers treat
// this as fire-and-forget.
func (c *Client) MarkSeen(ctx context.Context, conversationID int64) error {
	req := struct {
		ConversationID int64 `json:"conversation_id"`
	}{conversationID}
	return c.post(ctx, "/mark-seen", req, nil)
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return fmt.Errorf("encode %s request: %w", path, err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, &buf)
	if err != nil {
		return fmt.Errorf("build %s request: %w", path, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", uuid.New().String())
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Drain a little of the body for the log, then discard.
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		c.logger.Warn("request failed",
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
			zap.ByteString("body", snippet))
		return fmt.Errorf("%s: server returned %d", path, resp.StatusCode)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}
