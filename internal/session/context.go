package session

import "sync"

// User is the authenticated account this client runs as.
type User struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	AvatarURL string `json:"profile_img"`
}

// Context carries the per-session mutable state shared by the chat models:
// who we are, which conversation is open, and whether the chat surface is
// visible. It is constructed once and passed to every component, so tests
// can run multiple independent sessions side by side.
type Context struct {
	mu      sync.RWMutex
	user    User
	openID  int64
	visible bool
}

// NewContext creates an empty session context. The chat surface starts hidden.
func NewContext() *Context {
	return &Context{}
}

// SetUser records the authenticated user.
func (c *Context) SetUser(u User) {
	c.mu.Lock()
	c.user = u
	c.mu.Unlock()
}

// User returns the authenticated user.
func (c *Context) User() User {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.user
}

// SetOpenConversation records the currently open conversation id.
// Zero means no conversation is open.
func (c *Context) SetOpenConversation(id int64) {
	c.mu.Lock()
	c.openID = id
	c.mu.Unlock()
}

// OpenConversation returns the currently open conversation id, or zero.
func (c *Context) OpenConversation() int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.openID
}

// IsOpen reports whether the given conversation is the open one.
// A zero id never matches.
func (c *Context) IsOpen(conversationID int64) bool {
	if conversationID == 0 {
		return false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.openID == conversationID
}

// SetChatVisible records whether the chat surface is showing.
func (c *Context) SetChatVisible(v bool) {
	c.mu.Lock()
	c.visible = v
	c.mu.Unlock()
}

// ChatVisible reports whether the chat surface is showing.
func (c *Context) ChatVisible() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.visible
}
