package client

import (
	"chatline/domain"
	"chatline/livesync"
	"chatline/services"
	"context"
	"strings"
	"sync"
)

// Composer owns the draft of one conversation screen until it is sent.
type Composer struct {
	client         *Client
	conversationID string

	mu    sync.Mutex
	draft string
}

func NewComposer(client *Client, conversationID string) *Composer {
	return &Composer{client: client, conversationID: conversationID}
}

func (c *Composer) SetDraft(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.draft = text
}

func (c *Composer) Draft() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.draft
}

// Submit sends the draft and clears it. An empty draft is never sent.
// A failed send keeps the draft so the user can retry.
func (c *Composer) Submit(ctx context.Context) (bool, error) {
	draft := c.Draft()
	if strings.TrimSpace(draft) == "" {
		return false, nil
	}
	if _, err := c.client.Send(ctx, c.conversationID, draft); err != nil {
		return false, err
	}
	c.mu.Lock()
	if c.draft == draft {
		c.draft = ""
	}
	c.mu.Unlock()
	return true, nil
}

// Sidebar keeps the user's conversation list live.
type Sidebar struct {
	client *Client

	mu    sync.RWMutex
	view  livesync.Envelope[domain.Conversation]
	ready chan struct{}
	once  sync.Once
}

func NewSidebar(client *Client) *Sidebar {
	return &Sidebar{client: client, ready: make(chan struct{})}
}

// Run streams the live conversation list until ctx ends.
func (s *Sidebar) Run(ctx context.Context) error {
	return s.client.WatchConversations(ctx, func(envelope livesync.Envelope[domain.Conversation]) {
		s.mu.Lock()
		s.view = envelope
		s.mu.Unlock()
		if envelope.State == livesync.Live.String() {
			s.once.Do(func() { close(s.ready) })
		}
	})
}

// Ready is closed once the first live snapshot arrived.
func (s *Sidebar) Ready() <-chan struct{} {
	return s.ready
}

func (s *Sidebar) Conversations() []domain.Conversation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.view.Items
}

// ConversationDialog owns the recipient draft of the "new conversation" flow.
// The local guard runs against the sidebar's cached conversations; the server re-checks against its own listing.
type ConversationDialog struct {
	client *Client
	known  func() []domain.Conversation
	guard  services.ConversationGuard

	mu    sync.Mutex
	draft string
}

func NewConversationDialog(client *Client, known func() []domain.Conversation) *ConversationDialog {
	return &ConversationDialog{client: client, known: known}
}

func (d *ConversationDialog) SetRecipient(email string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.draft = email
}

func (d *ConversationDialog) Recipient() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.draft
}

// CanCreate drives the Create affordance: disabled for an empty or rejected recipient.
func (d *ConversationDialog) CanCreate() bool {
	recipient := d.Recipient()
	return recipient != "" && d.guard.Check(d.client.CurrentUser(), recipient, d.known()) == nil
}

// Submit creates the conversation when the guard accepts the recipient.
// The draft is reset whatever the outcome.
func (d *ConversationDialog) Submit(ctx context.Context) (services.CreateResult, error) {
	recipient := d.Recipient()
	defer d.SetRecipient("")

	if err := d.guard.Check(d.client.CurrentUser(), recipient, d.known()); err != nil {
		return services.CreateResult{Reason: services.RejectionOf(err)}, nil
	}
	return d.client.CreateConversation(ctx, recipient)
}
