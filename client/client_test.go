package client

import (
	"chatline/auth"
	"chatline/domain"
	"chatline/infrastructure/http/server"
	"chatline/infrastructure/storage"
	"chatline/livesync"
	"chatline/runtime"
	"chatline/search"
	"chatline/services"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/require"
)

type backend struct {
	server   *httptest.Server
	provider *auth.Provider
}

func newBackend(t *testing.T) *backend {
	t.Helper()
	log := slog.Default()
	db, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	store, err := storage.NewDocumentStore(db, log, runtime.NewRegistry(), nil)
	require.NoError(t, err)
	index, err := search.OpenInMemory(log)
	require.NoError(t, err)

	normalizer := domain.NewNormalizer("", time.UTC)
	provider := auth.NewProvider("test-secret", time.Hour)
	messages := services.NewMessageService(store, index, normalizer, log)
	conversations := services.NewConversationService(store, messages, normalizer, log)
	srv := httptest.NewServer(server.NewRouter(server.Dependencies{
		Auth:          provider,
		Conversations: conversations,
		Messages:      messages,
		Search:        services.NewSearchService(conversations, index),
		Log:           log,
	}))
	t.Cleanup(func() {
		srv.Close()
		_ = index.Close()
		_ = store.Close()
		_ = db.Close()
	})
	return &backend{server: srv, provider: provider}
}

func (b *backend) client(t *testing.T, user string) *Client {
	t.Helper()
	token, err := b.provider.GenerateToken(user)
	require.NoError(t, err)
	return New(Config{ServerAddress: b.server.URL, Token: token}, nil, slog.Default())
}

func TestClient_CurrentUser(t *testing.T) {
	req := require.New(t)
	b := newBackend(t)

	req.Equal("alice@x.io", b.client(t, "alice@x.io").CurrentUser())
	req.Empty(New(Config{ServerAddress: b.server.URL, Token: "garbage"}, nil, slog.Default()).CurrentUser())
}

func TestClient_APIError(t *testing.T) {
	req := require.New(t)
	b := newBackend(t)
	alice := b.client(t, "alice@x.io")

	_, err := alice.Open(context.Background(), "missing")

	var apiErr *APIError
	req.True(errors.As(err, &apiErr))
	req.Equal(http.StatusNotFound, apiErr.Status)
	req.NotEmpty(apiErr.Message)
}

func TestComposer_Submit(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	b := newBackend(t)
	alice := b.client(t, "alice@x.io")
	created, err := alice.CreateConversation(ctx, "bob@x.io")
	req.NoError(err)
	req.True(created.Created)
	composer := NewComposer(alice, created.Conversation.ID)

	// Given an empty draft
	sent, err := composer.Submit(ctx)
	req.NoError(err)
	req.False(sent)

	// When a real draft is submitted
	composer.SetDraft("hello bob")
	sent, err = composer.Submit(ctx)

	// Then it is sent and cleared
	req.NoError(err)
	req.True(sent)
	req.Empty(composer.Draft())
	page, err := alice.Open(ctx, created.Conversation.ID)
	req.NoError(err)
	req.Len(page.Messages, 1)
	req.Equal("hello bob", page.Messages[0].Body)
}

func TestComposer_Failed_Send_Keeps_Draft(t *testing.T) {
	req := require.New(t)
	b := newBackend(t)
	composer := NewComposer(b.client(t, "alice@x.io"), "missing")
	composer.SetDraft("lost?")

	sent, err := composer.Submit(context.Background())

	req.Error(err)
	req.False(sent)
	req.Equal("lost?", composer.Draft())
}

func TestSidebar_And_Dialog(t *testing.T) {
	req := require.New(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	b := newBackend(t)
	alice := b.client(t, "alice@x.io")
	_, err := alice.CreateConversation(ctx, "bob@x.io")
	req.NoError(err)

	sidebar := NewSidebar(alice)
	done := make(chan error, 1)
	go func() { done <- sidebar.Run(ctx) }()
	select {
	case <-sidebar.Ready():
	case <-time.After(3 * time.Second):
		req.Fail("sidebar never went live")
	}
	req.Len(sidebar.Conversations(), 1)

	dialog := NewConversationDialog(alice, sidebar.Conversations)

	// Given rejected recipients the affordance is disabled and nothing is created
	for _, email := range []string{"", "bob@x.io", "alice@x.io", "not-an-email"} {
		dialog.SetRecipient(email)
		req.False(dialog.CanCreate(), email)
	}
	dialog.SetRecipient("bob@x.io")
	result, err := dialog.Submit(ctx)
	req.NoError(err)
	req.False(result.Created)
	req.Equal(services.RejectedDuplicate, result.Reason)
	req.Empty(dialog.Recipient())

	// When a new recipient is submitted
	dialog.SetRecipient("carol@x.io")
	req.True(dialog.CanCreate())
	result, err = dialog.Submit(ctx)

	// Then the conversation exists and the sidebar catches up
	req.NoError(err)
	req.True(result.Created)
	req.Empty(dialog.Recipient())
	req.Eventually(func() bool { return len(sidebar.Conversations()) == 2 }, 3*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err = <-done:
		req.NoError(err)
	case <-time.After(3 * time.Second):
		req.Fail("sidebar did not stop")
	}
}

func TestClient_WatchMessages(t *testing.T) {
	req := require.New(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	b := newBackend(t)
	alice := b.client(t, "alice@x.io")
	bob := b.client(t, "bob@x.io")
	created, err := alice.CreateConversation(ctx, "bob@x.io")
	req.NoError(err)
	conversationID := created.Conversation.ID

	received := make(chan int, 16)
	go func() {
		_ = alice.WatchMessages(ctx, conversationID, func(envelope livesync.Envelope[domain.Message]) {
			received <- len(envelope.Items)
		})
	}()

	_, err = bob.Send(ctx, conversationID, "ping")
	req.NoError(err)

	deadline := time.After(3 * time.Second)
	for {
		select {
		case n := <-received:
			if n == 1 {
				return
			}
		case <-deadline:
			req.Fail("message never streamed")
			return
		}
	}
}
