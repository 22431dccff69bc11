package server

import (
	"bytes"
	"chatline/auth"
	"chatline/domain"
	"chatline/infrastructure/storage"
	"chatline/livesync"
	"chatline/runtime"
	"chatline/search"
	"chatline/services"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

type harness struct {
	server   *httptest.Server
	provider *auth.Provider
	store    *storage.DocumentStore
}

func newHarness(t *testing.T) *harness {
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
	router := NewRouter(Dependencies{
		Auth:          provider,
		Conversations: conversations,
		Messages:      messages,
		Search:        services.NewSearchService(conversations, index),
		Log:           log,
		WriteTimeout:  time.Second,
		PingInterval:  time.Minute,
	})
	server := httptest.NewServer(router)
	t.Cleanup(func() {
		server.Close()
		_ = index.Close()
		_ = store.Close()
		_ = db.Close()
	})
	return &harness{server: server, provider: provider, store: store}
}

func (h *harness) token(t *testing.T, user string) string {
	t.Helper()
	token, err := h.provider.GenerateToken(user)
	require.NoError(t, err)
	return token
}

func (h *harness) do(t *testing.T, token, method, path string, body any, out any) int {
	t.Helper()
	var payload bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&payload).Encode(body))
	}
	req, err := http.NewRequest(method, h.server.URL+"/api/v1"+path, &payload)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil && resp.StatusCode < 300 && resp.StatusCode != http.StatusNoContent {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func (h *harness) createConversation(t *testing.T, token, email string) services.CreateResult {
	t.Helper()
	var result services.CreateResult
	require.Equal(t, http.StatusCreated, h.do(t, token, http.MethodPost, "/conversations", map[string]any{"email": email}, &result))
	return result
}

func TestRouter_Requires_Authentication(t *testing.T) {
	req := require.New(t)
	h := newHarness(t)

	req.Equal(http.StatusUnauthorized, h.do(t, "", http.MethodGet, "/conversations", nil, nil))
	req.Equal(http.StatusUnauthorized, h.do(t, "garbage", http.MethodGet, "/conversations", nil, nil))
}

func TestRouter_Conversation_Guard(t *testing.T) {
	req := require.New(t)
	h := newHarness(t)
	alice := h.token(t, "alice@x.io")

	// Given alice already talks with bob
	h.createConversation(t, alice, "bob@x.io")

	// Then the guard reports every rejection without writing
	for email, reason := range map[string]services.Rejection{
		"bob@x.io":     services.RejectedDuplicate,
		"alice@x.io":   services.RejectedSelf,
		"not-an-email": services.RejectedInvalid,
	} {
		var check checkResponse
		req.Equal(http.StatusOK, h.do(t, alice, http.MethodGet, "/conversations/check?email="+email, nil, &check))
		req.False(check.Allowed)
		req.Equal(reason, check.Reason)

		var result services.CreateResult
		req.Equal(http.StatusOK, h.do(t, alice, http.MethodPost, "/conversations", map[string]any{"email": email}, &result))
		req.False(result.Created)
		req.Equal(reason, result.Reason)
	}

	// When carol is added
	var check checkResponse
	req.Equal(http.StatusOK, h.do(t, alice, http.MethodGet, "/conversations/check?email=carol@x.io", nil, &check))
	req.True(check.Allowed)
	h.createConversation(t, alice, "carol@x.io")

	// Then alice lists exactly two conversations
	var list struct {
		Conversations []domain.Conversation `json:"conversations"`
	}
	req.Equal(http.StatusOK, h.do(t, alice, http.MethodGet, "/conversations", nil, &list))
	req.Len(list.Conversations, 2)
}

func TestRouter_Create_Ignores_Client_Conversation_List(t *testing.T) {
	req := require.New(t)
	h := newHarness(t)
	alice := h.token(t, "alice@x.io")

	// Given alice already talks with bob
	h.createConversation(t, alice, "bob@x.io")

	// When she posts bob again with an empty conversation list in the body
	var result services.CreateResult
	status := h.do(t, alice, http.MethodPost, "/conversations", map[string]any{
		"email": "bob@x.io",
		"known": []domain.Conversation{},
	}, &result)

	// Then the server still rejects the duplicate
	req.Equal(http.StatusOK, status)
	req.False(result.Created)
	req.Equal(services.RejectedDuplicate, result.Reason)

	var list struct {
		Conversations []domain.Conversation `json:"conversations"`
	}
	req.Equal(http.StatusOK, h.do(t, alice, http.MethodGet, "/conversations", nil, &list))
	req.Len(list.Conversations, 1)
}

func TestRouter_Send_And_Open(t *testing.T) {
	req := require.New(t)
	h := newHarness(t)
	alice := h.token(t, "alice@x.io")
	bob := h.token(t, "bob@x.io")
	conversation := h.createConversation(t, alice, "bob@x.io").Conversation

	// When bob answers
	var sent struct {
		ID string `json:"id"`
	}
	req.Equal(http.StatusCreated, h.do(t, bob, http.MethodPost, "/conversations/"+conversation.ID+"/messages",
		map[string]any{"text": "hi alice"}, &sent))
	req.NotEmpty(sent.ID)

	// Then alice's page shows bob as recently active, with his message
	var page services.Page
	req.Equal(http.StatusOK, h.do(t, alice, http.MethodGet, "/conversations/"+conversation.ID, nil, &page))
	req.Equal("Conversation with bob@x.io", page.Title)
	req.True(page.Recipient.Known)
	req.NotNil(page.Recipient.LastSeen)
	req.Len(page.Messages, 1)
	req.Equal("hi alice", page.Messages[0].Body)
	req.Equal("bob@x.io", page.Messages[0].Sender)
	req.NotNil(page.Messages[0].SentAt)

	// And the error paths map to statuses
	mallory := h.token(t, "mallory@x.io")
	req.Equal(http.StatusForbidden, h.do(t, mallory, http.MethodGet, "/conversations/"+conversation.ID, nil, nil))
	req.Equal(http.StatusNotFound, h.do(t, alice, http.MethodGet, "/conversations/unknown", nil, nil))
	req.Equal(http.StatusUnprocessableEntity, h.do(t, alice, http.MethodPost, "/conversations/"+conversation.ID+"/messages",
		map[string]any{"text": "  "}, nil))
}

func TestRouter_Search(t *testing.T) {
	req := require.New(t)
	h := newHarness(t)
	alice := h.token(t, "alice@x.io")
	carol := h.token(t, "carol@x.io")
	withBob := h.createConversation(t, alice, "bob@x.io").Conversation
	private := h.createConversation(t, carol, "dave@x.io").Conversation

	h.do(t, alice, http.MethodPost, "/conversations/"+withBob.ID+"/messages", map[string]any{"text": "pizza tonight?"}, nil)
	h.do(t, carol, http.MethodPost, "/conversations/"+private.ID+"/messages", map[string]any{"text": "pizza is great"}, nil)

	var result struct {
		Hits []domain.SearchHit `json:"hits"`
	}
	req.Equal(http.StatusOK, h.do(t, alice, http.MethodGet, "/search?q=pizza", nil, &result))
	req.Len(result.Hits, 1)
	req.Equal(withBob.ID, result.Hits[0].ConversationID)
}

func TestRouter_SignOut(t *testing.T) {
	req := require.New(t)
	h := newHarness(t)
	alice := h.token(t, "alice@x.io")

	req.Equal(http.StatusNoContent, h.do(t, alice, http.MethodPost, "/signout", nil, nil))
	req.Equal(http.StatusUnauthorized, h.do(t, alice, http.MethodGet, "/conversations", nil, nil))
}

func dial(t *testing.T, h *harness, token, path string) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	url := "ws" + strings.TrimPrefix(h.server.URL, "http") + "/api/v1" + path + "?access_token=" + token
	conn, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.CloseNow() })
	return conn
}

func readEnvelope[T any](t *testing.T, conn *websocket.Conn) livesync.Envelope[T] {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	var envelope livesync.Envelope[T]
	require.NoError(t, wsjson.Read(ctx, conn, &envelope))
	return envelope
}

// readUntil skips frames until one satisfies done. Frames may repeat the same
// view, since a change signal can arrive after the view was already sent.
func readUntil[T any](t *testing.T, conn *websocket.Conn, done func(livesync.Envelope[T]) bool) livesync.Envelope[T] {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	for {
		var envelope livesync.Envelope[T]
		require.NoError(t, wsjson.Read(ctx, conn, &envelope))
		if done(envelope) {
			return envelope
		}
	}
}

func isLive[T any](envelope livesync.Envelope[T]) bool {
	return envelope.State == livesync.Live.String()
}

func TestLive_Messages_Stream(t *testing.T) {
	req := require.New(t)
	h := newHarness(t)
	alice := h.token(t, "alice@x.io")
	conversation := h.createConversation(t, alice, "bob@x.io").Conversation
	h.do(t, alice, http.MethodPost, "/conversations/"+conversation.ID+"/messages", map[string]any{"text": "M1"}, nil)

	conn := dial(t, h, alice, "/conversations/"+conversation.ID+"/live")

	// The first frame is the one-shot snapshot or already live, never empty
	first := readEnvelope[domain.Message](t, conn)
	req.Equal(livesync.SnapshotType, first.Type)
	req.False(first.Loading)
	req.Len(first.Items, 1)
	req.Equal("M1", first.Items[0].Body)
	live := readUntil(t, conn, isLive[domain.Message])
	req.Len(live.Items, 1)

	// When bob sends M2
	bob := h.token(t, "bob@x.io")
	h.do(t, bob, http.MethodPost, "/conversations/"+conversation.ID+"/messages", map[string]any{"text": "M2"}, nil)

	// Then the stream moves forward to both messages
	both := readUntil(t, conn, func(e livesync.Envelope[domain.Message]) bool { return len(e.Items) == 2 })
	req.Equal("M1", both.Items[0].Body)
	req.Equal("M2", both.Items[1].Body)

	// When the client leaves, its live query goes away
	req.NoError(conn.Close(websocket.StatusNormalClosure, ""))
	req.Eventually(func() bool { return h.store.SubscriberCount() == 0 }, 3*time.Second, 10*time.Millisecond)
}

func TestLive_Conversations_Stream(t *testing.T) {
	req := require.New(t)
	h := newHarness(t)
	alice := h.token(t, "alice@x.io")

	conn := dial(t, h, alice, "/live/conversations")
	live := readUntil(t, conn, isLive[domain.Conversation])
	req.Empty(live.Items)

	// When bob starts a conversation with alice
	bob := h.token(t, "bob@x.io")
	h.createConversation(t, bob, "alice@x.io")

	// Then alice's sidebar gets it
	next := readUntil(t, conn, func(e livesync.Envelope[domain.Conversation]) bool { return len(e.Items) > 0 })
	req.Len(next.Items, 1)
	req.ElementsMatch([]string{"alice@x.io", "bob@x.io"}, next.Items[0].Users)
}

func TestLive_Refuses_Outsiders_Before_Upgrade(t *testing.T) {
	req := require.New(t)
	h := newHarness(t)
	alice := h.token(t, "alice@x.io")
	conversation := h.createConversation(t, alice, "bob@x.io").Conversation

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	url := "ws" + strings.TrimPrefix(h.server.URL, "http") + "/api/v1/conversations/" + conversation.ID + "/live?access_token=" + h.token(t, "mallory@x.io")
	_, resp, err := websocket.Dial(ctx, url, nil)

	req.Error(err)
	req.NotNil(resp)
	req.Equal(http.StatusForbidden, resp.StatusCode)
	req.Equal(0, h.store.SubscriberCount())
}
