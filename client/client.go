// Package client talks to the chatline HTTP API and owns the state of a UI
// session: the composer draft, the new-conversation draft and the live sidebar.
package client

import (
	"bytes"
	"chatline/domain"
	"chatline/livesync"
	"chatline/services"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/kelseyhightower/envconfig"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

type Config struct {
	ServerAddress string `envconfig:"CHAT_SERVER_ADDR" default:"http://localhost:8080"`
	Token         string `envconfig:"CHAT_TOKEN" required:"true"`
}

func LoadConfig() (Config, error) {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		return Config{}, err
	}
	return config, nil
}

// APIError is a non-2xx answer of the server.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server answered %d: %s", e.Status, e.Message)
}

type CheckResult struct {
	Allowed bool               `json:"allowed"`
	Reason  services.Rejection `json:"reason,omitempty"`
}

type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	log        *slog.Logger
}

func New(config Config, httpClient *http.Client, log *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		baseURL:    strings.TrimSuffix(config.ServerAddress, "/") + "/api/v1",
		token:      config.Token,
		httpClient: httpClient,
		log:        log,
	}
}

// CurrentUser reads the user id out of the token. The server verifies it;
// the client only needs it to resolve recipients and run the guard locally.
func (c *Client) CurrentUser() string {
	claims := struct {
		UserID string `json:"user_id"`
		jwt.RegisteredClaims
	}{}
	if _, _, err := jwt.NewParser().ParseUnverified(c.token, &claims); err != nil {
		return ""
	}
	return claims.UserID
}

func (c *Client) Conversations(ctx context.Context) ([]domain.Conversation, error) {
	var out struct {
		Conversations []domain.Conversation `json:"conversations"`
	}
	err := c.do(ctx, http.MethodGet, "/conversations", nil, &out)
	return out.Conversations, err
}

func (c *Client) Check(ctx context.Context, email string) (CheckResult, error) {
	var out CheckResult
	err := c.do(ctx, http.MethodGet, "/conversations/check?email="+url.QueryEscape(email), nil, &out)
	return out, err
}

// CreateConversation asks the server to create a conversation with email.
func (c *Client) CreateConversation(ctx context.Context, email string) (services.CreateResult, error) {
	var out services.CreateResult
	err := c.do(ctx, http.MethodPost, "/conversations", map[string]string{"email": email}, &out)
	return out, err
}

func (c *Client) Open(ctx context.Context, conversationID string) (services.Page, error) {
	var out services.Page
	err := c.do(ctx, http.MethodGet, "/conversations/"+url.PathEscape(conversationID), nil, &out)
	return out, err
}

func (c *Client) Send(ctx context.Context, conversationID, text string) (string, error) {
	var out struct {
		ID string `json:"id"`
	}
	err := c.do(ctx, http.MethodPost, "/conversations/"+url.PathEscape(conversationID)+"/messages",
		map[string]string{"text": text}, &out)
	return out.ID, err
}

func (c *Client) Search(ctx context.Context, term string) ([]domain.SearchHit, error) {
	var out struct {
		Hits []domain.SearchHit `json:"hits"`
	}
	err := c.do(ctx, http.MethodGet, "/search?q="+url.QueryEscape(term), nil, &out)
	return out.Hits, err
}

func (c *Client) SignOut(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/signout", nil, nil)
}

// WatchMessages streams the snapshots of a conversation until ctx ends or the server closes.
func (c *Client) WatchMessages(ctx context.Context, conversationID string, onSnapshot func(livesync.Envelope[domain.Message])) error {
	return watch(ctx, c, "/conversations/"+url.PathEscape(conversationID)+"/live", onSnapshot)
}

// WatchConversations streams the sidebar snapshots.
func (c *Client) WatchConversations(ctx context.Context, onSnapshot func(livesync.Envelope[domain.Conversation])) error {
	return watch(ctx, c, "/live/conversations", onSnapshot)
}

func watch[T any](ctx context.Context, c *Client, path string, onSnapshot func(livesync.Envelope[T])) error {
	wsURL := strings.Replace(c.baseURL, "http", "ws", 1) + path
	conn, _, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{
		HTTPClient: c.httpClient,
		HTTPHeader: http.Header{"Authorization": []string{"Bearer " + c.token}},
	})
	if err != nil {
		return fmt.Errorf("dial %s: %w", path, err)
	}
	defer func() {
		_ = conn.CloseNow()
	}()

	for {
		var envelope livesync.Envelope[T]
		if err = wsjson.Read(ctx, conn, &envelope); err != nil {
			if ctx.Err() != nil || websocket.CloseStatus(err) == websocket.StatusNormalClosure {
				return nil
			}
			return fmt.Errorf("read %s: %w", path, err)
		}
		onSnapshot(envelope)
	}
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode >= http.StatusBadRequest {
		var apiErr struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		return &APIError{Status: resp.StatusCode, Message: apiErr.Error}
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
