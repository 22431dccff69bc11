package server

import (
	"chatline/contract"
	"chatline/livesync"
	"chatline/services"
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

const (
	defaultWriteTimeout = 10 * time.Second
	defaultPingInterval = 30 * time.Second
)

// LiveController streams live snapshots over websockets. Each connection owns
// one live sync, closed on every exit path of the handler.
type LiveController struct {
	conversations services.IConversationService
	messages      services.IMessageService
	auth          contract.IAuthProvider
	log           *slog.Logger
	writeTimeout  time.Duration
	pingInterval  time.Duration
}

func NewLiveController(conversations services.IConversationService, messages services.IMessageService,
	auth contract.IAuthProvider, log *slog.Logger, writeTimeout, pingInterval time.Duration) *LiveController {
	if writeTimeout <= 0 {
		writeTimeout = defaultWriteTimeout
	}
	if pingInterval <= 0 {
		pingInterval = defaultPingInterval
	}
	return &LiveController{conversations: conversations, messages: messages, auth: auth,
		log: log, writeTimeout: writeTimeout, pingInterval: pingInterval}
}

// Messages serves the conversation screen: the one-shot messages first, then live snapshots.
func (h *LiveController) Messages() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := currentUser(c, h.auth)
		if !ok {
			return
		}
		conversationID := c.Param("id")
		page, err := h.conversations.Open(c.Request.Context(), conversationID, user)
		if err != nil {
			abort(c, err)
			return
		}
		h.serve(c, func(ctx context.Context, conn *websocket.Conn) error {
			sync, err := h.messages.Watch(ctx, conversationID, page.Messages)
			if err != nil {
				return err
			}
			defer sync.Close()
			return stream(ctx, h, conn, sync)
		})
	}
}

// Conversations serves the sidebar list.
func (h *LiveController) Conversations() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := currentUser(c, h.auth)
		if !ok {
			return
		}
		h.serve(c, func(ctx context.Context, conn *websocket.Conn) error {
			sync, err := h.conversations.Watch(ctx, user, nil)
			if err != nil {
				return err
			}
			defer sync.Close()
			return stream(ctx, h, conn, sync)
		})
	}
}

func (h *LiveController) serve(c *gin.Context, run func(ctx context.Context, conn *websocket.Conn) error) {
	conn, err := websocket.Accept(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn("Websocket upgrade failed", "path", c.FullPath(), "error", err)
		return
	}
	defer func() {
		_ = conn.CloseNow()
	}()

	// Nothing is expected from the client; the returned context ends when it goes away.
	ctx := conn.CloseRead(c.Request.Context())
	err = run(ctx, conn)
	switch {
	case err == nil, ctx.Err() != nil:
		_ = conn.Close(websocket.StatusNormalClosure, "")
	default:
		h.log.Error("Live stream failed", "path", c.FullPath(), "error", err)
		_ = conn.Close(websocket.StatusInternalError, "live stream failed")
	}
}

func stream[T any](ctx context.Context, h *LiveController, conn *websocket.Conn, sync *livesync.Sync[T]) error {
	ticker := time.NewTicker(h.pingInterval)
	defer ticker.Stop()

	if err := h.write(ctx, conn, sync.Current().Envelope()); err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case _, ok := <-sync.Changes():
			if !ok {
				return nil
			}
			if err := h.write(ctx, conn, sync.Current().Envelope()); err != nil {
				return err
			}
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, h.writeTimeout)
			err := conn.Ping(pingCtx)
			cancel()
			if err != nil {
				return fmt.Errorf("ping: %w", err)
			}
		}
	}
}

func (h *LiveController) write(ctx context.Context, conn *websocket.Conn, view any) error {
	writeCtx, cancel := context.WithTimeout(ctx, h.writeTimeout)
	defer cancel()
	return wsjson.Write(writeCtx, conn, view)
}
