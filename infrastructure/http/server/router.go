package server

import (
	"chatline/contract"
	"chatline/services"
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
)

type Dependencies struct {
	Auth          contract.IAuthProvider
	Conversations services.IConversationService
	Messages      services.IMessageService
	Search        services.ISearchService
	Log           *slog.Logger
	WriteTimeout  time.Duration
	PingInterval  time.Duration
}

// NewRouter mounts every route under /api/v1, behind bearer authentication.
func NewRouter(deps Dependencies) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery(), RequestLogger(deps.Log))
	RegisterRoutes(engine.Group("/api/v1"), deps)
	return engine
}

func RegisterRoutes(g *gin.RouterGroup, deps Dependencies) {
	conversationCtl := NewConversationController(deps.Conversations, deps.Auth, deps.Log)
	messageCtl := NewMessageController(deps.Messages, deps.Auth)
	liveCtl := NewLiveController(deps.Conversations, deps.Messages, deps.Auth, deps.Log, deps.WriteTimeout, deps.PingInterval)
	searchCtl := NewSearchController(deps.Search, deps.Auth)

	g.Use(AuthMiddleware(deps.Auth))

	// GET /api/v1/conversations -> sidebar, one-shot
	g.GET("/conversations", conversationCtl.List())
	// GET /api/v1/conversations/check?email= -> guard verdict for the create affordance
	g.GET("/conversations/check", conversationCtl.Check())
	// POST /api/v1/conversations -> guarded creation
	g.POST("/conversations", conversationCtl.Create())
	// GET /api/v1/conversations/:id -> page payload, one-shot
	g.GET("/conversations/:id", conversationCtl.Open())
	// POST /api/v1/conversations/:id/messages -> composer
	g.POST("/conversations/:id/messages", messageCtl.Send())
	// GET /api/v1/conversations/:id/live -> websocket, live messages
	g.GET("/conversations/:id/live", liveCtl.Messages())
	// GET /api/v1/live/conversations -> websocket, live sidebar
	g.GET("/live/conversations", liveCtl.Conversations())
	// GET /api/v1/search?q= -> message search
	g.GET("/search", searchCtl.Search())
	// POST /api/v1/signout
	g.POST("/signout", SignOut(deps.Auth))
}
