package server

import (
	"chatline/contract"
	"chatline/domain"
	"chatline/services"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
)

type ConversationController struct {
	conversations services.IConversationService
	auth          contract.IAuthProvider
	log           *slog.Logger
}

func NewConversationController(conversations services.IConversationService, auth contract.IAuthProvider, log *slog.Logger) *ConversationController {
	return &ConversationController{conversations: conversations, auth: auth, log: log}
}

type createConversationRequest struct {
	Email string `json:"email"`
}

type checkResponse struct {
	Allowed bool              `json:"allowed"`
	Reason  services.Rejection `json:"reason,omitempty"`
}

func (h *ConversationController) List() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := currentUser(c, h.auth)
		if !ok {
			return
		}
		conversations, err := h.conversations.List(c.Request.Context(), user)
		if err != nil {
			abort(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"conversations": nonNil(conversations)})
	}
}

func (h *ConversationController) Check() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := currentUser(c, h.auth)
		if !ok {
			return
		}
		err := h.conversations.Check(c.Request.Context(), user, c.Query("email"))
		if reason := services.RejectionOf(err); reason != "" {
			c.JSON(http.StatusOK, checkResponse{Reason: reason})
			return
		}
		if err != nil {
			abort(c, err)
			return
		}
		c.JSON(http.StatusOK, checkResponse{Allowed: true})
	}
}

// Create answers 200 with created=false for a rejected recipient: the
// rejection is a disabled affordance in the UI, not a failure.
func (h *ConversationController) Create() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := currentUser(c, h.auth)
		if !ok {
			return
		}
		var req createConversationRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		result, err := h.conversations.Create(c.Request.Context(),
			domain.CreateConversationCommand{CurrentUser: user, Recipient: req.Email})
		if err != nil {
			abort(c, err)
			return
		}
		status := http.StatusOK
		if result.Created {
			status = http.StatusCreated
		}
		c.JSON(status, result)
	}
}

func (h *ConversationController) Open() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := currentUser(c, h.auth)
		if !ok {
			return
		}
		page, err := h.conversations.Open(c.Request.Context(), c.Param("id"), user)
		if err != nil {
			abort(c, err)
			return
		}
		page.Messages = nonNil(page.Messages)
		c.JSON(http.StatusOK, page)
	}
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
