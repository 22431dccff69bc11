package server

import (
	"chatline/contract"
	"chatline/domain"
	"chatline/services"
	"net/http"

	"github.com/gin-gonic/gin"
)

type MessageController struct {
	messages services.IMessageService
	auth     contract.IAuthProvider
}

func NewMessageController(messages services.IMessageService, auth contract.IAuthProvider) *MessageController {
	return &MessageController{messages: messages, auth: auth}
}

type sendMessageRequest struct {
	Text string `json:"text"`
}

func (h *MessageController) Send() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := currentUser(c, h.auth)
		if !ok {
			return
		}
		var req sendMessageRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		id, err := h.messages.Send(c.Request.Context(), domain.SendMessageCommand{
			ConversationID: c.Param("id"),
			Sender:         user,
			Text:           req.Text,
		})
		if err != nil {
			abort(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"id": id})
	}
}
