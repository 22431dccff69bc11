package server

import (
	"chatline/contract"
	chaterrors "chatline/errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// accessTokenParam carries the token for websocket upgrades, browsers cannot set headers there.
const accessTokenParam = "access_token"

// AuthMiddleware validates the bearer token and injects the user identity
// into the request context for downstream controllers.
func AuthMiddleware(provider contract.IAuthProvider) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
		if token == "" {
			token = c.Query(accessTokenParam)
		}
		if token == "" {
			abort(c, chaterrors.ErrUnauthenticated)
			return
		}
		ctx, err := provider.Authenticate(c.Request.Context(), token)
		if err != nil {
			abort(c, err)
			return
		}
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func RequestLogger(log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug("HTTP request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start))
	}
}

// SignOut revokes the token of the current request.
func SignOut(provider contract.IAuthProvider) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := provider.SignOut(c.Request.Context()); err != nil {
			abort(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

func currentUser(c *gin.Context, provider contract.IAuthProvider) (string, bool) {
	user, ok := provider.CurrentUser(c.Request.Context())
	if !ok {
		abort(c, chaterrors.ErrUnauthenticated)
	}
	return user, ok
}

// abort surfaces err to the client; store failures come back as 503 so the UI can offer a retry.
func abort(c *gin.Context, err error) {
	c.AbortWithStatusJSON(chaterrors.MapToHTTPStatus(err), gin.H{"error": err.Error()})
}
