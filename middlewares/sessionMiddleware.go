package middlewares

import (
	"net/http"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/mmdatafocus/beergame_backend/utils"
)

// CorrelationMiddleware attaches a correlation id to every request context,
// preferring one supplied by the caller so a settlement can be traced from
// the submitting client through the outbox publish.
func CorrelationMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		cid := c.GetHeader("x-correlation-id")
		if cid == "" {
			cid = uuid.NewString()
		}
		c.Request = c.Request.WithContext(utils.SetCorrelationIdInContext(c.Request.Context(), cid))
		c.Next()
	}
}

// SessionMiddleware carries the self-reported player name into the request
// context. Games are joined by code, not by account, so there is no token
// lookup for players.
func SessionMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if name := c.GetHeader("x-player-name"); name != "" {
			c.Request = c.Request.WithContext(utils.SetPlayerNameInContext(c.Request.Context(), name))
		}
		c.Next()
	}
}

// AdminMiddleware gates the /internal routes behind the shared facilitator
// token. Requests without a matching token never reach the handler.
func AdminMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		adminToken := os.Getenv("ADMIN_TOKEN")
		if adminToken == "" || c.GetHeader("token") != adminToken {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			c.Abort()
			return
		}
		c.Request = c.Request.WithContext(utils.SetIsAdminInContext(c.Request.Context(), true))
		c.Next()
	}
}
