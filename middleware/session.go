package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/sessions"
	"go.uber.org/zap"
)

// SessionIDKey is the gin context key holding the browser session id.
const SessionIDKey = "session_id"

const sessionIDValue = "sid"

// Session makes sure every request carries a session id in a signed cookie.
// The cart and the pending payment are both keyed by it.
func Session(store sessions.Store, cookieName string, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		// A cookie that fails verification still yields a fresh session.
		session, err := store.Get(c.Request, cookieName)
		if err != nil {
			logger.Debug("Discarding invalid session cookie", zap.Error(err))
		}

		sid, _ := session.Values[sessionIDValue].(string)
		if _, perr := uuid.Parse(sid); perr != nil {
			sid = uuid.NewString()
			session.Values[sessionIDValue] = sid
			if err := session.Save(c.Request, c.Writer); err != nil {
				logger.Error("Failed to save session", zap.Error(err))
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to start session"})
				return
			}
		}

		c.Set(SessionIDKey, sid)
		c.Next()
	}
}

// GetSessionID returns the session id set by Session.
func GetSessionID(c *gin.Context) string {
	return c.GetString(SessionIDKey)
}
