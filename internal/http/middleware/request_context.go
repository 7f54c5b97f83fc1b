package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/cukee-curation/internal/platform/ctxutil"
)

const headerSessionID = "X-Session-Id"

// AttachRequestContext carries the client's curation session id, when sent,
// into the request context for logging.
func AttachRequestContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		if sid := strings.TrimSpace(c.GetHeader(headerSessionID)); sid != "" {
			c.Request = c.Request.WithContext(ctxutil.WithSessionID(c.Request.Context(), sid))
		}
		c.Next()
	}
}
