package middleware

import (
	"net"
	"net/http"
	"net/http/httputil"
	"os"
	"runtime/debug"
	"strings"

	"prokipsync/internal/logger"

	"github.com/gin-gonic/gin"
)

func Recovery(log *logger.Logger) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		if ne, ok := recovered.(*net.OpError); ok {
			if se, ok := ne.Err.(*os.SyscallError); ok {
				msg := strings.ToLower(se.Error())
				if strings.Contains(msg, "broken pipe") || strings.Contains(msg, "connection reset by peer") {
					c.Abort()
					return
				}
			}
		}

		l := log.With("request_id", c.GetString(RequestIDKey))
		if gin.IsDebugging() {
			httpRequest, _ := httputil.DumpRequest(c.Request, false)
			l.Error("[Recovery] panic recovered:\n%s\n%v\n%s", string(httpRequest), recovered, string(debug.Stack()))
		} else {
			l.Error("[Recovery] panic recovered: %v", recovered)
		}
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	})
}
