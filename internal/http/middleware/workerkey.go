package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
)

// WorkerKeyHeader authenticates the external scanning worker.
const WorkerKeyHeader = "X-Radar-Api-Key"

// RequireWorkerKey guards worker-only endpoints with a pre-shared key
// compared in constant time. An empty configured key disables the
// endpoint entirely: without a secret there is no way to authenticate
// the worker, so every request is rejected.
func RequireWorkerKey(key string) gin.HandlerFunc {
	return func(c *gin.Context) {
		presented := c.GetHeader(WorkerKeyHeader)
		if key == "" || subtle.ConstantTimeCompare([]byte(presented), []byte(key)) != 1 {
			rid, _ := c.Get(requestIDKey)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"request_id": asString(rid),
				"code":       "unauthorized",
				"message":    "invalid worker key",
			})
			return
		}
		c.Next()
	}
}
