package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// CORS answers preflight requests and allows cross-origin calls. An empty
// allow list permits any origin.
func CORS(allowOrigins []string) gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := strings.TrimSpace(c.GetHeader("Origin"))
		allowed := ""
		if origin != "" {
			switch {
			case len(allowOrigins) == 0:
				allowed = "*"
			case originAllowed(allowOrigins, origin):
				allowed = origin
			}
		}
		if allowed != "" {
			c.Header("Access-Control-Allow-Origin", allowed)
			c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
			c.Header("Access-Control-Allow-Headers", "*")
			if allowed != "*" {
				c.Header("Vary", "Origin")
			}
		}
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

func originAllowed(allowOrigins []string, origin string) bool {
	for _, a := range allowOrigins {
		a = strings.TrimSpace(a)
		if a == "*" || (a != "" && strings.EqualFold(a, origin)) {
			return true
		}
	}
	return false
}
