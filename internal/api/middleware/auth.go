package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// ManagementKeyHeader carries the management key when no bearer token is sent.
const ManagementKeyHeader = "X-Management-Key"

// KeyChecker validates management keys.
type KeyChecker interface {
	ManagementProtected() bool
	ValidAPIKey(key string) bool
}

// APIKeyAuth rejects requests without a valid key when the checker has keys
// configured. Unprotected checkers let every request through.
func APIKeyAuth(checker KeyChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		if checker == nil || !checker.ManagementProtected() {
			c.Next()
			return
		}
		key := extractKey(c.Request)
		if key == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing management key", "code": "unauthorized"})
			return
		}
		if !checker.ValidAPIKey(key) {
			log.WithField("client_ip", c.ClientIP()).Warn("rejected management request with invalid key")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid management key", "code": "unauthorized"})
			return
		}
		c.Next()
	}
}

func extractKey(r *http.Request) string {
	if auth := strings.TrimSpace(r.Header.Get("Authorization")); auth != "" {
		if token, ok := strings.CutPrefix(auth, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
		return auth
	}
	return strings.TrimSpace(r.Header.Get(ManagementKeyHeader))
}
