package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/liliang-cn/fixdoc/internal/api/respond"
)

// AccountKey is the gin context key holding the authenticated account id
const AccountKey = "account_id"

// LocalAccount owns every request when no API keys are configured
const LocalAccount = "local"

// Auth resolves the request's API key to an account id. With no keys
// configured every request runs as LocalAccount.
func Auth(accounts map[string]string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if len(accounts) == 0 {
			c.Set(AccountKey, LocalAccount)
			c.Next()
			return
		}

		key := c.GetHeader("X-API-Key")
		if key == "" {
			auth := c.GetHeader("Authorization")
			if strings.HasPrefix(auth, "Bearer ") {
				key = strings.TrimPrefix(auth, "Bearer ")
			}
		}

		account, ok := accounts[key]
		if key == "" || !ok {
			respond.Abort(c, http.StatusUnauthorized, respond.KindUnauthorized, "missing or unknown API key")
			return
		}

		c.Set(AccountKey, account)
		c.Next()
	}
}

// AccountID returns the account set by Auth
func AccountID(c *gin.Context) string {
	return c.GetString(AccountKey)
}
