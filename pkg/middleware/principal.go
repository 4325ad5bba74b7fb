package middleware

import (
	"crypto/subtle"
	"strings"

	"nextt-backend/pkg/errutil"

	"github.com/gin-gonic/gin"
)

// Principal is the authenticated caller identity established by the upstream
// auth layer. Core operations receive it as an explicit parameter instead of
// reading an untyped request bag.
type Principal struct {
	UserID string
	Role   string
}

func (p Principal) IsAdmin() bool { return p.Role == "admin" }

const principalKey = "auth.principal"

const (
	headerUserID = "X-User-Id"
	headerRole   = "X-User-Role"
)

// Authenticated requires the identity headers set by the auth gateway and
// stores the resulting Principal on the request context.
func Authenticated() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetHeader(headerUserID)
		if userID == "" {
			_ = c.Error(errutil.Unauthorized("authentication required", nil))
			c.Abort()
			return
		}

		role := c.GetHeader(headerRole)
		if role == "" {
			role = "user"
		}

		c.Set(principalKey, Principal{UserID: userID, Role: role})
		c.Next()
	}
}

// PrincipalFrom returns the Principal established by Authenticated.
func PrincipalFrom(c *gin.Context) (Principal, bool) {
	v, ok := c.Get(principalKey)
	if !ok {
		return Principal{}, false
	}
	p, ok := v.(Principal)
	return p, ok
}

// OperationalCredential guards operator-only endpoints (the batch payout
// trigger) with a shared credential distinct from user auth.
func OperationalCredential(apiKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c.GetHeader("Authorization"))
		if apiKey == "" || subtle.ConstantTimeCompare([]byte(token), []byte(apiKey)) != 1 {
			_ = c.Error(errutil.Forbidden("operational credential required", nil))
			c.Abort()
			return
		}
		c.Next()
	}
}

func bearerToken(header string) string {
	const prefix = "Bearer "
	if strings.HasPrefix(header, prefix) {
		return strings.TrimPrefix(header, prefix)
	}
	return ""
}
