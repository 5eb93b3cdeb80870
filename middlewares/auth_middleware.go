package middlewares

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/yeremiapane/rto-lookup/utils"
)

// ContextUnlockClaims is the gin context key holding *utils.UnlockClaims.
const ContextUnlockClaims = "unlockClaims"

// TokenParser validates unlock tokens.
type TokenParser interface {
	Parse(token string) (*utils.UnlockClaims, error)
}

// UnlockAuthMiddleware admits requests carrying a valid unlock token, issued
// once a payment was confirmed.
func UnlockAuthMiddleware(tokens TokenParser) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			utils.RespondKindError(c, http.StatusUnauthorized, "unauthorized", "missing_token", "Authorization header missing")
			c.Abort()
			return
		}

		if !strings.HasPrefix(authHeader, "Bearer ") {
			utils.RespondKindError(c, http.StatusUnauthorized, "unauthorized", "malformed_token", "Authorization header must use the Bearer scheme")
			c.Abort()
			return
		}

		claims, err := tokens.Parse(strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer ")))
		if err != nil || claims == nil || claims.OrderID == "" {
			utils.Error(logrus.Fields{"ip": c.ClientIP()}).Warn("rejected unlock token")
			utils.RespondKindError(c, http.StatusUnauthorized, "unauthorized", "invalid_token", "Invalid or expired unlock token")
			c.Abort()
			return
		}

		c.Set(ContextUnlockClaims, claims)
		c.Next()
	}
}

// UnlockClaims returns the claims stored by UnlockAuthMiddleware.
func UnlockClaims(c *gin.Context) (*utils.UnlockClaims, bool) {
	v, ok := c.Get(ContextUnlockClaims)
	if !ok {
		return nil, false
	}
	claims, ok := v.(*utils.UnlockClaims)
	return claims, ok
}
