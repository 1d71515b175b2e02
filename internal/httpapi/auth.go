package httpapi

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/yungbote/connectivity-demand/internal/platform/apierr"
	"github.com/yungbote/connectivity-demand/internal/platform/logger"
)

var errUnauthorized = errors.New("missing or invalid token")

// RequireToken accepts HS256 bearer tokens signed with secret. An empty secret
// disables the check.
func RequireToken(log *logger.Logger, secret string) gin.HandlerFunc {
	if secret == "" {
		return func(c *gin.Context) { c.Next() }
	}
	key := []byte(secret)
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	return func(c *gin.Context) {
		tokenString := bearerToken(c)
		if tokenString == "" {
			writeError(c, apierr.New(apierr.KindUnauthorized, errUnauthorized))
			return
		}
		token, err := parser.ParseWithClaims(tokenString, &jwt.RegisteredClaims{}, func(*jwt.Token) (interface{}, error) {
			return key, nil
		})
		if err != nil || !token.Valid {
			if log != nil {
				log.Warn("Rejected upload token", "error", err)
			}
			writeError(c, apierr.New(apierr.KindUnauthorized, errUnauthorized))
			return
		}
		if sub, _ := token.Claims.GetSubject(); sub != "" {
			c.Set("subject", sub)
		}
		c.Next()
	}
}

func bearerToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if len(authHeader) > 7 && strings.EqualFold(authHeader[:7], "Bearer ") {
		return strings.TrimSpace(authHeader[7:])
	}
	return ""
}
