package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"companion-ai/internal/app"
	"companion-ai/internal/pkg/jwtutil"
	"companion-ai/internal/transport/http/response"
)

const ContextClaimsKey = "claims"

type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*jwtutil.Claims, error)
}

func AuthJWT(auth Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := strings.TrimSpace(c.GetHeader("Authorization"))
		token := ""
		switch {
		case strings.HasPrefix(authHeader, "Bearer "):
			token = strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
		case authHeader == "" && c.Query("access_token") != "":
			// EventSource cannot set headers.
			token = c.Query("access_token")
		case authHeader == "":
			response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "missing authorization header")
			c.Abort()
			return
		default:
			response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid authorization scheme")
			c.Abort()
			return
		}

		claims, err := auth.Authenticate(c.Request.Context(), token)
		if err != nil {
			switch {
			case errors.Is(err, app.ErrTokenRevoked):
				response.Error(c, http.StatusUnauthorized, response.CodeTokenRevoked, "token has been revoked")
			case errors.Is(err, jwtutil.ErrInvalidToken):
				response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid or expired token")
			default:
				response.Error(c, http.StatusServiceUnavailable, response.CodeUnavailable, "token check unavailable")
			}
			c.Abort()
			return
		}

		c.Set(ContextClaimsKey, claims)
		c.Next()
	}
}

// Claims returns the token claims stored by AuthJWT.
func Claims(c *gin.Context) (*jwtutil.Claims, bool) {
	v, ok := c.Get(ContextClaimsKey)
	if !ok {
		return nil, false
	}
	claims, ok := v.(*jwtutil.Claims)
	return claims, ok && claims != nil
}
