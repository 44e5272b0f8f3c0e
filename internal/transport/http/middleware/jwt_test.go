package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"companion-ai/internal/app"
	"companion-ai/internal/pkg/jwtutil"
)

type fakeAuthenticator map[string]error

func (f fakeAuthenticator) Authenticate(_ context.Context, token string) (*jwtutil.Claims, error) {
	if err, ok := f[token]; ok && err != nil {
		return nil, err
	}
	if _, ok := f[token]; !ok {
		return nil, jwtutil.ErrInvalidToken
	}
	return &jwtutil.Claims{SessionID: "sess-" + token}, nil
}

func TestAuthJWT(t *testing.T) {
	gin.SetMode(gin.TestMode)
	auth := fakeAuthenticator{
		"good":    nil,
		"revoked": app.ErrTokenRevoked,
		"redis":   errors.New("dial tcp: connection refused"),
	}

	router := gin.New()
	router.GET("/", AuthJWT(auth), func(c *gin.Context) {
		claims, _ := Claims(c)
		c.String(http.StatusOK, claims.SessionID)
	})

	tests := []struct {
		name   string
		header string
		query  string
		status int
		body   string
	}{
		{name: "bearer", header: "Bearer good", status: http.StatusOK, body: "sess-good"},
		{name: "query token for event streams", query: "?access_token=good", status: http.StatusOK, body: "sess-good"},
		{name: "missing", status: http.StatusUnauthorized},
		{name: "wrong scheme", header: "Basic Zm9vOmJhcg==", status: http.StatusUnauthorized},
		{name: "unknown token", header: "Bearer nope", status: http.StatusUnauthorized},
		{name: "revoked", header: "Bearer revoked", status: http.StatusUnauthorized},
		{name: "revocation store down", header: "Bearer redis", status: http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/"+tt.query, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.status, w.Code)
			if tt.body != "" {
				assert.Equal(t, tt.body, w.Body.String())
			}
		})
	}
}
