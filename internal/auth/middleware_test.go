package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/abduss/filevault/internal/apierr"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newProtectedRouter(service *Service) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(apierr.Handler(zap.NewNop(), false))
	r.GET("/me", AuthMiddleware(service), func(c *gin.Context) {
		id, user, ok := RequireUser(c)
		if !ok {
			apierr.Abort(c, apierr.Unauthorized(""))
			return
		}
		apierr.OK(c, gin.H{"id": id.String(), "email": user.Email})
	})
	return r
}

func TestAuthMiddlewareRejectsMissingToken(t *testing.T) {
	r := newProtectedRouter(NewService(newMemoryStore(), testConfig()))

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/me", nil))

	require.Equal(t, http.StatusUnauthorized, rr.Code)
	var body struct {
		Success bool `json:"success"`
		Error   struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.False(t, body.Success)
	assert.Equal(t, apierr.CodeUnauthorized, body.Error.Code)
}

func TestAuthMiddlewareRejectsMalformedHeader(t *testing.T) {
	r := newProtectedRouter(NewService(newMemoryStore(), testConfig()))

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Token abc")
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestAuthMiddlewareAcceptsValidToken(t *testing.T) {
	service := NewService(newMemoryStore(), testConfig())
	result, err := service.Register(context.Background(), RegisterInput{
		Email:    "user@example.com",
		Password: "StrongPass1!",
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+result.Tokens.AccessToken)
	rr := httptest.NewRecorder()
	newProtectedRouter(service).ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), result.User.ID.String())
	assert.Contains(t, rr.Body.String(), "user@example.com")
}
