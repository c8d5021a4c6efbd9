package auth

import (
	"errors"
	"time"

	"github.com/abduss/filevault/internal/apierr"
	"github.com/gin-gonic/gin"
)

// RegisterRoutes mounts authentication endpoints under /auth.
func RegisterRoutes(router *gin.RouterGroup, service *Service) {
	handler := &httpHandler{service: service}
	authGroup := router.Group("/auth")
	{
		authGroup.POST("/register", handler.register)
		authGroup.POST("/login", handler.login)
		authGroup.POST("/refresh", handler.refresh)
		authGroup.POST("/logout", AuthMiddleware(service), handler.logout)
	}
}

type httpHandler struct {
	service *Service
}

type registerRequest struct {
	Email       string  `json:"email" binding:"required,email"`
	Password    string  `json:"password" binding:"required,min=8,max=72"`
	DisplayName *string `json:"displayName" binding:"omitempty,min=2,max=128"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=1,max=72"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken" binding:"required"`
}

type userResponse struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"`
	DisplayName *string   `json:"displayName"`
	Image       *string   `json:"image"`
	IsAdmin     bool      `json:"isAdmin"`
	CreatedAt   time.Time `json:"createdAt"`
}

type tokensResponse struct {
	AccessToken           string    `json:"accessToken"`
	AccessTokenExpiresAt  time.Time `json:"accessTokenExpiresAt"`
	RefreshToken          string    `json:"refreshToken"`
	RefreshTokenExpiresAt time.Time `json:"refreshTokenExpiresAt"`
}

type authResponse struct {
	User   userResponse   `json:"user"`
	Tokens tokensResponse `json:"tokens"`
}

func (h *httpHandler) register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierr.Abort(c, apierr.Validation("Invalid registration payload", apierr.Details{"error": err.Error()}))
		return
	}

	result, err := h.service.Register(c.Request.Context(), RegisterInput{
		Email:       req.Email,
		Password:    req.Password,
		DisplayName: req.DisplayName,
	})
	if err != nil {
		apierr.Abort(c, translateError(err))
		return
	}

	apierr.Created(c, marshalAuthResponse(result))
}

func (h *httpHandler) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierr.Abort(c, apierr.Validation("Invalid login payload", apierr.Details{"error": err.Error()}))
		return
	}

	result, err := h.service.Login(c.Request.Context(), LoginInput{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		apierr.Abort(c, translateError(err))
		return
	}

	apierr.OK(c, marshalAuthResponse(result))
}

func (h *httpHandler) refresh(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierr.Abort(c, apierr.Validation("refreshToken is required", nil))
		return
	}

	result, err := h.service.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		apierr.Abort(c, translateError(err))
		return
	}

	apierr.OK(c, marshalAuthResponse(result))
}

func (h *httpHandler) logout(c *gin.Context) {
	userID, _, ok := RequireUser(c)
	if !ok {
		apierr.Abort(c, apierr.Unauthorized(""))
		return
	}

	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierr.Abort(c, apierr.Validation("refreshToken is required", nil))
		return
	}

	if err := h.service.Logout(c.Request.Context(), userID, req.RefreshToken); err != nil {
		apierr.Abort(c, translateError(err))
		return
	}

	apierr.OK(c, nil)
}

func translateError(err error) error {
	switch {
	case errors.Is(err, ErrEmailAlreadyExists):
		return apierr.Conflict("Email already registered", nil)
	case errors.Is(err, ErrWeakPassword):
		return apierr.Validation(ErrWeakPassword.Error(), nil)
	case errors.Is(err, ErrInvalidCredentials):
		return apierr.Unauthorized("Invalid email or password")
	case errors.Is(err, ErrInvalidRefreshToken):
		return apierr.Unauthorized("Invalid or expired refresh token")
	default:
		return err
	}
}

func marshalAuthResponse(result AuthResult) authResponse {
	return authResponse{
		User: userResponse{
			ID:          result.User.ID.String(),
			Email:       result.User.Email,
			DisplayName: result.User.DisplayName,
			Image:       result.User.Image,
			IsAdmin:     result.User.IsAdmin,
			CreatedAt:   result.User.CreatedAt.UTC(),
		},
		Tokens: tokensResponse{
			AccessToken:           result.Tokens.AccessToken,
			AccessTokenExpiresAt:  result.Tokens.AccessTokenExpiry.UTC(),
			RefreshToken:          result.Tokens.RefreshToken,
			RefreshTokenExpiresAt: result.Tokens.RefreshTokenExpiry.UTC(),
		},
	}
}
