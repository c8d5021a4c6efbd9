package user

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/abduss/filevault/internal/apierr"
	"github.com/abduss/filevault/internal/auth"
	"github.com/abduss/filevault/internal/file"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// RegisterRoutes mounts user endpoints onto an authenticated router group.
func RegisterRoutes(group *gin.RouterGroup, service *Service) {
	handler := &httpHandler{service: service}
	users := group.Group("/users")
	users.GET("", handler.list)
	users.GET("/me", handler.me)
	users.PATCH("/me", handler.updateMe)
	users.GET("/:id", handler.get)
	users.DELETE("/:id", handler.delete)
}

type httpHandler struct {
	service *Service
}

type updateRequest struct {
	DisplayName *string `json:"displayName" binding:"omitempty,min=2,max=128"`
	Image       *string `json:"image" binding:"omitempty,url,max=2048"`
}

func (h *httpHandler) list(c *gin.Context) {
	page, err := queryInt(c, "page", 1)
	if err != nil {
		apierr.Abort(c, err)
		return
	}
	pageSize, err := queryInt(c, "pageSize", DefaultPageSize)
	if err != nil {
		apierr.Abort(c, err)
		return
	}

	result, err := h.service.List(c.Request.Context(), page, pageSize)
	if err != nil {
		apierr.Abort(c, translateError(err))
		return
	}
	apierr.OK(c, result)
}

func (h *httpHandler) me(c *gin.Context) {
	userID, _, ok := auth.RequireUser(c)
	if !ok {
		apierr.Abort(c, apierr.Unauthorized(""))
		return
	}

	u, err := h.service.Get(c.Request.Context(), userID)
	if err != nil {
		apierr.Abort(c, translateError(err))
		return
	}
	apierr.OK(c, u)
}

func (h *httpHandler) updateMe(c *gin.Context) {
	userID, _, ok := auth.RequireUser(c)
	if !ok {
		apierr.Abort(c, apierr.Unauthorized(""))
		return
	}

	var req updateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierr.Abort(c, apierr.Validation("Invalid profile payload", apierr.Details{"error": err.Error()}))
		return
	}

	u, err := h.service.Update(c.Request.Context(), userID, UpdateInput{
		DisplayName: req.DisplayName,
		Image:       req.Image,
	})
	if err != nil {
		apierr.Abort(c, translateError(err))
		return
	}
	apierr.OK(c, u)
}

func (h *httpHandler) get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		apierr.Abort(c, apierr.BadRequest("Invalid user id", nil))
		return
	}

	u, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		apierr.Abort(c, translateError(err))
		return
	}
	apierr.OK(c, u)
}

func (h *httpHandler) delete(c *gin.Context) {
	actorID, actor, ok := auth.RequireUser(c)
	if !ok {
		apierr.Abort(c, apierr.Unauthorized(""))
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		apierr.Abort(c, apierr.BadRequest("Invalid user id", nil))
		return
	}

	if err := h.service.Delete(c.Request.Context(), actorID, actor.IsAdmin, id); err != nil {
		apierr.Abort(c, translateError(err))
		return
	}
	apierr.OK(c, nil)
}

func queryInt(c *gin.Context, name string, fallback int) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apierr.Validation(fmt.Sprintf("%s must be an integer", name), apierr.Details{name: raw})
	}
	return v, nil
}

func translateError(err error) error {
	switch {
	case errors.Is(err, ErrUserNotFound):
		return apierr.NotFound("User not found").WithCause(err)
	case errors.Is(err, ErrForbidden):
		return apierr.Forbidden("You can only delete your own account").WithCause(err)
	case errors.Is(err, ErrInvalidPage):
		return apierr.Validation(
			fmt.Sprintf("page must be at least 1 and pageSize between 1 and %d", MaxPageSize), nil,
		).WithCause(err)
	case errors.Is(err, file.ErrDeleteFailed):
		return apierr.DeleteFailed("Failed to delete user files", nil).WithCause(err)
	default:
		return err
	}
}
