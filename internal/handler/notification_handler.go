package handler

import (
	"net/http"

	"marketplace-chat/internal/domain/notification"
	"marketplace-chat/internal/services"
	"marketplace-chat/internal/transport/httpdto"
	market_errors "marketplace-chat/pkg/errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type NotificationHandler struct {
	service NotificationService
}

func NewNotificationHandler(service NotificationService) *NotificationHandler {
	return &NotificationHandler{service: service}
}

func (h *NotificationHandler) List(c *gin.Context) {
	identity, ok := currentIdentity(c)
	if !ok {
		return
	}

	var query httpdto.ListNotificationsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		badRequest(c, "invalid query", err.Error())
		return
	}

	page, err := h.service.List(c.Request.Context(), identity, services.ListNotificationsInput{
		Page:       query.Page,
		Limit:      query.Limit,
		UnreadOnly: query.UnreadOnly,
		ScopeAll:   query.Scope == httpdto.ScopeAll,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(page))
}

// Create lets an administrator push a notification to any user.
func (h *NotificationHandler) Create(c *gin.Context) {
	identity, ok := currentIdentity(c)
	if !ok {
		return
	}
	if !identity.IsElevated() {
		respondError(c, market_errors.ErrForbidden)
		return
	}

	var req httpdto.CreateNotificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request", err.Error())
		return
	}
	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		badRequest(c, "invalid userId")
		return
	}

	view, err := h.service.Create(c.Request.Context(), services.CreateNotificationInput{
		UserID:    userID,
		Title:     req.Title,
		Message:   req.Message,
		Type:      notification.Type(req.Type),
		RelatedID: req.RelatedID,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, httpdto.NewSuccessResponse(view))
}

func (h *NotificationHandler) MarkRead(c *gin.Context) {
	identity, ok := currentIdentity(c)
	if !ok {
		return
	}
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	view, err := h.service.MarkRead(c.Request.Context(), id, identity.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(view))
}

// MarkMany marks the listed ids, or everything when "all" is set.
func (h *NotificationHandler) MarkMany(c *gin.Context) {
	identity, ok := currentIdentity(c)
	if !ok {
		return
	}

	var req httpdto.MarkNotificationsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request", err.Error())
		return
	}

	var (
		updated int64
		err     error
	)
	switch {
	case len(req.IDs) > 0:
		ids := make([]uuid.UUID, 0, len(req.IDs))
		for _, raw := range req.IDs {
			id, parseErr := uuid.Parse(raw)
			if parseErr != nil {
				badRequest(c, "invalid notification id", raw)
				return
			}
			ids = append(ids, id)
		}
		updated, err = h.service.MarkMany(c.Request.Context(), identity.ID, ids)
	case req.All:
		updated, err = h.service.MarkAll(c.Request.Context(), identity, req.Scope == httpdto.ScopeAll)
	default:
		badRequest(c, "either ids or all is required")
		return
	}
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.UpdatedResponse{Updated: updated}))
}

func (h *NotificationHandler) Delete(c *gin.Context) {
	identity, ok := currentIdentity(c)
	if !ok {
		return
	}
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	view, err := h.service.Delete(c.Request.Context(), id, identity.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(view))
}
