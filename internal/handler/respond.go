package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"marketplace-chat/internal/auth"
	"marketplace-chat/internal/middleware"
	"marketplace-chat/internal/services"
	"marketplace-chat/internal/transport/httpdto"
	market_errors "marketplace-chat/pkg/errors"
	"marketplace-chat/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type ConversationService interface {
	GetOrCreate(ctx context.Context, requesterID, counterpartID uuid.UUID) (*services.ConversationView, error)
	Get(ctx context.Context, id, callerID uuid.UUID) (services.ConversationView, error)
	List(ctx context.Context, userID uuid.UUID, page, limit int, isActive *bool) (services.ConversationPage, error)
	SetActive(ctx context.Context, id, callerID uuid.UUID, active bool) (services.ConversationView, error)
}

type MessageService interface {
	Send(ctx context.Context, input services.SendMessageInput) (services.MessageView, error)
	MarkOneRead(ctx context.Context, messageID, callerID uuid.UUID) (services.MessageView, error)
	MarkConversationRead(ctx context.Context, conversationID, callerID uuid.UUID) (int64, error)
	Search(ctx context.Context, callerID uuid.UUID, query string, conversationID *uuid.UUID) (services.SearchResult, error)
	ListMessages(ctx context.Context, conversationID, callerID uuid.UUID, before *time.Time, limit int) ([]services.MessageView, error)
}

type AttachmentService interface {
	Enabled() bool
	Presign(ctx context.Context, input services.PresignAttachmentInput) (services.PresignAttachmentResult, error)
}

type NotificationService interface {
	Create(ctx context.Context, input services.CreateNotificationInput) (services.NotificationView, error)
	List(ctx context.Context, caller auth.Identity, input services.ListNotificationsInput) (services.NotificationPage, error)
	MarkRead(ctx context.Context, id, callerID uuid.UUID) (services.NotificationView, error)
	MarkMany(ctx context.Context, callerID uuid.UUID, ids []uuid.UUID) (int64, error)
	MarkAll(ctx context.Context, caller auth.Identity, scopeAll bool) (int64, error)
	Delete(ctx context.Context, id, callerID uuid.UUID) (services.NotificationView, error)
}

// respondError maps a service error onto the envelope. Server faults are
// logged in full and answered with a generic message.
func respondError(c *gin.Context, err error) {
	status := market_errors.HTTPStatus(err)
	message := err.Error()
	if status >= http.StatusInternalServerError {
		logger.GetGlobalLogger().WithContext(c.Request.Context()).Error("request failed",
			zap.String("method", c.Request.Method),
			zap.String("route", c.FullPath()),
			zap.Error(err),
		)
		message = "internal server error"
	}
	c.JSON(status, httpdto.NewErrorResponse(message, market_errors.Code(err)))
}

func badRequest(c *gin.Context, message string, details ...string) {
	c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse(message, "VALIDATION_ERROR", details...))
}

func currentIdentity(c *gin.Context) (auth.Identity, bool) {
	identity, ok := middleware.Identity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("authentication required", "UNAUTHORIZED"))
		return auth.Identity{}, false
	}
	return identity, true
}

func parseUUIDParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		badRequest(c, "invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}

func parseOptionalBool(value string) (*bool, error) {
	if value == "" {
		return nil, nil
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return nil, err
	}
	return &parsed, nil
}
