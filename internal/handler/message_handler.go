package handler

import (
	"net/http"
	"time"

	"marketplace-chat/internal/domain/message"
	"marketplace-chat/internal/services"
	"marketplace-chat/internal/transport/httpdto"
	market_errors "marketplace-chat/pkg/errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type MessageHandler struct {
	service     MessageService
	attachments AttachmentService
}

func NewMessageHandler(service MessageService, attachments AttachmentService) *MessageHandler {
	return &MessageHandler{service: service, attachments: attachments}
}

func (h *MessageHandler) Send(c *gin.Context) {
	identity, ok := currentIdentity(c)
	if !ok {
		return
	}

	var req httpdto.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request", err.Error())
		return
	}
	conversationID, err := uuid.Parse(req.ConversationID)
	if err != nil {
		badRequest(c, "invalid conversationId")
		return
	}

	input := services.SendMessageInput{
		ConversationID: conversationID,
		SenderID:       identity.ID,
		Content:        req.Content,
		MessageType:    message.Type(req.MessageType),
	}
	if req.FileName != "" || req.FileKey != "" {
		input.File = &message.FileMeta{
			Name:     req.FileName,
			Size:     req.FileSize,
			MimeType: req.FileMimeType,
			Key:      req.FileKey,
		}
	}

	view, err := h.service.Send(c.Request.Context(), input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, httpdto.NewSuccessResponse(view))
}

func (h *MessageHandler) MarkRead(c *gin.Context) {
	identity, ok := currentIdentity(c)
	if !ok {
		return
	}
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	view, err := h.service.MarkOneRead(c.Request.Context(), id, identity.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(view))
}

func (h *MessageHandler) MarkConversationRead(c *gin.Context) {
	identity, ok := currentIdentity(c)
	if !ok {
		return
	}
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	updated, err := h.service.MarkConversationRead(c.Request.Context(), id, identity.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.UpdatedResponse{Updated: updated}))
}

func (h *MessageHandler) Search(c *gin.Context) {
	identity, ok := currentIdentity(c)
	if !ok {
		return
	}

	var query httpdto.SearchMessagesQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		badRequest(c, "invalid query", err.Error())
		return
	}
	var scope *uuid.UUID
	if query.ConversationID != "" {
		id, err := uuid.Parse(query.ConversationID)
		if err != nil {
			badRequest(c, "invalid conversationId")
			return
		}
		scope = &id
	}

	result, err := h.service.Search(c.Request.Context(), identity.ID, query.Query, scope)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(result))
}

// History pages a conversation newest first. before is an RFC 3339 cursor.
func (h *MessageHandler) History(c *gin.Context) {
	identity, ok := currentIdentity(c)
	if !ok {
		return
	}
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	var query httpdto.ListMessagesQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		badRequest(c, "invalid query", err.Error())
		return
	}
	var before *time.Time
	if query.Before != "" {
		parsed, err := time.Parse(time.RFC3339Nano, query.Before)
		if err != nil {
			badRequest(c, "before must be an RFC 3339 timestamp")
			return
		}
		before = &parsed
	}

	items, err := h.service.ListMessages(c.Request.Context(), id, identity.ID, before, query.Limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"messages": items}))
}

func (h *MessageHandler) PresignAttachment(c *gin.Context) {
	identity, ok := currentIdentity(c)
	if !ok {
		return
	}
	if h.attachments == nil || !h.attachments.Enabled() {
		respondError(c, market_errors.ErrServiceUnavailable)
		return
	}

	var req httpdto.PresignAttachmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request", err.Error())
		return
	}
	conversationID, err := uuid.Parse(req.ConversationID)
	if err != nil {
		badRequest(c, "invalid conversationId")
		return
	}

	result, err := h.attachments.Presign(c.Request.Context(), services.PresignAttachmentInput{
		ConversationID: conversationID,
		CallerID:       identity.ID,
		FileName:       req.FileName,
		MimeType:       req.FileMimeType,
		Size:           req.FileSize,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(result))
}
