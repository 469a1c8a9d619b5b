package handler

import (
	"net/http"

	"marketplace-chat/internal/transport/httpdto"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type ConversationHandler struct {
	service ConversationService
}

func NewConversationHandler(service ConversationService) *ConversationHandler {
	return &ConversationHandler{service: service}
}

// Create returns the existing conversation for the pair or opens one. A
// request against yourself succeeds with no data.
func (h *ConversationHandler) Create(c *gin.Context) {
	identity, ok := currentIdentity(c)
	if !ok {
		return
	}

	var req httpdto.CreateConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request", err.Error())
		return
	}
	counterpartID, err := uuid.Parse(req.CounterpartID)
	if err != nil {
		badRequest(c, "invalid counterpartId")
		return
	}

	conv, err := h.service.GetOrCreate(c.Request.Context(), identity.ID, counterpartID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(conv))
}

func (h *ConversationHandler) List(c *gin.Context) {
	identity, ok := currentIdentity(c)
	if !ok {
		return
	}

	var query httpdto.ListConversationsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		badRequest(c, "invalid query", err.Error())
		return
	}
	isActive, err := parseOptionalBool(query.IsActive)
	if err != nil {
		badRequest(c, "isActive must be true or false")
		return
	}

	page, err := h.service.List(c.Request.Context(), identity.ID, query.Page, query.Limit, isActive)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(page))
}

func (h *ConversationHandler) Get(c *gin.Context) {
	identity, ok := currentIdentity(c)
	if !ok {
		return
	}
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	conv, err := h.service.Get(c.Request.Context(), id, identity.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(conv))
}

func (h *ConversationHandler) Update(c *gin.Context) {
	identity, ok := currentIdentity(c)
	if !ok {
		return
	}
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	var req httpdto.UpdateConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request", err.Error())
		return
	}

	conv, err := h.service.SetActive(c.Request.Context(), id, identity.ID, *req.IsActive)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(conv))
}
