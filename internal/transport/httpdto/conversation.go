package httpdto

type CreateConversationRequest struct {
	CounterpartID string `json:"counterpartId" binding:"required"`
}

type UpdateConversationRequest struct {
	IsActive *bool `json:"isActive" binding:"required"`
}

type ListConversationsQuery struct {
	Page     int    `form:"page"`
	Limit    int    `form:"limit"`
	IsActive string `form:"isActive"`
}

type ListMessagesQuery struct {
	Before string `form:"before"`
	Limit  int    `form:"limit"`
}
