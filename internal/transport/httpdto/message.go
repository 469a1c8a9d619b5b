package httpdto

type SendMessageRequest struct {
	ConversationID string `json:"conversationId" binding:"required"`
	Content        string `json:"content"`
	MessageType    string `json:"messageType"`
	FileName       string `json:"fileName"`
	FileSize       int64  `json:"fileSize"`
	FileMimeType   string `json:"fileMimeType"`
	FileKey        string `json:"fileKey"`
}

type PresignAttachmentRequest struct {
	ConversationID string `json:"conversationId" binding:"required"`
	FileName       string `json:"fileName" binding:"required"`
	FileMimeType   string `json:"fileMimeType" binding:"required"`
	FileSize       int64  `json:"fileSize" binding:"required"`
}

type SearchMessagesQuery struct {
	Query          string `form:"q"`
	ConversationID string `form:"conversationId"`
}
