package handler

import "github.com/gin-gonic/gin"

type Routes struct {
	Conversations *ConversationHandler
	Messages      *MessageHandler
	Notifications *NotificationHandler
}

// Register mounts the API on a group that already requires an identity.
// sendLimit runs in front of message sends only.
func (r Routes) Register(api *gin.RouterGroup, sendLimit ...gin.HandlerFunc) {
	conversations := api.Group("/conversations")
	{
		conversations.GET("", r.Conversations.List)
		conversations.POST("", r.Conversations.Create)
		conversations.GET("/:id", r.Conversations.Get)
		conversations.PATCH("/:id", r.Conversations.Update)
		conversations.GET("/:id/messages", r.Messages.History)
		conversations.POST("/:id/read", r.Messages.MarkConversationRead)
	}

	messages := api.Group("/messages")
	{
		send := append(append([]gin.HandlerFunc{}, sendLimit...), r.Messages.Send)
		messages.POST("", send...)
		messages.POST("/attachments", r.Messages.PresignAttachment)
		messages.GET("/search", r.Messages.Search)
		messages.POST("/:id/read", r.Messages.MarkRead)
	}

	notifications := api.Group("/notifications")
	{
		notifications.GET("", r.Notifications.List)
		notifications.POST("", r.Notifications.Create)
		notifications.POST("/read", r.Notifications.MarkMany)
		notifications.POST("/:id/read", r.Notifications.MarkRead)
		notifications.DELETE("/:id", r.Notifications.Delete)
	}
}
