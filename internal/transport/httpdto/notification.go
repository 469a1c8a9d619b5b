package httpdto

type ListNotificationsQuery struct {
	Page       int    `form:"page"`
	Limit      int    `form:"limit"`
	UnreadOnly bool   `form:"unreadOnly"`
	Scope      string `form:"scope"`
}

// MarkNotificationsRequest marks ids when given, otherwise everything when All is set.
// Scope "all" widens mark-all to every user and is limited to administrators.
type MarkNotificationsRequest struct {
	IDs   []string `json:"ids"`
	All   bool     `json:"all"`
	Scope string   `json:"scope"`
}

type CreateNotificationRequest struct {
	UserID    string  `json:"userId" binding:"required"`
	Title     string  `json:"title" binding:"required"`
	Message   string  `json:"message" binding:"required"`
	Type      string  `json:"type"`
	RelatedID *string `json:"relatedId"`
}

const ScopeAll = "all"
