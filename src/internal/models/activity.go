package models

import "time"

type ActivityMessage struct {
	UserID      string            `json:"user_id"`
	SessionID   string            `json:"session_id"`
	ServiceName string            `json:"service_name"`
	Action      string            `json:"action"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	Timestamp   time.Time         `json:"timestamp"`
}

// Session activity actions
const (
	ActionLogin           = "login"
	ActionLogout          = "logout"
	ActionUserUpdated     = "user_updated"
	ActionTokensRefreshed = "tokens_refreshed"
)

const ServiceSessionStore = "storefront.session.store"
