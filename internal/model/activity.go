package model

import "time"

// Activity はユーザー操作の監査ログを表す。
type Activity struct {
	ID        string
	UserID    string
	Action    string
	Details   map[string]string
	CreatedAt time.Time
}

// 監査ログのアクション種別
const (
	ActionSignup          = "signup"
	ActionLogin           = "login"
	ActionLogout          = "logout"
	ActionProfileUpdate   = "profile_update"
	ActionCommunityJoin   = "community_join"
	ActionCommunityLeave  = "community_leave"
	ActionCommunityCreate = "community_create"
	ActionChatVisit       = "chat_visit"
	ActionMessageSend     = "message_send"
	ActionPasswordReset   = "password_reset"
)
