package model

// Setting keys.
const (
	SettingNotifyChatIDs = "telegram_chat_ids"
)

// UpdateNotifyChatsRequest replaces the list of notification chats.
type UpdateNotifyChatsRequest struct {
	ChatIDs []string `json:"chat_ids" binding:"dive,required,chatid"`
}
