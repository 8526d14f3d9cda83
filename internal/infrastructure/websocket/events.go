package websocket

import (
	"bytes"
	"encoding/json"
)

// Inbound event names.
const (
	EventPing                  = "ping"
	EventPong                  = "pong"
	EventJoinChat              = "join_chat"
	EventLeaveChat             = "leave_chat"
	EventTypingStarted         = "typing_started"
	EventTypingStopped         = "typing_stopped"
	EventNewMessage            = "new_message"
	EventJoinSupportChat       = "join_support_chat"
	EventLeaveSupportChat      = "leave_support_chat"
	EventSupportMessage        = "support_message"
	EventAcceptSupportChat     = "accept_support_chat"
	EventCloseSupportChat      = "close_support_chat"
	EventSendNotification      = "send_notification"
	EventBroadcastNotification = "broadcast_notification"
)

// ChatRef names a chat. Clients send either a bare id string or {"chatId": id}.
type ChatRef struct {
	ChatID string `json:"chatId" validate:"required,max=128"`
}

func (r *ChatRef) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		return json.Unmarshal(data, &r.ChatID)
	}

	type plain ChatRef
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*r = ChatRef(p)
	return nil
}

type NewMessageData struct {
	ChatID      string          `json:"chatId" validate:"required,max=128"`
	Message     json.RawMessage `json:"message" validate:"required"`
	RecipientID string          `json:"recipientId" validate:"omitempty,max=128"`
}

// SupportMessageData opens a support chat when ChatID is empty. Older clients
// nest the text under message.content; Text resolves either form.
type SupportMessageData struct {
	ChatID      string                 `json:"chatId" validate:"omitempty,max=128"`
	Content     string                 `json:"content" validate:"max=4000"`
	Message     *SupportMessageContent `json:"message,omitempty"`
	Category    string                 `json:"category" validate:"omitempty,max=64"`
	Priority    int                    `json:"priority" validate:"omitempty,min=1,max=5"`
	RecipientID string                 `json:"recipientId" validate:"omitempty,max=128"`
}

type SupportMessageContent struct {
	Content string `json:"content" validate:"max=4000"`
}

func (d SupportMessageData) Text() string {
	if d.Content != "" {
		return d.Content
	}
	if d.Message != nil {
		return d.Message.Content
	}
	return ""
}

type CloseSupportChatData struct {
	ChatID string `json:"chatId" validate:"required,max=128"`
	Reason string `json:"reason" validate:"max=500"`
}

type SendNotificationData struct {
	UserID  string `json:"userId" validate:"required"`
	Type    string `json:"type" validate:"required,max=32"`
	Message string `json:"message" validate:"required,max=1000"`
	Time    string `json:"time" validate:"max=64"`
}

type BroadcastNotificationData struct {
	UserIDs []string `json:"userIds" validate:"required,min=1,max=1000,dive,required"`
	Type    string   `json:"type" validate:"required,max=32"`
	Message string   `json:"message" validate:"required,max=1000"`
}
