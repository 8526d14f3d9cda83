package usecase

// Outbound event names.
const (
	EventError                     = "error"
	EventMessageReceived           = "message_received"
	EventTypingStarted             = "typing_started"
	EventTypingStopped             = "typing_stopped"
	EventSupportChatCreated        = "support_chat_created"
	EventNewSupportRequest         = "new_support_request"
	EventNewSupportChat            = "new_support_chat"
	EventNoAgentsAvailable         = "no_agents_available"
	EventSupportMessage            = "support_message"
	EventAgentAccepted             = "agent_accepted"
	EventSupportChatAssigned       = "support_chat_assigned"
	EventSupportChatClosed         = "support_chat_closed"
	EventNotificationReceived      = "notification_received"
	EventAgentStatusChange         = "agent_status_change"
	EventAgentDisconnectedFromChat = "agent_disconnected_from_chat"
)

// ErrorPayload is the body of a scoped error event.
type ErrorPayload struct {
	Message string `json:"message"`
}

type TypingPayload struct {
	ChatID string `json:"chatId"`
	UserID string `json:"userId"`
}

type NewSupportRequestPayload struct {
	UserID    string `json:"userId"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

type NoAgentsPayload struct {
	Message string `json:"message"`
}

type SupportMessagePayload struct {
	ChatID     string      `json:"chatId"`
	Message    interface{} `json:"message"`
	SenderID   string      `json:"senderId"`
	SenderType string      `json:"senderType"`
}

type AgentAcceptedPayload struct {
	ChatID    string      `json:"chatId"`
	AgentID   string      `json:"agentId"`
	AgentName string      `json:"agentName"`
	Message   interface{} `json:"message"`
}

type SupportChatAssignedPayload struct {
	ChatID  string `json:"chatId"`
	AgentID string `json:"agentId"`
	UserID  string `json:"userId"`
}

type SupportChatClosedPayload struct {
	ChatID       string      `json:"chatId"`
	ClosedBy     string      `json:"closedBy"`
	ClosedByRole string      `json:"closedByRole"`
	Reason       string      `json:"reason,omitempty"`
	Message      interface{} `json:"message,omitempty"`
}

type AgentStatusPayload struct {
	AgentID  string `json:"agentId"`
	IsOnline bool   `json:"isOnline"`
}

type AgentChatPayload struct {
	ChatID  string `json:"chatId"`
	AgentID string `json:"agentId"`
}
