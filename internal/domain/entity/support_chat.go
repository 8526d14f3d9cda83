package entity

import "time"

type SupportStatus string

const (
	SupportStatusPending SupportStatus = "pending"
	SupportStatusActive  SupportStatus = "active"
	SupportStatusClosed  SupportStatus = "closed"
)

// Rank orders statuses along the only legal direction of travel.
func (s SupportStatus) Rank() int {
	switch s {
	case SupportStatusPending:
		return 0
	case SupportStatusActive:
		return 1
	case SupportStatusClosed:
		return 2
	}
	return -1
}

type SenderType string

const (
	SenderTypeUser  SenderType = "user"
	SenderTypeAgent SenderType = "agent"
)

// SenderTypeFor maps a connection role onto the sender type stored with a
// support message. Admins write as users.
func SenderTypeFor(role Role) SenderType {
	if role == RoleAgent {
		return SenderTypeAgent
	}
	return SenderTypeUser
}

// SupportChat is a user-to-agent conversation. AgentID is nil exactly while
// the chat is pending.
type SupportChat struct {
	ID        string           `json:"id" firestore:"id" gorm:"primaryKey;type:varchar(36)"`
	UserID    string           `json:"userId" firestore:"userId" gorm:"index;not null"`
	AgentID   *string          `json:"agentId" firestore:"agentId" gorm:"index"`
	Status    SupportStatus    `json:"status" firestore:"status" gorm:"type:varchar(16);index;not null"`
	Category  string           `json:"category" firestore:"category"`
	Priority  int              `json:"priority" firestore:"priority"`
	Messages  []SupportMessage `json:"messages,omitempty" firestore:"-" gorm:"foreignKey:ChatID"`
	CreatedAt time.Time        `json:"createdAt" firestore:"createdAt"`
	UpdatedAt time.Time        `json:"updatedAt" firestore:"updatedAt"`
}

func (SupportChat) TableName() string { return "support_chats" }

func (c *SupportChat) IsAssignedTo(agentID string) bool {
	return c.AgentID != nil && *c.AgentID == agentID
}

func (c *SupportChat) AssignedAgent() string {
	if c.AgentID == nil {
		return ""
	}
	return *c.AgentID
}

type SupportMessage struct {
	ID         string     `json:"id" firestore:"id" gorm:"primaryKey;type:varchar(36)"`
	ChatID     string     `json:"chatId" firestore:"chatId" gorm:"index;not null;type:varchar(36)"`
	Content    string     `json:"content" firestore:"content" gorm:"type:text;not null"`
	SenderID   string     `json:"senderId" firestore:"senderId" gorm:"not null"`
	SenderType SenderType `json:"senderType" firestore:"senderType" gorm:"type:varchar(16);not null"`
	Read       bool       `json:"read" firestore:"read" gorm:"not null;default:false"`
	CreatedAt  time.Time  `json:"createdAt" firestore:"createdAt"`
}

func (SupportMessage) TableName() string { return "support_messages" }
