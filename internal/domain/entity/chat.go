package entity

import "time"

// ProductChat is a buyer-seller conversation anchored to one listing.
type ProductChat struct {
	ID                 string            `json:"id" firestore:"id" gorm:"primaryKey;type:varchar(36)"`
	AdID               string            `json:"adId" firestore:"adId" gorm:"index;not null"`
	ParticipantUserIDs []string          `json:"participantUserIds" firestore:"participantUserIds" gorm:"-"`
	Participants       []ChatParticipant `json:"-" firestore:"-" gorm:"foreignKey:ChatID"`
	Messages           []Message         `json:"messages,omitempty" firestore:"-" gorm:"foreignKey:ChatID"`
	CreatedAt          time.Time         `json:"createdAt" firestore:"createdAt"`
	UpdatedAt          time.Time         `json:"updatedAt" firestore:"updatedAt"`
}

func (ProductChat) TableName() string { return "chats" }

// ChatParticipant carries the per-user unread counter of a product chat.
type ChatParticipant struct {
	ChatID      string `json:"chatId" firestore:"chatId" gorm:"primaryKey;type:varchar(36)"`
	UserID      string `json:"userId" firestore:"userId" gorm:"primaryKey;type:varchar(64)"`
	UnreadCount int    `json:"unreadCount" firestore:"unreadCount" gorm:"not null;default:0"`
}

func (ChatParticipant) TableName() string { return "chat_participants" }
