package entity

import "time"

// Message is a product chat message. Only Read changes after creation.
type Message struct {
	ID        string    `json:"id" firestore:"id" gorm:"primaryKey;type:varchar(36)"`
	ChatID    string    `json:"chatId" firestore:"chatId" gorm:"index;not null;type:varchar(36)"`
	SenderID  string    `json:"senderId" firestore:"senderId" gorm:"not null"`
	Content   string    `json:"content" firestore:"content" gorm:"type:text;not null"`
	Read      bool      `json:"read" firestore:"read" gorm:"not null;default:false"`
	CreatedAt time.Time `json:"createdAt" firestore:"createdAt"`
}

func (Message) TableName() string { return "messages" }
