package entity

import "time"

type Agent struct {
	ID          string    `json:"id" firestore:"id" gorm:"primaryKey;type:varchar(64)"`
	IsOnline    bool      `json:"isOnline" firestore:"isOnline" gorm:"not null;default:false"`
	ActiveChats int       `json:"activeChats" firestore:"activeChats" gorm:"not null;default:0"`
	LastActive  time.Time `json:"lastActive" firestore:"lastActive"`
}

func (Agent) TableName() string { return "agents" }
