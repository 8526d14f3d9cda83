package entity

import "time"

const (
	NotificationTypeSupport       = "support"
	NotificationTypeMessage       = "message"
	NotificationTypeSystem        = "system"
	NotificationTypeAd            = "ad"
	NotificationTypePromotion     = "promotion"
	NotificationTypePayment       = "payment"
	NotificationTypePaymentFailed = "payment-failed"
)

// Notification is immutable after creation except for Read. Time is the
// human-relative label shown to the user ("just now", "2 hours ago").
type Notification struct {
	ID        string    `json:"id" firestore:"id" gorm:"primaryKey;type:varchar(36)"`
	UserID    string    `json:"userId" firestore:"userId" gorm:"index;not null"`
	Type      string    `json:"type" firestore:"type" gorm:"type:varchar(32);not null"`
	Message   string    `json:"message" firestore:"message" gorm:"type:text;not null"`
	Time      string    `json:"time" firestore:"time"`
	Read      bool      `json:"read" firestore:"read" gorm:"index;not null;default:false"`
	CreatedAt time.Time `json:"createdAt" firestore:"createdAt"`
}

func (Notification) TableName() string { return "notifications" }
