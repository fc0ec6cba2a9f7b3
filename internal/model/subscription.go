package model

import "time"

// Subscription statuses. Only confirmed subscribers receive newsletter
// issues; the registration/confirmation flow that moves a row to
// confirmed lives outside this service.
const (
	SubscriptionStatusPending   = "pending_confirmation"
	SubscriptionStatusConfirmed = "confirmed"
)

// Subscription represents a newsletter subscriber.
type Subscription struct {
	ID           string    `json:"id" gorm:"type:varchar(36);primaryKey"`
	Email        string    `json:"email" gorm:"type:varchar(255);not null;uniqueIndex"`
	Name         string    `json:"name" gorm:"type:varchar(255);not null"`
	Status       string    `json:"status" gorm:"type:varchar(50);not null;index"`
	SubscribedAt time.Time `json:"subscribed_at"`
}

// TableName specifies the table name for Subscription
func (Subscription) TableName() string {
	return "subscriptions"
}
