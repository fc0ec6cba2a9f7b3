package model

import "time"

// DeliveryTask is one pending (issue, recipient) send obligation. Presence
// of the row means the send is still owed; there is no status column. The
// composite primary key guarantees at most one pending task per recipient
// per issue. LockedAt/LockedBy form a lease taken by a worker while it
// attempts the send; a lease older than the configured TTL is considered
// abandoned and the task becomes claimable again.
type DeliveryTask struct {
	NewsletterIssueID string     `json:"newsletter_issue_id" gorm:"type:varchar(36);primaryKey"`
	SubscriberEmail   string     `json:"subscriber_email" gorm:"type:varchar(255);primaryKey"`
	LockedAt          *time.Time `json:"locked_at" gorm:"index"`
	LockedBy          *string    `json:"locked_by" gorm:"type:varchar(100)"`
	CreatedAt         time.Time  `json:"created_at"`
}

// TableName specifies the table name for DeliveryTask
func (DeliveryTask) TableName() string {
	return "issue_delivery_queue"
}
