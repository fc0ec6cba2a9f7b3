package model

import "time"

// NewsletterIssue represents one published newsletter. Rows are immutable
// after creation.
type NewsletterIssue struct {
	ID          string    `json:"id" gorm:"type:varchar(36);primaryKey"`
	Title       string    `json:"title" gorm:"type:varchar(255);not null"`
	HTMLContent string    `json:"html_content" gorm:"type:text;not null"`
	TextContent string    `json:"text_content" gorm:"type:text;not null"`
	PublishedAt time.Time `json:"published_at"`
}

// TableName specifies the table name for NewsletterIssue
func (NewsletterIssue) TableName() string {
	return "newsletter_issues"
}
