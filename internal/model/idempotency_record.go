package model

import "time"

// IdempotencyRecord deduplicates publish commands per (user, key). A row is
// inserted with null response columns the moment processing starts; the
// unique index makes that insert the dedup barrier. The response columns
// are filled exactly once, in the same transaction as the business writes,
// and a populated row is replayed verbatim for duplicate submissions.
type IdempotencyRecord struct {
	ID                 uint      `json:"id" gorm:"primaryKey;autoIncrement"`
	UserID             string    `json:"user_id" gorm:"type:varchar(36);not null;uniqueIndex:idx_idempotency_user_key"`
	IdempotencyKey     string    `json:"idempotency_key" gorm:"type:varchar(50);not null;uniqueIndex:idx_idempotency_user_key"`
	ResponseStatusCode *int      `json:"response_status_code"`
	ResponseHeaders    []byte    `json:"-" gorm:"type:blob"`
	ResponseBody       []byte    `json:"-" gorm:"type:blob"`
	CreatedAt          time.Time `json:"created_at" gorm:"index"`
}

// TableName specifies the table name for IdempotencyRecord
func (IdempotencyRecord) TableName() string {
	return "idempotency"
}

// Completed reports whether processing finished and a response snapshot is
// available for replay. Null response columns mean the command is still in
// flight.
func (r *IdempotencyRecord) Completed() bool {
	return r.ResponseStatusCode != nil
}
