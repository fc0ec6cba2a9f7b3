package delivery

import (
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/MSalah73/zero2prod/internal/model"
)

// Enqueue creates one delivery task per confirmed subscriber for the given
// issue, inside the caller's transaction. The subscriber set is a snapshot
// taken by this query; subscribers confirmed afterwards are not added to
// this issue. Returns the number of tasks enqueued.
func Enqueue(tx *gorm.DB, issueID string) (int64, error) {
	result := tx.Exec(`
		INSERT INTO issue_delivery_queue (newsletter_issue_id, subscriber_email, created_at)
		SELECT ?, email, ?
		FROM subscriptions
		WHERE status = ?`,
		issueID, time.Now().UTC(), model.SubscriptionStatusConfirmed,
	)
	if result.Error != nil {
		return 0, fmt.Errorf("failed to enqueue delivery tasks: %w", result.Error)
	}
	return result.RowsAffected, nil
}
