package delivery

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/MSalah73/zero2prod/internal/config"
	"github.com/MSalah73/zero2prod/internal/database"
	"github.com/MSalah73/zero2prod/internal/domain"
	"github.com/MSalah73/zero2prod/internal/metrics"
	"github.com/MSalah73/zero2prod/internal/model"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_busy_timeout=5000", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	return db
}

func newTestWorker(t *testing.T, db *gorm.DB, sender Sender) *Worker {
	t.Helper()
	return NewWorker(db, sender, metrics.NewMetricsWith(prometheus.NewRegistry()), config.WorkerConfig{
		Count:        1,
		PollInterval: 10 * time.Millisecond,
		ErrorBackoff: time.Millisecond,
		LeaseTTL:     5 * time.Minute,
	})
}

func seedIssue(t *testing.T, db *gorm.DB, id string) {
	t.Helper()
	require.NoError(t, db.Create(&model.NewsletterIssue{
		ID:          id,
		Title:       "T",
		HTMLContent: "H",
		TextContent: "X",
		PublishedAt: time.Now().UTC(),
	}).Error)
}

func seedTask(t *testing.T, db *gorm.DB, issueID, email string) {
	t.Helper()
	require.NoError(t, db.Create(&model.DeliveryTask{
		NewsletterIssueID: issueID,
		SubscriberEmail:   email,
		CreatedAt:         time.Now().UTC(),
	}).Error)
}

func pendingTasks(t *testing.T, db *gorm.DB) []model.DeliveryTask {
	t.Helper()
	var tasks []model.DeliveryTask
	require.NoError(t, db.Find(&tasks).Error)
	return tasks
}

// countingSender records one send per recipient and never fails.
type countingSender struct {
	mu    sync.Mutex
	sends map[string]int
}

func newCountingSender() *countingSender {
	return &countingSender{sends: make(map[string]int)}
}

func (s *countingSender) SendEmail(_ context.Context, recipient domain.SubscriberEmail, _, _, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sends[recipient.String()]++
	return nil
}

func (s *countingSender) total() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0
	for _, n := range s.sends {
		total += n
	}
	return total
}

// failingSender fails every call.
type failingSender struct {
	mu       sync.Mutex
	attempts int
}

func (s *failingSender) SendEmail(context.Context, domain.SubscriberEmail, string, string, string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempts++
	return fmt.Errorf("email API returned status 500")
}

func (s *failingSender) attemptCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attempts
}
