package publish

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/MSalah73/zero2prod/internal/config"
	"github.com/MSalah73/zero2prod/internal/database"
	"github.com/MSalah73/zero2prod/internal/idempotency"
	"github.com/MSalah73/zero2prod/internal/metrics"
	"github.com/MSalah73/zero2prod/internal/model"
)

func newTestService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_busy_timeout=5000", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	store := idempotency.NewStore(db, config.IdempotencyConfig{
		WaitTimeout:  300 * time.Millisecond,
		PollInterval: 20 * time.Millisecond,
	})
	return NewService(store, metrics.NewMetricsWith(prometheus.NewRegistry())), db
}

func seedConfirmedSubscribers(t *testing.T, db *gorm.DB, emails ...string) {
	t.Helper()
	for i, email := range emails {
		require.NoError(t, db.Create(&model.Subscription{
			ID:           fmt.Sprintf("sub-%d", i),
			Email:        email,
			Name:         "Subscriber",
			Status:       model.SubscriptionStatusConfirmed,
			SubscribedAt: time.Now().UTC(),
		}).Error)
	}
}

func sampleIssue() Issue {
	return Issue{Title: "T", HTMLContent: "H", TextContent: "X"}
}

func TestPublishCreatesIssueAndFansOutToConfirmedSubscribers(t *testing.T) {
	service, db := newTestService(t)
	seedConfirmedSubscribers(t, db, "one@example.com", "two@example.com", "three@example.com")

	response, err := service.Publish(context.Background(), "user-1", "abc123", sampleIssue())
	require.NoError(t, err)

	assert.Equal(t, 303, response.StatusCode)
	require.Len(t, response.Headers, 1)
	assert.Equal(t, idempotency.Header{Name: "Location", Value: "/admin/newsletters"}, response.Headers[0])

	var issues []model.NewsletterIssue
	require.NoError(t, db.Find(&issues).Error)
	require.Len(t, issues, 1)
	assert.Equal(t, "T", issues[0].Title)
	assert.Equal(t, "H", issues[0].HTMLContent)
	assert.Equal(t, "X", issues[0].TextContent)

	var tasks []model.DeliveryTask
	require.NoError(t, db.Find(&tasks).Error)
	assert.Len(t, tasks, 3)
}

func TestDuplicatePublishReplaysResponseWithoutNewSideEffects(t *testing.T) {
	service, db := newTestService(t)
	seedConfirmedSubscribers(t, db, "one@example.com", "two@example.com", "three@example.com")

	first, err := service.Publish(context.Background(), "user-1", "abc123", sampleIssue())
	require.NoError(t, err)

	second, err := service.Publish(context.Background(), "user-1", "abc123", sampleIssue())
	require.NoError(t, err)

	assert.Equal(t, first.StatusCode, second.StatusCode)
	assert.Equal(t, first.Headers, second.Headers)
	assert.Equal(t, first.Body, second.Body)

	// The business side effect happened exactly once.
	var issueCount, taskCount int64
	require.NoError(t, db.Model(&model.NewsletterIssue{}).Count(&issueCount).Error)
	require.NoError(t, db.Model(&model.DeliveryTask{}).Count(&taskCount).Error)
	assert.Equal(t, int64(1), issueCount)
	assert.Equal(t, int64(3), taskCount)
}

func TestSameKeyDifferentUsersPublishIndependently(t *testing.T) {
	service, db := newTestService(t)
	seedConfirmedSubscribers(t, db, "one@example.com")

	_, err := service.Publish(context.Background(), "user-1", "abc123", sampleIssue())
	require.NoError(t, err)
	_, err = service.Publish(context.Background(), "user-2", "abc123", sampleIssue())
	require.NoError(t, err)

	var issueCount int64
	require.NoError(t, db.Model(&model.NewsletterIssue{}).Count(&issueCount).Error)
	assert.Equal(t, int64(2), issueCount)
}

func TestInvalidKeyIsRejectedBeforeAnyWrite(t *testing.T) {
	service, db := newTestService(t)
	seedConfirmedSubscribers(t, db, "one@example.com")

	_, err := service.Publish(context.Background(), "user-1", strings.Repeat("x", 51), sampleIssue())
	assert.ErrorIs(t, err, idempotency.ErrInvalidKey)

	var recordCount, issueCount int64
	require.NoError(t, db.Model(&model.IdempotencyRecord{}).Count(&recordCount).Error)
	require.NoError(t, db.Model(&model.NewsletterIssue{}).Count(&issueCount).Error)
	assert.Zero(t, recordCount, "no processing record may exist for a rejected key")
	assert.Zero(t, issueCount)
}

func TestEmptyIssueFieldsAreRejectedBeforeAnyWrite(t *testing.T) {
	service, db := newTestService(t)

	for _, issue := range []Issue{
		{Title: "", HTMLContent: "H", TextContent: "X"},
		{Title: "T", HTMLContent: "", TextContent: "X"},
		{Title: "T", HTMLContent: "H", TextContent: ""},
	} {
		_, err := service.Publish(context.Background(), "user-1", "abc123", issue)
		assert.ErrorIs(t, err, ErrEmptyField)
	}

	var recordCount int64
	require.NoError(t, db.Model(&model.IdempotencyRecord{}).Count(&recordCount).Error)
	assert.Zero(t, recordCount)
}

func TestLateSubscribersAreNotIncludedInEarlierIssue(t *testing.T) {
	service, db := newTestService(t)
	seedConfirmedSubscribers(t, db, "early@example.com")

	_, err := service.Publish(context.Background(), "user-1", "abc123", sampleIssue())
	require.NoError(t, err)

	require.NoError(t, db.Create(&model.Subscription{
		ID:           "late",
		Email:        "late@example.com",
		Name:         "Late",
		Status:       model.SubscriptionStatusConfirmed,
		SubscribedAt: time.Now().UTC(),
	}).Error)

	var tasks []model.DeliveryTask
	require.NoError(t, db.Find(&tasks).Error)
	require.Len(t, tasks, 1)
	assert.Equal(t, "early@example.com", tasks[0].SubscriberEmail)
}
