package publish

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/MSalah73/zero2prod/internal/delivery"
	"github.com/MSalah73/zero2prod/internal/idempotency"
	"github.com/MSalah73/zero2prod/internal/metrics"
	"github.com/MSalah73/zero2prod/internal/model"
)

// ErrEmptyField marks a publish command with a blank title or body. This
// is a client input error, raised before any transaction is opened.
var ErrEmptyField = errors.New("newsletter issue fields cannot be empty")

// Issue is the content of a publish command.
type Issue struct {
	Title       string
	HTMLContent string
	TextContent string
}

func (i Issue) validate() error {
	if i.Title == "" || i.HTMLContent == "" || i.TextContent == "" {
		return ErrEmptyField
	}
	return nil
}

// Service publishes newsletter issues exactly once per (user, key). It is
// the idempotency guard around the business writes: the issue insert, the
// delivery fan-out, and the response snapshot all commit as one unit, so a
// duplicate submission either replays the finished response or finds
// nothing at all.
type Service struct {
	store   *idempotency.Store
	metrics *metrics.Metrics
}

// NewService creates a publish service.
func NewService(store *idempotency.Store, m *metrics.Metrics) *Service {
	return &Service{store: store, metrics: m}
}

// Publish runs one publish command. The raw key is validated first; a
// saved response from an earlier submission is returned verbatim without
// re-running any business logic or enqueueing anything.
func (s *Service) Publish(ctx context.Context, userID, rawKey string, issue Issue) (idempotency.SavedResponse, error) {
	key, err := idempotency.NewKey(rawKey)
	if err != nil {
		return idempotency.SavedResponse{}, err
	}
	if err := issue.validate(); err != nil {
		return idempotency.SavedResponse{}, err
	}

	tx, saved, err := s.store.Begin(ctx, userID, key)
	if err != nil {
		return idempotency.SavedResponse{}, err
	}
	if saved != nil {
		s.metrics.ReplayCount.Inc()
		logrus.WithFields(logrus.Fields{
			"user_id":         userID,
			"idempotency_key": key.String(),
		}).Info("Returning saved response for duplicate publish command")
		return *saved, nil
	}

	record := model.NewsletterIssue{
		ID:          uuid.NewString(),
		Title:       issue.Title,
		HTMLContent: issue.HTMLContent,
		TextContent: issue.TextContent,
		PublishedAt: time.Now().UTC(),
	}
	if err := tx.Create(&record).Error; err != nil {
		tx.Rollback()
		return idempotency.SavedResponse{}, fmt.Errorf("failed to store newsletter issue: %w", err)
	}

	enqueued, err := delivery.Enqueue(tx, record.ID)
	if err != nil {
		tx.Rollback()
		return idempotency.SavedResponse{}, err
	}

	response, err := s.store.Save(ctx, tx, userID, key, seeOtherResponse("/admin/newsletters"))
	if err != nil {
		return idempotency.SavedResponse{}, err
	}

	s.metrics.PublishCount.Inc()
	logrus.WithFields(logrus.Fields{
		"newsletter_issue_id": record.ID,
		"enqueued_tasks":      enqueued,
	}).Info("Newsletter issue published")
	return response, nil
}

// seeOtherResponse is the redirect a browser-facing publish form expects.
func seeOtherResponse(location string) idempotency.SavedResponse {
	return idempotency.SavedResponse{
		StatusCode: 303,
		Headers:    []idempotency.Header{{Name: "Location", Value: location}},
		Body:       nil,
	}
}
