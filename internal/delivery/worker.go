package delivery

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/MSalah73/zero2prod/internal/config"
	"github.com/MSalah73/zero2prod/internal/domain"
	"github.com/MSalah73/zero2prod/internal/metrics"
	"github.com/MSalah73/zero2prod/internal/model"
)

// Sender is the outbound email collaborator.
type Sender interface {
	SendEmail(ctx context.Context, recipient domain.SubscriberEmail, subject, htmlContent, textContent string) error
}

type cycleOutcome int

const (
	queueEmpty cycleOutcome = iota
	taskCompleted
	cycleError
)

// Worker drains the delivery queue one task at a time. Any number of
// workers may run against the same store; they coordinate only through the
// task lease columns and row locks, never through shared process state. A
// worker that crashes mid-send leaves its lease behind, and the task
// becomes claimable again once the lease passes its TTL.
type Worker struct {
	db           *gorm.DB
	sender       Sender
	metrics      *metrics.Metrics
	id           string
	pollInterval time.Duration
	errorBackoff time.Duration
	leaseTTL     time.Duration
}

// NewWorker creates a delivery worker with a unique claim identity.
func NewWorker(db *gorm.DB, sender Sender, m *metrics.Metrics, cfg config.WorkerConfig) *Worker {
	return &Worker{
		db:           db,
		sender:       sender,
		metrics:      m,
		id:           "worker-" + uuid.NewString(),
		pollInterval: cfg.PollInterval,
		errorBackoff: cfg.ErrorBackoff,
		leaseTTL:     cfg.LeaseTTL,
	}
}

// ID returns the worker's claim identity.
func (w *Worker) ID() string {
	return w.id
}

// Run executes the worker loop until ctx is cancelled. An empty queue puts
// the worker to sleep for the poll interval; a transient failure backs off
// briefly; a completed task loops immediately.
func (w *Worker) Run(ctx context.Context) {
	logrus.Infof("Delivery worker %s started", w.id)
	for {
		select {
		case <-ctx.Done():
			logrus.Infof("Delivery worker %s stopped", w.id)
			return
		default:
		}

		var pause time.Duration
		switch w.executeOneTask(ctx) {
		case taskCompleted:
			continue
		case queueEmpty:
			w.sampleQueueDepth(ctx)
			pause = w.pollInterval
		case cycleError:
			pause = w.errorBackoff
		}

		select {
		case <-ctx.Done():
			logrus.Infof("Delivery worker %s stopped", w.id)
			return
		case <-time.After(pause):
		}
	}
}

// executeOneTask claims at most one task, attempts the send, and resolves
// the row: deleted on success or poison, lease released on transient
// failure so the next poll revisits it.
func (w *Worker) executeOneTask(ctx context.Context) cycleOutcome {
	task, err := w.claimTask(ctx)
	if err != nil {
		logrus.WithError(err).Error("Failed to claim delivery task")
		return cycleError
	}
	if task == nil {
		return queueEmpty
	}

	taskLog := logrus.WithFields(logrus.Fields{
		"newsletter_issue_id": task.NewsletterIssueID,
		"subscriber_email":    task.SubscriberEmail,
		"worker_id":           w.id,
	})

	issue, err := w.getIssue(ctx, task.NewsletterIssueID)
	if err != nil {
		taskLog.WithError(err).Error("Failed to load newsletter issue for task")
		w.releaseLease(ctx, task, taskLog)
		return cycleError
	}

	recipient, err := domain.ParseSubscriberEmail(task.SubscriberEmail)
	if err != nil {
		// Poison task: the stored address can never be sent to, so
		// retrying forever would wedge the queue. Drop it after logging.
		taskLog.WithError(err).Error("Skipping delivery task with invalid stored subscriber email")
		w.metrics.PoisonTasks.Inc()
		if err := w.deleteTask(ctx, task); err != nil {
			taskLog.WithError(err).Error("Failed to delete poison delivery task")
			return cycleError
		}
		return taskCompleted
	}

	w.metrics.SendAttempts.Inc()
	start := time.Now()
	err = w.sender.SendEmail(ctx, recipient, issue.Title, issue.HTMLContent, issue.TextContent)
	w.metrics.SendDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		// Transient failure: keep the row so the next poll cycle retries
		// the send, and release the lease so any worker can pick it up.
		taskLog.WithError(err).Error("Failed to deliver issue to subscriber")
		w.metrics.SendFailures.Inc()
		w.releaseLease(ctx, task, taskLog)
		return cycleError
	}

	if err := w.deleteTask(ctx, task); err != nil {
		taskLog.WithError(err).Error("Failed to delete completed delivery task")
		return cycleError
	}
	w.metrics.SendSuccesses.Inc()
	return taskCompleted
}

// claimTask selects one claimable task and takes its lease. A task is
// claimable when it has no lease or its lease is older than the TTL. On
// MySQL the select additionally skips rows locked by concurrent claim
// transactions so workers never serialize on each other; the guarded
// lease update is what arbitrates on stores without skip-locked support.
func (w *Worker) claimTask(ctx context.Context) (*model.DeliveryTask, error) {
	now := time.Now().UTC()
	staleBefore := now.Add(-w.leaseTTL)

	var claimed *model.DeliveryTask
	err := w.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		query := tx.
			Where("locked_at IS NULL OR locked_at <= ?", staleBefore).
			Order("created_at ASC").
			Limit(1)
		if tx.Dialector.Name() == "mysql" {
			query = query.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"})
		}

		var candidates []model.DeliveryTask
		if err := query.Find(&candidates).Error; err != nil {
			return err
		}
		if len(candidates) == 0 {
			return nil
		}

		candidate := candidates[0]
		result := tx.Model(&model.DeliveryTask{}).
			Where("newsletter_issue_id = ? AND subscriber_email = ?",
				candidate.NewsletterIssueID, candidate.SubscriberEmail).
			Where("locked_at IS NULL OR locked_at <= ?", staleBefore).
			Updates(map[string]interface{}{
				"locked_at": now,
				"locked_by": w.id,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			// Another worker won the lease between select and update.
			return nil
		}

		candidate.LockedAt = &now
		candidate.LockedBy = &w.id
		claimed = &candidate
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to claim delivery task: %w", err)
	}
	return claimed, nil
}

func (w *Worker) getIssue(ctx context.Context, issueID string) (*model.NewsletterIssue, error) {
	var issue model.NewsletterIssue
	if err := w.db.WithContext(ctx).First(&issue, "id = ?", issueID).Error; err != nil {
		return nil, fmt.Errorf("failed to load newsletter issue %s: %w", issueID, err)
	}
	return &issue, nil
}

func (w *Worker) deleteTask(ctx context.Context, task *model.DeliveryTask) error {
	result := w.db.WithContext(ctx).
		Where("newsletter_issue_id = ? AND subscriber_email = ?",
			task.NewsletterIssueID, task.SubscriberEmail).
		Delete(&model.DeliveryTask{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete delivery task: %w", result.Error)
	}
	return nil
}

func (w *Worker) releaseLease(ctx context.Context, task *model.DeliveryTask, taskLog *logrus.Entry) {
	err := w.db.WithContext(ctx).Model(&model.DeliveryTask{}).
		Where("newsletter_issue_id = ? AND subscriber_email = ? AND locked_by = ?",
			task.NewsletterIssueID, task.SubscriberEmail, w.id).
		Updates(map[string]interface{}{
			"locked_at": nil,
			"locked_by": nil,
		}).Error
	if err != nil {
		// The lease TTL still bounds how long the task stays invisible.
		taskLog.WithError(err).Warn("Failed to release delivery task lease")
	}
}

func (w *Worker) sampleQueueDepth(ctx context.Context) {
	var pending int64
	if err := w.db.WithContext(ctx).Model(&model.DeliveryTask{}).Count(&pending).Error; err != nil {
		return
	}
	w.metrics.PendingTasks.Set(float64(pending))
}
