package idempotency

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/MSalah73/zero2prod/internal/config"
	"github.com/MSalah73/zero2prod/internal/model"
)

// ErrConflictInProgress is returned when a duplicate command is still being
// processed by another request and no saved response appeared within the
// configured wait timeout.
var ErrConflictInProgress = errors.New("a request with this idempotency key is still being processed")

// Store persists idempotency records and their response snapshots. All
// coordination between concurrent submissions happens through the unique
// (user_id, idempotency_key) index; the store keeps no in-process state.
type Store struct {
	db           *gorm.DB
	waitTimeout  time.Duration
	pollInterval time.Duration
}

// NewStore creates an idempotency store.
func NewStore(db *gorm.DB, cfg config.IdempotencyConfig) *Store {
	return &Store{
		db:           db,
		waitTimeout:  cfg.WaitTimeout,
		pollInterval: cfg.PollInterval,
	}
}

// Begin decides how an incoming command proceeds. Exactly one of the two
// return values is set on success:
//
//   - a non-nil transaction: the command won the insert race and must run
//     its business logic on that transaction, then finish with Save. The
//     bare record inserted here is the dedup barrier.
//   - a non-nil saved response: a previous submission already completed and
//     its snapshot must be returned verbatim, with no side effects.
//
// If a duplicate is still in flight, Begin polls for its completion up to
// the configured wait timeout and then fails with ErrConflictInProgress.
func (s *Store) Begin(ctx context.Context, userID string, key Key) (*gorm.DB, *SavedResponse, error) {
	deadline := time.Now().Add(s.waitTimeout)

	for {
		tx := s.db.WithContext(ctx).Begin()
		if tx.Error != nil {
			return nil, nil, fmt.Errorf("failed to open transaction: %w", tx.Error)
		}

		record := model.IdempotencyRecord{
			UserID:         userID,
			IdempotencyKey: key.String(),
			CreatedAt:      time.Now().UTC(),
		}
		err := tx.Create(&record).Error
		if err == nil {
			return tx, nil, nil
		}
		tx.Rollback()

		if !errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, nil, fmt.Errorf("failed to insert idempotency record: %w", err)
		}

		saved, vanished, err := s.awaitSavedResponse(ctx, userID, key, deadline)
		if err != nil {
			return nil, nil, err
		}
		if saved != nil {
			return nil, saved, nil
		}
		if !vanished {
			return nil, nil, ErrConflictInProgress
		}
		// The competing submission rolled back and its record is gone;
		// take another shot at the insert.
		if time.Now().After(deadline) {
			return nil, nil, ErrConflictInProgress
		}
	}
}

// awaitSavedResponse polls the existing record until it completes, vanishes,
// or the deadline passes.
func (s *Store) awaitSavedResponse(ctx context.Context, userID string, key Key, deadline time.Time) (*SavedResponse, bool, error) {
	for {
		saved, found, err := s.getSavedResponse(ctx, userID, key)
		if err != nil {
			return nil, false, err
		}
		if saved != nil {
			return saved, false, nil
		}
		if !found {
			return nil, true, nil
		}
		if time.Now().After(deadline) {
			return nil, false, nil
		}
		select {
		case <-ctx.Done():
			return nil, false, ctx.Err()
		case <-time.After(s.pollInterval):
		}
	}
}

// getSavedResponse loads the record for (userID, key). The first return is
// non-nil only when processing completed; found reports whether the record
// exists at all.
func (s *Store) getSavedResponse(ctx context.Context, userID string, key Key) (*SavedResponse, bool, error) {
	var record model.IdempotencyRecord
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND idempotency_key = ?", userID, key.String()).
		First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read idempotency record: %w", err)
	}
	if !record.Completed() {
		return nil, true, nil
	}

	headers, err := decodeHeaders(record.ResponseHeaders)
	if err != nil {
		return nil, true, err
	}
	return &SavedResponse{
		StatusCode: *record.ResponseStatusCode,
		Headers:    headers,
		Body:       record.ResponseBody,
	}, true, nil
}

// Save stores the computed response snapshot on the record inserted by
// Begin and commits the supplied transaction, making the business writes
// and the replayable response durable as one atomic unit. The returned
// response is rebuilt from the stored snapshot so the first caller sees
// exactly what a duplicate will later be served.
func (s *Store) Save(ctx context.Context, tx *gorm.DB, userID string, key Key, response SavedResponse) (SavedResponse, error) {
	encodedHeaders, err := encodeHeaders(response.Headers)
	if err != nil {
		tx.Rollback()
		return SavedResponse{}, err
	}

	result := tx.Model(&model.IdempotencyRecord{}).
		Where("user_id = ? AND idempotency_key = ?", userID, key.String()).
		Updates(map[string]interface{}{
			"response_status_code": response.StatusCode,
			"response_headers":     encodedHeaders,
			"response_body":        response.Body,
		})
	if result.Error != nil {
		tx.Rollback()
		return SavedResponse{}, fmt.Errorf("failed to save response snapshot: %w", result.Error)
	}
	if result.RowsAffected != 1 {
		tx.Rollback()
		return SavedResponse{}, fmt.Errorf("idempotency record for user %s is missing at save time", userID)
	}

	if err := tx.Commit().Error; err != nil {
		return SavedResponse{}, fmt.Errorf("failed to commit processed command: %w", err)
	}

	headers, err := decodeHeaders(encodedHeaders)
	if err != nil {
		return SavedResponse{}, err
	}
	return SavedResponse{
		StatusCode: response.StatusCode,
		Headers:    headers,
		Body:       response.Body,
	}, nil
}

// Sweep deletes completed records older than the retention window. It
// returns the number of rows removed.
func (s *Store) Sweep(ctx context.Context, retention time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-retention)
	result := s.db.WithContext(ctx).
		Where("created_at < ?", cutoff).
		Delete(&model.IdempotencyRecord{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to sweep idempotency records: %w", result.Error)
	}
	return result.RowsAffected, nil
}
