package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"go.uber.org/zap"
)

// Store is the blob store contract served by localStorage
type Store interface {
	Save(ctx context.Context, name string, r io.Reader) error
	Open(name string) (*os.File, error)
	Delete(name string) error
}

// retryingStorage retries failed writes with exponential backoff
type retryingStorage struct {
	Store
	attempts       int
	initialBackoff time.Duration
	logger         *zap.Logger
}

// NewRetryingStorage wraps store so that Save is attempted up to attempts times.
// Backoff starts at initialBackoff and doubles after every failed attempt.
func NewRetryingStorage(store Store, attempts int, initialBackoff time.Duration, logger *zap.Logger) *retryingStorage {
	if attempts < 1 {
		attempts = 1
	}
	return &retryingStorage{
		Store:          store,
		attempts:       attempts,
		initialBackoff: initialBackoff,
		logger:         logger,
	}
}

// Save writes r under name. r must implement io.Seeker for a retry to be possible;
// a plain reader gets exactly one attempt.
func (s *retryingStorage) Save(ctx context.Context, name string, r io.Reader) error {
	seeker, canRewind := r.(io.Seeker)
	backoff := s.initialBackoff

	var err error
	for attempt := 1; attempt <= s.attempts; attempt++ {
		if attempt > 1 {
			if _, seekErr := seeker.Seek(0, io.SeekStart); seekErr != nil {
				return fmt.Errorf("failed to rewind upload: %w", seekErr)
			}
		}

		err = s.Store.Save(ctx, name, r)
		if err == nil || ctx.Err() != nil || !canRewind || errors.Is(err, ErrInvalidName) {
			return err
		}

		if attempt == s.attempts {
			break
		}

		s.logger.Warn("blob write failed, will retry",
			zap.String("name", name),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", backoff),
			zap.Error(err),
		)
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return ctx.Err()
		}
		backoff *= 2
	}

	return fmt.Errorf("blob write failed after %d attempts: %w", s.attempts, err)
}
