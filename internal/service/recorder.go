package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"github.com/aliskhannn/grammar-practice-bot/internal/domain/entities"
	"github.com/aliskhannn/grammar-practice-bot/internal/infra/postgres/repository"
)

// ErrStoreUnavailable is returned when a completion could not be committed
// after every retry of a transient failure. The caller may submit it again.
// Failures that would repeat on every attempt are returned without it.
var ErrStoreUnavailable = errors.New("progress store unavailable")

// RetryConfig controls how failed completion transactions are retried.
type RetryConfig struct {
	MaxAttempts int
	InitialWait time.Duration
	MaxWait     time.Duration
	Multiplier  float64
}

// DefaultRetryConfig returns sensible defaults.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 4,
		InitialWait: 100 * time.Millisecond,
		MaxWait:     2 * time.Second,
		Multiplier:  2.0,
	}
}

// Ledger bundles the repositories a completion writes through, all bound
// to the same transaction.
type Ledger struct {
	Progress    LedgerRepository
	Completions CompletionLog
	Items       ItemResolver
}

// LedgerFactory binds a Ledger to a transaction.
type LedgerFactory func(tx pgx.Tx) Ledger

// PostgresLedger returns a LedgerFactory backed by the Postgres repositories.
func PostgresLedger(curriculum *entities.Curriculum) LedgerFactory {
	return func(tx pgx.Tx) Ledger {
		return Ledger{
			Progress:    repository.NewProgressRepository(tx),
			Completions: repository.NewCompletionRepository(tx),
			Items:       repository.NewItemRepository(tx, curriculum),
		}
	}
}

// CompletionService records finished attempts in the progress ledger.
type CompletionService struct {
	tr       Transactor
	ledger   LedgerFactory
	retry    RetryConfig
	location *time.Location // civil date used for streaks
	now      func() time.Time
	logger   *zap.Logger
}

// NewCompletionService creates a CompletionService. A nil location means UTC.
func NewCompletionService(
	tr Transactor,
	ledger LedgerFactory,
	retry RetryConfig,
	location *time.Location,
	logger *zap.Logger,
) *CompletionService {
	if retry.MaxAttempts <= 0 {
		retry.MaxAttempts = 1
	}
	if retry.Multiplier < 1 {
		retry.Multiplier = 2.0
	}
	if location == nil {
		location = time.UTC
	}
	return &CompletionService{
		tr:       tr,
		ledger:   ledger,
		retry:    retry,
		location: location,
		now:      time.Now,
		logger:   logger,
	}
}

// Record stores a completion and updates section progress, totals and the
// daily streak in one transaction.
//
// An item unknown to the store is still recorded; the result is then
// flagged Partial and no section is credited.
func (s *CompletionService) Record(ctx context.Context, in entities.CompletionInput) (*entities.CompletionResult, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	var lastErr error
	for attempt := range s.retry.MaxAttempts {
		res, err := s.record(ctx, in)
		if err == nil {
			return res, nil
		}
		lastErr = err

		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		if !retryable(err) {
			s.logger.Error("record completion failed permanently",
				zap.Int64("user_id", in.UserID),
				zap.Int64("item_id", in.ItemID),
				zap.Error(err),
			)
			return nil, fmt.Errorf("record completion: %w", err)
		}

		s.logger.Warn("record completion failed",
			zap.Int64("user_id", in.UserID),
			zap.Int64("item_id", in.ItemID),
			zap.Int("attempt", attempt+1),
			zap.Error(err),
		)

		if attempt == s.retry.MaxAttempts-1 {
			break
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(s.backoff(attempt)):
		}
	}

	return nil, fmt.Errorf("%w: %w", ErrStoreUnavailable, lastErr)
}

func (s *CompletionService) record(ctx context.Context, in entities.CompletionInput) (*entities.CompletionResult, error) {
	var result *entities.CompletionResult

	err := s.tr.WithinTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		l := s.ledger(tx)
		now := s.now()

		// Serializes completions by the same user.
		agg, err := l.Progress.LockAggregate(ctx, in.UserID)
		if err != nil {
			return err
		}

		event := entities.NewCompletionEvent(in, now)
		if err := l.Completions.Insert(ctx, event); err != nil {
			return err
		}

		res := &entities.CompletionResult{EventID: event.ID}

		pos, err := s.resolve(ctx, l.Items, in.ItemID)
		switch {
		case errors.Is(err, repository.ErrItemNotFound):
			res.Partial = true
			s.logger.Info("completion recorded without section credit",
				zap.Int64("user_id", in.UserID),
				zap.Int64("item_id", in.ItemID),
			)
		case err != nil:
			return fmt.Errorf("resolve item: %w", err)
		default:
			before, after, err := l.Progress.AdvanceSection(ctx, in.UserID, pos.SectionID, pos.OrderNumber, in.CorrectCount, now)
			if err != nil {
				return err
			}
			res.SectionID = pos.SectionID
			res.LastCompletedOrder = after
			res.SectionAdvanced = pos.OrderNumber > before
		}

		agg.ApplyCompletion(in.CorrectCount, in.TotalCount, entities.CivilDate(now, s.location))
		if err := l.Progress.SaveAggregate(ctx, agg); err != nil {
			return err
		}
		res.StreakLength = agg.CurrentStreak

		result = res
		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

func (s *CompletionService) resolve(ctx context.Context, items ItemResolver, itemID int64) (*entities.ItemPosition, error) {
	if itemID == entities.FallbackItemID {
		return nil, repository.ErrItemNotFound
	}
	return items.GetPosition(ctx, itemID)
}

// retryable reports whether err may clear up on another attempt. Postgres
// errors are retried only for connection loss, serialization failures,
// deadlocks, lock timeouts and server resource or shutdown conditions;
// errors raised by the statement itself repeat on every attempt.
// Errors that never reached the server are treated as transient.
func retryable(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return true
	}
	if pgErr.Code == "55P03" { // lock_not_available
		return true
	}
	if len(pgErr.Code) < 2 {
		return false
	}
	switch pgErr.Code[:2] {
	case "08", "40", "53", "57":
		return true
	}
	return false
}

// backoff returns the wait before the next attempt with ±20% jitter.
func (s *CompletionService) backoff(attempt int) time.Duration {
	wait := float64(s.retry.InitialWait) * math.Pow(s.retry.Multiplier, float64(attempt))
	if s.retry.MaxWait > 0 && wait > float64(s.retry.MaxWait) {
		wait = float64(s.retry.MaxWait)
	}

	wait += wait * 0.2 * (2*rand.Float64() - 1)
	if wait < 0 {
		wait = 0
	}
	return time.Duration(wait)
}
