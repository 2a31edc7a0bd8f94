package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/aliskhannn/grammar-practice-bot/internal/domain/entities"
)

var fastRetry = RetryConfig{
	MaxAttempts: 3,
	InitialWait: time.Millisecond,
	MaxWait:     2 * time.Millisecond,
	Multiplier:  2,
}

func newTestRecorder(l *fakeLedger, now *time.Time) *CompletionService {
	s := NewCompletionService(l, l.factory(), fastRetry, time.UTC, zap.NewNop())
	if now != nil {
		s.now = func() time.Time { return *now }
	}
	return s
}

func sectionFiveItems() []entities.Item {
	return sectionItems(entities.LevelA1, "to-be", 5)
}

func TestRecordAdvancesSectionMonotonically(t *testing.T) {
	ledger := newFakeLedger(sectionFiveItems()...)
	now := time.Date(2026, time.April, 2, 10, 0, 0, 0, time.UTC)
	rec := newTestRecorder(ledger, &now)
	ctx := context.Background()

	// Watermark at 3 before the scenario starts.
	_, err := rec.Record(ctx, entities.CompletionInput{UserID: 1, ItemID: 3, CorrectCount: 1, TotalCount: 1})
	require.NoError(t, err)

	res, err := rec.Record(ctx, entities.CompletionInput{UserID: 1, ItemID: 4, CorrectCount: 1, TotalCount: 1})
	require.NoError(t, err)
	assert.True(t, res.SectionAdvanced)
	assert.Equal(t, 4, res.LastCompletedOrder)
	assert.Equal(t, "to-be", res.SectionID)
	assert.False(t, res.Partial)

	// Duplicate submission of the same completion.
	res, err = rec.Record(ctx, entities.CompletionInput{UserID: 1, ItemID: 4, CorrectCount: 1, TotalCount: 1})
	require.NoError(t, err)
	assert.False(t, res.SectionAdvanced)
	assert.Equal(t, 4, res.LastCompletedOrder)
	assert.Equal(t, 1, res.StreakLength)

	// An older item never regresses the watermark.
	res, err = rec.Record(ctx, entities.CompletionInput{UserID: 1, ItemID: 2, CorrectCount: 0, TotalCount: 1})
	require.NoError(t, err)
	assert.False(t, res.SectionAdvanced)
	assert.Equal(t, 4, res.LastCompletedOrder)

	p, ok := ledger.sectionProgress(1, "to-be")
	require.True(t, ok)
	assert.Equal(t, 4, p.LastCompletedOrder)
	assert.Equal(t, 4, p.Completions)

	agg := ledger.aggregate(1)
	assert.Equal(t, 4, agg.TotalCompleted)
	assert.Equal(t, 3, agg.TotalCorrect)
	assert.Equal(t, 4, agg.TotalAnswers)
	assert.Equal(t, 4, ledger.eventCount(), "every submission is logged")
}

func TestRecordUnknownItemTakesDegradedPath(t *testing.T) {
	ledger := newFakeLedger(sectionFiveItems()...)
	rec := newTestRecorder(ledger, nil)

	res, err := rec.Record(context.Background(), entities.CompletionInput{UserID: 1, ItemID: 999, CorrectCount: 2, TotalCount: 3})
	require.NoError(t, err)

	assert.True(t, res.Partial)
	assert.False(t, res.SectionAdvanced)
	assert.Empty(t, res.SectionID)
	assert.Equal(t, 1, res.StreakLength)

	agg := ledger.aggregate(1)
	assert.Equal(t, 1, agg.TotalCompleted)
	assert.Equal(t, 2, agg.TotalCorrect)
	assert.Equal(t, 1, ledger.eventCount())
}

func TestRecordFallbackItemIsPartial(t *testing.T) {
	ledger := newFakeLedger()
	rec := newTestRecorder(ledger, nil)

	res, err := rec.Record(context.Background(), entities.CompletionInput{UserID: 1, ItemID: entities.FallbackItemID, CorrectCount: 1, TotalCount: 1})
	require.NoError(t, err)
	assert.True(t, res.Partial)
	assert.Equal(t, 1, ledger.aggregate(1).TotalCompleted)
}

func TestRecordRejectsInvalidInput(t *testing.T) {
	ledger := newFakeLedger(sectionFiveItems()...)
	rec := newTestRecorder(ledger, nil)

	_, err := rec.Record(context.Background(), entities.CompletionInput{UserID: 1, ItemID: 1, CorrectCount: 3, TotalCount: 2})
	assert.ErrorIs(t, err, entities.ErrInvalidInput)
	assert.Zero(t, ledger.eventCount())
	assert.Zero(t, ledger.aggregate(1).TotalCompleted)
}

func TestRecordTransientErrorIsRetriedNotDegraded(t *testing.T) {
	ledger := newFakeLedger(sectionFiveItems()...)
	ledger.itemErr = errStoreDown
	ledger.itemErrN = 1
	rec := newTestRecorder(ledger, nil)

	res, err := rec.Record(context.Background(), entities.CompletionInput{UserID: 1, ItemID: 2, CorrectCount: 1, TotalCount: 1})
	require.NoError(t, err)

	assert.False(t, res.Partial)
	assert.True(t, res.SectionAdvanced)
	assert.Equal(t, 1, ledger.eventCount(), "the failed attempt was rolled back")
	assert.Equal(t, 1, ledger.aggregate(1).TotalCompleted)
}

func TestRecordGivesUpWithStoreUnavailable(t *testing.T) {
	ledger := newFakeLedger(sectionFiveItems()...)
	ledger.itemErr = errStoreDown
	ledger.itemErrN = -1
	rec := newTestRecorder(ledger, nil)

	_, err := rec.Record(context.Background(), entities.CompletionInput{UserID: 1, ItemID: 2, CorrectCount: 1, TotalCount: 1})
	require.ErrorIs(t, err, ErrStoreUnavailable)
	assert.ErrorIs(t, err, errStoreDown)

	assert.Zero(t, ledger.eventCount())
	_, ok := ledger.sectionProgress(1, "to-be")
	assert.False(t, ok)
}

func TestRecordContextCancelledIsNotRetried(t *testing.T) {
	ledger := newFakeLedger(sectionFiveItems()...)
	ledger.itemErr = context.Canceled
	ledger.itemErrN = -1
	rec := newTestRecorder(ledger, nil)

	_, err := rec.Record(context.Background(), entities.CompletionInput{UserID: 1, ItemID: 2, CorrectCount: 1, TotalCount: 1})
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, ErrStoreUnavailable)
	assert.Equal(t, 1, ledger.getCalls, "only one attempt")
}

func TestRecordConstraintViolationIsNotRetried(t *testing.T) {
	ledger := newFakeLedger(sectionFiveItems()...)
	ledger.itemErr = &pgconn.PgError{Code: "23514", Message: "new row violates check constraint"}
	ledger.itemErrN = -1
	rec := newTestRecorder(ledger, nil)

	_, err := rec.Record(context.Background(), entities.CompletionInput{UserID: 1, ItemID: 2, CorrectCount: 1, TotalCount: 1})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrStoreUnavailable)

	var pgErr *pgconn.PgError
	require.ErrorAs(t, err, &pgErr)
	assert.Equal(t, "23514", pgErr.Code)
	assert.Equal(t, 1, ledger.getCalls, "only one attempt")
	assert.Zero(t, ledger.eventCount())
}

func TestRecordSerializationFailureIsRetried(t *testing.T) {
	ledger := newFakeLedger(sectionFiveItems()...)
	ledger.itemErr = &pgconn.PgError{Code: "40001", Message: "could not serialize access"}
	ledger.itemErrN = 1
	rec := newTestRecorder(ledger, nil)

	res, err := rec.Record(context.Background(), entities.CompletionInput{UserID: 1, ItemID: 2, CorrectCount: 1, TotalCount: 1})
	require.NoError(t, err)
	assert.True(t, res.SectionAdvanced)
	assert.Equal(t, 2, ledger.getCalls)
}

func TestRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"connection refused", errStoreDown, true},
		{"connection failure", &pgconn.PgError{Code: "08006"}, true},
		{"deadlock", &pgconn.PgError{Code: "40P01"}, true},
		{"lock timeout", &pgconn.PgError{Code: "55P03"}, true},
		{"admin shutdown", &pgconn.PgError{Code: "57P01"}, true},
		{"too many connections", &pgconn.PgError{Code: "53300"}, true},
		{"check violation", &pgconn.PgError{Code: "23514"}, false},
		{"foreign key violation", &pgconn.PgError{Code: "23503"}, false},
		{"invalid text representation", &pgconn.PgError{Code: "22P02"}, false},
		{"undefined column", &pgconn.PgError{Code: "42703"}, false},
		{"wrapped", fmt.Errorf("advance section: %w", &pgconn.PgError{Code: "23505"}), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, retryable(tt.err))
		})
	}
}

func TestRecordStreakAcrossDays(t *testing.T) {
	ledger := newFakeLedger(sectionFiveItems()...)
	now := time.Date(2026, time.July, 1, 23, 50, 0, 0, time.UTC)
	rec := newTestRecorder(ledger, &now)
	ctx := context.Background()
	in := entities.CompletionInput{UserID: 1, ItemID: 1, CorrectCount: 1, TotalCount: 1}

	steps := []struct {
		advance time.Duration
		want    int
	}{
		{0, 1},
		{5 * time.Minute, 1},  // same day
		{15 * time.Minute, 2}, // past midnight
		{24 * time.Hour, 3},
		{72 * time.Hour, 1}, // gap
	}

	for _, st := range steps {
		now = now.Add(st.advance)
		res, err := rec.Record(ctx, in)
		require.NoError(t, err)
		assert.Equal(t, st.want, res.StreakLength, "at %s", now)
	}
	assert.Equal(t, 3, ledger.aggregate(1).LongestStreak)
}

func TestRecordStreakUsesConfiguredTimezone(t *testing.T) {
	ledger := newFakeLedger(sectionFiveItems()...)
	loc, err := entities.ParseTimezoneLocation("UTC+3")
	require.NoError(t, err)

	now := time.Date(2026, time.July, 1, 20, 30, 0, 0, time.UTC)
	rec := NewCompletionService(ledger, ledger.factory(), fastRetry, loc, zap.NewNop())
	rec.now = func() time.Time { return now }
	in := entities.CompletionInput{UserID: 1, ItemID: 1, CorrectCount: 1, TotalCount: 1}

	_, err = rec.Record(context.Background(), in)
	require.NoError(t, err)

	// 21:30 UTC is already July 2nd at UTC+3.
	now = now.Add(time.Hour)
	res, err := rec.Record(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, 2, res.StreakLength)
}

func TestRecordConcurrentSameUser(t *testing.T) {
	ledger := newFakeLedger(sectionFiveItems()...)
	rec := newTestRecorder(ledger, nil)

	var wg sync.WaitGroup
	for i := 1; i <= 5; i++ {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			_, err := rec.Record(context.Background(), entities.CompletionInput{UserID: 1, ItemID: id, CorrectCount: 1, TotalCount: 1})
			assert.NoError(t, err)
		}(int64(i))
	}
	wg.Wait()

	p, ok := ledger.sectionProgress(1, "to-be")
	require.True(t, ok)
	assert.Equal(t, 5, p.LastCompletedOrder)
	assert.Equal(t, 5, p.Completions)
	assert.Equal(t, 5, ledger.aggregate(1).TotalCompleted)
}

func TestBackoffStaysWithinBounds(t *testing.T) {
	rec := NewCompletionService(nil, nil, RetryConfig{
		MaxAttempts: 5,
		InitialWait: 100 * time.Millisecond,
		MaxWait:     time.Second,
		Multiplier:  2,
	}, nil, zap.NewNop())

	for attempt := range 6 {
		wait := rec.backoff(attempt)
		assert.GreaterOrEqual(t, wait, 80*time.Millisecond)
		assert.LessOrEqual(t, wait, 1200*time.Millisecond)
	}
}
