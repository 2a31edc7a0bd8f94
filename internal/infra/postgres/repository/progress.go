package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/aliskhannn/grammar-practice-bot/internal/domain/entities"
	"github.com/aliskhannn/grammar-practice-bot/internal/infra/postgres"
)

var (
	ErrProgressNotFound  = errors.New("progress not found")
	ErrAggregateNotFound = errors.New("aggregate not found")
)

// ProgressRepository is the progress ledger: per-section watermarks and
// per-user aggregates.
type ProgressRepository struct {
	db postgres.DBTX
}

// NewProgressRepository creates a new ProgressRepository.
func NewProgressRepository(db postgres.DBTX) *ProgressRepository {
	return &ProgressRepository{db: db}
}

const aggregateColumns = `user_id, total_completed, total_correct, total_answers,
	current_streak, longest_streak, last_streak_date, updated_at`

// LockAggregate creates the user's aggregate row if needed and locks it for
// the rest of the transaction. Concurrent completions by the same user wait
// here.
func (r *ProgressRepository) LockAggregate(ctx context.Context, userID int64) (*entities.UserAggregate, error) {
	if _, err := r.db.Exec(ctx, `
		INSERT INTO user_aggregates (user_id) VALUES ($1)
		ON CONFLICT (user_id) DO NOTHING
	`, userID); err != nil {
		return nil, fmt.Errorf("ensure aggregate: %w", err)
	}

	query := `SELECT ` + aggregateColumns + ` FROM user_aggregates WHERE user_id = $1 FOR UPDATE`

	a, err := scanAggregate(r.db.QueryRow(ctx, query, userID))
	if err != nil {
		return nil, fmt.Errorf("lock aggregate: %w", err)
	}

	return a, nil
}

// GetAggregate reads the user's aggregate without locking.
func (r *ProgressRepository) GetAggregate(ctx context.Context, userID int64) (*entities.UserAggregate, error) {
	query := `SELECT ` + aggregateColumns + ` FROM user_aggregates WHERE user_id = $1`

	a, err := scanAggregate(r.db.QueryRow(ctx, query, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAggregateNotFound
		}
		return nil, fmt.Errorf("get aggregate: %w", err)
	}

	return a, nil
}

// SaveAggregate writes the aggregate's totals and streak.
func (r *ProgressRepository) SaveAggregate(ctx context.Context, a *entities.UserAggregate) error {
	query := `
		UPDATE user_aggregates SET
			total_completed = $2,
			total_correct = $3,
			total_answers = $4,
			current_streak = $5,
			longest_streak = $6,
			last_streak_date = $7,
			updated_at = NOW()
		WHERE user_id = $1
	`

	result, err := r.db.Exec(ctx, query,
		a.UserID,
		a.TotalCompleted,
		a.TotalCorrect,
		a.TotalAnswers,
		a.CurrentStreak,
		a.LongestStreak,
		a.LastStreakDate,
	)
	if err != nil {
		return fmt.Errorf("save aggregate: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrAggregateNotFound
	}

	return nil
}

// AdvanceSection credits one completion of an item with the given order
// number. The watermark only moves forward. It returns the watermark before
// and after the update.
func (r *ProgressRepository) AdvanceSection(
	ctx context.Context,
	userID int64,
	sectionID string,
	orderNumber, correct int,
	at time.Time,
) (before, after int, err error) {
	query := `
		WITH prev AS (
			SELECT last_completed_order
			FROM user_section_progress
			WHERE user_id = $1 AND section_id = $2
		)
		INSERT INTO user_section_progress (
			user_id, section_id, last_completed_order, completions, correct_count, last_completed_at
		) VALUES ($1, $2, $3, 1, $4, $5)
		ON CONFLICT (user_id, section_id) DO UPDATE SET
			last_completed_order = GREATEST(user_section_progress.last_completed_order, EXCLUDED.last_completed_order),
			completions = user_section_progress.completions + 1,
			correct_count = user_section_progress.correct_count + EXCLUDED.correct_count,
			last_completed_at = EXCLUDED.last_completed_at
		RETURNING COALESCE((SELECT last_completed_order FROM prev), 0), last_completed_order
	`

	err = r.db.QueryRow(ctx, query, userID, sectionID, orderNumber, correct, at).Scan(&before, &after)
	if err != nil {
		return 0, 0, fmt.Errorf("advance section: %w", err)
	}

	return before, after, nil
}

// GetSectionProgress returns the user's progress in one section.
func (r *ProgressRepository) GetSectionProgress(ctx context.Context, userID int64, sectionID string) (*entities.UserProgress, error) {
	query := `
		SELECT user_id, section_id, last_completed_order, completions, correct_count, last_completed_at
		FROM user_section_progress
		WHERE user_id = $1 AND section_id = $2
	`

	p, err := scanProgress(r.db.QueryRow(ctx, query, userID, sectionID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProgressNotFound
		}
		return nil, fmt.Errorf("get section progress: %w", err)
	}

	return p, nil
}

// GetByUserID returns every section the user has progress in.
func (r *ProgressRepository) GetByUserID(ctx context.Context, userID int64) ([]*entities.UserProgress, error) {
	query := `
		SELECT user_id, section_id, last_completed_order, completions, correct_count, last_completed_at
		FROM user_section_progress
		WHERE user_id = $1
		ORDER BY section_id
	`

	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("get by user id: %w", err)
	}
	defer rows.Close()

	var progress []*entities.UserProgress
	for rows.Next() {
		p, err := scanProgress(rows)
		if err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		progress = append(progress, p)
	}

	return progress, rows.Err()
}

func scanProgress(row pgx.Row) (*entities.UserProgress, error) {
	var p entities.UserProgress
	err := row.Scan(
		&p.UserID,
		&p.SectionID,
		&p.LastCompletedOrder,
		&p.Completions,
		&p.CorrectCount,
		&p.LastCompletedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func scanAggregate(row pgx.Row) (*entities.UserAggregate, error) {
	var a entities.UserAggregate
	err := row.Scan(
		&a.UserID,
		&a.TotalCompleted,
		&a.TotalCorrect,
		&a.TotalAnswers,
		&a.CurrentStreak,
		&a.LongestStreak,
		&a.LastStreakDate,
		&a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if a.LastStreakDate != nil {
		d := entities.DateOf(*a.LastStreakDate)
		a.LastStreakDate = &d
	}
	return &a, nil
}
