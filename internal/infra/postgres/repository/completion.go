package repository

import (
	"context"
	"fmt"

	"github.com/aliskhannn/grammar-practice-bot/internal/domain/entities"
	"github.com/aliskhannn/grammar-practice-bot/internal/infra/postgres"
)

// CompletionRepository appends completion events. Events are never updated.
type CompletionRepository struct {
	db postgres.DBTX
}

func NewCompletionRepository(db postgres.DBTX) *CompletionRepository {
	return &CompletionRepository{db: db}
}

// Insert stores a completion event.
func (r *CompletionRepository) Insert(ctx context.Context, e *entities.CompletionEvent) error {
	query := `
		INSERT INTO completion_events (
			id, user_id, item_id, correct_count, total_count, time_spent_ms, completed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.db.Exec(ctx, query,
		e.ID,
		e.UserID,
		e.ItemID,
		e.CorrectCount,
		e.TotalCount,
		e.TimeSpent.Milliseconds(),
		e.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("insert completion event: %w", err)
	}

	return nil
}
