package repository

import (
	"context"
	"fmt"

	"github.com/aliskhannn/grammar-practice-bot/internal/infra/postgres"
)

// ReportRepository records learner reports about faulty items.
type ReportRepository struct {
	db postgres.DBTX
}

func NewReportRepository(db postgres.DBTX) *ReportRepository {
	return &ReportRepository{db: db}
}

// Create stores a report.
func (r *ReportRepository) Create(ctx context.Context, userID, itemID int64, reason string) error {
	query := `
		INSERT INTO item_reports (item_id, user_id, reason, created_at)
		VALUES ($1, $2, $3, NOW())
	`

	if _, err := r.db.Exec(ctx, query, itemID, userID, reason); err != nil {
		return fmt.Errorf("create item report: %w", err)
	}

	return nil
}
