package service

import (
	"context"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/aliskhannn/grammar-practice-bot/internal/domain/entities"
	"github.com/aliskhannn/grammar-practice-bot/internal/infra/postgres/repository"
)

// ReportService handles learner reports about faulty items. A reported item
// is deactivated, which hides it from every future fetch.
type ReportService struct {
	tr     Transactor
	logger *zap.Logger
}

func NewReportService(tr Transactor, logger *zap.Logger) *ReportService {
	return &ReportService{tr: tr, logger: logger}
}

func (s *ReportService) Report(ctx context.Context, userID, itemID int64, reason string) error {
	if itemID == entities.FallbackItemID {
		return repository.ErrItemNotFound
	}

	err := s.tr.WithinTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		itemRepo := repository.NewItemRepository(tx, nil)
		reportRepo := repository.NewReportRepository(tx)

		if err := itemRepo.Deactivate(ctx, itemID); err != nil {
			return err
		}
		return reportRepo.Create(ctx, userID, itemID, reason)
	})
	if err != nil {
		return err
	}

	s.logger.Info("item reported and deactivated",
		zap.Int64("user_id", userID),
		zap.Int64("item_id", itemID),
		zap.String("reason", reason),
	)
	return nil
}
