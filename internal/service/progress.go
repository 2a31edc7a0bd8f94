package service

import (
	"context"
	"errors"

	"github.com/aliskhannn/grammar-practice-bot/internal/domain/entities"
	"github.com/aliskhannn/grammar-practice-bot/internal/infra/postgres/repository"
)

type ProgressService struct {
	repository ProgressReader
	items      ItemCounter
	curriculum *entities.Curriculum
}

func NewProgressService(repository ProgressReader, items ItemCounter, curriculum *entities.Curriculum) *ProgressService {
	return &ProgressService{
		repository: repository,
		items:      items,
		curriculum: curriculum,
	}
}

// GetLastCompletedOrder returns the user's watermark in a section, 0 if the
// user never completed an item there.
func (s *ProgressService) GetLastCompletedOrder(ctx context.Context, userID int64, sectionID string) (int, error) {
	p, err := s.repository.GetSectionProgress(ctx, userID, sectionID)
	if err != nil {
		if errors.Is(err, repository.ErrProgressNotFound) {
			return 0, nil
		}
		return 0, err
	}
	return p.LastCompletedOrder, nil
}

// Summary returns the user's totals and per-section progress in curriculum
// order. Sections without items and without progress are left out.
func (s *ProgressService) Summary(ctx context.Context, userID int64) (*entities.ProgressSummary, error) {
	agg, err := s.repository.GetAggregate(ctx, userID)
	if err != nil {
		if !errors.Is(err, repository.ErrAggregateNotFound) {
			return nil, err
		}
		agg = entities.NewUserAggregate(userID)
	}

	rows, err := s.repository.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	bySection := make(map[string]*entities.UserProgress, len(rows))
	for _, p := range rows {
		bySection[p.SectionID] = p
	}

	counts, err := s.items.CountBySection(ctx)
	if err != nil {
		return nil, err
	}

	summary := &entities.ProgressSummary{Aggregate: agg}
	for _, section := range s.curriculum.Sections {
		p := bySection[section.ID]
		total := counts[section.ID]
		if p == nil && total == 0 {
			continue
		}
		summary.Sections = append(summary.Sections, entities.SectionSummary{
			Section:    section,
			Progress:   p,
			TotalItems: total,
		})
	}

	return summary, nil
}
