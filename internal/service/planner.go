package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/aliskhannn/grammar-practice-bot/internal/domain/entities"
)

// ErrNoContent is returned when every search step came back empty.
var ErrNoContent = errors.New("no practice content available")

const defaultStepTimeout = 2 * time.Second

// PlanResult is the outcome of one planner run.
type PlanResult struct {
	Items      []entities.Item // new items only, in store order
	Step       entities.SearchStep
	Transition entities.Transition
	Context    entities.SessionContext // updated exhaustion memory
}

// Planner picks the next practice items by walking the fallback ladder
// from the most specific scope to the least.
type Planner struct {
	store       ItemStore
	curriculum  *entities.Curriculum
	stepTimeout time.Duration
	logger      *zap.Logger
}

// NewPlanner creates a Planner. A non-positive stepTimeout uses the default.
func NewPlanner(store ItemStore, curriculum *entities.Curriculum, stepTimeout time.Duration, logger *zap.Logger) *Planner {
	if stepTimeout <= 0 {
		stepTimeout = defaultStepTimeout
	}
	return &Planner{
		store:       store,
		curriculum:  curriculum,
		stepTimeout: stepTimeout,
		logger:      logger,
	}
}

// BuildSearchSteps returns the ordered search steps for sc. Steps whose
// scope is already exhausted are left out. The unconstrained step is always
// last.
func BuildSearchSteps(sc entities.SessionContext) []entities.SearchStep {
	higher := entities.LevelsAfter(sc.Level)
	steps := make([]entities.SearchStep, 0, len(higher)+4)
	add := func(s entities.SearchStep) {
		if k, ok := s.ExhaustionKey(); ok && sc.IsExhausted(k) {
			return
		}
		steps = append(steps, s)
	}

	if sc.FocusedSection != "" {
		add(entities.SearchStep{Kind: entities.StepFocusedSection, Level: sc.Level, SectionID: sc.FocusedSection})
	}
	if sc.Topic != "" {
		add(entities.SearchStep{Kind: entities.StepLevelTopic, Level: sc.Level, Topic: sc.Topic})
	}
	if sc.Level != "" {
		add(entities.SearchStep{Kind: entities.StepLevel, Level: sc.Level})
	}

	for _, l := range higher {
		add(entities.SearchStep{Kind: entities.StepHigherLevel, Level: l})
	}

	steps = append(steps, entities.SearchStep{Kind: entities.StepUnconstrained})
	return steps
}

// Execute runs the search steps for sc and returns the first batch that
// contains items not yet shown. sc itself is never modified.
//
// When nothing is found and sc carried exhaustion memory, the memory is
// dropped and the ladder is walked once more before ErrNoContent.
func (p *Planner) Execute(ctx context.Context, sc entities.SessionContext, limit int) (*PlanResult, error) {
	next := sc.Clone()

	res, err := p.run(ctx, &next, limit)
	if err != nil {
		return nil, err
	}
	if res != nil {
		return res, nil
	}

	if len(sc.Exhausted) > 0 {
		p.logger.Debug("no content with stale exhaustion memory, retrying",
			zap.Int64("user_id", sc.UserID),
			zap.Int("exhausted", len(sc.Exhausted)),
		)
		next.ClearExhaustion()
		res, err = p.run(ctx, &next, limit)
		if err != nil {
			return nil, err
		}
		if res != nil {
			return res, nil
		}
	}

	p.logger.Warn("catalog gap: every search step is empty",
		zap.Int64("user_id", sc.UserID),
		zap.String("level", sc.Level.String()),
		zap.String("topic", string(sc.Topic)),
		zap.Int("shown", len(sc.Shown)),
	)
	return nil, ErrNoContent
}

func (p *Planner) run(ctx context.Context, sc *entities.SessionContext, limit int) (*PlanResult, error) {
	for _, step := range BuildSearchSteps(*sc) {
		items, err := p.fetch(ctx, step, *sc, limit)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			p.logger.Warn("search step failed, skipping",
				zap.Int64("user_id", sc.UserID),
				zap.Stringer("step", step),
				zap.Error(err),
			)
			continue
		}

		if len(items) == 0 {
			if k, ok := step.ExhaustionKey(); ok {
				sc.MarkExhausted(k)
			}
			p.logger.Debug("search step exhausted",
				zap.Int64("user_id", sc.UserID),
				zap.Stringer("step", step),
			)
			continue
		}

		fresh := make([]entities.Item, 0, len(items))
		for _, it := range items {
			if !sc.WasShown(it.ID) {
				fresh = append(fresh, it)
			}
		}
		if len(fresh) == 0 {
			continue
		}

		return &PlanResult{
			Items:      fresh,
			Step:       step,
			Transition: p.transition(*sc, fresh[0]),
			Context:    *sc,
		}, nil
	}

	return nil, nil
}

func (p *Planner) fetch(ctx context.Context, step entities.SearchStep, sc entities.SessionContext, limit int) ([]entities.Item, error) {
	stepCtx, cancel := context.WithTimeout(ctx, p.stepTimeout)
	defer cancel()

	return p.store.Fetch(stepCtx, entities.ItemQuery{
		Step:       step,
		UserID:     sc.UserID,
		ExcludeIDs: sc.ShownIDs(),
		Limit:      limit,
	})
}

// transition compares the first served item with the learner's context.
func (p *Planner) transition(sc entities.SessionContext, first entities.Item) entities.Transition {
	switch {
	case sc.Level == "" || first.Level == sc.Level:
	case first.Level.Above(sc.Level):
		return entities.TransitionLevelUp
	default:
		return entities.TransitionLevelChange
	}

	if sc.Topic != "" && !p.curriculum.SectionHasTopic(first.SectionID, sc.Topic) {
		return entities.TransitionTopicChange
	}
	return entities.TransitionNone
}
