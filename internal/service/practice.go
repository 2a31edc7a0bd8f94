package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/aliskhannn/grammar-practice-bot/internal/domain/entities"
	"github.com/aliskhannn/grammar-practice-bot/internal/storage"
)

type SettingsProvider interface {
	GetOrCreate(ctx context.Context, userID int64) (*entities.UserSettings, error)
	UpdateLevel(ctx context.Context, userID int64, level entities.Level) error
}

type Recorder interface {
	Record(ctx context.Context, in entities.CompletionInput) (*entities.CompletionResult, error)
}

// PracticeService owns the live practice sessions and connects them with
// the learner's settings and the completion recorder.
type PracticeService struct {
	planner  *Planner
	settings SettingsProvider
	recorder Recorder
	sessions *storage.SessionStorage[*Session]
	cfg      SessionConfig
	logger   *zap.Logger
}

func NewPracticeService(
	planner *Planner,
	settings SettingsProvider,
	recorder Recorder,
	sessions *storage.SessionStorage[*Session],
	cfg SessionConfig,
	logger *zap.Logger,
) *PracticeService {
	return &PracticeService{
		planner:  planner,
		settings: settings,
		recorder: recorder,
		sessions: sessions,
		cfg:      cfg,
		logger:   logger,
	}
}

// Start opens a new session from the user's settings, replacing any live
// one, and serves its first item.
func (s *PracticeService) Start(ctx context.Context, userID int64) (*Delivery, error) {
	settings, err := s.settings.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get settings: %w", err)
	}

	sc := entities.NewSessionContext(userID, settings.Level, settings.Topic)
	session := NewSession(s.planner, sc, s.cfg, s.logger)

	d, err := session.Start(ctx)
	if err != nil {
		session.Close()
		return nil, err
	}
	s.sessions.Store(userID, session)

	s.afterDelivery(ctx, userID, d)
	return d, nil
}

// Next serves the next item of the user's session, starting one if needed.
func (s *PracticeService) Next(ctx context.Context, userID int64) (*Delivery, error) {
	session, ok := s.sessions.Get(userID)
	if !ok {
		return s.Start(ctx, userID)
	}

	d, err := session.Take(ctx)
	if errors.Is(err, ErrSessionClosed) {
		return s.Start(ctx, userID)
	}
	if err != nil {
		return nil, err
	}

	s.afterDelivery(ctx, userID, d)
	return d, nil
}

// Current returns the item on screen in the user's session.
func (s *PracticeService) Current(userID int64) (*Delivery, bool) {
	session, ok := s.sessions.Get(userID)
	if !ok {
		return nil, false
	}
	d := session.Current()
	return d, d != nil
}

// Complete records a finished item.
func (s *PracticeService) Complete(
	ctx context.Context,
	userID, itemID int64,
	correct, total int,
	spent time.Duration,
) (*entities.CompletionResult, error) {
	return s.recorder.Record(ctx, entities.CompletionInput{
		UserID:       userID,
		ItemID:       itemID,
		CorrectCount: correct,
		TotalCount:   total,
		TimeSpent:    spent,
	})
}

// Stop closes the user's session.
func (s *PracticeService) Stop(userID int64) {
	s.sessions.Delete(userID)
}

// ReapIdle closes sessions idle for longer than ttl.
func (s *PracticeService) ReapIdle(ttl time.Duration) []int64 {
	return s.sessions.ReapIdle(ttl)
}

// Shutdown closes every live session.
func (s *PracticeService) Shutdown() {
	s.sessions.CloseAll()
}

// afterDelivery persists a level-up so the next session starts there.
func (s *PracticeService) afterDelivery(ctx context.Context, userID int64, d *Delivery) {
	if d.Transition != entities.TransitionLevelUp {
		return
	}

	if err := s.settings.UpdateLevel(ctx, userID, d.Item.Level); err != nil {
		s.logger.Error("failed to save level up",
			zap.Int64("user_id", userID),
			zap.String("level", d.Item.Level.String()),
			zap.Error(err),
		)
	}
}
