package service

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

const DefaultReaperSchedule = "*/5 * * * *"

type idleReaper interface {
	ReapIdle(ttl time.Duration) []int64
}

// SessionReaper closes practice sessions that went idle.
type SessionReaper struct {
	sessions idleReaper
	schedule string
	ttl      time.Duration
	logger   *zap.Logger
}

func NewSessionReaper(sessions idleReaper, schedule string, ttl time.Duration, logger *zap.Logger) *SessionReaper {
	if schedule == "" {
		schedule = DefaultReaperSchedule
	}
	return &SessionReaper{
		sessions: sessions,
		schedule: schedule,
		ttl:      ttl,
		logger:   logger,
	}
}

// Start runs the reaper on its cron schedule until ctx is done.
func (r *SessionReaper) Start(ctx context.Context) error {
	r.logger.Info("session reaper started", zap.String("schedule", r.schedule), zap.Duration("ttl", r.ttl))

	c := cron.New(cron.WithLocation(time.UTC))

	if _, err := c.AddFunc(r.schedule, r.reap); err != nil {
		return fmt.Errorf("add reaper job: %w", err)
	}

	c.Start()

	<-ctx.Done()

	<-c.Stop().Done()
	r.logger.Info("session reaper stopped")
	return nil
}

func (r *SessionReaper) reap() {
	reaped := r.sessions.ReapIdle(r.ttl)
	if len(reaped) > 0 {
		r.logger.Info("idle sessions closed", zap.Int("count", len(reaped)))
	}
}
