package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aliskhannn/grammar-practice-bot/internal/domain/entities"
)

// ErrSessionClosed is returned by Take once the session has been closed.
var ErrSessionClosed = errors.New("practice session closed")

const (
	defaultBufferSize  = 5
	defaultRefillEvery = 3
)

// SessionConfig sizes the prefetch buffer. Zero values use the defaults.
type SessionConfig struct {
	BufferSize  int // items requested per planner run
	RefillEvery int // served items between background refills, below BufferSize
}

func (c SessionConfig) withDefaults() SessionConfig {
	if c.BufferSize <= 0 {
		c.BufferSize = defaultBufferSize
	}
	if c.RefillEvery <= 0 || c.RefillEvery >= c.BufferSize {
		c.RefillEvery = max(1, min(defaultRefillEvery, c.BufferSize-1))
	}
	return c
}

// Delivery is one item handed to the learner.
type Delivery struct {
	Item       entities.Item
	Transition entities.Transition // set when the item moves the learner to another level or topic
	Fallback   bool                // the static item served when nothing else is left
}

type refillResult struct {
	res *PlanResult
	err error
}

// Session is a learner's practice stream: a small prefetched buffer in
// front of the planner. Calls are serialized by a mutex; background refills
// run on a cloned context and are merged on the next Take.
type Session struct {
	ID string

	planner *Planner
	cfg     SessionConfig
	logger  *zap.Logger

	mu        sync.Mutex
	state     entities.PoolState
	sc        entities.SessionContext
	buffer    []entities.Item
	current   *Delivery
	served    int
	refilling bool
	refills   chan refillResult

	ctx    context.Context
	cancel context.CancelFunc
}

// NewSession creates a session for sc. Nothing is fetched until Start.
func NewSession(planner *Planner, sc entities.SessionContext, cfg SessionConfig, logger *zap.Logger) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	id := uuid.NewString()

	return &Session{
		ID:      id,
		planner: planner,
		cfg:     cfg.withDefaults(),
		logger:  logger.With(zap.String("session_id", id), zap.Int64("user_id", sc.UserID)),
		state:   entities.PoolEmpty,
		sc:      sc.Clone(),
		refills: make(chan refillResult, 1),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start performs the initial blocking fill and serves the first item.
func (s *Session) Start(ctx context.Context) (*Delivery, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.fire(entities.EventStart); err != nil {
		return nil, err
	}

	return s.fill(ctx)
}

// Take serves the next item. It never returns nil: when the catalog has
// nothing left the static fallback item is served.
func (s *Session) Take(ctx context.Context) (*Delivery, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == entities.PoolClosed {
		return nil, ErrSessionClosed
	}

	s.absorbRefill()
	s.dropShown()

	// A failed blocking fill leaves the pool Exhausting; retry it.
	if len(s.buffer) == 0 || s.state == entities.PoolExhausting {
		if _, err := s.fire(entities.EventDrained); err != nil {
			return nil, err
		}
		return s.fill(ctx)
	}

	effects, err := s.fire(entities.EventTake)
	if err != nil {
		return nil, err
	}
	return s.apply(effects)
}

// Current returns the item being worked on, or nil before Start.
func (s *Session) Current() *Delivery {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Context returns a copy of the session's planner context.
func (s *Session) Context() entities.SessionContext {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sc.Clone()
}

// State returns the current pool state.
func (s *Session) State() entities.PoolState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Close cancels any in-flight refill. Late results are discarded.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	effects, _ := s.fire(entities.EventClose)
	if slices.Contains(effects, entities.EffectDiscard) {
		s.cancel()
		s.buffer = nil
		s.logger.Debug("session closed", zap.Int("served", s.served))
	}
}

func (s *Session) fire(ev entities.PoolEvent) ([]entities.PoolEffect, error) {
	if s.state == entities.PoolClosed && ev != entities.EventClose {
		return nil, ErrSessionClosed
	}

	next, effects, ok := entities.NextPoolState(s.state, ev)
	if !ok {
		return nil, fmt.Errorf("pool: %s is not valid in state %s", ev, s.state)
	}
	s.state = next
	return effects, nil
}

// fill runs a blocking planner call and serves from the result.
func (s *Session) fill(ctx context.Context) (*Delivery, error) {
	res, err := s.planner.Execute(ctx, s.sc, s.cfg.BufferSize)
	if errors.Is(err, ErrNoContent) {
		effects, err := s.fire(entities.EventNoContent)
		if err != nil {
			return nil, err
		}
		return s.apply(effects)
	}
	if err != nil {
		return nil, fmt.Errorf("fill buffer: %w", err)
	}

	s.merge(res, true)

	effects, err := s.fire(entities.EventLoaded)
	if err != nil {
		return nil, err
	}
	if len(effects) == 0 {
		// Initial fill lands in Ready; the first item is served right away.
		if effects, err = s.fire(entities.EventTake); err != nil {
			return nil, err
		}
	}
	return s.apply(effects)
}

func (s *Session) apply(effects []entities.PoolEffect) (*Delivery, error) {
	var d *Delivery
	for _, e := range effects {
		switch e {
		case entities.EffectServe:
			d = s.serve()
		case entities.EffectServeFallback:
			d = &Delivery{Item: entities.FallbackItem(), Fallback: true}
			s.current = d
			s.logger.Info("serving fallback item")
		}
	}
	if d == nil {
		return nil, fmt.Errorf("pool: nothing served in state %s", s.state)
	}
	return d, nil
}

func (s *Session) serve() *Delivery {
	head := s.buffer[0]
	s.buffer = s.buffer[1:]

	t := s.planner.transition(s.sc, head)
	s.follow(t, head)
	s.sc.MarkShown(head.ID)
	s.sc.FocusedSection = head.SectionID
	s.served++

	d := &Delivery{Item: head, Transition: t}
	s.current = d

	if s.served%s.cfg.RefillEvery == 0 && !s.refilling {
		effects, err := s.fire(entities.EventRefillDue)
		if err == nil && slices.Contains(effects, entities.EffectBackgroundFetch) {
			s.refillInBackground()
		}
	}

	return d
}

func (s *Session) refillInBackground() {
	sc := s.sc.Clone()
	for _, it := range s.buffer {
		sc.MarkShown(it.ID)
	}

	s.refilling = true
	ctx, limit := s.ctx, s.cfg.BufferSize
	go func() {
		res, err := s.planner.Execute(ctx, sc, limit)
		s.refills <- refillResult{res: res, err: err}
	}()
}

// absorbRefill merges a finished background refill without waiting for one
// still in flight.
func (s *Session) absorbRefill() {
	if !s.refilling {
		return
	}

	select {
	case r := <-s.refills:
		s.refilling = false
		if _, err := s.fire(entities.EventRefillDone); err != nil {
			s.logger.Warn("refill result dropped", zap.Error(err))
			return
		}
		switch {
		case r.err == nil:
			s.merge(r.res, false)
		case errors.Is(r.err, ErrNoContent):
		default:
			s.logger.Warn("background refill failed", zap.Error(r.err))
		}
	default:
	}
}

func (s *Session) dropShown() {
	s.buffer = slices.DeleteFunc(s.buffer, func(it entities.Item) bool {
		return s.sc.WasShown(it.ID)
	})
}

// merge appends a planner batch to the buffer and moves the focus along
// with it. replace is set for blocking fills, which started from the
// current context and may have dropped stale exhaustion memory.
//
// Unconstrained batches can span levels; only items at the level of the
// first new item are kept so a batch never changes level midway.
func (s *Session) merge(res *PlanResult, replace bool) {
	if res == nil {
		return
	}

	if replace {
		s.sc.Exhausted = res.Context.Clone().Exhausted
	} else {
		for k := range res.Context.Exhausted {
			s.sc.MarkExhausted(k)
		}
	}

	queued := make(map[int64]struct{}, len(s.buffer))
	for _, it := range s.buffer {
		queued[it.ID] = struct{}{}
	}

	var first *entities.Item
	for i := range res.Items {
		it := res.Items[i]
		if _, dup := queued[it.ID]; dup || s.sc.WasShown(it.ID) {
			continue
		}
		if first == nil {
			first = &res.Items[i]
		} else if res.Step.Kind == entities.StepUnconstrained && it.Level != first.Level {
			continue
		}
		s.buffer = append(s.buffer, it)
		queued[it.ID] = struct{}{}
	}
	if first == nil {
		return
	}

	if res.Transition != entities.TransitionNone {
		s.logger.Debug("planner widened scope",
			zap.Stringer("step", res.Step),
			zap.String("transition", string(res.Transition)),
		)
	}
	if res.Step.Kind != entities.StepFocusedSection {
		s.sc.FocusedSection = first.SectionID
	}
}

// follow moves the context to the level or topic of an item that left it.
func (s *Session) follow(t entities.Transition, it entities.Item) {
	switch t {
	case entities.TransitionLevelUp, entities.TransitionLevelChange:
		s.logger.Info("level transition",
			zap.String("from", s.sc.Level.String()),
			zap.String("to", it.Level.String()),
		)
		s.sc.Level = it.Level
	case entities.TransitionTopicChange:
		if section, err := s.planner.curriculum.Section(it.SectionID); err == nil && len(section.Topics) > 0 {
			s.sc.Topic = section.Topics[0]
		}
	}
}
