package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/aliskhannn/grammar-practice-bot/internal/domain/entities"
	"github.com/aliskhannn/grammar-practice-bot/internal/infra/postgres/repository"
)

var errStoreDown = errors.New("connection refused")

func testCurriculum(t *testing.T) *entities.Curriculum {
	t.Helper()
	c := &entities.Curriculum{
		Topics: []entities.Topic{"verbs", "articles"},
		Sections: []entities.GrammarSection{
			{ID: "to-be", Level: entities.LevelA1, Position: 1, Topics: []entities.Topic{"verbs"}},
			{ID: "a-an", Level: entities.LevelA1, Position: 2, Topics: []entities.Topic{"articles"}},
			{ID: "past-simple", Level: entities.LevelA2, Position: 1, Topics: []entities.Topic{"verbs"}},
		},
	}
	require.NoError(t, c.Index())
	return c
}

func item(id int64, level entities.Level, section string, order int) entities.Item {
	return entities.Item{
		ID:          id,
		Level:       level,
		SectionID:   section,
		OrderNumber: order,
		Active:      true,
		Body: entities.ItemBody{
			Text: "I ___ ready.",
			Gaps: []entities.Gap{{Answer: "am", Options: []string{"am", "is", "are"}}},
		},
	}
}

// defaultItems: to-be 1..3, a-an 4..5, past-simple 6..7.
func defaultItems() []entities.Item {
	return []entities.Item{
		item(1, entities.LevelA1, "to-be", 1),
		item(2, entities.LevelA1, "to-be", 2),
		item(3, entities.LevelA1, "to-be", 3),
		item(4, entities.LevelA1, "a-an", 1),
		item(5, entities.LevelA1, "a-an", 2),
		item(6, entities.LevelA2, "past-simple", 1),
		item(7, entities.LevelA2, "past-simple", 2),
	}
}

// fakeStore is an in-memory ItemStore.
type fakeStore struct {
	curriculum *entities.Curriculum

	mu      sync.Mutex
	items   []entities.Item
	fail    map[entities.StepKind]error
	block   map[entities.StepKind]bool
	gate    chan struct{}
	calls   []entities.SearchStep
	extra   map[entities.StepKind][]entities.Item // returned verbatim, ignoring exclusions
	fetches int
}

func newFakeStore(c *entities.Curriculum, items ...entities.Item) *fakeStore {
	return &fakeStore{
		curriculum: c,
		items:      items,
		fail:       make(map[entities.StepKind]error),
		block:      make(map[entities.StepKind]bool),
		extra:      make(map[entities.StepKind][]entities.Item),
	}
}

func (f *fakeStore) setGate(g chan struct{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gate = g
}

func (f *fakeStore) stepKinds() []entities.StepKind {
	f.mu.Lock()
	defer f.mu.Unlock()
	kinds := make([]entities.StepKind, 0, len(f.calls))
	for _, s := range f.calls {
		kinds = append(kinds, s.Kind)
	}
	return kinds
}

func (f *fakeStore) Fetch(ctx context.Context, q entities.ItemQuery) ([]entities.Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f.mu.Lock()
	f.calls = append(f.calls, q.Step)
	f.fetches++
	failErr := f.fail[q.Step.Kind]
	block := f.block[q.Step.Kind]
	gate := f.gate
	extra := f.extra[q.Step.Kind]
	items := append([]entities.Item(nil), f.items...)
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if failErr != nil {
		return nil, failErr
	}
	if extra != nil {
		return extra, nil
	}

	excluded := make(map[int64]struct{}, len(q.ExcludeIDs))
	for _, id := range q.ExcludeIDs {
		excluded[id] = struct{}{}
	}

	var out []entities.Item
	for _, it := range items {
		if len(out) >= q.Limit {
			break
		}
		if !it.Active {
			continue
		}
		if _, ok := excluded[it.ID]; ok {
			continue
		}
		if q.Step.Level != "" && it.Level != q.Step.Level {
			continue
		}
		if q.Step.SectionID != "" && it.SectionID != q.Step.SectionID {
			continue
		}
		if q.Step.Topic != "" && !f.curriculum.SectionHasTopic(it.SectionID, q.Step.Topic) {
			continue
		}
		out = append(out, it)
	}
	return out, nil
}

func newTestPlanner(t *testing.T, store ItemStore) *Planner {
	t.Helper()
	return NewPlanner(store, testCurriculum(t), 50*time.Millisecond, zap.NewNop())
}

// fakeLedger is an in-memory progress ledger with transaction rollback.
type fakeLedger struct {
	mu sync.Mutex

	items      map[int64]entities.Item
	itemErr    error
	itemErrN   int // fail GetPosition this many times, then succeed; <0 fails forever
	getCalls   int
	progress   map[string]entities.UserProgress
	aggregates map[int64]entities.UserAggregate
	events     []entities.CompletionEvent
}

func newFakeLedger(items ...entities.Item) *fakeLedger {
	l := &fakeLedger{
		items:      make(map[int64]entities.Item),
		progress:   make(map[string]entities.UserProgress),
		aggregates: make(map[int64]entities.UserAggregate),
	}
	for _, it := range items {
		l.items[it.ID] = it
	}
	return l
}

func progressKey(userID int64, sectionID string) string {
	return fmt.Sprintf("%d/%s", userID, sectionID)
}

type ledgerSnapshot struct {
	progress   map[string]entities.UserProgress
	aggregates map[int64]entities.UserAggregate
	events     []entities.CompletionEvent
}

func (l *fakeLedger) snapshot() ledgerSnapshot {
	s := ledgerSnapshot{
		progress:   make(map[string]entities.UserProgress, len(l.progress)),
		aggregates: make(map[int64]entities.UserAggregate, len(l.aggregates)),
		events:     append([]entities.CompletionEvent(nil), l.events...),
	}
	for k, v := range l.progress {
		s.progress[k] = v
	}
	for k, v := range l.aggregates {
		s.aggregates[k] = v
	}
	return s
}

func (l *fakeLedger) restore(s ledgerSnapshot) {
	l.progress = s.progress
	l.aggregates = s.aggregates
	l.events = s.events
}

func (l *fakeLedger) factory() LedgerFactory {
	return func(pgx.Tx) Ledger {
		return Ledger{Progress: l, Completions: l, Items: l}
	}
}

// WithinTx holds the ledger lock for the whole transaction, like the
// aggregate row lock does, and restores the snapshot on error.
func (l *fakeLedger) WithinTx(ctx context.Context, fn func(ctx context.Context, tx pgx.Tx) error) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	snap := l.snapshot()
	if err := fn(ctx, nil); err != nil {
		l.restore(snap)
		return err
	}
	return nil
}

func (l *fakeLedger) LockAggregate(_ context.Context, userID int64) (*entities.UserAggregate, error) {
	a, ok := l.aggregates[userID]
	if !ok {
		a = *entities.NewUserAggregate(userID)
		l.aggregates[userID] = a
	}
	return &a, nil
}

func (l *fakeLedger) SaveAggregate(_ context.Context, a *entities.UserAggregate) error {
	l.aggregates[a.UserID] = *a
	return nil
}

func (l *fakeLedger) AdvanceSection(_ context.Context, userID int64, sectionID string, order, correct int, at time.Time) (int, int, error) {
	key := progressKey(userID, sectionID)
	p, ok := l.progress[key]
	if !ok {
		p = entities.UserProgress{UserID: userID, SectionID: sectionID}
	}
	before := p.LastCompletedOrder
	p.LastCompletedOrder = max(before, order)
	p.Completions++
	p.CorrectCount += correct
	p.LastCompletedAt = &at
	l.progress[key] = p
	return before, p.LastCompletedOrder, nil
}

func (l *fakeLedger) Insert(_ context.Context, e *entities.CompletionEvent) error {
	l.events = append(l.events, *e)
	return nil
}

func (l *fakeLedger) GetPosition(_ context.Context, itemID int64) (*entities.ItemPosition, error) {
	l.getCalls++
	if l.itemErr != nil && l.itemErrN != 0 {
		if l.itemErrN > 0 {
			l.itemErrN--
		}
		return nil, l.itemErr
	}
	it, ok := l.items[itemID]
	if !ok {
		return nil, repository.ErrItemNotFound
	}
	return &entities.ItemPosition{SectionID: it.SectionID, OrderNumber: it.OrderNumber}, nil
}

func (l *fakeLedger) aggregate(userID int64) entities.UserAggregate {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.aggregates[userID]
}

func (l *fakeLedger) sectionProgress(userID int64, sectionID string) (entities.UserProgress, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	p, ok := l.progress[progressKey(userID, sectionID)]
	return p, ok
}

func (l *fakeLedger) eventCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.events)
}
