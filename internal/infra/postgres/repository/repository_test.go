package repository

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aliskhannn/grammar-practice-bot/internal/domain/entities"
	"github.com/aliskhannn/grammar-practice-bot/internal/infra/postgres"
)

const testUserID int64 = 990001

func testPool(t *testing.T) *pgxpool.Pool {
	t.Helper()

	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL is not set")
	}

	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, dsn, postgres.PoolConfig{MaxConns: 4})
	require.NoError(t, err)
	require.NoError(t, postgres.Migrate(ctx, pool))

	cleanup := func() {
		for _, q := range []string{
			`DELETE FROM item_reports WHERE user_id = $1`,
			`DELETE FROM users WHERE id = $1`,
		} {
			_, err := pool.Exec(ctx, q, testUserID)
			require.NoError(t, err)
		}
		_, err := pool.Exec(ctx, `DELETE FROM items WHERE section_id LIKE 'test-%'`)
		require.NoError(t, err)
	}
	cleanup()
	t.Cleanup(func() {
		cleanup()
		pool.Close()
	})

	return pool
}

func createTestUser(t *testing.T, pool *pgxpool.Pool) {
	t.Helper()
	_, err := NewUserRepository(pool).Save(context.Background(), entities.NewUser(testUserID, testUserID))
	require.NoError(t, err)
}

func countRows(t *testing.T, pool *pgxpool.Pool, table string) int {
	t.Helper()
	var n int
	err := pool.QueryRow(context.Background(), `SELECT COUNT(*) FROM `+table+` WHERE user_id = $1`, testUserID).Scan(&n)
	require.NoError(t, err)
	return n
}

func testCurriculum(t *testing.T) *entities.Curriculum {
	t.Helper()
	c := &entities.Curriculum{
		Topics: []entities.Topic{"verbs", "articles"},
		Sections: []entities.GrammarSection{
			{ID: "test-verbs", Level: entities.LevelA1, Position: 1, Topics: []entities.Topic{"verbs"}},
			{ID: "test-articles", Level: entities.LevelA1, Position: 2, Topics: []entities.Topic{"articles"}},
			{ID: "test-past", Level: entities.LevelA2, Position: 1, Topics: []entities.Topic{"verbs"}},
		},
	}
	require.NoError(t, c.Index())
	return c
}

func insertItem(t *testing.T, pool *pgxpool.Pool, level entities.Level, section string, order int) int64 {
	t.Helper()
	var id int64
	err := pool.QueryRow(context.Background(), `
		INSERT INTO items (level, section_id, order_number, body)
		VALUES ($1, $2, $3, '{"text":"I ___ here.","gaps":[{"answer":"am","options":["am","is"]}]}')
		RETURNING id
	`, string(level), section, order).Scan(&id)
	require.NoError(t, err)
	return id
}

func TestItemRepositoryFetch(t *testing.T) {
	pool := testPool(t)
	ctx := context.Background()
	repo := NewItemRepository(pool, testCurriculum(t))

	v1 := insertItem(t, pool, entities.LevelA1, "test-verbs", 1)
	v2 := insertItem(t, pool, entities.LevelA1, "test-verbs", 2)
	v3 := insertItem(t, pool, entities.LevelA1, "test-verbs", 3)
	a1 := insertItem(t, pool, entities.LevelA1, "test-articles", 1)
	insertItem(t, pool, entities.LevelA2, "test-past", 1)

	t.Run("topic filter", func(t *testing.T) {
		items, err := repo.Fetch(ctx, entities.ItemQuery{
			Step:   entities.SearchStep{Level: entities.LevelA1, Topic: "articles"},
			UserID: testUserID,
			Limit:  10,
		})
		require.NoError(t, err)
		require.Len(t, items, 1)
		assert.Equal(t, a1, items[0].ID)
		assert.Equal(t, "am", items[0].Body.Gaps[0].Answer)
	})

	t.Run("exclusions", func(t *testing.T) {
		items, err := repo.Fetch(ctx, entities.ItemQuery{
			Step:       entities.SearchStep{Level: entities.LevelA1, SectionID: "test-verbs"},
			UserID:     testUserID,
			ExcludeIDs: []int64{v1, v3},
			Limit:      10,
		})
		require.NoError(t, err)
		require.Len(t, items, 1)
		assert.Equal(t, v2, items[0].ID)
	})

	t.Run("items after the watermark come first", func(t *testing.T) {
		createTestUser(t, pool)
		progress := NewProgressRepository(pool)
		_, _, err := progress.AdvanceSection(ctx, testUserID, "test-verbs", 2, 1, time.Now())
		require.NoError(t, err)

		items, err := repo.Fetch(ctx, entities.ItemQuery{
			Step:   entities.SearchStep{Level: entities.LevelA1, SectionID: "test-verbs"},
			UserID: testUserID,
			Limit:  10,
		})
		require.NoError(t, err)
		ids := []int64{items[0].ID, items[1].ID, items[2].ID}
		assert.Equal(t, []int64{v3, v1, v2}, ids)
	})

	t.Run("inactive items are hidden but still resolve", func(t *testing.T) {
		require.NoError(t, repo.Deactivate(ctx, a1))

		items, err := repo.Fetch(ctx, entities.ItemQuery{
			Step:   entities.SearchStep{Level: entities.LevelA1, Topic: "articles"},
			UserID: testUserID,
			Limit:  10,
		})
		require.NoError(t, err)
		assert.Empty(t, items)

		pos, err := repo.GetPosition(ctx, a1)
		require.NoError(t, err)
		assert.Equal(t, entities.ItemPosition{SectionID: "test-articles", OrderNumber: 1}, *pos)
	})

	t.Run("unknown item", func(t *testing.T) {
		_, err := repo.GetPosition(ctx, -1)
		assert.ErrorIs(t, err, ErrItemNotFound)
	})
}

func TestProgressRepositoryLedger(t *testing.T) {
	pool := testPool(t)
	ctx := context.Background()
	tr := postgres.NewTransactor(pool)
	createTestUser(t, pool)

	t.Run("watermark never regresses", func(t *testing.T) {
		repo := NewProgressRepository(pool)

		before, after, err := repo.AdvanceSection(ctx, testUserID, "test-articles", 5, 1, time.Now())
		require.NoError(t, err)
		assert.Equal(t, 0, before)
		assert.Equal(t, 5, after)

		before, after, err = repo.AdvanceSection(ctx, testUserID, "test-articles", 3, 0, time.Now())
		require.NoError(t, err)
		assert.Equal(t, 5, before)
		assert.Equal(t, 5, after)

		p, err := repo.GetSectionProgress(ctx, testUserID, "test-articles")
		require.NoError(t, err)
		assert.Equal(t, 5, p.LastCompletedOrder)
		assert.Equal(t, 2, p.Completions)
		assert.Equal(t, 1, p.CorrectCount)
	})

	t.Run("aggregate round trip", func(t *testing.T) {
		_, err := NewProgressRepository(pool).GetAggregate(ctx, testUserID)
		require.ErrorIs(t, err, ErrAggregateNotFound)

		today := entities.DateOf(time.Now())
		err = tr.WithinTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
			repo := NewProgressRepository(tx)
			a, err := repo.LockAggregate(ctx, testUserID)
			if err != nil {
				return err
			}
			a.ApplyCompletion(2, 3, today)
			return repo.SaveAggregate(ctx, a)
		})
		require.NoError(t, err)

		a, err := NewProgressRepository(pool).GetAggregate(ctx, testUserID)
		require.NoError(t, err)
		assert.Equal(t, 1, a.TotalCompleted)
		assert.Equal(t, 1, a.CurrentStreak)
		require.NotNil(t, a.LastStreakDate)
		assert.True(t, today.Equal(*a.LastStreakDate))
	})

	t.Run("missing section", func(t *testing.T) {
		_, err := NewProgressRepository(pool).GetSectionProgress(ctx, testUserID, "test-none")
		assert.ErrorIs(t, err, ErrProgressNotFound)
	})
}

func TestUserAndSettingsRepositories(t *testing.T) {
	pool := testPool(t)
	ctx := context.Background()
	users := NewUserRepository(pool)
	settings := NewSettingsRepository(pool)

	exists, err := users.Exists(ctx, testUserID)
	require.NoError(t, err)
	assert.False(t, exists)

	created, err := users.Save(ctx, entities.NewUser(testUserID, testUserID))
	require.NoError(t, err)
	assert.True(t, created)

	created, err = users.Save(ctx, entities.NewUser(testUserID, testUserID))
	require.NoError(t, err)
	assert.False(t, created, "second save updates")

	require.NoError(t, users.SetActive(ctx, testUserID, false))
	var active bool
	require.NoError(t, pool.QueryRow(ctx, `SELECT is_active FROM users WHERE id = $1`, testUserID).Scan(&active))
	assert.False(t, active)

	assert.ErrorIs(t, users.SetActive(ctx, -1, true), ErrUserNotFound)

	_, err = settings.GetByUserID(ctx, testUserID)
	require.ErrorIs(t, err, ErrSettingsNotFound)

	require.NoError(t, settings.Create(ctx, testUserID))
	require.NoError(t, settings.UpdateLevel(ctx, testUserID, entities.LevelB2))
	require.NoError(t, settings.UpdateTopic(ctx, testUserID, "verbs"))

	s, err := settings.GetByUserID(ctx, testUserID)
	require.NoError(t, err)
	assert.Equal(t, entities.LevelB2, s.Level)
	assert.Equal(t, entities.Topic("verbs"), s.Topic)
}

func TestDeleteUserRemovesLedger(t *testing.T) {
	pool := testPool(t)
	ctx := context.Background()
	tr := postgres.NewTransactor(pool)
	createTestUser(t, pool)
	require.NoError(t, NewSettingsRepository(pool).Create(ctx, testUserID))

	completions := NewCompletionRepository(pool)
	in := entities.CompletionInput{UserID: testUserID, ItemID: 1, CorrectCount: 1, TotalCount: 2, TimeSpent: time.Second}
	require.NoError(t, completions.Insert(ctx, entities.NewCompletionEvent(in, time.Now())))
	require.NoError(t, completions.Insert(ctx, entities.NewCompletionEvent(in, time.Now())))
	assert.Equal(t, 2, countRows(t, pool, "completion_events"), "duplicate submissions are distinct events")

	_, _, err := NewProgressRepository(pool).AdvanceSection(ctx, testUserID, "test-verbs", 1, 1, time.Now())
	require.NoError(t, err)
	err = tr.WithinTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		repo := NewProgressRepository(tx)
		a, err := repo.LockAggregate(ctx, testUserID)
		if err != nil {
			return err
		}
		a.ApplyCompletion(1, 2, entities.DateOf(time.Now()))
		return repo.SaveAggregate(ctx, a)
	})
	require.NoError(t, err)

	users := NewUserRepository(pool)
	require.NoError(t, users.Delete(ctx, testUserID))

	exists, err := users.Exists(ctx, testUserID)
	require.NoError(t, err)
	assert.False(t, exists)

	for _, table := range []string{"completion_events", "user_section_progress", "user_aggregates", "user_settings"} {
		assert.Zero(t, countRows(t, pool, table), table)
	}

	assert.ErrorIs(t, users.Delete(ctx, testUserID), ErrUserNotFound)
}

func TestLedgerRowsRequireUser(t *testing.T) {
	pool := testPool(t)
	ctx := context.Background()

	in := entities.CompletionInput{UserID: testUserID, ItemID: 1, CorrectCount: 1, TotalCount: 1}
	err := NewCompletionRepository(pool).Insert(ctx, entities.NewCompletionEvent(in, time.Now()))
	assert.Error(t, err, "events cannot outlive their user")

	_, _, err = NewProgressRepository(pool).AdvanceSection(ctx, testUserID, "test-verbs", 1, 1, time.Now())
	assert.Error(t, err)
}
