package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 001: USERS AND SETTINGS
// ══════════════════════════════════════════════════════════════════════════════

const migration001Up = `
CREATE TABLE IF NOT EXISTS users (
    id BIGINT PRIMARY KEY,
    chat_id BIGINT NOT NULL,
    is_active BOOLEAN NOT NULL DEFAULT TRUE,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS user_settings (
    user_id BIGINT PRIMARY KEY REFERENCES users(id) ON DELETE CASCADE,
    level VARCHAR(2) NOT NULL DEFAULT 'A1',
    topic VARCHAR(64) NOT NULL DEFAULT '',
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_level CHECK (level IN ('A1', 'A2', 'B1', 'B2', 'C1', 'C2'))
);
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 002: ITEM STORE
// ══════════════════════════════════════════════════════════════════════════════

const migration002Up = `
CREATE TABLE IF NOT EXISTS items (
    id BIGSERIAL PRIMARY KEY,
    level VARCHAR(2) NOT NULL,
    section_id VARCHAR(64) NOT NULL,
    order_number INTEGER NOT NULL,
    is_active BOOLEAN NOT NULL DEFAULT TRUE,
    body JSONB NOT NULL,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    UNIQUE (section_id, order_number),
    CONSTRAINT valid_item_level CHECK (level IN ('A1', 'A2', 'B1', 'B2', 'C1', 'C2')),
    CONSTRAINT valid_order CHECK (order_number > 0)
);

CREATE INDEX IF NOT EXISTS idx_items_level_section ON items(level, section_id, order_number) WHERE is_active;
CREATE INDEX IF NOT EXISTS idx_items_section ON items(section_id, order_number) WHERE is_active;

CREATE TABLE IF NOT EXISTS item_reports (
    id BIGSERIAL PRIMARY KEY,
    item_id BIGINT NOT NULL REFERENCES items(id) ON DELETE CASCADE,
    user_id BIGINT NOT NULL,
    reason TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_item_reports_item ON item_reports(item_id);
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 003: PROGRESS LEDGER
// ══════════════════════════════════════════════════════════════════════════════

const migration003Up = `
CREATE TABLE IF NOT EXISTS user_section_progress (
    user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    section_id VARCHAR(64) NOT NULL,
    last_completed_order INTEGER NOT NULL DEFAULT 0,
    completions INTEGER NOT NULL DEFAULT 0,
    correct_count INTEGER NOT NULL DEFAULT 0,
    last_completed_at TIMESTAMP WITH TIME ZONE,

    PRIMARY KEY (user_id, section_id),
    CONSTRAINT valid_watermark CHECK (last_completed_order >= 0)
);

CREATE TABLE IF NOT EXISTS user_aggregates (
    user_id BIGINT PRIMARY KEY REFERENCES users(id) ON DELETE CASCADE,
    total_completed INTEGER NOT NULL DEFAULT 0,
    total_correct INTEGER NOT NULL DEFAULT 0,
    total_answers INTEGER NOT NULL DEFAULT 0,
    current_streak INTEGER NOT NULL DEFAULT 0,
    longest_streak INTEGER NOT NULL DEFAULT 0,
    last_streak_date DATE,
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);

-- Append-only; rows go away only with their user.
CREATE TABLE IF NOT EXISTS completion_events (
    id UUID PRIMARY KEY,
    user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    item_id BIGINT NOT NULL,
    correct_count INTEGER NOT NULL,
    total_count INTEGER NOT NULL,
    time_spent_ms BIGINT NOT NULL DEFAULT 0,
    completed_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_counts CHECK (correct_count >= 0 AND correct_count <= total_count)
);

CREATE INDEX IF NOT EXISTS idx_completion_events_user ON completion_events(user_id, completed_at DESC);
`

type migration struct {
	version int
	up      string
}

var migrations = []migration{
	{1, migration001Up},
	{2, migration002Up},
	{3, migration003Up},
}

// Migrate applies every migration newer than the recorded schema version.
// Each migration runs in its own transaction.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
		)`); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	var current int
	if err := pool.QueryRow(ctx, `SELECT COALESCE(MAX(version), 0) FROM schema_migrations`).Scan(&current); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}

	tr := NewTransactor(pool)
	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		err := tr.WithinTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
			if _, err := tx.Exec(ctx, m.up); err != nil {
				return err
			}
			_, err := tx.Exec(ctx, `INSERT INTO schema_migrations (version) VALUES ($1)`, m.version)
			return err
		})
		if err != nil {
			return fmt.Errorf("apply migration %03d: %w", m.version, err)
		}
	}

	return nil
}
