package service

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/aliskhannn/grammar-practice-bot/internal/domain/entities"
)

// Transactor runs fn inside a database transaction.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx pgx.Tx) error) error
}

// ItemStore returns practice items matching a search step.
type ItemStore interface {
	Fetch(ctx context.Context, q entities.ItemQuery) ([]entities.Item, error)
}

// ItemResolver locates an item by id. It returns
// repository.ErrItemNotFound when the item does not exist.
type ItemResolver interface {
	GetPosition(ctx context.Context, itemID int64) (*entities.ItemPosition, error)
}

type LedgerRepository interface {
	LockAggregate(ctx context.Context, userID int64) (*entities.UserAggregate, error)
	SaveAggregate(ctx context.Context, a *entities.UserAggregate) error
	AdvanceSection(ctx context.Context, userID int64, sectionID string, orderNumber, correct int, at time.Time) (before, after int, err error)
}

type CompletionLog interface {
	Insert(ctx context.Context, e *entities.CompletionEvent) error
}

type ProgressReader interface {
	GetAggregate(ctx context.Context, userID int64) (*entities.UserAggregate, error)
	GetSectionProgress(ctx context.Context, userID int64, sectionID string) (*entities.UserProgress, error)
	GetByUserID(ctx context.Context, userID int64) ([]*entities.UserProgress, error)
}

type ItemCounter interface {
	CountBySection(ctx context.Context) (map[string]int, error)
}

type UserRepository interface {
	Save(ctx context.Context, user *entities.User) (bool, error)
	Exists(ctx context.Context, userID int64) (bool, error)
	SetActive(ctx context.Context, userID int64, active bool) error
}

type SettingsRepository interface {
	Create(ctx context.Context, userID int64) error
	GetByUserID(ctx context.Context, userID int64) (*entities.UserSettings, error)
	UpdateLevel(ctx context.Context, userID int64, level entities.Level) error
	UpdateTopic(ctx context.Context, userID int64, topic entities.Topic) error
}
