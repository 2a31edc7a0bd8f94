package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/aliskhannn/grammar-practice-bot/internal/domain/entities"
	"github.com/aliskhannn/grammar-practice-bot/internal/infra/postgres"
)

var ErrItemNotFound = errors.New("item not found")

// ItemRepository is the Postgres item store. The curriculum resolves topic
// filters into section ids, since items are tagged only with their section.
type ItemRepository struct {
	db         postgres.DBTX
	curriculum *entities.Curriculum
}

// NewItemRepository creates a new ItemRepository.
func NewItemRepository(db postgres.DBTX, curriculum *entities.Curriculum) *ItemRepository {
	return &ItemRepository{db: db, curriculum: curriculum}
}

// Fetch returns up to q.Limit active items matching q.Step, skipping
// q.ExcludeIDs.
//
// With a level filter, items past the user's watermark in their section come
// first, then the already passed ones, each in ascending order. Without a
// level filter the order is random.
func (r *ItemRepository) Fetch(ctx context.Context, q entities.ItemQuery) ([]entities.Item, error) {
	if q.Limit <= 0 {
		return nil, nil
	}

	var (
		where = []string{"i.is_active"}
		args  = []any{q.UserID}
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	step := q.Step
	if step.Level != "" {
		where = append(where, "i.level = "+arg(string(step.Level)))
	}
	if step.SectionID != "" {
		where = append(where, "i.section_id = "+arg(step.SectionID))
	}
	if step.Topic != "" {
		sections := r.curriculum.SectionIDsForTopic(step.Level, step.Topic)
		if len(sections) == 0 {
			return nil, nil
		}
		where = append(where, "i.section_id = ANY("+arg(sections)+"::text[])")
	}
	if len(q.ExcludeIDs) > 0 {
		where = append(where, "NOT (i.id = ANY("+arg(q.ExcludeIDs)+"::bigint[]))")
	}

	orderBy := "random()"
	if step.Level != "" {
		orderBy = "(i.order_number <= COALESCE(p.last_completed_order, 0)), i.order_number, i.id"
	}

	query := `
		SELECT i.id, i.level, i.section_id, i.order_number, i.is_active, i.body
		FROM items i
		LEFT JOIN user_section_progress p ON p.user_id = $1 AND p.section_id = i.section_id
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY ` + orderBy + `
		LIMIT ` + arg(q.Limit)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("fetch items: %w", err)
	}
	defer rows.Close()

	items := make([]entities.Item, 0, q.Limit)
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		items = append(items, item)
	}

	return items, rows.Err()
}

// GetPosition resolves an item's section and order number regardless of
// its active flag. The body is not read.
func (r *ItemRepository) GetPosition(ctx context.Context, itemID int64) (*entities.ItemPosition, error) {
	query := `
		SELECT section_id, order_number
		FROM items
		WHERE id = $1
	`

	var pos entities.ItemPosition
	err := r.db.QueryRow(ctx, query, itemID).Scan(&pos.SectionID, &pos.OrderNumber)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrItemNotFound
		}
		return nil, fmt.Errorf("get item position: %w", err)
	}

	return &pos, nil
}

// CountBySection returns the number of active items per section.
func (r *ItemRepository) CountBySection(ctx context.Context) (map[string]int, error) {
	query := `
		SELECT section_id, COUNT(*)
		FROM items
		WHERE is_active
		GROUP BY section_id
	`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("count items by section: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var (
			sectionID string
			n         int
		)
		if err := rows.Scan(&sectionID, &n); err != nil {
			return nil, fmt.Errorf("scan item count: %w", err)
		}
		counts[sectionID] = n
	}

	return counts, rows.Err()
}

// Deactivate hides an item from every future fetch.
func (r *ItemRepository) Deactivate(ctx context.Context, itemID int64) error {
	result, err := r.db.Exec(ctx, `UPDATE items SET is_active = FALSE WHERE id = $1`, itemID)
	if err != nil {
		return fmt.Errorf("deactivate item: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrItemNotFound
	}

	return nil
}

func scanItem(row pgx.Row) (entities.Item, error) {
	var (
		item  entities.Item
		level string
		body  []byte
	)
	if err := row.Scan(&item.ID, &level, &item.SectionID, &item.OrderNumber, &item.Active, &body); err != nil {
		return entities.Item{}, err
	}
	item.Level = entities.Level(level)

	if err := json.Unmarshal(body, &item.Body); err != nil {
		return entities.Item{}, fmt.Errorf("decode item %d body: %w", item.ID, err)
	}

	return item, nil
}
