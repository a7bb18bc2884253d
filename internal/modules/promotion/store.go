// README: Promotion store backed by PostgreSQL; also the transactional usage counter.
package promotion

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"velo/internal/types"
)

var ErrNotFound = errors.New("promotion not found")

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

const selectPromotions = `
	SELECT p.id, p.name, p.discount_type, p.discount_value::text,
	       p.start_date, p.end_date, p.usage_limit, p.usage_count, p.is_active,
	       COALESCE(array_agg(pp.plan_id) FILTER (WHERE pp.plan_id IS NOT NULL), '{}'),
	       p.created_at, p.updated_at
	FROM promotions p
	LEFT JOIN promotion_plans pp ON pp.promotion_id = p.id`

// ListActive returns promotions that are switched on, not yet over and not
// exhausted. Date and usage checks are repeated at calculation time.
func (s *Store) ListActive(ctx context.Context) ([]Promotion, error) {
	return s.query(ctx, selectPromotions+`
		WHERE p.is_active AND p.end_date > NOW()
		  AND (p.usage_limit IS NULL OR p.usage_count < p.usage_limit)
		GROUP BY p.id ORDER BY p.id`)
}

func (s *Store) ListAll(ctx context.Context) ([]Promotion, error) {
	return s.query(ctx, selectPromotions+` GROUP BY p.id ORDER BY p.id`)
}

func (s *Store) Get(ctx context.Context, id types.ID) (*Promotion, error) {
	promos, err := s.query(ctx, selectPromotions+` WHERE p.id = $1 GROUP BY p.id`, string(id))
	if err != nil {
		return nil, err
	}
	if len(promos) == 0 {
		return nil, ErrNotFound
	}
	return &promos[0], nil
}

func (s *Store) query(ctx context.Context, sql string, args ...any) ([]Promotion, error) {
	rows, err := s.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query promotions: %w", err)
	}
	defer rows.Close()

	var promos []Promotion
	for rows.Next() {
		p, err := scanPromotion(rows)
		if err != nil {
			return nil, err
		}
		promos = append(promos, p)
	}
	return promos, rows.Err()
}

func scanPromotion(row pgx.Row) (Promotion, error) {
	var (
		p           Promotion
		id          string
		kind, value string
		planIDs     []string
	)
	err := row.Scan(&id, &p.Name, &kind, &value,
		&p.StartDate, &p.EndDate, &p.UsageLimit, &p.UsageCount, &p.IsActive,
		&planIDs, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return Promotion{}, fmt.Errorf("scan promotion: %w", err)
	}
	p.ID = types.ID(id)
	v, err := decimal.NewFromString(value)
	if err != nil {
		return Promotion{}, fmt.Errorf("promotion %s value: %w", id, err)
	}
	if p.Discount, err = NewDiscount(kind, v); err != nil {
		return Promotion{}, fmt.Errorf("promotion %s: %w", id, err)
	}
	p.PlanIDs = make(map[types.ID]struct{}, len(planIDs))
	for _, pid := range planIDs {
		p.PlanIDs[types.ID(pid)] = struct{}{}
	}
	return p, nil
}

func (s *Store) Create(ctx context.Context, p *Promotion) error {
	if p.ID == "" {
		p.ID = types.ID(uuid.NewString())
	}
	if err := p.Validate(); err != nil {
		return err
	}
	now := time.Now().UTC()
	p.CreatedAt, p.UpdatedAt = now, now
	return pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO promotions (
				id, name, discount_type, discount_value, start_date, end_date,
				usage_limit, usage_count, is_active, created_at, updated_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
			string(p.ID), p.Name, p.Discount.Kind(), p.Discount.Value().String(),
			p.StartDate, p.EndDate, p.UsageLimit, p.UsageCount, p.IsActive, now, now,
		)
		if err != nil {
			return fmt.Errorf("insert promotion: %w", err)
		}
		return writePlans(ctx, tx, p)
	})
}

// Update rewrites the configuration of p. usage_count is left alone; only a
// Counter moves it.
func (s *Store) Update(ctx context.Context, p *Promotion) error {
	if err := p.Validate(); err != nil {
		return err
	}
	p.UpdatedAt = time.Now().UTC()
	return pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE promotions
			SET name = $1, discount_type = $2, discount_value = $3, start_date = $4, end_date = $5,
			    usage_limit = $6, is_active = $7, updated_at = $8
			WHERE id = $9 AND (CAST($6 AS BIGINT) IS NULL OR usage_count <= $6)`,
			p.Name, p.Discount.Kind(), p.Discount.Value().String(), p.StartDate, p.EndDate,
			p.UsageLimit, p.IsActive, p.UpdatedAt, string(p.ID),
		)
		if err != nil {
			return fmt.Errorf("update promotion: %w", err)
		}
		if tag.RowsAffected() == 0 {
			var exists bool
			if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM promotions WHERE id = $1)`, string(p.ID)).Scan(&exists); err != nil {
				return err
			}
			if !exists {
				return ErrNotFound
			}
			return &types.ValidationError{Entity: fmt.Sprintf("promotion %q", p.ID), Problems: []string{"usage limit is below current usage"}}
		}
		if _, err := tx.Exec(ctx, `DELETE FROM promotion_plans WHERE promotion_id = $1`, string(p.ID)); err != nil {
			return err
		}
		return writePlans(ctx, tx, p)
	})
}

func writePlans(ctx context.Context, tx pgx.Tx, p *Promotion) error {
	batch := &pgx.Batch{}
	for _, planID := range p.PlanIDList() {
		batch.Queue(`INSERT INTO promotion_plans (promotion_id, plan_id) VALUES ($1, $2)`, string(p.ID), string(planID))
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("write promotion plans: %w", err)
	}
	return nil
}

// PostgresCounter consumes usage with a single conditional UPDATE so two
// concurrent rides can never both take the last slot.
type PostgresCounter struct {
	db *pgxpool.Pool
}

func NewPostgresCounter(db *pgxpool.Pool) *PostgresCounter {
	return &PostgresCounter{db: db}
}

func (c *PostgresCounter) TryConsume(ctx context.Context, p Promotion) (bool, error) {
	tag, err := c.db.Exec(ctx, `
		UPDATE promotions
		SET usage_count = usage_count + 1, updated_at = NOW()
		WHERE id = $1 AND (usage_limit IS NULL OR usage_count < usage_limit)`,
		string(p.ID),
	)
	if err != nil {
		return false, fmt.Errorf("consume promotion %s: %w", p.ID, err)
	}
	return tag.RowsAffected() == 1, nil
}
