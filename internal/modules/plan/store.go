// README: Plan store backed by PostgreSQL; plans are versioned and never deleted.
package plan

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

var (
	ErrNotFound        = errors.New("plan not found")
	ErrVersionConflict = errors.New("plan was modified concurrently")
)

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

const selectPlans = `
	SELECT p.id, p.name, p.version,
	       p.hourly_rate::text, p.daily_rate::text, p.weekly_rate::text, p.monthly_rate::text,
	       p.minimum_hours, p.discount::text, p.is_active, p.conditions,
	       p.created_at, p.updated_at,
	       o.overtime_type, o.overtime_value::text,
	       o.hourly_start_hour, o.hourly_end_hour,
	       o.daily_start_hour, o.daily_end_hour,
	       o.weekly_start_hour, o.weekly_end_hour,
	       o.monthly_start_hour, o.monthly_end_hour
	FROM pricing_plans p
	LEFT JOIN plan_overrides o ON o.plan_id = p.id`

// ListAll returns every plan, active or not.
func (s *Store) ListAll(ctx context.Context) ([]Plan, error) {
	return s.query(ctx, selectPlans+` ORDER BY p.id`)
}

// ListActive returns plans riders can currently be billed under.
func (s *Store) ListActive(ctx context.Context) ([]Plan, error) {
	return s.query(ctx, selectPlans+` WHERE p.is_active ORDER BY p.id`)
}

func (s *Store) Get(ctx context.Context, id types.ID) (*Plan, error) {
	plans, err := s.query(ctx, selectPlans+` WHERE p.id = $1`, string(id))
	if err != nil {
		return nil, err
	}
	if len(plans) == 0 {
		return nil, ErrNotFound
	}
	return &plans[0], nil
}

func (s *Store) query(ctx context.Context, sql string, args ...any) ([]Plan, error) {
	rows, err := s.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query plans: %w", err)
	}
	defer rows.Close()

	var plans []Plan
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			return nil, err
		}
		plans = append(plans, p)
	}
	return plans, rows.Err()
}

func scanPlan(row pgx.Row) (Plan, error) {
	var (
		p                              Plan
		id                             string
		hourly, daily, weekly, monthly string
		discount                       string
		otType, otValue                *string
		hours                          [2 * len(Tiers)]*int
	)
	err := row.Scan(
		&id, &p.Name, &p.Version,
		&hourly, &daily, &weekly, &monthly,
		&p.MinimumHours, &discount, &p.IsActive, &p.Conditions,
		&p.CreatedAt, &p.UpdatedAt,
		&otType, &otValue,
		&hours[0], &hours[1], &hours[2], &hours[3],
		&hours[4], &hours[5], &hours[6], &hours[7],
	)
	if err != nil {
		return Plan{}, fmt.Errorf("scan plan: %w", err)
	}
	p.ID = types.ID(id)
	if p.Rates, err = parseRates(hourly, daily, weekly, monthly); err != nil {
		return Plan{}, fmt.Errorf("plan %s: %w", id, err)
	}
	if p.Discount, err = decimal.NewFromString(discount); err != nil {
		return Plan{}, fmt.Errorf("plan %s discount: %w", id, err)
	}
	if otType != nil && otValue != nil {
		v, err := decimal.NewFromString(*otValue)
		if err != nil {
			return Plan{}, fmt.Errorf("plan %s override value: %w", id, err)
		}
		rule, err := NewOvertimeRule(*otType, v)
		if err != nil {
			return Plan{}, fmt.Errorf("plan %s: %w", id, err)
		}
		o := &Override{Rule: rule}
		for _, t := range Tiers {
			o.Windows[t] = types.WindowFromPtrs(hours[2*t], hours[2*t+1])
		}
		p.Override = o
	}
	return p, nil
}

func parseRates(hourly, daily, weekly, monthly string) (Rates, error) {
	var (
		r   Rates
		err error
	)
	if r.Hourly, err = decimal.NewFromString(hourly); err != nil {
		return r, err
	}
	if r.Daily, err = decimal.NewFromString(daily); err != nil {
		return r, err
	}
	if r.Weekly, err = decimal.NewFromString(weekly); err != nil {
		return r, err
	}
	if r.Monthly, err = decimal.NewFromString(monthly); err != nil {
		return r, err
	}
	return r, nil
}

// Create validates and inserts p with version 1. An empty id is replaced by a
// fresh UUID.
func (s *Store) Create(ctx context.Context, p *Plan) error {
	if p.ID == "" {
		p.ID = types.ID(uuid.NewString())
	}
	if err := p.Validate(); err != nil {
		return err
	}
	now := time.Now().UTC()
	p.Version = 1
	p.CreatedAt, p.UpdatedAt = now, now

	return pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO pricing_plans (
				id, name, version, hourly_rate, daily_rate, weekly_rate, monthly_rate,
				minimum_hours, discount, is_active, conditions, created_at, updated_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
			string(p.ID), p.Name, p.Version,
			p.Rates.Hourly.String(), p.Rates.Daily.String(), p.Rates.Weekly.String(), p.Rates.Monthly.String(),
			p.MinimumHours, p.Discount.String(), p.IsActive, conditions(p.Conditions), now, now,
		)
		if err != nil {
			return fmt.Errorf("insert plan: %w", err)
		}
		return writeOverride(ctx, tx, p)
	})
}

// Update replaces the stored plan when its version still matches p.Version,
// then bumps the version.
func (s *Store) Update(ctx context.Context, p *Plan) error {
	if err := p.Validate(); err != nil {
		return err
	}
	now := time.Now().UTC()
	return pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE pricing_plans
			SET name = $1, version = version + 1,
			    hourly_rate = $2, daily_rate = $3, weekly_rate = $4, monthly_rate = $5,
			    minimum_hours = $6, discount = $7, is_active = $8, conditions = $9, updated_at = $10
			WHERE id = $11 AND version = $12`,
			p.Name,
			p.Rates.Hourly.String(), p.Rates.Daily.String(), p.Rates.Weekly.String(), p.Rates.Monthly.String(),
			p.MinimumHours, p.Discount.String(), p.IsActive, conditions(p.Conditions), now,
			string(p.ID), p.Version,
		)
		if err != nil {
			return fmt.Errorf("update plan: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return s.missingOrConflict(ctx, tx, p.ID)
		}
		p.Version++
		p.UpdatedAt = now
		return writeOverride(ctx, tx, p)
	})
}

// SetActive flips the active flag. Deactivated plans stay in the table.
func (s *Store) SetActive(ctx context.Context, id types.ID, active bool) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE pricing_plans
		SET is_active = $1, version = version + 1, updated_at = NOW()
		WHERE id = $2`, active, string(id))
	if err != nil {
		return fmt.Errorf("set plan active: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) missingOrConflict(ctx context.Context, tx pgx.Tx, id types.ID) error {
	var exists bool
	if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM pricing_plans WHERE id = $1)`, string(id)).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return ErrNotFound
	}
	return ErrVersionConflict
}

func writeOverride(ctx context.Context, tx pgx.Tx, p *Plan) error {
	if p.Override == nil {
		_, err := tx.Exec(ctx, `DELETE FROM plan_overrides WHERE plan_id = $1`, string(p.ID))
		return err
	}
	args := []any{string(p.ID), p.Override.Rule.Kind(), p.Override.Rule.Value().String()}
	for _, t := range Tiers {
		start, end := p.Override.Window(t).Ptrs()
		args = append(args, start, end)
	}
	_, err := tx.Exec(ctx, `
		INSERT INTO plan_overrides (
			plan_id, overtime_type, overtime_value,
			hourly_start_hour, hourly_end_hour, daily_start_hour, daily_end_hour,
			weekly_start_hour, weekly_end_hour, monthly_start_hour, monthly_end_hour
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (plan_id) DO UPDATE SET
			overtime_type = EXCLUDED.overtime_type,
			overtime_value = EXCLUDED.overtime_value,
			hourly_start_hour = EXCLUDED.hourly_start_hour,
			hourly_end_hour = EXCLUDED.hourly_end_hour,
			daily_start_hour = EXCLUDED.daily_start_hour,
			daily_end_hour = EXCLUDED.daily_end_hour,
			weekly_start_hour = EXCLUDED.weekly_start_hour,
			weekly_end_hour = EXCLUDED.weekly_end_hour,
			monthly_start_hour = EXCLUDED.monthly_start_hour,
			monthly_end_hour = EXCLUDED.monthly_end_hour`,
		args...,
	)
	if err != nil {
		return fmt.Errorf("write override: %w", err)
	}
	return nil
}

func conditions(c []string) []string {
	if c == nil {
		return []string{}
	}
	return c
}
