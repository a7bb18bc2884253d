// README: Rule store backed by PostgreSQL.
package rule

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

var ErrNotFound = errors.New("rule not found")

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

const selectRules = `
	SELECT id, name, day_of_week, start_hour, end_hour, multiplier::text,
	       is_active, priority, created_at, updated_at
	FROM pricing_rules`

func (s *Store) ListActive(ctx context.Context) ([]Rule, error) {
	return s.query(ctx, selectRules+` WHERE is_active ORDER BY priority DESC, id`)
}

func (s *Store) ListAll(ctx context.Context) ([]Rule, error) {
	return s.query(ctx, selectRules+` ORDER BY priority DESC, id`)
}

func (s *Store) Get(ctx context.Context, id types.ID) (*Rule, error) {
	rules, err := s.query(ctx, selectRules+` WHERE id = $1`, string(id))
	if err != nil {
		return nil, err
	}
	if len(rules) == 0 {
		return nil, ErrNotFound
	}
	return &rules[0], nil
}

func (s *Store) query(ctx context.Context, sql string, args ...any) ([]Rule, error) {
	rows, err := s.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query rules: %w", err)
	}
	defer rows.Close()

	var rules []Rule
	for rows.Next() {
		r, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		rules = append(rules, r)
	}
	return rules, rows.Err()
}

func scanRule(row pgx.Row) (Rule, error) {
	var (
		r              Rule
		id, multiplier string
		day            *int
		startH, endH   *int
	)
	if err := row.Scan(&id, &r.Name, &day, &startH, &endH, &multiplier,
		&r.IsActive, &r.Priority, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return Rule{}, fmt.Errorf("scan rule: %w", err)
	}
	r.ID = types.ID(id)
	if day != nil {
		wd := time.Weekday(*day)
		r.DayOfWeek = &wd
	}
	r.Window = types.WindowFromPtrs(startH, endH)
	m, err := decimal.NewFromString(multiplier)
	if err != nil {
		return Rule{}, fmt.Errorf("rule %s multiplier: %w", id, err)
	}
	r.Multiplier = m
	return r, nil
}

func (s *Store) Create(ctx context.Context, r *Rule) error {
	if r.ID == "" {
		r.ID = types.ID(uuid.NewString())
	}
	if err := r.Validate(); err != nil {
		return err
	}
	now := time.Now().UTC()
	r.CreatedAt, r.UpdatedAt = now, now
	startH, endH := r.Window.Ptrs()
	_, err := s.db.Exec(ctx, `
		INSERT INTO pricing_rules (
			id, name, day_of_week, start_hour, end_hour, multiplier, is_active, priority, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		string(r.ID), r.Name, dayPtr(r.DayOfWeek), startH, endH, r.Multiplier.String(),
		r.IsActive, r.Priority, now, now,
	)
	if err != nil {
		return fmt.Errorf("insert rule: %w", err)
	}
	return nil
}

func (s *Store) Update(ctx context.Context, r *Rule) error {
	if err := r.Validate(); err != nil {
		return err
	}
	r.UpdatedAt = time.Now().UTC()
	startH, endH := r.Window.Ptrs()
	tag, err := s.db.Exec(ctx, `
		UPDATE pricing_rules
		SET name = $1, day_of_week = $2, start_hour = $3, end_hour = $4,
		    multiplier = $5, is_active = $6, priority = $7, updated_at = $8
		WHERE id = $9`,
		r.Name, dayPtr(r.DayOfWeek), startH, endH, r.Multiplier.String(),
		r.IsActive, r.Priority, r.UpdatedAt, string(r.ID),
	)
	if err != nil {
		return fmt.Errorf("update rule: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func dayPtr(d *time.Weekday) *int {
	if d == nil {
		return nil
	}
	v := int(*d)
	return &v
}
