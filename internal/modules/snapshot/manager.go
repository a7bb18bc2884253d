package snapshot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"velo/internal/logger"
	"velo/internal/modules/plan"
	"velo/internal/modules/promotion"
	"velo/internal/modules/rule"
	"velo/internal/types"
)

// Broadcaster tells other engine instances to drop their snapshot.
type Broadcaster interface {
	Broadcast(ctx context.Context) error
}

// Manager owns the current snapshot. Readers never block on each other;
// concurrent loads collapse into one call to the source.
type Manager struct {
	source Source
	log    logger.ILogger

	current     atomic.Pointer[Snapshot]
	version     atomic.Uint64
	generation  atomic.Uint64
	group       singleflight.Group
	broadcaster Broadcaster

	// OnLoad, when set, is called after every successful load.
	OnLoad func(s *Snapshot, took time.Duration)
}

func NewManager(source Source, log logger.ILogger) *Manager {
	return &Manager{source: source, log: log}
}

// SetBroadcaster makes InvalidateAll reach every instance, not only this one.
func (m *Manager) SetBroadcaster(b Broadcaster) {
	m.broadcaster = b
}

// Current returns the loaded snapshot, loading it first if there is none.
func (m *Manager) Current(ctx context.Context) (*Snapshot, error) {
	if s := m.current.Load(); s != nil {
		return s, nil
	}
	return m.Reload(ctx)
}

// Reload builds a fresh snapshot from the source and installs it. A load
// that raced with Invalidate is returned to its callers but not installed.
func (m *Manager) Reload(ctx context.Context) (*Snapshot, error) {
	gen := m.generation.Load()
	v, err, _ := m.group.Do(strconv.FormatUint(gen, 10), func() (any, error) {
		start := time.Now()
		s, err := m.load(ctx)
		if err != nil {
			return nil, err
		}
		if m.generation.Load() == gen {
			m.current.Store(s)
		}
		if m.OnLoad != nil {
			m.OnLoad(s, time.Since(start))
		}
		m.log.Info("pricing snapshot loaded",
			logger.Int64("version", int64(s.Version)),
			logger.Int("plans", s.Plans.Len()),
			logger.Int("rules", len(s.Rules)),
			logger.Int("promotions", len(s.Promotions)),
		)
		return s, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Snapshot), nil
}

// Invalidate drops the current snapshot; the next Current call reloads.
func (m *Manager) Invalidate() {
	m.generation.Add(1)
	m.current.Store(nil)
}

// InvalidateAll invalidates locally and, with a broadcaster, on every other
// instance.
func (m *Manager) InvalidateAll(ctx context.Context) error {
	m.Invalidate()
	if m.broadcaster == nil {
		return nil
	}
	return m.broadcaster.Broadcast(ctx)
}

// RunRefresher reloads the snapshot every interval until ctx is done. A
// failed reload keeps the previous snapshot.
func (m *Manager) RunRefresher(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := m.Reload(ctx); err != nil {
				m.log.Error("snapshot refresh failed", logger.Error(err))
			}
		}
	}
}

func (m *Manager) load(ctx context.Context) (*Snapshot, error) {
	var (
		plans  []plan.Plan
		rules  []rule.Rule
		promos []promotion.Promotion
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		plans, err = m.source.GetPlans(gctx)
		return err
	})
	g.Go(func() (err error) {
		rules, err = m.source.GetActiveRules(gctx)
		return err
	})
	g.Go(func() (err error) {
		promos, err = m.source.GetActivePromotions(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("load pricing snapshot: %w", err)
	}

	s := &Snapshot{
		LoadedAt: time.Now().UTC(),
		invalid:  make(map[types.ID]error),
	}
	for i := range plans {
		if err := plans[i].Validate(); err != nil {
			s.invalid[plans[i].ID] = fmt.Errorf("%w: %v", ErrInvalidConfiguration, err)
			m.log.Warning("invalid plan in configuration store",
				logger.String("plan_id", string(plans[i].ID)), logger.Error(err))
		}
	}
	s.Plans = plan.NewCatalog(plans)

	var problems []error
	s.Rules = make([]rule.Rule, 0, len(rules))
	for i := range rules {
		if err := rules[i].Validate(); err != nil {
			problems = append(problems, err)
			m.log.Error("invalid rule in configuration store",
				logger.String("rule_id", string(rules[i].ID)), logger.Error(err))
			continue
		}
		s.Rules = append(s.Rules, rules[i])
	}

	s.Promotions = make([]promotion.Promotion, 0, len(promos))
	for i := range promos {
		if err := promos[i].Validate(); err != nil {
			problems = append(problems, err)
			m.log.Error("invalid promotion in configuration store",
				logger.String("promotion_id", string(promos[i].ID)), logger.Error(err))
			continue
		}
		s.Promotions = append(s.Promotions, promos[i])
	}
	if len(problems) > 0 {
		s.problem = fmt.Errorf("%w: %w", ErrInvalidConfiguration, errors.Join(problems...))
	}

	s.Version = m.version.Add(1)
	return s, nil
}
