package promotion

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"velo/internal/types"
)

// ErrConsumptionConflict marks a promotion that ran out between selection and
// consumption. Callers retry selection without it.
var ErrConsumptionConflict = errors.New("promotion usage limit reached")

// Counter is the only mutator of promotion usage. TryConsume increments the
// usage of p by one unless that would exceed p's limit; false means the
// limit was already reached.
type Counter interface {
	TryConsume(ctx context.Context, p Promotion) (bool, error)
}

// MemoryCounter keeps one atomic counter per promotion, seeded from the usage
// count of the first snapshot it sees. Suitable for a single engine process.
type MemoryCounter struct {
	mu     sync.Mutex
	counts map[types.ID]*atomic.Int64
}

func NewMemoryCounter() *MemoryCounter {
	return &MemoryCounter{counts: make(map[types.ID]*atomic.Int64)}
}

func (m *MemoryCounter) counter(p Promotion) *atomic.Int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.counts[p.ID]
	if !ok {
		c = new(atomic.Int64)
		c.Store(p.UsageCount)
		m.counts[p.ID] = c
	}
	return c
}

func (m *MemoryCounter) TryConsume(_ context.Context, p Promotion) (bool, error) {
	c := m.counter(p)
	for {
		cur := c.Load()
		if p.UsageLimit != nil && cur >= *p.UsageLimit {
			return false, nil
		}
		if c.CompareAndSwap(cur, cur+1) {
			return true, nil
		}
	}
}

// Count returns the usage recorded for id, or false if id was never consumed.
func (m *MemoryCounter) Count(id types.ID) (int64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.counts[id]
	if !ok {
		return 0, false
	}
	return c.Load(), true
}
