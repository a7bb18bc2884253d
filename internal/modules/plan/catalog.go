package plan

import (
	"sort"

	"velo/internal/types"
)

// Catalog is an immutable id index over plans, including inactive ones so
// historical rides can still be priced and audited.
type Catalog struct {
	byID map[types.ID]Plan
	ids  []types.ID
}

func NewCatalog(plans []Plan) Catalog {
	c := Catalog{byID: make(map[types.ID]Plan, len(plans))}
	for _, p := range plans {
		if _, dup := c.byID[p.ID]; !dup {
			c.ids = append(c.ids, p.ID)
		}
		c.byID[p.ID] = p
	}
	sort.Slice(c.ids, func(i, j int) bool { return c.ids[i] < c.ids[j] })
	return c
}

func (c Catalog) Get(id types.ID) (Plan, bool) {
	p, ok := c.byID[id]
	return p, ok
}

func (c Catalog) Len() int {
	return len(c.ids)
}

// All returns plans ordered by id.
func (c Catalog) All() []Plan {
	out := make([]Plan, 0, len(c.ids))
	for _, id := range c.ids {
		out = append(out, c.byID[id])
	}
	return out
}
