package dashboard

import (
	"context"
	"sync"

	"github.com/gosuda/careline/internal/alerts"
	"github.com/gosuda/careline/internal/domain"
	"github.com/gosuda/careline/internal/journey"
)

// Board is one viewer's interactive dashboard: a scope plus the currently
// selected filter. Changing the filter invalidates the cache so the next
// read is recomputed.
type Board struct {
	cache *Cache
	scope alerts.Scope

	mu     sync.Mutex
	filter Filter
}

func NewBoard(cache *Cache, scope alerts.Scope) *Board {
	return &Board{cache: cache, scope: scope}
}

func (b *Board) Scope() alerts.Scope {
	return b.scope
}

func (b *Board) Filter() Filter {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.filter
}

// SetFilter replaces the whole filter.
func (b *Board) SetFilter(f Filter) error {
	if err := f.Validate(); err != nil {
		return err
	}
	b.apply(func(cur *Filter) { *cur = f })
	return nil
}

func (b *Board) SetStage(stage journey.Stage) error {
	if err := (Filter{Stage: stage}).Validate(); err != nil {
		return err
	}
	b.apply(func(cur *Filter) { cur.Stage = stage })
	return nil
}

func (b *Board) SetHouse(house string) {
	b.apply(func(cur *Filter) { cur.House = house })
}

func (b *Board) ClearFilters() {
	b.apply(func(cur *Filter) { *cur = Filter{} })
}

func (b *Board) apply(fn func(*Filter)) {
	b.mu.Lock()
	fn(&b.filter)
	b.mu.Unlock()
	b.cache.Invalidate()
}

// Zones returns the board's current view.
func (b *Board) Zones(ctx context.Context) domain.Zones {
	return b.cache.Filtered(ctx, b.scope, b.Filter())
}
