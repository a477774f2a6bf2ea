// Package dashboard memoizes the zoned alert queue per viewer scope and
// serves filtered views of it.
package dashboard

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"github.com/gosuda/careline/internal/alerts"
	"github.com/gosuda/careline/internal/domain"
)

const (
	DefaultTTL             = 60 * time.Second
	DefaultRefreshInterval = 5 * time.Minute
	DefaultMaxScopes       = 256
)

// Source computes zoned alerts for a scope.
type Source interface {
	Aggregate(ctx context.Context, scope alerts.Scope) (domain.Zones, error)
}

// Config tunes the cache. Zero values fall back to the defaults.
type Config struct {
	TTL             time.Duration
	RefreshInterval time.Duration
	MaxScopes       int
}

type entry struct {
	scope    alerts.Scope
	zones    domain.Zones
	loadedAt time.Time // zero means stale
	gen      uint64    // invalidation generation the load started in
}

// Cache holds one aggregation result per scope. A result is served unchanged
// until its TTL passes or Invalidate is called; on load failure the last
// good result, or empty zones, is served instead.
type Cache struct {
	source  Source
	clients domain.ClientRepository
	cfg     Config

	mu      sync.Mutex
	entries *lru.Cache[string, entry]
	gen     uint64 // bumped by Invalidate

	group singleflight.Group
	now   func() time.Time
}

func NewCache(source Source, clients domain.ClientRepository, cfg Config) (*Cache, error) {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.RefreshInterval <= 0 {
		cfg.RefreshInterval = DefaultRefreshInterval
	}
	if cfg.MaxScopes <= 0 {
		cfg.MaxScopes = DefaultMaxScopes
	}
	entries, err := lru.New[string, entry](cfg.MaxScopes)
	if err != nil {
		return nil, fmt.Errorf("dashboard.NewCache: %w", err)
	}
	return &Cache{
		source:  source,
		clients: clients,
		cfg:     cfg,
		entries: entries,
		now:     time.Now,
	}, nil
}

// WithClock overrides the clock.
func (c *Cache) WithClock(now func() time.Time) *Cache {
	c.now = now
	return c
}

// Get returns the zones for scope, loading them if the cached result is
// missing, stale or invalidated. The returned zones must not be modified.
func (c *Cache) Get(ctx context.Context, scope alerts.Scope) domain.Zones {
	key := scope.Key()

	c.mu.Lock()
	e, ok := c.entries.Get(key)
	fresh := ok && !e.loadedAt.IsZero() && c.now().Sub(e.loadedAt) < c.cfg.TTL
	c.mu.Unlock()

	if fresh {
		return e.zones
	}
	return c.load(ctx, scope)
}

// RefreshNow reloads scope regardless of TTL.
func (c *Cache) RefreshNow(ctx context.Context, scope alerts.Scope) domain.Zones {
	return c.load(ctx, scope)
}

// Invalidate marks every cached scope stale. Stale results are still served
// as a fallback if the next load fails.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.gen++
	for _, key := range c.entries.Keys() {
		if e, ok := c.entries.Peek(key); ok {
			e.loadedAt = time.Time{}
			c.entries.Add(key, e)
		}
	}
}

// Scopes returns the cached scopes, most recently used last.
func (c *Cache) Scopes() []alerts.Scope {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]alerts.Scope, 0, c.entries.Len())
	for _, e := range c.entries.Values() {
		out = append(out, e.scope)
	}
	return out
}

// Start refreshes every cached scope on a fixed interval until ctx is done.
func (c *Cache) Start(ctx context.Context) {
	ticker := time.NewTicker(c.cfg.RefreshInterval)
	defer ticker.Stop()

	log.Info().Dur("interval", c.cfg.RefreshInterval).Msg("dashboard: refresh loop started")
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("dashboard: refresh loop stopped")
			return
		case <-ticker.C:
			c.refreshAll(ctx)
		}
	}
}

func (c *Cache) refreshAll(ctx context.Context) {
	scopes := c.Scopes()
	for _, scope := range scopes {
		c.load(ctx, scope)
	}
	log.Debug().Int("scopes", len(scopes)).Msg("dashboard: periodic refresh")
}

// load runs the aggregator once per scope and invalidation generation at a
// time, so a read issued after Invalidate never joins an older load. A load
// that races with Invalidate is stored as stale and never replaces a result
// from a later generation.
func (c *Cache) load(ctx context.Context, scope alerts.Scope) domain.Zones {
	key := scope.Key()

	c.mu.Lock()
	gen := c.gen
	c.mu.Unlock()

	v, _, _ := c.group.Do(key+"#"+strconv.FormatUint(gen, 10), func() (any, error) {
		zones, err := c.source.Aggregate(ctx, scope)
		if err != nil {
			log.Warn().Err(err).Str("scope", key).Msg("dashboard: load failed; serving last known result")
			return c.fallback(key), nil
		}

		c.mu.Lock()
		defer c.mu.Unlock()
		if prev, ok := c.entries.Peek(key); ok && prev.gen > gen {
			return zones, nil
		}
		e := entry{scope: scope, zones: zones, loadedAt: c.now(), gen: gen}
		if gen != c.gen {
			e.loadedAt = time.Time{}
		}
		c.entries.Add(key, e)
		return zones, nil
	})
	return v.(domain.Zones) //nolint:forcetypeassert // only zones are stored
}

func (c *Cache) fallback(key string) domain.Zones {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries.Peek(key); ok {
		return e.zones
	}
	return domain.EmptyZones()
}
