package dashboard

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/gosuda/careline/internal/alerts"
	"github.com/gosuda/careline/internal/domain"
	"github.com/gosuda/careline/internal/journey"
)

// Filter narrows a zoned result by journey stage and/or house.
type Filter struct {
	Stage journey.Stage `json:"stage,omitempty"`
	House string        `json:"house,omitempty"`
}

func (f Filter) Empty() bool {
	return f.Stage == "" && f.House == ""
}

func (f Filter) Validate() error {
	if f.Stage != "" && !f.Stage.Valid() {
		return fmt.Errorf("unknown journey stage %q: %w", f.Stage, domain.ErrInvalidInput)
	}
	return nil
}

// Filtered returns the cached zones for scope narrowed by f. The aggregator
// is not re-run: the cached alerts are flattened, intersected with the stage
// segment and house, and grouped again.
func (c *Cache) Filtered(ctx context.Context, scope alerts.Scope, f Filter) domain.Zones {
	zones := c.Get(ctx, scope)
	if f.Empty() {
		return zones
	}

	var members map[string]struct{}
	if f.Stage != "" {
		clients, err := c.clients.List(ctx)
		if err != nil {
			log.Warn().Err(err).Str("scope", scope.Key()).Str("stage", string(f.Stage)).
				Msg("dashboard: cannot resolve journey segment")
			return domain.EmptyZones()
		}
		members = journey.Segment(clients, f.Stage, c.now())
	}

	return Intersect(zones, members, f.House)
}

// Intersect keeps alerts whose client is in members (when members is
// non-nil) and whose house equals house (when house is set).
func Intersect(zones domain.Zones, members map[string]struct{}, house string) domain.Zones {
	var kept []domain.Alert
	for _, a := range zones.Flatten() {
		if members != nil {
			if _, ok := members[a.ClientID]; !ok {
				continue
			}
		}
		if house != "" && a.HouseID != house {
			continue
		}
		kept = append(kept, a)
	}
	return domain.GroupByZone(kept)
}
