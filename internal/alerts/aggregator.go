// Package alerts builds the daily prioritized work queue: every client's
// compliance state is run through a table of rules and the resulting alerts
// are ordered and grouped into red, purple, yellow and green zones.
package alerts

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/gosuda/careline/internal/domain"
	"github.com/gosuda/careline/internal/schema"
)

// Scope restricts aggregation to the clients a viewer sees.
type Scope struct {
	Owner string `json:"owner,omitempty"` // care-team initials; empty means all clients
}

// Key identifies the scope in caches.
func (s Scope) Key() string {
	if s.Owner == "" {
		return "all"
	}
	return "owner:" + s.Owner
}

// Matches reports whether c is in scope.
func (s Scope) Matches(c *domain.Client) bool {
	return s.Owner == "" || c.OwnedBy(s.Owner)
}

// Aggregator computes zoned alerts.
type Aggregator struct {
	registry   *schema.Registry
	clients    domain.ClientRepository
	states     domain.TaskStateRepository
	discharges DischargeView
	rules      Rules
	now        func() time.Time
}

// NewAggregator creates an aggregator. discharges may be nil, which skips the
// upcoming-discharge pass.
func NewAggregator(registry *schema.Registry, clients domain.ClientRepository, states domain.TaskStateRepository, discharges DischargeView, rules Rules) *Aggregator {
	return &Aggregator{
		registry:   registry,
		clients:    clients,
		states:     states,
		discharges: discharges,
		rules:      rules,
		now:        time.Now,
	}
}

// WithClock overrides the clock.
func (a *Aggregator) WithClock(now func() time.Time) *Aggregator {
	a.now = now
	return a
}

// Aggregate returns the zoned alerts for scope. A client whose data cannot be
// read is logged and skipped; only a failure to list clients is an error.
func (a *Aggregator) Aggregate(ctx context.Context, scope Scope) (domain.Zones, error) {
	clients, err := a.clients.List(ctx)
	if err != nil {
		return domain.EmptyZones(), fmt.Errorf("alerts.Aggregator.Aggregate: %w", err)
	}

	now := a.now()
	var collected []domain.Alert
	for _, c := range clients {
		if !c.Active() || !scope.Matches(c) {
			continue
		}
		alerts, err := a.clientAlerts(ctx, c, now)
		if err != nil {
			log.Warn().Err(err).Str("client_id", c.ID).Str("scope", scope.Key()).Msg("alerts: skipping client")
			continue
		}
		collected = append(collected, alerts...)
	}

	collected = append(collected, a.dischargePass(ctx, scope, now, collected)...)

	Sort(collected)
	return domain.GroupByZone(collected), nil
}

func (a *Aggregator) clientAlerts(ctx context.Context, c *domain.Client, now time.Time) ([]domain.Alert, error) {
	states, err := a.states.Get(ctx, c.ID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	v := newClientView(c, states, a.registry, now)
	var out []domain.Alert
	for _, r := range clientRules {
		out = append(out, r.eval(a.rules, v)...)
	}
	return out, nil
}

// dischargePass adds upcoming-discharge alerts not already covered by the
// per-client rules, keyed by client and alert type.
func (a *Aggregator) dischargePass(ctx context.Context, scope Scope, now time.Time, existing []domain.Alert) []domain.Alert {
	if a.discharges == nil {
		return nil
	}
	upcoming, err := a.discharges.UpcomingDischarges(ctx, scope, now)
	if err != nil {
		log.Warn().Err(err).Str("scope", scope.Key()).Msg("alerts: upcoming discharges unavailable")
		return nil
	}

	seen := make(map[dedupKey]struct{}, len(existing))
	for _, al := range existing {
		seen[dedupKey{al.ClientID, al.Type}] = struct{}{}
	}

	var out []domain.Alert
	for _, d := range upcoming {
		al := dischargeAlert(d)
		k := dedupKey{al.ClientID, al.Type}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, al)
	}
	return out
}

type dedupKey struct {
	client string
	typ    domain.AlertType
}

// Sort orders alerts by zone rank, then sort order. Equal alerts keep their
// relative order.
func Sort(alerts []domain.Alert) {
	sort.SliceStable(alerts, func(i, j int) bool {
		ri, rj := alerts[i].Priority.Rank(), alerts[j].Priority.Rank()
		if ri != rj {
			return ri < rj
		}
		return alerts[i].SortOrder < alerts[j].SortOrder
	})
}
