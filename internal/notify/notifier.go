// Package notify escalates red-zone alerts to a chat channel. Each alert is
// announced once while it stays red; an alert that clears and comes back is
// announced again.
package notify

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/gosuda/careline/internal/alerts"
	"github.com/gosuda/careline/internal/dashboard"
	"github.com/gosuda/careline/internal/domain"
)

// DefaultInterval is how often Run re-checks the red zone without a trigger.
const DefaultInterval = 15 * time.Minute

// Sender delivers one message to the escalation channel.
type Sender interface {
	Send(ctx context.Context, text string) error
}

// ZoneSource returns the current zones for a scope.
// *dashboard.Cache satisfies this interface.
type ZoneSource interface {
	Get(ctx context.Context, scope alerts.Scope) domain.Zones
}

type alertKey struct {
	clientID string
	alert    domain.AlertType
	taskID   string
}

// Escalator announces new red-zone alerts.
type Escalator struct {
	source ZoneSource
	sender Sender

	mu       sync.Mutex
	notified map[alertKey]struct{}
}

func NewEscalator(source ZoneSource, sender Sender) *Escalator {
	return &Escalator{source: source, sender: sender, notified: make(map[alertKey]struct{})}
}

// Check sends one message per red alert not yet announced and returns how
// many were sent. Alerts whose send failed are retried on the next check.
func (e *Escalator) Check(ctx context.Context) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	red := e.source.Get(ctx, alerts.Scope{}).Red
	current := make(map[alertKey]struct{}, len(red))

	sent := 0
	var firstErr error
	for _, a := range red {
		key := alertKey{clientID: a.ClientID, alert: a.Type, taskID: a.TaskID}
		if _, done := e.notified[key]; done {
			current[key] = struct{}{}
			continue
		}
		if err := e.sender.Send(ctx, Format(a)); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		current[key] = struct{}{}
		sent++
	}
	e.notified = current

	if firstErr != nil {
		return sent, fmt.Errorf("notify.Escalator.Check: %w", firstErr)
	}
	return sent, nil
}

// Run checks every interval and whenever a change event arrives, until ctx
// is done. events may be nil.
func (e *Escalator) Run(ctx context.Context, interval time.Duration, events <-chan dashboard.Event) {
	if interval <= 0 {
		interval = DefaultInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	e.check(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.check(ctx)
		case _, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			e.check(ctx)
		}
	}
}

func (e *Escalator) check(ctx context.Context) {
	n, err := e.Check(ctx)
	if err != nil {
		log.Warn().Err(err).Int("sent", n).Msg("notify: escalation incomplete")
		return
	}
	if n > 0 {
		log.Info().Int("sent", n).Msg("notify: red-zone alerts escalated")
	}
}

// Format renders an alert as a single chat line.
func Format(a domain.Alert) string {
	var b strings.Builder
	b.WriteString(":rotating_light: ")
	who := a.ClientInitials
	if who == "" {
		who = a.ClientID
	}
	b.WriteString(who)
	if a.HouseID != "" {
		b.WriteString(" (" + a.HouseID + ")")
	}
	b.WriteString(": " + a.Message)
	if a.Action != "" {
		b.WriteString(" Next: " + a.Action)
	}
	if a.DueDate != "" {
		b.WriteString(" [due " + a.DueDate + "]")
	}
	return b.String()
}
