package alerts

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/gosuda/careline/internal/domain"
)

// UpcomingDischarge is one row of the upcoming-discharges view.
type UpcomingDischarge struct {
	ClientID        string
	ClientInitials  string
	HouseID         string
	DischargeDate   time.Time
	DaysUntil       int
	Critical        bool
	PacketComplete  bool
	OutcomeRecorded bool
	Checklist       []domain.ChecklistItem
}

// DischargeView lists clients nearing discharge.
type DischargeView interface {
	UpcomingDischarges(ctx context.Context, scope Scope, now time.Time) ([]UpcomingDischarge, error)
}

// DefaultDischargeWindowDays is how far ahead RepoDischargeView looks.
const DefaultDischargeWindowDays = 7

// RepoDischargeView builds the upcoming-discharges view from stored clients
// and task states. A discharge is critical when it is at most one day away
// and the checklist is still incomplete.
type RepoDischargeView struct {
	clients      domain.ClientRepository
	states       domain.TaskStateRepository
	packetTaskID string
	windowDays   int
}

func NewRepoDischargeView(clients domain.ClientRepository, states domain.TaskStateRepository, packetTaskID string, windowDays int) *RepoDischargeView {
	if windowDays <= 0 {
		windowDays = DefaultDischargeWindowDays
	}
	return &RepoDischargeView{clients: clients, states: states, packetTaskID: packetTaskID, windowDays: windowDays}
}

func (v *RepoDischargeView) UpcomingDischarges(ctx context.Context, scope Scope, now time.Time) ([]UpcomingDischarge, error) {
	clients, err := v.clients.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("alerts.RepoDischargeView.UpcomingDischarges: %w", err)
	}

	var out []UpcomingDischarge
	for _, c := range clients {
		if !c.Active() || !scope.Matches(c) {
			continue
		}
		left, ok := c.DaysUntilDischarge(now)
		if !ok || left < 0 || left > v.windowDays {
			continue
		}

		states, err := v.states.Get(ctx, c.ID)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			log.Warn().Err(err).Str("client_id", c.ID).Msg("alerts: skipping client in discharge view")
			continue
		}

		incomplete := len(c.IncompleteChecklist()) > 0
		out = append(out, UpcomingDischarge{
			ClientID:        c.ID,
			ClientInitials:  c.Initials,
			HouseID:         c.HouseID,
			DischargeDate:   *c.DischargeDate,
			DaysUntil:       left,
			Critical:        left <= 1 && incomplete,
			PacketComplete:  states.Completed(v.packetTaskID),
			OutcomeRecorded: c.DischargeOutcome != "",
			Checklist:       c.DischargeChecklist,
		})
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].DaysUntil < out[j].DaysUntil })
	return out, nil
}

// dischargeAlert maps one upcoming discharge to its alert: critical first,
// then a missing packet, then a missing outcome, else ready.
func dischargeAlert(d UpcomingDischarge) domain.Alert {
	a := domain.Alert{
		ClientID:       d.ClientID,
		ClientInitials: d.ClientInitials,
		HouseID:        d.HouseID,
		DueDate:        domain.FormatDay(&d.DischargeDate),
	}

	switch {
	case d.Critical:
		a.Type, a.Priority, a.SortOrder = domain.AlertDischargePrep, domain.ZoneRed, sortUrgent
		a.Message = fmt.Sprintf("Discharge in %d day(s) - checklist incomplete", d.DaysUntil)
		a.Action = "Finish discharge checklist"
		a.Checklist = append([]domain.ChecklistItem(nil), d.Checklist...)
	case !d.PacketComplete:
		a.Type, a.Priority, a.SortOrder = domain.AlertDischargePacket, domain.ZonePurple, sortDischargePrep
		a.Message = fmt.Sprintf("Discharge in %d day(s) - packet not uploaded", d.DaysUntil)
		a.Action = "Prepare discharge packet"
	case !d.OutcomeRecorded:
		a.Type, a.Priority, a.SortOrder = domain.AlertDischargeOutcome, domain.ZoneYellow, sortOutcome
		a.Message = fmt.Sprintf("Discharge in %d day(s) - outcome not recorded", d.DaysUntil)
		a.Action = "Record discharge outcome"
	default:
		a.Type, a.Priority, a.SortOrder = domain.AlertDischargeReady, domain.ZoneGreen, sortReady
		a.Message = fmt.Sprintf("Discharge in %d day(s) - ready", d.DaysUntil)
		a.Action = "Confirm discharge"
	}
	return a
}
