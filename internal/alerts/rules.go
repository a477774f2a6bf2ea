package alerts

import (
	"fmt"
	"slices"
	"time"

	"github.com/gosuda/careline/internal/domain"
	"github.com/gosuda/careline/internal/duedate"
	"github.com/gosuda/careline/internal/schema"
)

// Rules configures the per-client alert rules.
type Rules struct {
	AftercareTaskID     string // task whose completion clears the aftercare alerts
	PacketTaskID        string // task whose completion clears the 48-hour packet alert
	AftercareDay        int    // first day in care the aftercare alert fires
	AftercareCriticalAt int    // day in care the aftercare alert turns critical
	AftercareLastDay    int    // last day of the aftercare escalation window
	DischargePrepDays   int    // checklist window before discharge
	PacketWindowDays    int    // packet window before discharge
}

func DefaultRules() Rules {
	return Rules{
		AftercareTaskID:     "aftercareOptionsSent",
		PacketTaskID:        "dischargePacketUploaded",
		AftercareDay:        14,
		AftercareCriticalAt: 16,
		AftercareLastDay:    16,
		DischargePrepDays:   3,
		PacketWindowDays:    2,
	}
}

// Sort orders within a zone.
const (
	sortAftercareCritical = 0
	sortUrgent            = 1
	sortOverdue           = 2
	sortDueToday          = 3
	sortDischargePrep     = 4
	sortPacket            = 5
	sortOutcome           = 6
	sortReady             = 7
)

// clientView is what a rule sees of one client.
type clientView struct {
	client   *domain.Client
	states   domain.TaskStateMap
	registry *schema.Registry
	now      time.Time

	daysInCare   int
	hasAdmission bool
	daysLeft     int
	hasDischarge bool
}

func newClientView(c *domain.Client, states domain.TaskStateMap, registry *schema.Registry, now time.Time) *clientView {
	v := &clientView{client: c, states: states, registry: registry, now: now}
	v.daysInCare, v.hasAdmission = c.DaysInCare(now)
	v.daysLeft, v.hasDischarge = c.DaysUntilDischarge(now)
	return v
}

func (v *clientView) alert(t domain.AlertType, zone domain.Zone, sortOrder int) domain.Alert {
	return domain.Alert{
		Type:           t,
		Priority:       zone,
		ClientID:       v.client.ID,
		ClientInitials: v.client.Initials,
		HouseID:        v.client.HouseID,
		SortOrder:      sortOrder,
	}
}

func (v *clientView) label(taskID string) string {
	if def, ok := v.registry.Get(taskID); ok {
		return def.DisplayName()
	}
	return taskID
}

// taskIDs returns the client's task ids in registry order, followed by any
// ids the registry does not know.
func (v *clientView) taskIDs() []string {
	ids := v.registry.Order()
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		seen[id] = struct{}{}
	}
	var extra []string
	for id := range v.states {
		if _, ok := seen[id]; !ok {
			extra = append(extra, id)
		}
	}
	slices.Sort(extra)
	return append(ids, extra...)
}

type rule struct {
	name string
	eval func(Rules, *clientView) []domain.Alert
}

//nolint:gochecknoglobals // rule dispatch table
var clientRules = []rule{
	{name: "aftercare", eval: aftercareRule},
	{name: "aftercare-critical", eval: aftercareCriticalRule},
	{name: "milestones", eval: milestoneRule},
	{name: "discharge-prep", eval: dischargePrepRule},
	{name: "discharge-packet", eval: packetRule},
}

func aftercareRule(r Rules, v *clientView) []domain.Alert {
	d := v.daysInCare
	if !v.hasAdmission || d < r.AftercareDay || d > r.AftercareLastDay || v.states.Completed(r.AftercareTaskID) {
		return nil
	}
	a := v.alert(domain.AlertAftercareNeeded, domain.ZoneRed, sortUrgent)
	a.TaskID = r.AftercareTaskID
	a.Message = fmt.Sprintf("Day %d - Aftercare thread needed.", d)
	a.Action = "Send aftercare options"
	a.DueDate = aftercareDue(r, v)
	return []domain.Alert{a}
}

func aftercareCriticalRule(r Rules, v *clientView) []domain.Alert {
	d := v.daysInCare
	if !v.hasAdmission || d < r.AftercareCriticalAt || v.states.Completed(r.AftercareTaskID) {
		return nil
	}
	a := v.alert(domain.AlertAftercareCritical, domain.ZoneRed, sortAftercareCritical)
	a.TaskID = r.AftercareTaskID
	a.Message = fmt.Sprintf("CRITICAL: Day %d - Aftercare options overdue.", d)
	a.Action = "Send aftercare options today"
	a.DueDate = aftercareDue(r, v)
	return []domain.Alert{a}
}

func aftercareDue(r Rules, v *clientView) string {
	if st := v.states[r.AftercareTaskID]; st != nil && st.DueDate != nil {
		return domain.FormatDay(st.DueDate)
	}
	due := domain.AddDays(*v.client.AdmissionDate, r.AftercareDay)
	return domain.FormatDay(&due)
}

func milestoneRule(_ Rules, v *clientView) []domain.Alert {
	var out []domain.Alert
	for _, id := range v.taskIDs() {
		st := v.states[id]
		var a domain.Alert
		switch duedate.Classify(st, v.now) {
		case duedate.UrgencyOverdue:
			a = v.alert(domain.AlertTaskOverdue, domain.ZoneRed, sortOverdue)
			a.Message = "Overdue: " + v.label(id)
		case duedate.UrgencyDueToday:
			a = v.alert(domain.AlertTaskDueToday, domain.ZoneYellow, sortDueToday)
			a.Message = "Due today: " + v.label(id)
		default:
			continue
		}
		a.TaskID = id
		a.Action = "Complete " + v.label(id)
		a.DueDate = domain.FormatDay(st.DueDate)
		out = append(out, a)
	}
	return out
}

func dischargePrepRule(r Rules, v *clientView) []domain.Alert {
	left := v.daysLeft
	if !v.hasDischarge || left < 0 || left > r.DischargePrepDays {
		return nil
	}
	incomplete := v.client.IncompleteChecklist()
	if len(incomplete) == 0 {
		return nil
	}

	a := v.alert(domain.AlertDischargePrep, domain.ZonePurple, sortDischargePrep)
	if left == 0 {
		a.Priority = domain.ZoneRed
		a.SortOrder = sortUrgent
	}
	a.Message = fmt.Sprintf("Discharge in %d day(s) - %d checklist item(s) incomplete", left, len(incomplete))
	a.Action = "Finish discharge checklist"
	a.DueDate = domain.FormatDay(v.client.DischargeDate)
	a.Checklist = append([]domain.ChecklistItem(nil), v.client.DischargeChecklist...)
	return []domain.Alert{a}
}

func packetRule(r Rules, v *clientView) []domain.Alert {
	left := v.daysLeft
	if !v.hasDischarge || left < 0 || left > r.PacketWindowDays || v.states.Completed(r.PacketTaskID) {
		return nil
	}
	a := v.alert(domain.AlertDischargePacket, domain.ZoneYellow, sortPacket)
	a.TaskID = r.PacketTaskID
	a.Message = fmt.Sprintf("Discharge packet due - discharge in %d day(s)", left)
	a.Action = "Upload discharge packet"
	a.DueDate = domain.FormatDay(v.client.DischargeDate)
	return []domain.Alert{a}
}
