package domain

import "slices"

type Zone string

const (
	ZoneRed    Zone = "red"
	ZonePurple Zone = "purple"
	ZoneYellow Zone = "yellow"
	ZoneGreen  Zone = "green"
)

// ZoneOrder lists zones by rank, most urgent first.
var ZoneOrder = []Zone{ZoneRed, ZonePurple, ZoneYellow, ZoneGreen} //nolint:gochecknoglobals // canonical enum list

// Rank returns the zone's sort rank (red=0 ... green=3); unknown zones sort last.
func (z Zone) Rank() int {
	if i := slices.Index(ZoneOrder, z); i >= 0 {
		return i
	}
	return len(ZoneOrder)
}

// Valid returns true if z is one of the four priority zones.
func (z Zone) Valid() bool {
	return slices.Contains(ZoneOrder, z)
}

type AlertType string

const (
	AlertAftercareNeeded   AlertType = "aftercare-needed"
	AlertAftercareCritical AlertType = "aftercare-critical"
	AlertTaskOverdue       AlertType = "task-overdue"
	AlertTaskDueToday      AlertType = "task-due-today"
	AlertDischargePrep     AlertType = "discharge-prep"
	AlertDischargePacket   AlertType = "discharge-packet"
	AlertDischargeOutcome  AlertType = "discharge-outcome"
	AlertDischargeReady    AlertType = "discharge-ready"
)

// Alert is one actionable item on the daily work queue. Alerts are recomputed
// on every aggregation pass and never persisted.
type Alert struct {
	Type           AlertType       `json:"type"`
	Priority       Zone            `json:"priority"`
	ClientID       string          `json:"client"`
	ClientInitials string          `json:"clientInitials,omitempty"`
	HouseID        string          `json:"houseId,omitempty"`
	TaskID         string          `json:"taskId,omitempty"`
	Message        string          `json:"message"`
	Action         string          `json:"action"`
	DueDate        string          `json:"dueDate"`
	SortOrder      int             `json:"sortOrder"`
	Checklist      []ChecklistItem `json:"checklist,omitempty"`
}

// Zones groups alerts by priority zone.
type Zones struct {
	Red    []Alert `json:"red"`
	Purple []Alert `json:"purple"`
	Yellow []Alert `json:"yellow"`
	Green  []Alert `json:"green"`
}

// EmptyZones returns zones with non-nil empty buckets.
func EmptyZones() Zones {
	return Zones{
		Red:    []Alert{},
		Purple: []Alert{},
		Yellow: []Alert{},
		Green:  []Alert{},
	}
}

// Bucket returns the alerts of one zone.
func (z Zones) Bucket(zone Zone) []Alert {
	switch zone {
	case ZoneRed:
		return z.Red
	case ZonePurple:
		return z.Purple
	case ZoneYellow:
		return z.Yellow
	case ZoneGreen:
		return z.Green
	default:
		return nil
	}
}

// Flatten returns all alerts in zone rank order.
func (z Zones) Flatten() []Alert {
	out := make([]Alert, 0, z.Len())
	for _, zone := range ZoneOrder {
		out = append(out, z.Bucket(zone)...)
	}
	return out
}

// Len is the total number of alerts across all zones.
func (z Zones) Len() int {
	return len(z.Red) + len(z.Purple) + len(z.Yellow) + len(z.Green)
}

// GroupByZone buckets already-sorted alerts by zone, preserving order.
// Alerts with an unknown zone are dropped.
func GroupByZone(alerts []Alert) Zones {
	zones := EmptyZones()
	for _, a := range alerts {
		switch a.Priority {
		case ZoneRed:
			zones.Red = append(zones.Red, a)
		case ZonePurple:
			zones.Purple = append(zones.Purple, a)
		case ZoneYellow:
			zones.Yellow = append(zones.Yellow, a)
		case ZoneGreen:
			zones.Green = append(zones.Green, a)
		}
	}
	return zones
}
