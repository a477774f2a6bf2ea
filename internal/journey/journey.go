// Package journey places clients on their treatment journey by days in care.
package journey

import (
	"time"

	"github.com/gosuda/careline/internal/domain"
)

type Stage string

const (
	StageDischargePending Stage = "discharge-pending"
	StageWeekOne          Stage = "week-one"
	StageStabilization    Stage = "stabilization"
	StageAftercareWindow  Stage = "aftercare-window"
	StageEstablished      Stage = "established"
	StageExtended         Stage = "extended"
	StageDischarged       Stage = "discharged"
)

//nolint:gochecknoglobals // canonical enum list
var Stages = []Stage{
	StageDischargePending,
	StageWeekOne,
	StageStabilization,
	StageAftercareWindow,
	StageEstablished,
	StageExtended,
	StageDischarged,
}

// DischargePendingDays is how close a planned discharge must be for the
// client to move into the discharge-pending stage.
const DischargePendingDays = 7

func (s Stage) Valid() bool {
	for _, v := range Stages {
		if v == s {
			return true
		}
	}
	return false
}

// StageOf returns the client's stage at now. An active client with no
// admission date is treated as week one.
func StageOf(c *domain.Client, now time.Time) Stage {
	if !c.Active() {
		return StageDischarged
	}
	if left, ok := c.DaysUntilDischarge(now); ok && left >= 0 && left <= DischargePendingDays {
		return StageDischargePending
	}

	d, _ := c.DaysInCare(now)
	switch {
	case d <= 7:
		return StageWeekOne
	case d <= 13:
		return StageStabilization
	case d <= 16:
		return StageAftercareWindow
	case d <= 29:
		return StageEstablished
	default:
		return StageExtended
	}
}

// Segment returns the ids of clients in stage at now.
func Segment(clients []*domain.Client, stage Stage, now time.Time) map[string]struct{} {
	out := make(map[string]struct{})
	for _, c := range clients {
		if StageOf(c, now) == stage {
			out[c.ID] = struct{}{}
		}
	}
	return out
}

// Counts returns the number of clients per stage.
func Counts(clients []*domain.Client, now time.Time) map[Stage]int {
	out := make(map[Stage]int, len(Stages))
	for _, c := range clients {
		out[StageOf(c, now)]++
	}
	return out
}
