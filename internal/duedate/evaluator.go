// Package duedate computes task due dates from declarative policies and
// classifies how urgent a task is.
package duedate

import (
	"time"

	"github.com/gosuda/careline/internal/domain"
	"github.com/gosuda/careline/internal/episode"
)

// Snapshot is everything a policy may read. Evaluate never consults a clock:
// Now is carried for callers that need it and is not read by any date policy.
type Snapshot struct {
	Client   *domain.Client
	States   domain.TaskStateMap
	Episodes []*domain.Episode
	Now      time.Time
}

// Supported reports whether Evaluate understands the policy type.
func Supported(t domain.PolicyType) bool {
	return t.Valid()
}

// Evaluate returns the due date for policy, or nil when the policy's anchor
// is absent. For an unsupported policy type it returns prev unchanged.
func Evaluate(snap Snapshot, policy domain.DuePolicy, prev *time.Time) *time.Time {
	c := snap.Client
	if c == nil {
		return prev
	}

	switch policy.Type {
	case domain.PolicyAfterAdmission:
		if c.AdmissionDate == nil {
			return nil
		}
		return shifted(*c.AdmissionDate, policy.Days)

	case domain.PolicyBeforeDischarge:
		if c.DischargeDate == nil {
			return nil
		}
		return shifted(*c.DischargeDate, -policy.Days)

	case domain.PolicyAfterTaskComplete:
		ref, ok := snap.States[policy.Task]
		if !ok || ref == nil || ref.CompletedDate == nil {
			return nil
		}
		return shifted(*ref.CompletedDate, policy.Days)

	case domain.PolicyAfterEpisodeStart:
		if cur := episode.Current(snap.Episodes); cur != nil {
			return shifted(cur.AnchorDate(), policy.Days)
		}
		if c.AdmissionDate == nil {
			return nil
		}
		return shifted(*c.AdmissionDate, policy.Days)

	case domain.PolicyAfterLocChange:
		latest := episode.MostRecent(snap.Episodes)
		if latest == nil {
			return nil
		}
		return shifted(latest.StartDate, policy.Days)

	case domain.PolicyAtAdmission:
		if c.AdmissionDate == nil {
			return nil
		}
		return shifted(*c.AdmissionDate, 0)

	default:
		return prev
	}
}

func shifted(anchor time.Time, days int) *time.Time {
	d := domain.AddDays(anchor, days)
	return &d
}
