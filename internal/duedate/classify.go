package duedate

import (
	"time"

	"github.com/gosuda/careline/internal/domain"
)

type Urgency string

const (
	UrgencyOverdue  Urgency = "overdue"
	UrgencyDueToday Urgency = "dueToday"
	UrgencyUpcoming Urgency = "upcoming"
	UrgencyOnTrack  Urgency = "onTrack"
)

// UpcomingWindowDays is how far ahead a due date counts as upcoming.
const UpcomingWindowDays = 3

// Classify derives a task's urgency from its due date relative to now's
// calendar day. Completed tasks and tasks without a due date are on track.
func Classify(s *domain.TaskState, now time.Time) Urgency {
	if s == nil || s.Completed || s.DueDate == nil {
		return UrgencyOnTrack
	}

	today := domain.Day(now)
	due := domain.Day(*s.DueDate)

	switch {
	case due.Before(today):
		return UrgencyOverdue
	case due.Equal(today):
		return UrgencyDueToday
	case !due.After(today.AddDate(0, 0, UpcomingWindowDays)):
		return UrgencyUpcoming
	default:
		return UrgencyOnTrack
	}
}
