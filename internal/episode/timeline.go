// Package episode manages each client's level-of-care timeline.
package episode

import (
	"slices"
	"time"

	"github.com/gosuda/careline/internal/domain"
)

// Current returns the open episode, or nil when none is open.
func Current(episodes []*domain.Episode) *domain.Episode {
	var open *domain.Episode
	for _, e := range episodes {
		if e.Open() && (open == nil || e.StartDate.After(open.StartDate)) {
			open = e
		}
	}
	return open
}

// MostRecent returns the episode with the latest start date, or nil.
func MostRecent(episodes []*domain.Episode) *domain.Episode {
	var latest *domain.Episode
	for _, e := range episodes {
		if latest == nil || e.StartDate.After(latest.StartDate) {
			latest = e
		}
	}
	return latest
}

// Sorted returns the episodes ordered by start date.
func Sorted(episodes []*domain.Episode) []*domain.Episode {
	out := slices.Clone(episodes)
	slices.SortStableFunc(out, func(a, b *domain.Episode) int {
		return a.StartDate.Compare(b.StartDate)
	})
	return out
}

// OpenCount returns the number of open episodes.
func OpenCount(episodes []*domain.Episode) int {
	n := 0
	for _, e := range episodes {
		if e.Open() {
			n++
		}
	}
	return n
}

// closeAt sets the end date of e. An episode cannot end before it starts.
func closeAt(e *domain.Episode, end time.Time, nextLevel string) {
	end = domain.Day(end)
	if end.Before(e.StartDate) {
		end = e.StartDate
	}
	e.EndDate = &end
	e.NextLevel = nextLevel
}

func cloneAll(episodes []*domain.Episode) []*domain.Episode {
	out := make([]*domain.Episode, 0, len(episodes))
	for _, e := range episodes {
		c := *e
		out = append(out, &c)
	}
	return out
}
