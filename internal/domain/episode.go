package domain

import (
	"context"
	"time"
)

type EpisodeSource string

const (
	EpisodeSourceAdmission EpisodeSource = "admission"
	EpisodeSourceStepDown  EpisodeSource = "step-down-notification"
	EpisodeSourceStepUp    EpisodeSource = "step-up"
	EpisodeSourceManual    EpisodeSource = "manual"
)

// Episode is a contiguous span at one level of care.
type Episode struct {
	ID                  string        `json:"id"`
	ClientID            string        `json:"clientId"`
	LevelOfCare         string        `json:"levelOfCare"`
	StartDate           time.Time     `json:"startDate"`
	EndDate             *time.Time    `json:"endDate,omitempty"` // nil while open
	ContinuationDate    *time.Time    `json:"continuationDate,omitempty"`
	NextLevel           string        `json:"nextLevel,omitempty"`
	Source              EpisodeSource `json:"source"`
	MentalHealthPrimary bool          `json:"mentalHealthPrimary"`
	DocumentRef         string        `json:"documentRef,omitempty"`
}

// Open reports whether the episode has not been closed.
func (e *Episode) Open() bool {
	return e.EndDate == nil
}

// AnchorDate is the continuation date when set, otherwise the start date.
func (e *Episode) AnchorDate() time.Time {
	if e.ContinuationDate != nil {
		return *e.ContinuationDate
	}
	return e.StartDate
}

type EpisodeRepository interface {
	// ListByClient returns the client's episodes; an empty slice when none exist.
	ListByClient(ctx context.Context, clientID string) ([]*Episode, error)
	// ReplaceAll writes the client's full timeline as one record.
	ReplaceAll(ctx context.Context, clientID string, episodes []*Episode) error
}
