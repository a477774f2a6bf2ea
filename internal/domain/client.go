package domain

import (
	"context"
	"math"
	"time"
)

type ClientStatus string

const (
	ClientStatusActive     ClientStatus = "active"
	ClientStatusDischarged ClientStatus = "discharged"
)

// ChecklistItem is one line of the discharge checklist.
type ChecklistItem struct {
	ID       string `json:"id"`
	Label    string `json:"label"`
	Complete bool   `json:"complete"`
}

// Client is the subset of a client record the compliance engine reads and writes.
type Client struct {
	ID            string            `json:"id"`
	Initials      string            `json:"initials"`
	HouseID       string            `json:"houseId,omitempty"`
	Status        ClientStatus      `json:"status"`
	CareTeam      map[string]string `json:"careTeam,omitempty"` // role -> staff initials
	AdmissionDate *time.Time        `json:"admissionDate,omitempty"`
	DischargeDate *time.Time        `json:"dischargeDate,omitempty"`

	// Legacy boolean+date pairs predating schema-driven task state, keyed by
	// the registry's legacyField / legacyDateField names.
	LegacyFlags map[string]bool      `json:"legacyFlags,omitempty"`
	LegacyDates map[string]time.Time `json:"legacyDates,omitempty"`

	DischargeChecklist []ChecklistItem `json:"dischargeChecklist,omitempty"`
	DischargeOutcome   string          `json:"dischargeOutcome,omitempty"`
	UpdatedAt          time.Time       `json:"updatedAt"`
}

// Active reports whether the client is still in care.
func (c *Client) Active() bool {
	return c.Status != ClientStatusDischarged
}

// OwnedBy reports whether any care-team role is held by the given initials.
func (c *Client) OwnedBy(initials string) bool {
	for _, v := range c.CareTeam {
		if v == initials {
			return true
		}
	}
	return false
}

// DaysInCare is the ceiling of whole days from admission to now. The second
// return value is false when there is no admission date.
func (c *Client) DaysInCare(now time.Time) (int, bool) {
	if c.AdmissionDate == nil {
		return 0, false
	}
	return ceilDays(now.Sub(*c.AdmissionDate)), true
}

// DaysUntilDischarge is the ceiling of whole days from now to the discharge
// date. The second return value is false when there is no discharge date.
func (c *Client) DaysUntilDischarge(now time.Time) (int, bool) {
	if c.DischargeDate == nil {
		return 0, false
	}
	return ceilDays(c.DischargeDate.Sub(now)), true
}

// IncompleteChecklist returns the discharge checklist items not yet complete.
func (c *Client) IncompleteChecklist() []ChecklistItem {
	var out []ChecklistItem
	for _, item := range c.DischargeChecklist {
		if !item.Complete {
			out = append(out, item)
		}
	}
	return out
}

func ceilDays(d time.Duration) int {
	return int(math.Ceil(d.Hours() / 24))
}

type ClientRepository interface {
	GetByID(ctx context.Context, id string) (*Client, error)
	List(ctx context.Context) ([]*Client, error)
	Put(ctx context.Context, c *Client) error
}
