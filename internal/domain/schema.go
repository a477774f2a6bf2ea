package domain

import "slices"

type PolicyType string

const (
	PolicyAfterAdmission    PolicyType = "afterAdmission"
	PolicyBeforeDischarge   PolicyType = "beforeDischarge"
	PolicyAfterTaskComplete PolicyType = "afterTaskComplete"
	PolicyAfterEpisodeStart PolicyType = "afterEpisodeStart"
	PolicyAfterLocChange    PolicyType = "afterLocChange"
	PolicyAtAdmission       PolicyType = "atAdmission"
)

// KnownPolicyTypes is the canonical set of due-date policies.
var KnownPolicyTypes = []PolicyType{ //nolint:gochecknoglobals // canonical enum list
	PolicyAfterAdmission,
	PolicyBeforeDischarge,
	PolicyAfterTaskComplete,
	PolicyAfterEpisodeStart,
	PolicyAfterLocChange,
	PolicyAtAdmission,
}

// Valid returns true if p is a known due-date policy.
func (p PolicyType) Valid() bool {
	return slices.Contains(KnownPolicyTypes, p)
}

// DuePolicy describes how a task's due date is derived.
type DuePolicy struct {
	Type PolicyType `json:"type" yaml:"type"`
	Days int        `json:"days,omitempty" yaml:"days,omitempty"`
	Task string     `json:"task,omitempty" yaml:"task,omitempty"` // afterTaskComplete only
}

// TaskDefinition is one entry of the task schema registry. Immutable at runtime.
type TaskDefinition struct {
	ID               string    `json:"id" yaml:"-"`
	Label            string    `json:"label,omitempty" yaml:"label,omitempty"`
	Due              DuePolicy `json:"due" yaml:"due"`
	DependsOn        []string  `json:"dependsOn,omitempty" yaml:"dependsOn,omitempty"`
	DefaultOwnerRole string    `json:"defaultOwnerRole" yaml:"defaultOwnerRole"`
	LegacyField      string    `json:"legacyField,omitempty" yaml:"legacyField,omitempty"`
	LegacyDateField  string    `json:"legacyDateField,omitempty" yaml:"legacyDateField,omitempty"`
}

// DisplayName returns the label, or the id when no label is set.
func (d *TaskDefinition) DisplayName() string {
	if d.Label != "" {
		return d.Label
	}
	return d.ID
}
