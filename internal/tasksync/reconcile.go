// Package tasksync keeps each client's task states in line with the task
// schema registry: it creates missing states, recomputes due dates and locks,
// bridges legacy client fields, and removes states for retired tasks.
package tasksync

import (
	"sort"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/gosuda/careline/internal/domain"
	"github.com/gosuda/careline/internal/duedate"
	"github.com/gosuda/careline/internal/schema"
)

// BridgeMode selects how legacy client fields and task states are reconciled.
type BridgeMode string

const (
	// BridgeBidirectional imports legacy completions into task state and
	// projects task completions back onto legacy fields.
	BridgeBidirectional BridgeMode = "bidirectional"
	// BridgeProjection treats legacy fields as a read-only projection of task
	// state: completions flow only from task state to legacy fields.
	BridgeProjection BridgeMode = "projection"
)

// Valid returns true if m is a known bridge mode.
func (m BridgeMode) Valid() bool {
	return m == BridgeBidirectional || m == BridgeProjection
}

// LegacyConflict is a task whose legacy flag and task state disagree in a way
// the synchronizer will not resolve on its own. Neither side is written.
type LegacyConflict struct {
	TaskID        string `json:"taskId"`
	LegacyField   string `json:"legacyField"`
	LegacySet     bool   `json:"legacySet"`
	TaskCompleted bool   `json:"taskCompleted"`
	Reason        string `json:"reason"`
}

// Result summarizes one reconcile pass.
type Result struct {
	Changed       bool             `json:"changed"`       // task states differ from what was loaded
	ClientChanged bool             `json:"clientChanged"` // legacy fields were written
	NoSchema      bool             `json:"noSchema"`
	Created       []string         `json:"created,omitempty"`
	Removed       []string         `json:"removed,omitempty"`
	Conflicts     []LegacyConflict `json:"conflicts,omitempty"`
}

// Reconciler is the pure synchronization core.
type Reconciler struct {
	registry *schema.Registry
	mode     BridgeMode
}

func NewReconciler(registry *schema.Registry, mode BridgeMode) *Reconciler {
	if !mode.Valid() {
		mode = BridgeBidirectional
	}
	return &Reconciler{registry: registry, mode: mode}
}

// Reconcile brings states in line with the registry, mutating states and the
// client's legacy fields in place, and returns the (possibly newly allocated)
// state map. With no registry it returns states untouched and NoSchema set.
func (r *Reconciler) Reconcile(client *domain.Client, states domain.TaskStateMap, episodes []*domain.Episode, now time.Time) (domain.TaskStateMap, Result) {
	var res Result
	if r.registry == nil {
		res.NoSchema = true
		return states, res
	}

	if states == nil {
		states = domain.TaskStateMap{}
	}

	snap := duedate.Snapshot{Client: client, States: states, Episodes: episodes, Now: now}

	for _, def := range r.registry.Definitions() {
		st, existed := states[def.ID]
		dirty := false

		if !existed || st == nil {
			st = r.defaultState(def, snap)
			st.Record(domain.HistoryEntry{At: now, Action: domain.HistoryCreated})
			states[def.ID] = st
			res.Created = append(res.Created, def.ID)
			dirty = true
		} else {
			dirty = r.mergeDefaults(st, def, client)
		}

		if normalizeCompletion(st, now) {
			dirty = true
		}

		if def.LegacyField != "" {
			taskDirty, clientDirty, conflict := r.bridgeLegacy(def, st, client, now)
			dirty = dirty || taskDirty
			res.ClientChanged = res.ClientChanged || clientDirty
			if conflict != nil {
				res.Conflicts = append(res.Conflicts, *conflict)
			}
		}

		if !duedate.Supported(def.Due.Type) {
			log.Debug().Str("client_id", client.ID).Str("task_id", def.ID).Str("policy", string(def.Due.Type)).
				Msg("tasksync: unsupported due-date policy; keeping previous due date")
		}
		if due := duedate.Evaluate(snap, def.Due, st.DueDate); !domain.SameDay(due, st.DueDate) {
			st.DueDate = due
			dirty = true
		}

		if locked := blocked(def, states); locked != st.Locked {
			st.Locked = locked
			dirty = true
		}

		if dirty {
			st.UpdatedAt = now
			res.Changed = true
		}
	}

	for id := range states {
		if !r.registry.Has(id) {
			delete(states, id)
			res.Removed = append(res.Removed, id)
			res.Changed = true
		}
	}
	sort.Strings(res.Removed)

	return states, res
}

func (r *Reconciler) defaultState(def domain.TaskDefinition, snap duedate.Snapshot) *domain.TaskState {
	return &domain.TaskState{
		TaskID:  def.ID,
		Status:  domain.TaskStatusPending,
		Owner:   ResolveOwner(snap.Client, def.DefaultOwnerRole),
		DueDate: duedate.Evaluate(snap, def.Due, nil),
		Locked:  len(def.DependsOn) > 0,
	}
}

// mergeDefaults fills fields an older record may lack. Existing values win.
func (r *Reconciler) mergeDefaults(st *domain.TaskState, def domain.TaskDefinition, client *domain.Client) bool {
	dirty := false
	if st.TaskID != def.ID {
		st.TaskID = def.ID
		dirty = true
	}
	if st.Status == "" {
		st.Status = domain.TaskStatusPending
		dirty = true
	}
	if st.Owner == "" {
		if owner := ResolveOwner(client, def.DefaultOwnerRole); owner != "" {
			st.Owner = owner
			dirty = true
		}
	}
	return dirty
}

// normalizeCompletion keeps Completed and Status in agreement.
func normalizeCompletion(st *domain.TaskState, now time.Time) bool {
	switch {
	case st.Completed && st.Status != domain.TaskStatusComplete:
		st.Status = domain.TaskStatusComplete
		return true
	case !st.Completed && st.Status == domain.TaskStatusComplete:
		st.Completed = true
		if st.CompletedDate == nil {
			t := now
			st.CompletedDate = &t
		}
		return true
	default:
		return false
	}
}

func (r *Reconciler) bridgeLegacy(def domain.TaskDefinition, st *domain.TaskState, client *domain.Client, now time.Time) (taskDirty, clientDirty bool, conflict *LegacyConflict) {
	flag := client.LegacyFlags[def.LegacyField]

	switch {
	case flag && !st.Completed:
		if r.mode == BridgeProjection {
			return false, false, &LegacyConflict{
				TaskID: def.ID, LegacyField: def.LegacyField, LegacySet: true,
				Reason: "legacy field set but task incomplete; legacy fields are read-only in projection mode",
			}
		}
		if st.WasReopened() {
			return false, false, &LegacyConflict{
				TaskID: def.ID, LegacyField: def.LegacyField, LegacySet: true,
				Reason: "task was reopened after completion but legacy field is still set",
			}
		}

		completed := now
		dated := false
		if def.LegacyDateField != "" {
			if d, ok := client.LegacyDates[def.LegacyDateField]; ok && !d.IsZero() {
				completed = d
				dated = true
			}
		}
		st.Completed = true
		st.Status = domain.TaskStatusComplete
		st.CompletedDate = &completed
		st.Record(domain.HistoryEntry{At: now, Action: domain.HistoryLegacyImport, Note: def.LegacyField})

		if def.LegacyDateField != "" && !dated {
			setLegacy(client, def, st, now)
			return true, true, nil
		}
		return true, false, nil

	case st.Completed && !flag:
		setLegacy(client, def, st, now)
		return false, true, nil

	case st.Completed && flag && def.LegacyDateField != "":
		if _, ok := client.LegacyDates[def.LegacyDateField]; !ok {
			setLegacy(client, def, st, now)
			return false, true, nil
		}
	}

	return false, false, nil
}

func setLegacy(client *domain.Client, def domain.TaskDefinition, st *domain.TaskState, now time.Time) {
	if client.LegacyFlags == nil {
		client.LegacyFlags = make(map[string]bool)
	}
	client.LegacyFlags[def.LegacyField] = true

	if def.LegacyDateField == "" {
		return
	}
	if client.LegacyDates == nil {
		client.LegacyDates = make(map[string]time.Time)
	}
	date := now
	if st.CompletedDate != nil {
		date = *st.CompletedDate
	}
	client.LegacyDates[def.LegacyDateField] = date
}

// clearLegacy removes the legacy projection of a reopened task.
func clearLegacy(client *domain.Client, def domain.TaskDefinition) bool {
	if def.LegacyField == "" {
		return false
	}
	changed := false
	if client.LegacyFlags[def.LegacyField] {
		delete(client.LegacyFlags, def.LegacyField)
		changed = true
	}
	if def.LegacyDateField != "" {
		if _, ok := client.LegacyDates[def.LegacyDateField]; ok {
			delete(client.LegacyDates, def.LegacyDateField)
			changed = true
		}
	}
	return changed
}

// blocked reports whether any prerequisite of def is incomplete.
func blocked(def domain.TaskDefinition, states domain.TaskStateMap) bool {
	for _, dep := range def.DependsOn {
		if !states.Completed(dep) {
			return true
		}
	}
	return false
}

// BlockedBy returns the incomplete prerequisites of def.
func BlockedBy(def domain.TaskDefinition, states domain.TaskStateMap) []string {
	var out []string
	for _, dep := range def.DependsOn {
		if !states.Completed(dep) {
			out = append(out, dep)
		}
	}
	return out
}

// ResolveOwner maps a default-owner role to the client's care-team initials,
// falling back to the role name when the role is unstaffed.
func ResolveOwner(client *domain.Client, role string) string {
	if client != nil {
		if initials := client.CareTeam[role]; initials != "" {
			return initials
		}
	}
	return role
}
