package domain

import (
	"context"
	"time"
)

type TaskStatus string

const (
	TaskStatusPending  TaskStatus = "pending"
	TaskStatusComplete TaskStatus = "complete"
)

// MaxTaskHistory bounds the per-task history log.
const MaxTaskHistory = 20

// HistoryEntry records a single change to a task state.
type HistoryEntry struct {
	At     time.Time `json:"at"`
	Action string    `json:"action"` // "created", "completed", "reopened", "legacy-import", ...
	Actor  string    `json:"actor,omitempty"`
	Note   string    `json:"note,omitempty"`
}

const (
	HistoryCreated      = "created"
	HistoryCompleted    = "completed"
	HistoryReopened     = "reopened"
	HistoryLegacyImport = "legacy-import"
	HistoryUpdated      = "updated"
)

// TaskState is a client's progress on one task definition.
type TaskState struct {
	TaskID        string         `json:"taskId"`
	Status        TaskStatus     `json:"status"`
	Completed     bool           `json:"completed"`
	CompletedDate *time.Time     `json:"completedDate,omitempty"`
	Owner         string         `json:"owner,omitempty"`
	DueDate       *time.Time     `json:"dueDate,omitempty"`
	Locked        bool           `json:"locked"`
	Notes         string         `json:"notes,omitempty"`
	Evidence      []string       `json:"evidence,omitempty"`
	UpdatedAt     time.Time      `json:"updatedAt"`
	History       []HistoryEntry `json:"history,omitempty"`
}

// Record appends a history entry, keeping only the newest MaxTaskHistory entries.
func (s *TaskState) Record(e HistoryEntry) {
	s.History = append(s.History, e)
	if over := len(s.History) - MaxTaskHistory; over > 0 {
		s.History = append([]HistoryEntry(nil), s.History[over:]...)
	}
}

// WasReopened reports whether the most recent completion-related history entry
// is an explicit reopen.
func (s *TaskState) WasReopened() bool {
	for i := len(s.History) - 1; i >= 0; i-- {
		switch s.History[i].Action {
		case HistoryReopened:
			return true
		case HistoryCompleted, HistoryLegacyImport:
			return false
		}
	}
	return false
}

// Clone returns a deep copy.
func (s *TaskState) Clone() *TaskState {
	c := *s
	if s.CompletedDate != nil {
		d := *s.CompletedDate
		c.CompletedDate = &d
	}
	if s.DueDate != nil {
		d := *s.DueDate
		c.DueDate = &d
	}
	if s.Evidence != nil {
		c.Evidence = append([]string(nil), s.Evidence...)
	}
	if s.History != nil {
		c.History = append([]HistoryEntry(nil), s.History...)
	}
	return &c
}

// TaskStateMap is a client's task states keyed by task id.
type TaskStateMap map[string]*TaskState

// Clone returns a deep copy of the map.
func (m TaskStateMap) Clone() TaskStateMap {
	out := make(TaskStateMap, len(m))
	for id, s := range m {
		if s == nil {
			out[id] = nil
			continue
		}
		out[id] = s.Clone()
	}
	return out
}

// Completed reports whether the task with the given id exists and is completed.
func (m TaskStateMap) Completed(taskID string) bool {
	s, ok := m[taskID]
	return ok && s != nil && s.Completed
}

type TaskStateRepository interface {
	// Get returns ErrNotFound when the client has no persisted task states yet.
	Get(ctx context.Context, clientID string) (TaskStateMap, error)
	Put(ctx context.Context, clientID string, states TaskStateMap) error
	Delete(ctx context.Context, clientID string) error
}
