package tasksync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/gosuda/careline/internal/domain"
	"github.com/gosuda/careline/internal/schema"
)

// Repositories is the persistence surface the synchronizer needs.
type Repositories interface {
	Clients() domain.ClientRepository
	TaskStates() domain.TaskStateRepository
	Episodes() domain.EpisodeRepository
}

// Locker serializes work per client.
type Locker interface {
	Do(ctx context.Context, key string, fn func(context.Context) error) error
}

// ChangeNotifier is told when a client's task state or legacy fields changed.
type ChangeNotifier interface {
	ClientChanged(ctx context.Context, clientID string)
}

// Service runs reconcile passes against stored clients and applies
// user-driven task changes. All work for one client runs under its lock.
type Service struct {
	registry   *schema.Registry
	reconciler *Reconciler
	repos      Repositories
	locks      Locker
	notifier   ChangeNotifier
	now        func() time.Time
}

// NewService creates a synchronizer. notifier may be nil.
func NewService(registry *schema.Registry, repos Repositories, locks Locker, notifier ChangeNotifier, mode BridgeMode) *Service {
	return &Service{
		registry:   registry,
		reconciler: NewReconciler(registry, mode),
		repos:      repos,
		locks:      locks,
		notifier:   notifier,
		now:        time.Now,
	}
}

// WithClock overrides the clock.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Registry returns the schema the service reconciles against.
func (s *Service) Registry() *schema.Registry {
	return s.registry
}

// ClientError is a per-client failure inside SyncAll.
type ClientError struct {
	ClientID string `json:"clientId"`
	Error    string `json:"error"`
}

// Report summarizes a SyncAll run.
type Report struct {
	Synced    int                         `json:"synced"`
	Changed   int                         `json:"changed"`
	Failed    []ClientError               `json:"failed,omitempty"`
	Conflicts map[string][]LegacyConflict `json:"conflicts,omitempty"`
}

// CompleteInput describes a completion.
type CompleteInput struct {
	Actor    string
	Note     string
	Date     time.Time // zero means now
	Evidence []string
}

// UpdateInput describes an edit to a task's free-form fields. Nil pointers
// leave the field unchanged.
type UpdateInput struct {
	Actor       string
	Owner       *string
	Notes       *string
	AddEvidence []string
}

type loaded struct {
	client   *domain.Client
	states   domain.TaskStateMap
	episodes []*domain.Episode
}

// SyncClient reconciles one client's task states and persists any change.
func (s *Service) SyncClient(ctx context.Context, clientID string) (Result, error) {
	var res Result
	err := s.locks.Do(ctx, clientID, func(ctx context.Context) error {
		_, r, err := s.syncLocked(ctx, clientID)
		res = r
		return err
	})
	if err != nil {
		return Result{}, fmt.Errorf("tasksync.SyncClient %s: %w", clientID, err)
	}
	return res, nil
}

// SyncLocked reconciles one client for a caller that already holds the
// client's lock, such as the episode timeline after a level-of-care change.
func (s *Service) SyncLocked(ctx context.Context, clientID string) error {
	if _, _, err := s.syncLocked(ctx, clientID); err != nil {
		return fmt.Errorf("tasksync.SyncLocked %s: %w", clientID, err)
	}
	return nil
}

// SyncAll reconciles every stored client. A failing client is recorded in the
// report and does not stop the run.
func (s *Service) SyncAll(ctx context.Context) (*Report, error) {
	clients, err := s.repos.Clients().List(ctx)
	if err != nil {
		return nil, fmt.Errorf("tasksync.SyncAll: %w", err)
	}

	report := &Report{}
	for _, c := range clients {
		if err := ctx.Err(); err != nil {
			return report, fmt.Errorf("tasksync.SyncAll: %w", err)
		}
		res, err := s.SyncClient(ctx, c.ID)
		if err != nil {
			log.Error().Err(err).Str("client_id", c.ID).Msg("tasksync: sync failed")
			report.Failed = append(report.Failed, ClientError{ClientID: c.ID, Error: err.Error()})
			continue
		}
		report.Synced++
		if res.Changed || res.ClientChanged {
			report.Changed++
		}
		if len(res.Conflicts) > 0 {
			if report.Conflicts == nil {
				report.Conflicts = make(map[string][]LegacyConflict)
			}
			report.Conflicts[c.ID] = res.Conflicts
		}
	}

	log.Info().Int("synced", report.Synced).Int("changed", report.Changed).Int("failed", len(report.Failed)).
		Msg("tasksync: sync all complete")
	return report, nil
}

// Tasks returns the client's reconciled task states.
func (s *Service) Tasks(ctx context.Context, clientID string) (domain.TaskStateMap, error) {
	var out domain.TaskStateMap
	err := s.locks.Do(ctx, clientID, func(ctx context.Context) error {
		l, _, err := s.syncLocked(ctx, clientID)
		if err != nil {
			return err
		}
		out = l.states.Clone()
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("tasksync.Tasks %s: %w", clientID, err)
	}
	return out, nil
}

// CompleteTask marks a task complete. A locked task cannot be completed.
// Completing an already complete task returns it unchanged.
func (s *Service) CompleteTask(ctx context.Context, clientID, taskID string, in CompleteInput) (*domain.TaskState, error) {
	out, err := s.mutateTask(ctx, clientID, taskID, func(l *loaded, def domain.TaskDefinition, st *domain.TaskState, now time.Time) (bool, error) {
		if st.Completed {
			return false, nil
		}
		if st.Locked {
			return false, fmt.Errorf("%w: waiting on %v", domain.ErrTaskLocked, BlockedBy(def, l.states))
		}

		date := in.Date
		if date.IsZero() {
			date = now
		}
		st.Completed = true
		st.Status = domain.TaskStatusComplete
		st.CompletedDate = &date
		st.Evidence = append(st.Evidence, in.Evidence...)
		st.Record(domain.HistoryEntry{At: now, Action: domain.HistoryCompleted, Actor: in.Actor, Note: in.Note})
		return true, nil
	})
	if err != nil {
		return nil, fmt.Errorf("tasksync.CompleteTask: %w", err)
	}
	return out, nil
}

// ReopenTask returns a completed task to pending and clears its legacy
// projection. Reopening an incomplete task returns it unchanged.
func (s *Service) ReopenTask(ctx context.Context, clientID, taskID, actor, note string) (*domain.TaskState, error) {
	out, err := s.mutateTask(ctx, clientID, taskID, func(l *loaded, def domain.TaskDefinition, st *domain.TaskState, now time.Time) (bool, error) {
		if !st.Completed {
			return false, nil
		}
		st.Completed = false
		st.Status = domain.TaskStatusPending
		st.CompletedDate = nil
		st.Record(domain.HistoryEntry{At: now, Action: domain.HistoryReopened, Actor: actor, Note: note})
		clearLegacy(l.client, def)
		return true, nil
	})
	if err != nil {
		return nil, fmt.Errorf("tasksync.ReopenTask: %w", err)
	}
	return out, nil
}

// UpdateTask edits owner, notes or evidence.
func (s *Service) UpdateTask(ctx context.Context, clientID, taskID string, in UpdateInput) (*domain.TaskState, error) {
	out, err := s.mutateTask(ctx, clientID, taskID, func(_ *loaded, _ domain.TaskDefinition, st *domain.TaskState, now time.Time) (bool, error) {
		changed := false
		if in.Owner != nil && *in.Owner != st.Owner {
			st.Owner = *in.Owner
			changed = true
		}
		if in.Notes != nil && *in.Notes != st.Notes {
			st.Notes = *in.Notes
			changed = true
		}
		if len(in.AddEvidence) > 0 {
			st.Evidence = append(st.Evidence, in.AddEvidence...)
			changed = true
		}
		if changed {
			st.Record(domain.HistoryEntry{At: now, Action: domain.HistoryUpdated, Actor: in.Actor})
		}
		return changed, nil
	})
	if err != nil {
		return nil, fmt.Errorf("tasksync.UpdateTask: %w", err)
	}
	return out, nil
}

type taskMutation func(l *loaded, def domain.TaskDefinition, st *domain.TaskState, now time.Time) (bool, error)

// mutateTask syncs the client, applies fn to one task, then reconciles again
// so dependents see the change, and persists.
func (s *Service) mutateTask(ctx context.Context, clientID, taskID string, fn taskMutation) (*domain.TaskState, error) {
	def, ok := s.registry.Get(taskID)
	if !ok {
		return nil, fmt.Errorf("task %q: %w", taskID, domain.ErrNotFound)
	}

	var out *domain.TaskState
	err := s.locks.Do(ctx, clientID, func(ctx context.Context) error {
		l, _, err := s.syncLocked(ctx, clientID)
		if err != nil {
			return err
		}
		st := l.states[taskID]
		if st == nil {
			return fmt.Errorf("task %q: %w", taskID, domain.ErrNotFound)
		}

		now := s.now()
		changed, err := fn(l, def, st, now)
		if err != nil {
			return err
		}
		if !changed {
			out = st.Clone()
			return nil
		}
		st.UpdatedAt = now

		states, res := s.reconciler.Reconcile(l.client, l.states, l.episodes, now)
		if err := s.repos.TaskStates().Put(ctx, clientID, states); err != nil {
			return err
		}
		// Reopen may clear legacy fields without the reconcile noticing.
		l.client.UpdatedAt = now
		if err := s.repos.Clients().Put(ctx, l.client); err != nil {
			return err
		}
		s.logConflicts(clientID, res.Conflicts)
		s.notify(ctx, clientID)
		out = states[taskID].Clone()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// syncLocked loads, reconciles and persists one client. Callers hold the
// client's lock.
func (s *Service) syncLocked(ctx context.Context, clientID string) (*loaded, Result, error) {
	l, err := s.load(ctx, clientID)
	if err != nil {
		return nil, Result{}, err
	}

	now := s.now()
	states, res := s.reconciler.Reconcile(l.client, l.states, l.episodes, now)
	l.states = states
	if res.NoSchema {
		log.Warn().Str("client_id", clientID).Msg("tasksync: no task schema loaded; skipping sync")
		return l, res, nil
	}

	if res.Changed {
		if err := s.repos.TaskStates().Put(ctx, clientID, states); err != nil {
			return nil, Result{}, err
		}
	}
	if res.ClientChanged {
		l.client.UpdatedAt = now
		if err := s.repos.Clients().Put(ctx, l.client); err != nil {
			return nil, Result{}, err
		}
	}
	s.logConflicts(clientID, res.Conflicts)
	if res.Changed || res.ClientChanged {
		log.Debug().Str("client_id", clientID).Strs("created", res.Created).Strs("removed", res.Removed).
			Msg("tasksync: client reconciled")
		s.notify(ctx, clientID)
	}
	return l, res, nil
}

func (s *Service) load(ctx context.Context, clientID string) (*loaded, error) {
	client, err := s.repos.Clients().GetByID(ctx, clientID)
	if err != nil {
		return nil, err
	}
	states, err := s.repos.TaskStates().Get(ctx, clientID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	episodes, err := s.repos.Episodes().ListByClient(ctx, clientID)
	if err != nil {
		return nil, err
	}
	return &loaded{client: client, states: states, episodes: episodes}, nil
}

func (s *Service) logConflicts(clientID string, conflicts []LegacyConflict) {
	for _, c := range conflicts {
		log.Warn().Str("client_id", clientID).Str("task_id", c.TaskID).Str("legacy_field", c.LegacyField).
			Msg("tasksync: legacy conflict: " + c.Reason)
	}
}

func (s *Service) notify(ctx context.Context, clientID string) {
	if s.notifier != nil {
		s.notifier.ClientChanged(ctx, clientID)
	}
}
