package v1

import (
	"context"
	"time"

	"github.com/gosuda/careline/internal/alerts"
	"github.com/gosuda/careline/internal/dashboard"
	"github.com/gosuda/careline/internal/domain"
	"github.com/gosuda/careline/internal/episode"
	"github.com/gosuda/careline/internal/schema"
	"github.com/gosuda/careline/internal/tasksync"
)

// Dashboard abstracts the alert cache for handler testing.
// *dashboard.Cache satisfies this interface.
type Dashboard interface {
	Filtered(ctx context.Context, scope alerts.Scope, f dashboard.Filter) domain.Zones
	RefreshNow(ctx context.Context, scope alerts.Scope) domain.Zones
}

// TaskSync abstracts task synchronization for handler testing.
// *tasksync.Service satisfies this interface.
type TaskSync interface {
	Registry() *schema.Registry
	SyncClient(ctx context.Context, clientID string) (tasksync.Result, error)
	SyncAll(ctx context.Context) (*tasksync.Report, error)
	Tasks(ctx context.Context, clientID string) (domain.TaskStateMap, error)
	CompleteTask(ctx context.Context, clientID, taskID string, in tasksync.CompleteInput) (*domain.TaskState, error)
	ReopenTask(ctx context.Context, clientID, taskID, actor, note string) (*domain.TaskState, error)
	UpdateTask(ctx context.Context, clientID, taskID string, in tasksync.UpdateInput) (*domain.TaskState, error)
}

// Timeline abstracts the episode timeline for handler testing.
// *episode.Service satisfies this interface.
type Timeline interface {
	List(ctx context.Context, clientID string) ([]*domain.Episode, error)
	Admit(ctx context.Context, clientID string, in episode.ChangeInput) (*domain.Episode, error)
	ChangeLevel(ctx context.Context, clientID string, in episode.ChangeInput) (*domain.Episode, error)
	Continue(ctx context.Context, clientID string, date time.Time) (*domain.Episode, error)
	Close(ctx context.Context, clientID string, date time.Time) error
}
