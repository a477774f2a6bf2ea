package v1_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/gosuda/careline/internal/alerts"
	"github.com/gosuda/careline/internal/dashboard"
	"github.com/gosuda/careline/internal/domain"
	"github.com/gosuda/careline/internal/episode"
	"github.com/gosuda/careline/internal/schema"
	"github.com/gosuda/careline/internal/server/middleware"
	"github.com/gosuda/careline/internal/tasksync"
)

// ---------------------------------------------------------------------------
// Context helpers
// ---------------------------------------------------------------------------

func viewerCtx(initials string) context.Context {
	return middleware.WithViewer(context.Background(), initials)
}

func testRegistry(t *testing.T) *schema.Registry {
	t.Helper()
	reg, err := schema.New([]domain.TaskDefinition{
		{ID: "a", Label: "Task A", Due: domain.DuePolicy{Type: domain.PolicyAtAdmission}, DefaultOwnerRole: "coach"},
		{ID: "b", Due: domain.DuePolicy{Type: domain.PolicyAfterTaskComplete, Task: "a", Days: 2}, DependsOn: []string{"a"}, DefaultOwnerRole: "coach"},
	})
	require.NoError(t, err)
	return reg
}

// ---------------------------------------------------------------------------
// Fake Dashboard
// ---------------------------------------------------------------------------

type fakeDashboard struct {
	filteredFunc   func(ctx context.Context, scope alerts.Scope, f dashboard.Filter) domain.Zones
	refreshNowFunc func(ctx context.Context, scope alerts.Scope) domain.Zones
}

func (f *fakeDashboard) Filtered(ctx context.Context, scope alerts.Scope, flt dashboard.Filter) domain.Zones {
	return f.filteredFunc(ctx, scope, flt)
}

func (f *fakeDashboard) RefreshNow(ctx context.Context, scope alerts.Scope) domain.Zones {
	return f.refreshNowFunc(ctx, scope)
}

// ---------------------------------------------------------------------------
// Fake TaskSync
// ---------------------------------------------------------------------------

type fakeTaskSync struct {
	registry       *schema.Registry
	syncClientFunc func(ctx context.Context, clientID string) (tasksync.Result, error)
	syncAllFunc    func(ctx context.Context) (*tasksync.Report, error)
	tasksFunc      func(ctx context.Context, clientID string) (domain.TaskStateMap, error)
	completeFunc   func(ctx context.Context, clientID, taskID string, in tasksync.CompleteInput) (*domain.TaskState, error)
	reopenFunc     func(ctx context.Context, clientID, taskID, actor, note string) (*domain.TaskState, error)
	updateFunc     func(ctx context.Context, clientID, taskID string, in tasksync.UpdateInput) (*domain.TaskState, error)
}

func (f *fakeTaskSync) Registry() *schema.Registry { return f.registry }

func (f *fakeTaskSync) SyncClient(ctx context.Context, clientID string) (tasksync.Result, error) {
	return f.syncClientFunc(ctx, clientID)
}

func (f *fakeTaskSync) SyncAll(ctx context.Context) (*tasksync.Report, error) {
	return f.syncAllFunc(ctx)
}

func (f *fakeTaskSync) Tasks(ctx context.Context, clientID string) (domain.TaskStateMap, error) {
	return f.tasksFunc(ctx, clientID)
}

func (f *fakeTaskSync) CompleteTask(ctx context.Context, clientID, taskID string, in tasksync.CompleteInput) (*domain.TaskState, error) {
	return f.completeFunc(ctx, clientID, taskID, in)
}

func (f *fakeTaskSync) ReopenTask(ctx context.Context, clientID, taskID, actor, note string) (*domain.TaskState, error) {
	return f.reopenFunc(ctx, clientID, taskID, actor, note)
}

func (f *fakeTaskSync) UpdateTask(ctx context.Context, clientID, taskID string, in tasksync.UpdateInput) (*domain.TaskState, error) {
	return f.updateFunc(ctx, clientID, taskID, in)
}

// ---------------------------------------------------------------------------
// Fake Timeline
// ---------------------------------------------------------------------------

type fakeTimeline struct {
	listFunc     func(ctx context.Context, clientID string) ([]*domain.Episode, error)
	admitFunc    func(ctx context.Context, clientID string, in episode.ChangeInput) (*domain.Episode, error)
	changeFunc   func(ctx context.Context, clientID string, in episode.ChangeInput) (*domain.Episode, error)
	continueFunc func(ctx context.Context, clientID string, date time.Time) (*domain.Episode, error)
	closeFunc    func(ctx context.Context, clientID string, date time.Time) error
}

func (f *fakeTimeline) List(ctx context.Context, clientID string) ([]*domain.Episode, error) {
	return f.listFunc(ctx, clientID)
}

func (f *fakeTimeline) Admit(ctx context.Context, clientID string, in episode.ChangeInput) (*domain.Episode, error) {
	return f.admitFunc(ctx, clientID, in)
}

func (f *fakeTimeline) ChangeLevel(ctx context.Context, clientID string, in episode.ChangeInput) (*domain.Episode, error) {
	return f.changeFunc(ctx, clientID, in)
}

func (f *fakeTimeline) Continue(ctx context.Context, clientID string, date time.Time) (*domain.Episode, error) {
	return f.continueFunc(ctx, clientID, date)
}

func (f *fakeTimeline) Close(ctx context.Context, clientID string, date time.Time) error {
	return f.closeFunc(ctx, clientID, date)
}
