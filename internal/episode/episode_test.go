package episode_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gosuda/careline/internal/alerts"
	"github.com/gosuda/careline/internal/clientlock"
	"github.com/gosuda/careline/internal/domain"
	"github.com/gosuda/careline/internal/episode"
	"github.com/gosuda/careline/internal/schema"
	"github.com/gosuda/careline/internal/store/memory"
	"github.com/gosuda/careline/internal/store/records"
	"github.com/gosuda/careline/internal/tasksync"
)

type recordingNotifier struct {
	mu      sync.Mutex
	changed []string
}

func (n *recordingNotifier) ClientChanged(_ context.Context, clientID string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.changed = append(n.changed, clientID)
}

func newService(t *testing.T) (*episode.Service, domain.EpisodeRepository, *recordingNotifier) {
	t.Helper()

	repo := records.New(memory.New()).Episodes()
	notifier := &recordingNotifier{}
	svc := episode.NewService(repo, clientlock.New(), notifier).
		WithClock(func() time.Time { return domain.MustDay("2024-02-01").Add(10 * time.Hour) })
	return svc, repo, notifier
}

// ---------------------------------------------------------------------------
// Pure helpers
// ---------------------------------------------------------------------------

func TestCurrentAndMostRecent(t *testing.T) {
	t.Parallel()

	end := domain.MustDay("2024-01-10")
	eps := []*domain.Episode{
		{ID: "b", StartDate: domain.MustDay("2024-01-10")},
		{ID: "a", StartDate: domain.MustDay("2024-01-01"), EndDate: &end},
	}

	require.NotNil(t, episode.Current(eps))
	assert.Equal(t, "b", episode.Current(eps).ID)
	assert.Equal(t, "b", episode.MostRecent(eps).ID)
	assert.Equal(t, "a", episode.Sorted(eps)[0].ID)
	assert.Equal(t, 1, episode.OpenCount(eps))

	assert.Nil(t, episode.Current(nil))
	assert.Nil(t, episode.MostRecent(nil))

	eps[0].EndDate = &end
	assert.Nil(t, episode.Current(eps))
	assert.Equal(t, "b", episode.MostRecent(eps).ID, "closed episodes still count as most recent")
}

// ---------------------------------------------------------------------------
// Service
// ---------------------------------------------------------------------------

func TestService_AdmitThenChangeLevel(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc, _, notifier := newService(t)

	first, err := svc.Admit(ctx, "c1", episode.ChangeInput{LevelOfCare: "RTC", Date: domain.MustDay("2024-01-01")})
	require.NoError(t, err)
	assert.Equal(t, domain.EpisodeSourceAdmission, first.Source)
	assert.NotEmpty(t, first.ID)

	_, err = svc.Admit(ctx, "c1", episode.ChangeInput{LevelOfCare: "RTC"})
	require.ErrorIs(t, err, domain.ErrConflict, "only one open episode per client")

	next, err := svc.ChangeLevel(ctx, "c1", episode.ChangeInput{
		LevelOfCare: "PHP",
		Date:        domain.MustDay("2024-01-20"),
		Source:      domain.EpisodeSourceStepDown,
		DocumentRef: "doc-77",
	})
	require.NoError(t, err)
	assert.Equal(t, "PHP", next.LevelOfCare)

	eps, err := svc.List(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, eps, 2)
	assert.Equal(t, 1, episode.OpenCount(eps))

	closed := eps[0]
	require.NotNil(t, closed.EndDate)
	assert.Equal(t, "2024-01-20", domain.FormatDay(closed.EndDate))
	assert.Equal(t, "PHP", closed.NextLevel)

	cur, err := svc.Current(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, next.ID, cur.ID)
	assert.Equal(t, "doc-77", cur.DocumentRef)

	assert.Equal(t, []string{"c1", "c1"}, notifier.changed)
}

func TestService_ChangeLevelValidation(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc, _, _ := newService(t)

	_, err := svc.ChangeLevel(ctx, "c1", episode.ChangeInput{})
	require.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = svc.Admit(ctx, "c1", episode.ChangeInput{LevelOfCare: "RTC", Date: domain.MustDay("2024-01-10")})
	require.NoError(t, err)

	_, err = svc.ChangeLevel(ctx, "c1", episode.ChangeInput{LevelOfCare: "rtc"})
	require.ErrorIs(t, err, domain.ErrConflict, "same level is not a change")

	_, err = svc.ChangeLevel(ctx, "c1", episode.ChangeInput{LevelOfCare: "PHP", Date: domain.MustDay("2024-01-01")})
	require.ErrorIs(t, err, domain.ErrInvalidInput, "cannot change before the current episode started")
}

func TestService_ChangeLevelWithoutOpenEpisodeOpensOne(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc, _, _ := newService(t)

	ep, err := svc.ChangeLevel(ctx, "c1", episode.ChangeInput{LevelOfCare: "IOP"})
	require.NoError(t, err)
	assert.Equal(t, "2024-02-01", ep.StartDate.Format(domain.DateLayout), "zero date defaults to today")
	assert.Equal(t, domain.EpisodeSourceManual, ep.Source)
}

func TestService_ContinueAndClose(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc, _, _ := newService(t)

	_, err := svc.Continue(ctx, "c1", time.Time{})
	require.ErrorIs(t, err, domain.ErrNotFound)

	_, err = svc.Admit(ctx, "c1", episode.ChangeInput{LevelOfCare: "RTC", Date: domain.MustDay("2024-01-01")})
	require.NoError(t, err)

	cont, err := svc.Continue(ctx, "c1", domain.MustDay("2024-01-15"))
	require.NoError(t, err)
	assert.Equal(t, "2024-01-15", cont.AnchorDate().Format(domain.DateLayout))

	require.NoError(t, svc.Close(ctx, "c1", domain.MustDay("2024-01-30")))
	_, err = svc.Current(ctx, "c1")
	require.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, svc.Close(ctx, "c1", time.Time{}), "closing with nothing open is a no-op")
}

func TestService_ConcurrentChangesKeepSingleOpenEpisode(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc, repo, _ := newService(t)

	_, err := svc.Admit(ctx, "c1", episode.ChangeInput{LevelOfCare: "RTC", Date: domain.MustDay("2024-01-01")})
	require.NoError(t, err)

	levels := []string{"PHP", "IOP", "OP", "PHP2", "IOP2"}
	var wg sync.WaitGroup
	for _, lvl := range levels {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = svc.ChangeLevel(ctx, "c1", episode.ChangeInput{LevelOfCare: lvl, Date: domain.MustDay("2024-01-05")})
		}()
	}
	wg.Wait()

	eps, err := repo.ListByClient(ctx, "c1")
	require.NoError(t, err)
	assert.Len(t, eps, 1+len(levels), "serialized writers must not lose episodes")
	assert.Equal(t, 1, episode.OpenCount(eps))
}

// ---------------------------------------------------------------------------
// Task resync
// ---------------------------------------------------------------------------

type resyncFixture struct {
	svc   *episode.Service
	repos *records.Repos
	agg   *alerts.Aggregator
}

func newResyncFixture(t *testing.T) *resyncFixture {
	t.Helper()

	ctx := context.Background()
	clock := func() time.Time { return domain.MustDay("2024-03-20").Add(9 * time.Hour) }

	reg, err := schema.Default()
	require.NoError(t, err)

	repos := records.New(memory.New())
	admit := domain.MustDay("2024-03-15")
	require.NoError(t, repos.Clients().Put(ctx, &domain.Client{
		ID:            "c1",
		Initials:      "AB",
		Status:        domain.ClientStatusActive,
		AdmissionDate: &admit,
	}))

	locks := clientlock.New()
	syncSvc := tasksync.NewService(reg, repos, locks, nil, tasksync.BridgeBidirectional).WithClock(clock)
	_, err = syncSvc.SyncClient(ctx, "c1")
	require.NoError(t, err)

	return &resyncFixture{
		svc:   episode.NewService(repos.Episodes(), locks, nil).WithClock(clock).WithResyncer(syncSvc),
		repos: repos,
		agg:   alerts.NewAggregator(reg, repos.Clients(), repos.TaskStates(), nil, alerts.DefaultRules()).WithClock(clock),
	}
}

func (f *resyncFixture) due(t *testing.T, taskID string) string {
	t.Helper()
	states, err := f.repos.TaskStates().Get(context.Background(), "c1")
	require.NoError(t, err)
	require.Contains(t, states, taskID)
	return domain.FormatDay(states[taskID].DueDate)
}

func TestService_ChangeLevelRecomputesDueDates(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newResyncFixture(t)
	require.Empty(t, f.due(t, "levelOfCareReview"), "no episode yet")

	_, err := f.svc.ChangeLevel(ctx, "c1", episode.ChangeInput{LevelOfCare: "PHP", Date: domain.MustDay("2024-03-01")})
	require.NoError(t, err)
	assert.Equal(t, "2024-03-08", f.due(t, "levelOfCareReview"))

	zones, err := f.agg.Aggregate(ctx, alerts.Scope{})
	require.NoError(t, err)

	var overdue *domain.Alert
	for _, a := range zones.Flatten() {
		if a.Type == domain.AlertTaskOverdue && a.TaskID == "levelOfCareReview" {
			overdue = &a
		}
	}
	require.NotNil(t, overdue, "level-of-care review shows as overdue")
	assert.Equal(t, domain.ZoneRed, overdue.Priority)
	assert.Equal(t, "2024-03-08", overdue.DueDate)
}

func TestService_ContinueReanchorsEpisodeDueDates(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newResyncFixture(t)

	_, err := f.svc.Admit(ctx, "c1", episode.ChangeInput{LevelOfCare: "RTC", Date: domain.MustDay("2024-03-15")})
	require.NoError(t, err)
	assert.Equal(t, "2024-03-20", f.due(t, "episodePlanUpdate"))

	_, err = f.svc.Continue(ctx, "c1", domain.MustDay("2024-03-19"))
	require.NoError(t, err)
	assert.Equal(t, "2024-03-24", f.due(t, "episodePlanUpdate"))
}

func TestService_ResyncFailureKeepsTimeline(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newResyncFixture(t)

	_, err := f.svc.Admit(ctx, "ghost", episode.ChangeInput{LevelOfCare: "RTC"})
	require.NoError(t, err, "missing client only skips the resync")

	eps, err := f.repos.Episodes().ListByClient(ctx, "ghost")
	require.NoError(t, err)
	assert.Len(t, eps, 1)
}
