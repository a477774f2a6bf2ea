package records_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gosuda/careline/internal/domain"
	"github.com/gosuda/careline/internal/store/memory"
	"github.com/gosuda/careline/internal/store/records"
)

func TestClientRepo_RoundTripAndList(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := memory.New()
	repos := records.New(store)

	admit := domain.MustDay("2024-01-01")
	c := &domain.Client{
		ID:            "c1",
		Initials:      "AB",
		Status:        domain.ClientStatusActive,
		AdmissionDate: &admit,
		LegacyFlags:   map[string]bool{"dischargeSummary": true},
	}
	require.NoError(t, repos.Clients().Put(ctx, c))

	got, err := repos.Clients().GetByID(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "AB", got.Initials)
	assert.True(t, got.LegacyFlags["dischargeSummary"])
	assert.Equal(t, "2024-01-01", domain.FormatDay(got.AdmissionDate))

	_, err = repos.Clients().GetByID(ctx, "missing")
	require.ErrorIs(t, err, domain.ErrNotFound)

	require.ErrorIs(t, repos.Clients().Put(ctx, &domain.Client{}), domain.ErrInvalidInput)
}

func TestClientRepo_ListSkipsCorruptRecords(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := memory.New()
	repos := records.New(store)

	require.NoError(t, repos.Clients().Put(ctx, &domain.Client{ID: "good"}))
	require.NoError(t, store.Put(ctx, domain.StoreClients, "bad", []byte("{not json")))

	clients, err := repos.Clients().List(ctx)
	require.NoError(t, err)
	require.Len(t, clients, 1)
	assert.Equal(t, "good", clients[0].ID)
}

func TestTaskStateRepo(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repos := records.New(memory.New())

	_, err := repos.TaskStates().Get(ctx, "c1")
	require.ErrorIs(t, err, domain.ErrNotFound)

	due := domain.MustDay("2024-01-08")
	states := domain.TaskStateMap{
		"treatmentPlan": {TaskID: "treatmentPlan", Status: domain.TaskStatusPending, DueDate: &due, UpdatedAt: time.Unix(0, 0).UTC()},
	}
	require.NoError(t, repos.TaskStates().Put(ctx, "c1", states))

	got, err := repos.TaskStates().Get(ctx, "c1")
	require.NoError(t, err)
	require.Contains(t, got, "treatmentPlan")
	assert.Equal(t, "2024-01-08", domain.FormatDay(got["treatmentPlan"].DueDate))

	require.NoError(t, repos.TaskStates().Delete(ctx, "c1"))
	_, err = repos.TaskStates().Get(ctx, "c1")
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestEpisodeRepo(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repos := records.New(memory.New())

	eps, err := repos.Episodes().ListByClient(ctx, "c1")
	require.NoError(t, err)
	assert.NotNil(t, eps)
	assert.Empty(t, eps)

	start := domain.MustDay("2024-01-01")
	require.NoError(t, repos.Episodes().ReplaceAll(ctx, "c1", []*domain.Episode{
		{ID: "e1", ClientID: "c1", LevelOfCare: "RTC", StartDate: start, Source: domain.EpisodeSourceAdmission},
	}))

	eps, err = repos.Episodes().ListByClient(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, eps, 1)
	assert.True(t, eps[0].Open())
	assert.Equal(t, "RTC", eps[0].LevelOfCare)
}
