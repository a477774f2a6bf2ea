package duedate_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gosuda/careline/internal/domain"
	"github.com/gosuda/careline/internal/duedate"
)

func day(s string) *time.Time {
	d := domain.MustDay(s)
	return &d
}

func TestEvaluate_Policies(t *testing.T) {
	t.Parallel()

	client := &domain.Client{
		ID:            "c1",
		AdmissionDate: day("2024-01-01"),
		DischargeDate: day("2024-02-15"),
	}
	states := domain.TaskStateMap{
		"thread": {TaskID: "thread", Completed: true, Status: domain.TaskStatusComplete, CompletedDate: day("2024-01-14")},
		"open":   {TaskID: "open", Status: domain.TaskStatusPending},
	}
	closed := day("2024-01-20")
	episodes := []*domain.Episode{
		{ID: "e1", LevelOfCare: "RTC", StartDate: domain.MustDay("2024-01-01"), EndDate: closed},
		{ID: "e2", LevelOfCare: "PHP", StartDate: domain.MustDay("2024-01-20"), ContinuationDate: day("2024-01-25")},
	}
	snap := duedate.Snapshot{Client: client, States: states, Episodes: episodes}

	tests := []struct {
		name   string
		policy domain.DuePolicy
		want   string
	}{
		{"afterAdmission", domain.DuePolicy{Type: domain.PolicyAfterAdmission, Days: 7}, "2024-01-08"},
		{"beforeDischarge", domain.DuePolicy{Type: domain.PolicyBeforeDischarge, Days: 2}, "2024-02-13"},
		{"afterTaskComplete", domain.DuePolicy{Type: domain.PolicyAfterTaskComplete, Task: "thread", Days: 2}, "2024-01-16"},
		{"afterTaskComplete incomplete ref", domain.DuePolicy{Type: domain.PolicyAfterTaskComplete, Task: "open", Days: 2}, ""},
		{"afterTaskComplete missing ref", domain.DuePolicy{Type: domain.PolicyAfterTaskComplete, Task: "ghost", Days: 2}, ""},
		{"afterEpisodeStart uses continuation", domain.DuePolicy{Type: domain.PolicyAfterEpisodeStart, Days: 5}, "2024-01-30"},
		{"afterLocChange", domain.DuePolicy{Type: domain.PolicyAfterLocChange, Days: 7}, "2024-01-27"},
		{"atAdmission", domain.DuePolicy{Type: domain.PolicyAtAdmission}, "2024-01-01"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := duedate.Evaluate(snap, tt.policy, nil)
			assert.Equal(t, tt.want, domain.FormatDay(got))
		})
	}
}

func TestEvaluate_AbsentAnchors(t *testing.T) {
	t.Parallel()

	snap := duedate.Snapshot{Client: &domain.Client{ID: "c1"}}
	prev := day("2023-12-31")

	for _, p := range domain.KnownPolicyTypes {
		t.Run(string(p), func(t *testing.T) {
			t.Parallel()

			got := duedate.Evaluate(snap, domain.DuePolicy{Type: p, Days: 3, Task: "x"}, prev)
			assert.Nil(t, got, "known policies with no anchor yield absence, not the previous date")
		})
	}
}

func TestEvaluate_AfterEpisodeStartFallsBackToAdmission(t *testing.T) {
	t.Parallel()

	end := day("2024-01-10")
	snap := duedate.Snapshot{
		Client:   &domain.Client{AdmissionDate: day("2024-01-01")},
		Episodes: []*domain.Episode{{StartDate: domain.MustDay("2024-01-01"), EndDate: end}},
	}

	got := duedate.Evaluate(snap, domain.DuePolicy{Type: domain.PolicyAfterEpisodeStart, Days: 5}, nil)
	assert.Equal(t, "2024-01-06", domain.FormatDay(got))
}

func TestEvaluate_UnknownPolicyKeepsPrevious(t *testing.T) {
	t.Parallel()

	prev := day("2024-03-03")
	snap := duedate.Snapshot{Client: &domain.Client{AdmissionDate: day("2024-01-01")}}

	got := duedate.Evaluate(snap, domain.DuePolicy{Type: "afterFullMoon", Days: 3}, prev)
	require.NotNil(t, got)
	assert.Equal(t, "2024-03-03", domain.FormatDay(got))
	assert.False(t, duedate.Supported("afterFullMoon"))
	assert.True(t, duedate.Supported(domain.PolicyAfterLocChange))

	assert.Nil(t, duedate.Evaluate(snap, domain.DuePolicy{Type: "afterFullMoon"}, nil))
}

func TestEvaluate_Deterministic(t *testing.T) {
	t.Parallel()

	snap := duedate.Snapshot{
		Client: &domain.Client{AdmissionDate: day("2024-01-01")},
		Now:    time.Now(),
	}
	policy := domain.DuePolicy{Type: domain.PolicyAfterAdmission, Days: 7}

	a := duedate.Evaluate(snap, policy, nil)
	snap.Now = snap.Now.Add(72 * time.Hour)
	b := duedate.Evaluate(snap, policy, nil)

	assert.Equal(t, domain.FormatDay(a), domain.FormatDay(b), "date policies never read the clock")
}

func TestClassify(t *testing.T) {
	t.Parallel()

	now := domain.MustDay("2024-01-10").Add(14 * time.Hour)

	tests := []struct {
		name  string
		state *domain.TaskState
		want  duedate.Urgency
	}{
		{"nil", nil, duedate.UrgencyOnTrack},
		{"no due date", &domain.TaskState{}, duedate.UrgencyOnTrack},
		{"completed overdue", &domain.TaskState{Completed: true, DueDate: day("2024-01-01")}, duedate.UrgencyOnTrack},
		{"overdue", &domain.TaskState{DueDate: day("2024-01-09")}, duedate.UrgencyOverdue},
		{"due today", &domain.TaskState{DueDate: day("2024-01-10")}, duedate.UrgencyDueToday},
		{"tomorrow", &domain.TaskState{DueDate: day("2024-01-11")}, duedate.UrgencyUpcoming},
		{"edge of window", &domain.TaskState{DueDate: day("2024-01-13")}, duedate.UrgencyUpcoming},
		{"beyond window", &domain.TaskState{DueDate: day("2024-01-14")}, duedate.UrgencyOnTrack},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.want, duedate.Classify(tt.state, now))
		})
	}
}
