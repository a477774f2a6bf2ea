package schema_test

import (
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gosuda/careline/internal/domain"
	"github.com/gosuda/careline/internal/schema"
)

func TestDefault_LoadsAndOrdersPrerequisitesFirst(t *testing.T) {
	t.Parallel()

	r, err := schema.Default()
	require.NoError(t, err)
	require.Positive(t, r.Len())

	order := r.Order()
	require.Len(t, order, r.Len())

	pos := make(map[string]int, len(order))
	for i, id := range order {
		pos[id] = i
	}

	for _, d := range r.Definitions() {
		for _, dep := range d.DependsOn {
			assert.Less(t, pos[dep], pos[d.ID], "%s must come after prerequisite %s", d.ID, dep)
		}
		if d.Due.Type == domain.PolicyAfterTaskComplete {
			assert.Less(t, pos[d.Due.Task], pos[d.ID], "%s must come after due-date source %s", d.ID, d.Due.Task)
		}
	}
}

func TestDefault_OrderIsDeterministic(t *testing.T) {
	t.Parallel()

	a, err := schema.Default()
	require.NoError(t, err)
	b, err := schema.Default()
	require.NoError(t, err)

	assert.Equal(t, a.Order(), b.Order())
}

func TestParse_Shape(t *testing.T) {
	t.Parallel()

	r, err := schema.Parse([]byte(`
taskA:
  due: { type: afterAdmission, days: 7 }
  defaultOwnerRole: clinicalCoach
taskB:
  label: Task B
  due: { type: afterTaskComplete, task: taskA, days: 2 }
  dependsOn: [taskA]
  defaultOwnerRole: primaryTherapist
  legacyField: taskBDone
  legacyDateField: taskBDate
`))
	require.NoError(t, err)

	b, ok := r.Get("taskB")
	require.True(t, ok)
	assert.Equal(t, "taskB", b.ID)
	assert.Equal(t, "Task B", b.DisplayName())
	assert.Equal(t, domain.PolicyAfterTaskComplete, b.Due.Type)
	assert.Equal(t, "taskA", b.Due.Task)
	assert.Equal(t, 2, b.Due.Days)
	assert.Equal(t, []string{"taskA"}, b.DependsOn)
	assert.Equal(t, "taskBDone", b.LegacyField)
	assert.Equal(t, "taskBDate", b.LegacyDateField)

	a, ok := r.Get("taskA")
	require.True(t, ok)
	assert.Equal(t, "taskA", a.DisplayName())
	assert.Equal(t, []string{"taskB"}, r.Dependents("taskA"))
	assert.Equal(t, []string{"taskA", "taskB"}, r.Order())
}

func TestNew_Invalid(t *testing.T) {
	t.Parallel()

	due := domain.DuePolicy{Type: domain.PolicyAtAdmission}

	tests := []struct {
		name string
		defs []domain.TaskDefinition
	}{
		{"empty id", []domain.TaskDefinition{{Due: due}}},
		{"duplicate id", []domain.TaskDefinition{{ID: "a", Due: due}, {ID: "a", Due: due}}},
		{"self dependency", []domain.TaskDefinition{{ID: "a", Due: due, DependsOn: []string{"a"}}}},
		{"unknown dependency", []domain.TaskDefinition{{ID: "a", Due: due, DependsOn: []string{"ghost"}}}},
		{"afterTaskComplete without task", []domain.TaskDefinition{{ID: "a", Due: domain.DuePolicy{Type: domain.PolicyAfterTaskComplete}}}},
		{"afterTaskComplete unknown task", []domain.TaskDefinition{{ID: "a", Due: domain.DuePolicy{Type: domain.PolicyAfterTaskComplete, Task: "ghost"}}}},
		{"legacy date without flag", []domain.TaskDefinition{{ID: "a", Due: due, LegacyDateField: "aDate"}}},
		{"cycle", []domain.TaskDefinition{
			{ID: "a", Due: due, DependsOn: []string{"c"}},
			{ID: "b", Due: due, DependsOn: []string{"a"}},
			{ID: "c", Due: due, DependsOn: []string{"b"}},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := schema.New(tt.defs)
			require.Error(t, err)
			assert.ErrorIs(t, err, schema.ErrInvalidSchema)
		})
	}
}

func TestNew_CycleErrorListsMembers(t *testing.T) {
	t.Parallel()

	due := domain.DuePolicy{Type: domain.PolicyAtAdmission}
	_, err := schema.New([]domain.TaskDefinition{
		{ID: "root", Due: due},
		{ID: "x", Due: due, DependsOn: []string{"root", "y"}},
		{ID: "y", Due: domain.DuePolicy{Type: domain.PolicyAfterTaskComplete, Task: "x"}},
	})

	var cycle schema.CycleError
	require.ErrorAs(t, err, &cycle)
	assert.Equal(t, []string{"x", "y"}, cycle.IDs)
}

func TestNew_UnknownPolicyTolerated(t *testing.T) {
	t.Parallel()

	r, err := schema.New([]domain.TaskDefinition{
		{ID: "a", Due: domain.DuePolicy{Type: "afterFullMoon", Days: 3}},
	})
	require.NoError(t, err)
	assert.True(t, r.Has("a"))
}

func TestNew_DuplicatePrerequisiteListed(t *testing.T) {
	t.Parallel()

	due := domain.DuePolicy{Type: domain.PolicyAtAdmission}
	r, err := schema.New([]domain.TaskDefinition{
		{ID: "a", Due: due},
		{ID: "b", Due: domain.DuePolicy{Type: domain.PolicyAfterTaskComplete, Task: "a"}, DependsOn: []string{"a", "a"}},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, r.Order())
}

func TestNilRegistry(t *testing.T) {
	t.Parallel()

	var r *schema.Registry
	assert.Zero(t, r.Len())
	assert.Nil(t, r.Order())
	assert.Nil(t, r.Definitions())
	assert.False(t, r.Has("a"))
}

func TestLoad(t *testing.T) {
	t.Parallel()

	t.Run("empty path uses default", func(t *testing.T) {
		t.Parallel()

		r, err := schema.Load("")
		require.NoError(t, err)
		assert.True(t, r.Has("aftercareOptionsSent"))
		assert.True(t, r.Has("dischargePacketUploaded"))
	})

	t.Run("file", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "tasks.yaml")
		require.NoError(t, os.WriteFile(path, []byte("only:\n  due: { type: atAdmission }\n  defaultOwnerRole: clinicalCoach\n"), 0o600))

		r, err := schema.Load(path)
		require.NoError(t, err)
		assert.Equal(t, []string{"only"}, r.Order())
	})

	t.Run("missing file", func(t *testing.T) {
		t.Parallel()

		_, err := schema.Load(filepath.Join(t.TempDir(), "nope.yaml"))
		require.Error(t, err)
	})

	t.Run("malformed yaml", func(t *testing.T) {
		t.Parallel()

		_, err := schema.Parse([]byte("a: [unclosed"))
		require.Error(t, err)
	})
}

func TestOrder_ReturnsCopy(t *testing.T) {
	t.Parallel()

	r, err := schema.Default()
	require.NoError(t, err)

	o := r.Order()
	o[0] = "mutated"
	assert.False(t, slices.Contains(r.Order(), "mutated"))
}
