package memory_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gosuda/careline/internal/domain"
	"github.com/gosuda/careline/internal/store/memory"
)

func TestStore_CRUD(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := memory.New()

	_, err := s.Get(ctx, "clients", "a")
	require.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, s.Put(ctx, "clients", "b", []byte(`{"id":"b"}`)))
	require.NoError(t, s.Put(ctx, "clients", "a", []byte(`{"id":"a"}`)))
	require.NoError(t, s.Put(ctx, "episodes", "a", []byte(`[]`)))

	got, err := s.Get(ctx, "clients", "a")
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"a"}`, string(got))

	all, err := s.GetAll(ctx, "clients")
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.JSONEq(t, `{"id":"a"}`, string(all[0]), "GetAll is ordered by key")

	require.NoError(t, s.Delete(ctx, "clients", "a"))
	require.ErrorIs(t, s.Delete(ctx, "clients", "a"), domain.ErrNotFound)

	all, err = s.GetAll(ctx, "clients")
	require.NoError(t, err)
	assert.Len(t, all, 1)

	empty, err := s.GetAll(ctx, "unknown")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestStore_CopiesRecords(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := memory.New()

	rec := []byte("abc")
	require.NoError(t, s.Put(ctx, "x", "k", rec))
	rec[0] = 'z'

	got, err := s.Get(ctx, "x", "k")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(got))

	got[1] = 'z'
	again, err := s.Get(ctx, "x", "k")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(again))
}
