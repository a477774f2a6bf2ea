package clientlock_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gosuda/careline/internal/clientlock"
)

func TestLocker_SerializesSameKey(t *testing.T) {
	t.Parallel()

	l := clientlock.New()

	var (
		inFlight atomic.Int32
		maxSeen  atomic.Int32
		wg       sync.WaitGroup
	)

	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := l.Do(context.Background(), "client-1", func(context.Context) error {
				n := inFlight.Add(1)
				for {
					m := maxSeen.Load()
					if n <= m || maxSeen.CompareAndSwap(m, n) {
						break
					}
				}
				time.Sleep(time.Millisecond)
				inFlight.Add(-1)
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxSeen.Load(), "same-key callers must never overlap")
	assert.Zero(t, l.Len(), "slots are released once idle")
}

func TestLocker_DifferentKeysRunConcurrently(t *testing.T) {
	t.Parallel()

	l := clientlock.New()
	entered := make(chan struct{})
	release := make(chan struct{})

	go func() {
		_ = l.Do(context.Background(), "a", func(context.Context) error {
			close(entered)
			<-release
			return nil
		})
	}()
	<-entered

	done := make(chan error, 1)
	go func() {
		done <- l.Do(context.Background(), "b", func(context.Context) error { return nil })
	}()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("key b blocked behind key a")
	}
	close(release)
}

func TestLocker_WaitHonoursContext(t *testing.T) {
	t.Parallel()

	l := clientlock.New()
	entered := make(chan struct{})
	release := make(chan struct{})
	defer close(release)

	go func() {
		_ = l.Do(context.Background(), "a", func(context.Context) error {
			close(entered)
			<-release
			return nil
		})
	}()
	<-entered

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	called := false
	err := l.Do(ctx, "a", func(context.Context) error {
		called = true
		return nil
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, called)
}

func TestLocker_PropagatesError(t *testing.T) {
	t.Parallel()

	l := clientlock.New()
	sentinel := errors.New("boom")

	err := l.Do(context.Background(), "a", func(context.Context) error { return sentinel })
	require.ErrorIs(t, err, sentinel)
}
