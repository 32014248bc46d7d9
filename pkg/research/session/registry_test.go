package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"slingshot-be/pkg/research/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateAndGet(t *testing.T) {
	r := NewRegistry(time.Minute)
	require.NoError(t, r.Create(newSession("a")))

	s, err := r.Get("a")
	require.NoError(t, err)
	assert.Equal(t, "a", s.ID)

	err = r.Create(newSession("a"))
	assert.True(t, errors.Is(err, domain.ErrSessionBusy))

	_, err = r.Get("missing")
	assert.True(t, errors.Is(err, domain.ErrNotFound))
	assert.Equal(t, 1, r.Len())
}

func TestIdleEviction(t *testing.T) {
	r := NewRegistry(100 * time.Millisecond)
	var evicted []string
	r.OnEvicted(func(s *Session) { evicted = append(evicted, s.ID) })

	ctx, cancel := context.WithCancel(context.Background())
	s := newSession("a")
	require.NoError(t, r.Create(s))
	require.NoError(t, s.Begin(cancel))
	require.NoError(t, r.Create(newSession("b")))

	// Touching a keeps it alive past b's expiry.
	for i := 0; i < 4; i++ {
		time.Sleep(30 * time.Millisecond)
		require.True(t, r.Touch("a"))
	}
	r.Sweep()
	assert.Equal(t, []string{"b"}, evicted)
	assert.NoError(t, ctx.Err())

	time.Sleep(150 * time.Millisecond)
	assert.False(t, r.Touch("a"), "expired sessions are not revived")
	r.Sweep()
	assert.ElementsMatch(t, []string{"a", "b"}, evicted)
	assert.ErrorIs(t, ctx.Err(), context.Canceled, "eviction cancels the run")
	assert.Equal(t, "session expired", s.StopReason())
}

func TestDeleteRunsHooks(t *testing.T) {
	r := NewRegistry(time.Minute)
	var got string
	r.OnEvicted(func(s *Session) { got = s.ID })
	require.NoError(t, r.Create(newSession("a")))

	r.Delete("a")
	assert.Equal(t, "a", got)
	_, err := r.Get("a")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRunning(t *testing.T) {
	r := NewRegistry(time.Minute)
	a, b := newSession("a"), newSession("b")
	require.NoError(t, r.Create(a))
	require.NoError(t, r.Create(b))
	require.NoError(t, a.Begin(func() {}))

	running := r.Running()
	require.Len(t, running, 1)
	assert.Equal(t, "a", running[0].ID)
}

func TestJanitorStopsWithContext(t *testing.T) {
	r := NewRegistry(10 * time.Millisecond)
	require.NoError(t, r.Create(newSession("a")))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Janitor(ctx, 5*time.Millisecond)
		close(done)
	}()

	assert.Eventually(t, func() bool { return r.Len() == 0 }, time.Second, 5*time.Millisecond)
	cancel()
	<-done
}
