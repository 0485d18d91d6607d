package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type value struct{ id string }

func newTestStore(ttl time.Duration) (*Store[*value], *time.Time) {
	clock := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	s := NewStore(func(id string) *value { return &value{id: id} }, ttl, nil)
	s.now = func() time.Time { return clock }
	return s, &clock
}

func TestStore_CreateAndGet(t *testing.T) {
	s, _ := newTestStore(time.Hour)

	e := s.Create()
	_, err := uuid.Parse(e.ID)
	require.NoError(t, err)
	assert.Equal(t, e.ID, e.Value.id)

	got, ok := s.Get(e.ID)
	require.True(t, ok)
	assert.Same(t, e, got)

	_, ok = s.Get("nope")
	assert.False(t, ok)
}

func TestStore_GetOrCreate(t *testing.T) {
	s, _ := newTestStore(time.Hour)

	e, created := s.GetOrCreate("")
	assert.True(t, created)

	again, created := s.GetOrCreate(e.ID)
	assert.False(t, created)
	assert.Same(t, e, again)

	other, created := s.GetOrCreate("unknown-id")
	assert.True(t, created)
	assert.NotEqual(t, e.ID, other.ID)
	assert.Equal(t, 2, s.Len())
}

func TestStore_Delete(t *testing.T) {
	s, _ := newTestStore(time.Hour)
	e := s.Create()
	s.Delete(e.ID)
	assert.Zero(t, s.Len())
}

func TestStore_Sweep(t *testing.T) {
	s, clock := newTestStore(time.Hour)

	old := s.Create()
	*clock = clock.Add(45 * time.Minute)
	fresh := s.Create()

	removed := s.Sweep(clock.Add(30 * time.Minute))
	assert.Equal(t, 1, removed)

	_, ok := s.Get(old.ID)
	assert.False(t, ok)
	_, ok = s.Get(fresh.ID)
	assert.True(t, ok)
}

func TestStore_GetKeepsSessionAlive(t *testing.T) {
	s, clock := newTestStore(time.Hour)
	e := s.Create()

	*clock = clock.Add(50 * time.Minute)
	s.Get(e.ID)

	assert.Zero(t, s.Sweep(clock.Add(30*time.Minute)))
}

func TestStore_SweepSkipsBusySessions(t *testing.T) {
	s, clock := newTestStore(time.Hour)
	e := s.Create()

	e.Lock()
	assert.False(t, e.TryLock())
	assert.Zero(t, s.Sweep(clock.Add(2*time.Hour)))
	e.Unlock()

	assert.Equal(t, 1, s.Sweep(clock.Add(2*time.Hour)))
}

func TestStore_ConcurrentCreate(t *testing.T) {
	s := NewStore(func(id string) *value { return &value{id: id} }, 0, nil)

	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			e := s.Create()
			s.Get(e.ID)
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, s.Len())
}

func TestStore_RunStopsOnCancel(t *testing.T) {
	s := NewStore(func(id string) *value { return &value{id: id} }, time.Hour, nil)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		s.Run(ctx, time.Millisecond)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
