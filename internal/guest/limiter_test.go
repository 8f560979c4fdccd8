package guest

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/timetracker/internal/storage"
)

func TestKey(t *testing.T) {
	assert.Equal(t, "guestLastPlaceTime", Key(ActionPlace))
	assert.Equal(t, "guestLastOpenTime", Key(ActionOpen))
}

func TestParseAction(t *testing.T) {
	a, err := ParseAction(" Place ")
	require.NoError(t, err)
	assert.Equal(t, ActionPlace, a)

	_, err = ParseAction("delete")
	require.Error(t, err)
}

func TestLimiter(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	clock := clockwork.NewFakeClockAt(time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC))
	l := NewLimiter(store, clock, 0)

	ok, err := l.CanPerform(ctx, ActionPlace)
	require.NoError(t, err)
	assert.True(t, ok, "first use is always allowed")

	require.NoError(t, l.Record(ctx, ActionPlace))
	stamp, err := store.Get(ctx, "guestLastPlaceTime")
	require.NoError(t, err)
	assert.Equal(t, "1780315200000", stamp)

	ok, _ = l.CanPerform(ctx, ActionPlace)
	assert.False(t, ok)

	// Actions are independent.
	ok, _ = l.CanPerform(ctx, ActionOpen)
	assert.True(t, ok)

	clock.Advance(DefaultWindow)
	ok, _ = l.CanPerform(ctx, ActionPlace)
	assert.False(t, ok, "exactly the window is still blocked")

	wait, err := l.Remaining(ctx, ActionPlace)
	require.NoError(t, err)
	assert.Positive(t, wait)

	clock.Advance(time.Millisecond)
	ok, _ = l.CanPerform(ctx, ActionPlace)
	assert.True(t, ok)
}

func TestLimiter_MalformedStampAllows(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	require.NoError(t, store.Set(ctx, Key(ActionOpen), "yesterday"))

	l := NewLimiter(store, clockwork.NewFakeClock(), time.Hour)
	ok, err := l.CanPerform(ctx, ActionOpen)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestLimiter_TryRecordAllowsOneConcurrentCaller(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	clock := clockwork.NewFakeClock()
	l := NewLimiter(store, clock, time.Hour)

	const callers = 16
	var (
		wg      sync.WaitGroup
		allowed atomic.Int32
	)
	for range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, wait, err := l.TryRecord(ctx, ActionPlace)
			assert.NoError(t, err)
			if ok {
				allowed.Add(1)
				return
			}
			assert.Positive(t, wait)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), allowed.Load())

	clock.Advance(time.Hour + time.Millisecond)
	ok, wait, err := l.TryRecord(ctx, ActionPlace)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Zero(t, wait)
}
