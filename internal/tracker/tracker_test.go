package tracker

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"git.home.luguber.info/inful/timetracker/internal/eventstore"
	"git.home.luguber.info/inful/timetracker/internal/foundation/errors"
	"git.home.luguber.info/inful/timetracker/internal/storage"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type harness struct {
	tracker   *Tracker
	store     *storage.MemoryStore
	clock     *clockwork.FakeClock
	auth      *fakeAuth
	deliverer *fakeDeliverer
	sink      *recordingSink
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		store:     storage.NewMemoryStore(),
		clock:     clockwork.NewFakeClock(),
		auth:      &fakeAuth{},
		deliverer: &fakeDeliverer{},
		sink:      &recordingSink{},
	}
	h.tracker = h.newTracker(t, h.store)
	return h
}

func (h *harness) newTracker(t *testing.T, store storage.Store) *Tracker {
	t.Helper()
	tr, err := New(Options{
		Store:     store,
		Auth:      h.auth,
		Deliverer: h.deliverer,
		Clock:     h.clock,
		Events:    h.sink,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = tr.Close(context.Background()) })
	return tr
}

func (h *harness) stored(t *testing.T) (string, bool) {
	t.Helper()
	v, err := h.store.Get(context.Background(), DefaultStorageKey)
	if storage.IsNotFound(err) {
		return "", false
	}
	require.NoError(t, err)
	return v, true
}

func (h *harness) seed(t *testing.T, value string) {
	t.Helper()
	require.NoError(t, h.store.Set(context.Background(), DefaultStorageKey, value))
}

func TestNew_RequiresDependencies(t *testing.T) {
	_, err := New(Options{})
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryConfig))

	_, err = New(Options{
		Store:      storage.NewMemoryStore(),
		Auth:       &fakeAuth{},
		Deliverer:  &fakeDeliverer{},
		StorageKey: "../bad",
	})
	require.Error(t, err)
}

func TestSync_BelowThresholdClearsWithoutNetworkCall(t *testing.T) {
	for _, stored := range []string{"0", "1", "2000", "2499", "garbage", "-5"} {
		t.Run(stored, func(t *testing.T) {
			h := newHarness(t)
			h.seed(t, stored)

			res, err := h.tracker.Sync(context.Background())
			require.NoError(t, err)
			assert.Equal(t, OutcomeDiscarded, res.Outcome)

			user, visitor := h.deliverer.calls()
			assert.Empty(t, user)
			assert.Empty(t, visitor)
			_, present := h.stored(t)
			assert.False(t, present, "slot should be cleared")
		})
	}
}

func TestSync_EmptySlot(t *testing.T) {
	h := newHarness(t)

	res, err := h.tracker.Sync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeEmpty, res.Outcome)
	user, visitor := h.deliverer.calls()
	assert.Empty(t, user)
	assert.Empty(t, visitor)
}

func TestSync_ThresholdIsComparedAsDuration(t *testing.T) {
	tests := []struct {
		name        string
		minSync     time.Duration
		stored      string
		wantOutcome Outcome
		wantSeconds int64
	}{
		{"zero seconds under sub-second threshold", 500 * time.Millisecond, "0", OutcomeDiscarded, 0},
		{"rounds to zero under sub-second threshold", 500 * time.Millisecond, "400", OutcomeDiscarded, 0},
		{"one second over sub-second threshold", 500 * time.Millisecond, "700", OutcomeDelivered, 1},
		{"three seconds under fractional threshold", 3500 * time.Millisecond, "3000", OutcomeDiscarded, 3},
		{"four seconds over fractional threshold", 3500 * time.Millisecond, "3600", OutcomeDelivered, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := storage.NewMemoryStore()
			require.NoError(t, store.Set(context.Background(), DefaultStorageKey, tt.stored))
			deliverer := &fakeDeliverer{}
			tr, err := New(Options{
				Store:           store,
				Auth:            &fakeAuth{},
				Deliverer:       deliverer,
				Clock:           clockwork.NewFakeClock(),
				MinSyncDuration: tt.minSync,
			})
			require.NoError(t, err)
			t.Cleanup(func() { _ = tr.Close(context.Background()) })

			res, err := tr.Sync(context.Background())
			require.NoError(t, err)
			assert.Equal(t, tt.wantOutcome, res.Outcome)
			assert.Equal(t, tt.wantSeconds, res.Seconds)

			_, visitor := deliverer.calls()
			if tt.wantOutcome == OutcomeDiscarded {
				assert.Empty(t, visitor)
				_, err := store.Get(context.Background(), DefaultStorageKey)
				assert.True(t, storage.IsNotFound(err))
			} else {
				assert.Equal(t, []int64{tt.wantSeconds}, visitor)
			}
		})
	}
}

func TestSync_RoundsToNearestSecond(t *testing.T) {
	tests := []struct {
		stored      string
		wantOutcome Outcome
		wantSeconds int64
	}{
		{"2499", OutcomeDiscarded, 2},
		{"2500", OutcomeDelivered, 3},
		{"3000", OutcomeDelivered, 3},
		{"3499", OutcomeDelivered, 3},
		{"3500", OutcomeDelivered, 4},
		{"4200.7", OutcomeDelivered, 4},
	}
	for _, tt := range tests {
		t.Run(tt.stored, func(t *testing.T) {
			h := newHarness(t)
			h.seed(t, tt.stored)

			res, err := h.tracker.Sync(context.Background())
			require.NoError(t, err)
			assert.Equal(t, tt.wantOutcome, res.Outcome)
			assert.Equal(t, tt.wantSeconds, res.Seconds)
		})
	}
}

func TestSync_RoutesByAuthState(t *testing.T) {
	for _, loggedIn := range []bool{false, true} {
		h := newHarness(t)
		h.auth.loggedIn.Store(loggedIn)
		h.seed(t, "7000")

		res, err := h.tracker.Sync(context.Background())
		require.NoError(t, err)
		assert.Equal(t, OutcomeDelivered, res.Outcome)

		user, visitor := h.deliverer.calls()
		if loggedIn {
			assert.Equal(t, []int64{7}, user)
			assert.Empty(t, visitor)
			assert.Equal(t, EndpointUser, res.Endpoint)
		} else {
			assert.Empty(t, user)
			assert.Equal(t, []int64{7}, visitor)
			assert.Equal(t, EndpointVisitor, res.Endpoint)
		}
	}
}

func TestSync_SuccessClearsSlot(t *testing.T) {
	h := newHarness(t)
	h.seed(t, "5000")

	_, err := h.tracker.Sync(context.Background())
	require.NoError(t, err)

	_, present := h.stored(t)
	assert.False(t, present)
	assert.Contains(t, h.sink.types(), eventstore.TypeSyncDelivered)
}

func TestSync_FailureKeepsSlot(t *testing.T) {
	h := newHarness(t)
	cause := errors.NetworkError("backend unreachable").Build()
	h.deliverer.err = cause
	h.seed(t, "5000")

	res, err := h.tracker.Sync(context.Background())
	require.Error(t, err)
	assert.Equal(t, OutcomeFailed, res.Outcome)

	var derr *DeliveryError
	require.True(t, stderrors.As(err, &derr))
	assert.Equal(t, EndpointVisitor, derr.Endpoint)
	assert.Equal(t, int64(5), derr.Seconds)
	assert.True(t, errors.HasCategory(err, errors.CategoryDelivery))
	assert.True(t, errors.HasCategory(err, errors.CategoryNetwork))
	assert.ErrorIs(t, err, cause)

	v, present := h.stored(t)
	require.True(t, present)
	assert.Equal(t, "5000", v)

	user, visitor := h.deliverer.calls()
	assert.Empty(t, user)
	assert.Len(t, visitor, 1, "exactly one attempt, no retry")
	assert.Contains(t, h.sink.types(), eventstore.TypeSyncFailed)
}

func TestStart_ShortPreviousSessionIsDiscarded(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	_, err := h.tracker.Start(ctx, true)
	require.NoError(t, err)
	h.clock.Advance(2000 * time.Millisecond)
	h.tracker.OnBackground()

	v, _ := h.stored(t)
	assert.Equal(t, "2000", v)

	// Reload: a fresh tracker over the same storage.
	reloaded := h.newTracker(t, h.store)
	res, err := reloaded.Start(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, OutcomeDiscarded, res.Outcome)

	user, visitor := h.deliverer.calls()
	assert.Empty(t, user)
	assert.Empty(t, visitor)
	_, present := h.stored(t)
	assert.False(t, present)
}

func TestStart_PreviousSessionIsDeliveredToVisitorEndpoint(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	_, err := h.tracker.Start(ctx, true)
	require.NoError(t, err)
	h.clock.Advance(5000 * time.Millisecond)
	h.tracker.OnBackground()

	reloaded := h.newTracker(t, h.store)
	res, err := reloaded.Start(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, OutcomeDelivered, res.Outcome)

	_, visitor := h.deliverer.calls()
	assert.Equal(t, []int64{5}, visitor)
	_, present := h.stored(t)
	assert.False(t, present)
}

func TestStart_AccruesOnlyWhenVisible(t *testing.T) {
	ctx := context.Background()

	hidden := newHarness(t)
	_, err := hidden.tracker.Start(ctx, false)
	require.NoError(t, err)
	assert.False(t, hidden.tracker.Accruing())

	visible := newHarness(t)
	_, err = visible.tracker.Start(ctx, true)
	require.NoError(t, err)
	assert.True(t, visible.tracker.Accruing())
	assert.Equal(t, int64(0), visible.tracker.Accumulated())

	_, err = visible.tracker.Start(ctx, true)
	assert.ErrorIs(t, err, ErrAlreadyStarted)
}

func TestOnForeground_IsIdempotent(t *testing.T) {
	h := newHarness(t)
	_, err := h.tracker.Start(context.Background(), false)
	require.NoError(t, err)

	h.tracker.OnForeground()
	h.clock.Advance(time.Second)
	h.tracker.OnForeground() // must not restart the period
	h.clock.Advance(time.Second)
	h.tracker.OnBackground()

	assert.Equal(t, int64(2000), h.tracker.Accumulated())
	v, _ := h.stored(t)
	assert.Equal(t, "2000", v)
}

func TestOnForeground_BeforeStartOnlyRecordsVisibility(t *testing.T) {
	h := newHarness(t)
	h.tracker.OnForeground()
	assert.False(t, h.tracker.Accruing())
	assert.True(t, h.tracker.Visible())
}

func TestAccrual_AccumulatesAcrossPeriods(t *testing.T) {
	h := newHarness(t)
	_, err := h.tracker.Start(context.Background(), true)
	require.NoError(t, err)

	h.clock.Advance(1500 * time.Millisecond)
	h.tracker.OnBackground()
	h.clock.Advance(time.Hour) // hidden time does not count
	h.tracker.OnForeground()
	h.clock.Advance(2500 * time.Millisecond)
	h.tracker.OnBackground()

	assert.Equal(t, int64(4000), h.tracker.Accumulated())
	v, _ := h.stored(t)
	assert.Equal(t, "4000", v)
}

func TestPeriodicFlush(t *testing.T) {
	h := newHarness(t)
	_, err := h.tracker.Start(context.Background(), true)
	require.NoError(t, err)

	h.clock.Advance(DefaultFlushInterval)
	require.Eventually(t, func() bool {
		v, ok := h.stored(t)
		return ok && v == "1000"
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, h.tracker.Flush(context.Background()))
	assert.Equal(t, int64(1000), h.tracker.Accumulated())
}

func TestFailedStartupSyncIsCarriedForward(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.deliverer.err = errors.NetworkError("offline").Build()
	h.seed(t, "5000")

	res, err := h.tracker.Start(ctx, true)
	require.Error(t, err)
	assert.Equal(t, OutcomeFailed, res.Outcome)
	assert.True(t, h.tracker.Accruing())
	assert.Equal(t, int64(0), h.tracker.Accumulated())

	h.clock.Advance(time.Second)
	h.tracker.OnBackground()

	v, _ := h.stored(t)
	assert.Equal(t, "6000", v, "undelivered time must not be overwritten by the new session")
	assert.Equal(t, int64(6000), h.tracker.Status().PendingMS)
}

func TestReset_ZeroesAndResumesWhenVisible(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	_, err := h.tracker.Start(ctx, true)
	require.NoError(t, err)

	h.clock.Advance(4 * time.Second)
	res, err := h.tracker.Reset(ctx)
	require.NoError(t, err)
	assert.Equal(t, OutcomeDelivered, res.Outcome)
	assert.Equal(t, int64(4), res.Seconds)

	assert.Equal(t, int64(0), h.tracker.Accumulated())
	assert.True(t, h.tracker.Accruing())
	_, present := h.stored(t)
	assert.False(t, present)

	types := h.sink.types()
	assert.Contains(t, types, eventstore.TypeTrackerReset)
	assert.Equal(t, eventstore.TypeAccrualStarted, types[len(types)-1])
}

func TestReset_StaysIdleWhenHidden(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	_, err := h.tracker.Start(ctx, true)
	require.NoError(t, err)
	h.clock.Advance(time.Second)
	h.tracker.OnBackground()

	res, err := h.tracker.Reset(ctx)
	require.NoError(t, err)
	assert.Equal(t, OutcomeDiscarded, res.Outcome)
	assert.Equal(t, int64(0), h.tracker.Accumulated())
	assert.False(t, h.tracker.Accruing())
}

func TestReset_FailureKeepsDurationAndZeroesAccumulator(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	_, err := h.tracker.Start(ctx, true)
	require.NoError(t, err)

	h.deliverer.err = errors.NetworkError("offline").Build()
	h.clock.Advance(10 * time.Second)
	_, err = h.tracker.Reset(ctx)
	require.Error(t, err)

	assert.Equal(t, int64(0), h.tracker.Accumulated())
	assert.True(t, h.tracker.Accruing())
	v, _ := h.stored(t)
	assert.Equal(t, "10000", v)

	h.clock.Advance(2 * time.Second)
	h.tracker.OnBackground()
	v, _ = h.stored(t)
	assert.Equal(t, "12000", v)
}

func TestReset_HonoursVisibilityChangesDuringDelivery(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	_, err := h.tracker.Start(ctx, true)
	require.NoError(t, err)
	h.clock.Advance(5 * time.Second)

	h.deliverer.entered = make(chan struct{})
	h.deliverer.release = make(chan struct{})

	done := make(chan error, 1)
	go func() {
		_, err := h.tracker.Reset(ctx)
		done <- err
	}()

	<-h.deliverer.entered
	h.tracker.OnBackground()
	assert.False(t, h.tracker.Accruing(), "no accrual while reconciling")
	close(h.deliverer.release)
	require.NoError(t, <-done)

	assert.False(t, h.tracker.Accruing(), "hidden at the end of reset")
	assert.Equal(t, int64(0), h.tracker.Accumulated())
}

func TestSync_RefusesWhileAccruing(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	_, err := h.tracker.Start(ctx, true)
	require.NoError(t, err)

	_, err = h.tracker.Sync(ctx)
	assert.ErrorIs(t, err, ErrAccruing)
}

func TestClose(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	_, err := h.tracker.Start(ctx, true)
	require.NoError(t, err)
	h.clock.Advance(3 * time.Second)

	require.NoError(t, h.tracker.Close(ctx))
	assert.False(t, h.tracker.Accruing())
	v, _ := h.stored(t)
	assert.Equal(t, "3000", v)

	require.NoError(t, h.tracker.Close(ctx))
	_, err = h.tracker.Reset(ctx)
	assert.ErrorIs(t, err, ErrClosed)

	h.tracker.OnForeground()
	assert.False(t, h.tracker.Accruing())
}

func TestFlushFailureIsReportedButNotFatal(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	fs := &failingStore{Store: h.store}
	tr := h.newTracker(t, fs)

	_, err := tr.Start(ctx, true)
	require.NoError(t, err)
	h.clock.Advance(4 * time.Second)

	fs.failSet.Store(true)
	require.Error(t, tr.Flush(ctx))
	assert.NotPanics(t, tr.OnBackground)

	// The in-memory total still wins over the stale slot on the next reset.
	fs.failSet.Store(false)
	res, err := tr.Reset(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(4), res.Seconds)
}

func TestPersisted(t *testing.T) {
	h := newHarness(t)
	ms, err := h.tracker.Persisted(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(0), ms)

	h.seed(t, "1234")
	ms, err = h.tracker.Persisted(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1234), ms)

	h.seed(t, "abc")
	_, err = h.tracker.Persisted(context.Background())
	assert.Error(t, err)
}

func TestParseMillis(t *testing.T) {
	tests := []struct {
		in   string
		want int64
		ok   bool
	}{
		{"0", 0, true},
		{" 1500 ", 1500, true},
		{"1500.4", 1500, true},
		{"1500.5", 1501, true},
		{"-1", 0, false},
		{"NaN", 0, false},
		{"Inf", 0, false},
		{"", 0, false},
		{"12abc", 0, false},
	}
	for _, tt := range tests {
		got, ok := parseMillis(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		if tt.ok {
			assert.Equal(t, tt.want, got, tt.in)
		}
	}
}
