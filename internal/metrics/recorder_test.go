package metrics

import (
	"testing"
	"time"
)

type testRecorder struct {
	NoopRecorder
	flushes  map[bool]int
	outcomes map[OutcomeLabel]int
}

func newTestRecorder() *testRecorder {
	return &testRecorder{flushes: map[bool]int{}, outcomes: map[OutcomeLabel]int{}}
}

func (t *testRecorder) IncFlush(success bool) { t.flushes[success]++ }
func (t *testRecorder) IncSyncOutcome(_ string, outcome OutcomeLabel) {
	t.outcomes[outcome]++
}

func TestNoopRecorderSatisfiesInterface(t *testing.T) {
	var r Recorder = NoopRecorder{}
	r.IncFlush(true)
	r.ObserveSessionDuration(time.Second)
	r.IncSyncOutcome("visitor", OutcomeEmpty)
	r.AddDeliveredSeconds("visitor", 3)
	r.SetAccruing(true)
	r.SetPendingMilliseconds(0)
	r.IncLifecycleEvent("visible")
	r.ObserveRequestDuration("/", time.Millisecond, 200)
	r.ObserveHTTPRequest("GET /healthz", time.Millisecond, 200)
}

func TestEmbeddedRecorderOverrides(t *testing.T) {
	tr := newTestRecorder()
	var r Recorder = tr
	r.IncFlush(true)
	r.IncFlush(false)
	r.IncSyncOutcome("user", OutcomeDiscarded)
	r.SetAccruing(true) // falls through to NoopRecorder

	if tr.flushes[true] != 1 || tr.flushes[false] != 1 {
		t.Errorf("unexpected flush counts: %v", tr.flushes)
	}
	if tr.outcomes[OutcomeDiscarded] != 1 {
		t.Errorf("unexpected outcomes: %v", tr.outcomes)
	}
}
