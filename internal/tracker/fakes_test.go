package tracker

import (
	"context"
	"sync"
	"sync/atomic"

	"git.home.luguber.info/inful/timetracker/internal/eventstore"
	"git.home.luguber.info/inful/timetracker/internal/foundation/errors"
	"git.home.luguber.info/inful/timetracker/internal/storage"
)

type fakeAuth struct{ loggedIn atomic.Bool }

func (a *fakeAuth) IsLoggedIn() bool { return a.loggedIn.Load() }

type fakeDeliverer struct {
	mu      sync.Mutex
	user    []int64
	visitor []int64
	err     error
	entered chan struct{} // signalled when a call begins, if non-nil
	release chan struct{} // call blocks until closed, if non-nil
}

func (d *fakeDeliverer) LogUserTimeSpent(ctx context.Context, seconds int64) error {
	return d.call(&d.user, seconds)
}

func (d *fakeDeliverer) LogVisitorTimeSpent(ctx context.Context, seconds int64) error {
	return d.call(&d.visitor, seconds)
}

func (d *fakeDeliverer) call(dst *[]int64, seconds int64) error {
	if d.entered != nil {
		d.entered <- struct{}{}
	}
	if d.release != nil {
		<-d.release
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	*dst = append(*dst, seconds)
	return d.err
}

func (d *fakeDeliverer) calls() (user, visitor []int64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]int64(nil), d.user...), append([]int64(nil), d.visitor...)
}

type recordingSink struct {
	mu     sync.Mutex
	events []eventstore.Event
}

func (s *recordingSink) Emit(_ context.Context, e eventstore.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
	return nil
}

func (s *recordingSink) types() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.events))
	for _, e := range s.events {
		out = append(out, e.Type())
	}
	return out
}

// failingStore wraps a Store and fails writes while failSet is true.
type failingStore struct {
	storage.Store
	failSet atomic.Bool
}

func (f *failingStore) Set(ctx context.Context, key, value string) error {
	if f.failSet.Load() {
		return errors.StorageError("disk full").Build()
	}
	return f.Store.Set(ctx, key, value)
}
