package eventstore

import (
	"context"
)

// Emitter persists events to a Store and keeps a projection current.
type Emitter struct {
	store      Store
	projection *DeliveryHistoryProjection
}

// NewEmitter creates an Emitter. Either argument may be nil.
func NewEmitter(store Store, projection *DeliveryHistoryProjection) *Emitter {
	return &Emitter{store: store, projection: projection}
}

// Emit persists event and applies it to the projection. The projection is
// updated even when persisting fails so in-process history stays accurate.
func (e *Emitter) Emit(ctx context.Context, event Event) error {
	if e == nil || event == nil {
		return nil
	}
	if e.projection != nil {
		e.projection.Apply(event)
	}
	if e.store == nil {
		return nil
	}
	return e.store.Append(ctx, event)
}
