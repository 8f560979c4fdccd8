package eventstore

import (
	"encoding/json"
	"testing"
	"time"
)

func TestEventPayloads(t *testing.T) {
	at := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		create   func() (Event, error)
		wantType string
		wantKeys []string
	}{
		{
			name:     "AccrualStarted",
			create:   func() (Event, error) { return NewAccrualStarted("s", TriggerStart, at) },
			wantType: TypeAccrualStarted,
			wantKeys: []string{"trigger"},
		},
		{
			name:     "AccrualStopped",
			create:   func() (Event, error) { return NewAccrualStopped("s", 1500*time.Millisecond, 4500, at) },
			wantType: TypeAccrualStopped,
			wantKeys: []string{"elapsed_ms", "total_ms"},
		},
		{
			name:     "SyncDelivered",
			create:   func() (Event, error) { return NewSyncDelivered("s", "user", 5, at) },
			wantType: TypeSyncDelivered,
			wantKeys: []string{"endpoint", "seconds"},
		},
		{
			name:     "SyncFailed",
			create:   func() (Event, error) { return NewSyncFailed("s", "visitor", 5, "timeout", at) },
			wantType: TypeSyncFailed,
			wantKeys: []string{"endpoint", "seconds", "error"},
		},
		{
			name:     "SyncDiscarded",
			create:   func() (Event, error) { return NewSyncDiscarded("s", 2400, at) },
			wantType: TypeSyncDiscarded,
			wantKeys: []string{"duration_ms"},
		},
		{
			name:     "TrackerReset",
			create:   func() (Event, error) { return NewTrackerReset("s", "logout", at) },
			wantType: TypeTrackerReset,
			wantKeys: []string{"reason"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event, err := tt.create()
			if err != nil {
				t.Fatalf("create: %v", err)
			}
			if event.Type() != tt.wantType {
				t.Errorf("type = %s, want %s", event.Type(), tt.wantType)
			}
			if event.SessionID() != "s" {
				t.Errorf("session = %s, want s", event.SessionID())
			}
			if !event.Timestamp().Equal(at) {
				t.Errorf("timestamp = %v, want %v", event.Timestamp(), at)
			}
			var payload map[string]any
			if err := json.Unmarshal(event.Payload(), &payload); err != nil {
				t.Fatalf("payload is not JSON: %v", err)
			}
			for _, k := range tt.wantKeys {
				if _, ok := payload[k]; !ok {
					t.Errorf("payload missing %q: %s", k, event.Payload())
				}
			}
		})
	}
}

func TestAccrualStoppedFields(t *testing.T) {
	e, err := NewAccrualStopped("s", 2*time.Second, 7000, time.Now())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if e.ElapsedMS != 2000 || e.TotalMS != 7000 {
		t.Errorf("unexpected fields: %+v", e)
	}
}
