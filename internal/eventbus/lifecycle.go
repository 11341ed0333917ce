package eventbus

import (
	"time"

	"github.com/google/uuid"
)

// LifecycleKind names an admin-channel event.
type LifecycleKind string

const (
	LifecycleStarted LifecycleKind = "started"
	LifecycleStopped LifecycleKind = "stopped"
	LifecycleUpdated LifecycleKind = "updated"
)

// LifecycleEvent is broadcast to the supervisor when a station starts, stops
// or changes state.
type LifecycleEvent struct {
	ID        string
	StationID string
	Kind      LifecycleKind
	Time      time.Time
}

// PublishLifecycle emits a lifecycle event with a fresh id.
func PublishLifecycle(bus EventBus, stationID string, kind LifecycleKind, at time.Time) {
	if bus == nil {
		return
	}
	bus.Publish(LifecycleEvent{
		ID:        uuid.NewString(),
		StationID: stationID,
		Kind:      kind,
		Time:      at,
	})
}
