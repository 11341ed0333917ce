package eventbus

import (
	"testing"
	"time"
)

func TestBusPublishSubscribe(t *testing.T) {
	bus := New()
	ch := bus.Subscribe()
	bus.Publish("hello")
	v := <-ch
	if v != "hello" {
		t.Fatalf("expected hello got %v", v)
	}
	bus.Unsubscribe(ch)
}

func TestBusClose(t *testing.T) {
	bus := New()
	ch1 := bus.Subscribe()
	ch2 := bus.Subscribe()
	bus.Close()
	if _, ok := <-ch1; ok {
		t.Fatalf("expected ch1 closed")
	}
	if _, ok := <-ch2; ok {
		t.Fatalf("expected ch2 closed")
	}
}

func TestBusUnsubscribeAfterClose(t *testing.T) {
	bus := New()
	ch := bus.Subscribe()
	bus.Close()
	defer func() {
		if r := recover(); r != nil {
			t.Fatalf("panic on Unsubscribe after Close: %v", r)
		}
	}()
	bus.Unsubscribe(ch)
}

func TestPublishLifecycle(t *testing.T) {
	bus := New()
	ch := bus.Subscribe()
	at := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	PublishLifecycle(bus, "cs-0001", LifecycleStarted, at)
	ev, ok := (<-ch).(LifecycleEvent)
	if !ok {
		t.Fatalf("expected LifecycleEvent")
	}
	if ev.StationID != "cs-0001" || ev.Kind != LifecycleStarted || !ev.Time.Equal(at) {
		t.Fatalf("bad event %#v", ev)
	}
	if ev.ID == "" {
		t.Fatalf("expected event id")
	}
}

func TestPublishLifecycleNilBus(t *testing.T) {
	PublishLifecycle(nil, "cs-0001", LifecycleStopped, time.Time{})
}
