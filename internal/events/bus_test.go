package events

import (
	"testing"
	"time"
)

func TestBusSubscribePublish(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	ch := bus.Subscribe()

	event := NewFaultInjectedEvent("backend", FaultKill)
	bus.Publish(event)

	select {
	case got := <-ch:
		if got.Type != EventFaultInjected {
			t.Errorf("expected type %s, got %s", EventFaultInjected, got.Type)
		}
		if got.ServiceID != "backend" {
			t.Errorf("expected service 'backend', got '%s'", got.ServiceID)
		}
		if got.Data.FaultType != FaultKill {
			t.Errorf("expected fault type kill, got %s", got.Data.FaultType)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestBusMultipleSubscribers(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	ch1 := bus.Subscribe()
	ch2 := bus.Subscribe()

	if bus.SubscriberCount() != 2 {
		t.Errorf("expected 2 subscribers, got %d", bus.SubscriberCount())
	}

	bus.Publish(NewRecoverySuccessEvent("backend"))

	for i, ch := range []<-chan Event{ch1, ch2} {
		select {
		case got := <-ch:
			if got.Type != EventRecoverySuccess {
				t.Errorf("subscriber %d: expected recovery_success, got %s", i, got.Type)
			}
		case <-time.After(time.Second):
			t.Fatalf("subscriber %d: timed out", i)
		}
	}
}

func TestBusUnsubscribe(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	ch := bus.Subscribe()
	bus.Unsubscribe(ch)

	if bus.SubscriberCount() != 0 {
		t.Errorf("expected 0 subscribers, got %d", bus.SubscriberCount())
	}

	// Channel should be closed
	if _, ok := <-ch; ok {
		t.Error("expected closed channel after unsubscribe")
	}
}

func TestBusNonBlockingPublish(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	// Subscriber that never reads
	_ = bus.Subscribe()

	// Fill the buffer past capacity; must not block
	done := make(chan struct{})
	go func() {
		for i := 0; i < defaultBufferSize*2; i++ {
			bus.Publish(NewFaultInjectedEvent("backend", FaultDelay))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("Publish blocked on a full subscriber buffer")
	}
}

func TestBusRecent(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	if got := bus.Recent(10); len(got) != 0 {
		t.Errorf("expected empty history, got %d events", len(got))
	}

	bus.Publish(NewFaultInjectedEvent("backend", FaultKill))
	bus.Publish(NewRecoveryStartEvent("backend", 1))
	bus.Publish(NewRecoverySuccessEvent("backend"))

	got := bus.Recent(2)
	if len(got) != 2 {
		t.Fatalf("expected 2 events, got %d", len(got))
	}
	// Oldest first
	if got[0].Type != EventRecoveryStart {
		t.Errorf("expected recovery_start first, got %s", got[0].Type)
	}
	if got[1].Type != EventRecoverySuccess {
		t.Errorf("expected recovery_success second, got %s", got[1].Type)
	}

	all := bus.Recent(0)
	if len(all) != 3 {
		t.Errorf("expected full history of 3, got %d", len(all))
	}
}

func TestBusHistoryBound(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	for i := 0; i < defaultHistorySize+50; i++ {
		bus.Publish(NewFaultInjectedEvent("backend", FaultDelay))
	}

	if got := len(bus.Recent(0)); got != defaultHistorySize {
		t.Errorf("expected history capped at %d, got %d", defaultHistorySize, got)
	}
}

func TestBusClose(t *testing.T) {
	bus := NewBus()

	ch := bus.Subscribe()
	bus.Close()

	if _, ok := <-ch; ok {
		t.Error("expected closed channel after Close")
	}
	if bus.SubscriberCount() != 0 {
		t.Errorf("expected 0 subscribers after Close, got %d", bus.SubscriberCount())
	}
}

func TestExperimentEvents(t *testing.T) {
	started := NewExperimentStartedEvent("backend latency", "run-1")
	if started.Data.Experiment != "backend latency" || started.Data.RunID != "run-1" {
		t.Error("experiment started event not populated")
	}

	step := NewExperimentStepEvent("run-1", "inject-backend-delay", true)
	if step.Data.Step != "inject-backend-delay" || !step.Data.StepOK {
		t.Error("experiment step event not populated")
	}

	completed := NewExperimentCompletedEvent("backend latency", "run-1", "deviated")
	if completed.Data.Verdict != "deviated" {
		t.Error("experiment completed event not populated")
	}
}
