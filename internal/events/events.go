// Package events provides an event system for chaos, recovery, and experiment notifications.
package events

import "time"

// EventType represents the type of event
type EventType string

const (
	// EventFaultInjected is emitted when a fault is injected into a service
	EventFaultInjected EventType = "fault_injected"
	// EventFaultCleared is emitted when an injected fault is removed
	EventFaultCleared EventType = "fault_cleared"
	// EventRecoveryStart is emitted when recovery attempts to restore a service
	EventRecoveryStart EventType = "recovery_start"
	// EventRecoverySuccess is emitted when recovery successfully restores a service
	EventRecoverySuccess EventType = "recovery_success"
	// EventRecoveryFailed is emitted when recovery fails to restore a service
	EventRecoveryFailed EventType = "recovery_failed"
	// EventBreakerStateChange is emitted when a circuit breaker changes state
	EventBreakerStateChange EventType = "breaker_state_change"
	// EventExperimentStarted is emitted when an experiment run begins
	EventExperimentStarted EventType = "experiment_started"
	// EventExperimentStep is emitted after each probe or action in an experiment
	EventExperimentStep EventType = "experiment_step"
	// EventExperimentCompleted is emitted when an experiment run finishes
	EventExperimentCompleted EventType = "experiment_completed"
)

// FaultType represents the kind of fault injected into a service
type FaultType string

const (
	FaultKill    FaultType = "kill"
	FaultSuspend FaultType = "suspend"
	FaultDelay   FaultType = "delay"
)

// Event represents a chaos, recovery, breaker, or experiment event
type Event struct {
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	ServiceID string    `json:"service_id,omitempty"`
	Data      EventData `json:"data,omitempty"`
}

// EventData contains event-specific data
type EventData struct {
	FaultType     FaultType `json:"fault_type,omitempty"`
	DelayDuration string    `json:"delay_duration,omitempty"`
	Attempt       int       `json:"attempt,omitempty"`
	Error         string    `json:"error,omitempty"`
	BreakerState  string    `json:"breaker_state,omitempty"`
	Experiment    string    `json:"experiment,omitempty"`
	RunID         string    `json:"run_id,omitempty"`
	Step          string    `json:"step,omitempty"`
	StepOK        bool      `json:"step_ok,omitempty"`
	Verdict       string    `json:"verdict,omitempty"`
}

// NewFaultInjectedEvent creates a fault injection event
func NewFaultInjectedEvent(serviceID string, faultType FaultType) Event {
	return Event{
		Type:      EventFaultInjected,
		Timestamp: time.Now(),
		ServiceID: serviceID,
		Data: EventData{
			FaultType: faultType,
		},
	}
}

// NewDelayInjectedEvent creates a fault injection event for delay injection
func NewDelayInjectedEvent(serviceID string, delay time.Duration) Event {
	return Event{
		Type:      EventFaultInjected,
		Timestamp: time.Now(),
		ServiceID: serviceID,
		Data: EventData{
			FaultType:     FaultDelay,
			DelayDuration: delay.String(),
		},
	}
}

// NewFaultClearedEvent creates a fault cleared event
func NewFaultClearedEvent(serviceID string, faultType FaultType) Event {
	return Event{
		Type:      EventFaultCleared,
		Timestamp: time.Now(),
		ServiceID: serviceID,
		Data: EventData{
			FaultType: faultType,
		},
	}
}

// NewRecoveryStartEvent creates a recovery start event
func NewRecoveryStartEvent(serviceID string, attempt int) Event {
	return Event{
		Type:      EventRecoveryStart,
		Timestamp: time.Now(),
		ServiceID: serviceID,
		Data: EventData{
			Attempt: attempt,
		},
	}
}

// NewRecoverySuccessEvent creates a recovery success event
func NewRecoverySuccessEvent(serviceID string) Event {
	return Event{
		Type:      EventRecoverySuccess,
		Timestamp: time.Now(),
		ServiceID: serviceID,
	}
}

// NewRecoveryFailedEvent creates a recovery failed event
func NewRecoveryFailedEvent(serviceID string, err error) Event {
	errMsg := ""
	if err != nil {
		errMsg = err.Error()
	}
	return Event{
		Type:      EventRecoveryFailed,
		Timestamp: time.Now(),
		ServiceID: serviceID,
		Data: EventData{
			Error: errMsg,
		},
	}
}

// NewBreakerStateChangeEvent creates a circuit breaker state change event
func NewBreakerStateChangeEvent(serviceID, state string) Event {
	return Event{
		Type:      EventBreakerStateChange,
		Timestamp: time.Now(),
		ServiceID: serviceID,
		Data: EventData{
			BreakerState: state,
		},
	}
}

// NewExperimentStartedEvent creates an experiment started event
func NewExperimentStartedEvent(title, runID string) Event {
	return Event{
		Type:      EventExperimentStarted,
		Timestamp: time.Now(),
		Data: EventData{
			Experiment: title,
			RunID:      runID,
		},
	}
}

// NewExperimentStepEvent creates an experiment step event
func NewExperimentStepEvent(runID, step string, ok bool) Event {
	return Event{
		Type:      EventExperimentStep,
		Timestamp: time.Now(),
		Data: EventData{
			RunID:  runID,
			Step:   step,
			StepOK: ok,
		},
	}
}

// NewExperimentCompletedEvent creates an experiment completed event
func NewExperimentCompletedEvent(title, runID, verdict string) Event {
	return Event{
		Type:      EventExperimentCompleted,
		Timestamp: time.Now(),
		Data: EventData{
			Experiment: title,
			RunID:      runID,
			Verdict:    verdict,
		},
	}
}
