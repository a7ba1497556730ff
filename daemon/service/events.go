package service

import (
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
)

// EventType represents different simulation lifecycle event classifications.
type EventType int

const (
	EventSimStarted EventType = iota + 1
	EventSimProgress
	EventChunkCompleted
	EventSimCompleted
	EventSimFailed
)

func (e EventType) String() string {
	switch e {
	case EventSimStarted:
		return "SIM_STARTED"
	case EventSimProgress:
		return "SIM_PROGRESS"
	case EventChunkCompleted:
		return "CHUNK_COMPLETED"
	case EventSimCompleted:
		return "SIM_COMPLETED"
	case EventSimFailed:
		return "SIM_FAILED"
	default:
		return "UNKNOWN"
	}
}

// SimEvent represents a run-related event.
type SimEvent struct {
	RunID           string
	EventType       EventType
	Timestamp       time.Time
	ProgressPercent float64
	Message         string
	Metadata        map[string]string
}

// EventSubscription represents an active event subscription.
type EventSubscription struct {
	ID          string
	RunIDFilter string
	Channel     chan *SimEvent
}

// EventPublisher manages event subscriptions and broadcasting.
type EventPublisher struct {
	subscriptions map[string]*EventSubscription
	mu            sync.RWMutex
	bufferSize    int
}

// NewEventPublisher creates a new event publisher.
func NewEventPublisher(bufferSize int) *EventPublisher {
	return &EventPublisher{
		subscriptions: make(map[string]*EventSubscription),
		bufferSize:    bufferSize,
	}
}

// Subscribe creates a new event subscription, optionally filtered to one run.
func (p *EventPublisher) Subscribe(runIDFilter string) *EventSubscription {
	p.mu.Lock()
	defer p.mu.Unlock()

	sub := &EventSubscription{
		ID:          uuid.NewString(),
		RunIDFilter: runIDFilter,
		Channel:     make(chan *SimEvent, p.bufferSize),
	}

	p.subscriptions[sub.ID] = sub
	return sub
}

// Unsubscribe removes an event subscription.
func (p *EventPublisher) Unsubscribe(subscriptionID string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if sub, exists := p.subscriptions[subscriptionID]; exists {
		close(sub.Channel)
		delete(p.subscriptions, subscriptionID)
	}
}

// Publish broadcasts an event to all matching subscribers.
func (p *EventPublisher) Publish(event *SimEvent) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	for _, sub := range p.subscriptions {
		if sub.RunIDFilter != "" && sub.RunIDFilter != event.RunID {
			continue
		}

		select {
		case sub.Channel <- event:
		default:
			// channel full, drop for slow consumers
		}
	}
}

// PublishStarted publishes a simulation started event.
func (p *EventPublisher) PublishStarted(runID string, numProducedChunks int) {
	p.Publish(&SimEvent{
		RunID:           runID,
		EventType:       EventSimStarted,
		Timestamp:       time.Now(),
		ProgressPercent: 0,
		Message:         "simulation started",
		Metadata: map[string]string{
			"num_produced_chunks": strconv.Itoa(numProducedChunks),
		},
	})
}

// PublishProgress publishes a wall-clock progress update for a long-running run.
func (p *EventPublisher) PublishProgress(runID string, simTimeSeconds float64, eventsDispatched int64) {
	p.Publish(&SimEvent{
		RunID:           runID,
		EventType:       EventSimProgress,
		Timestamp:       time.Now(),
		ProgressPercent: 0,
		Message:         "simulation in progress",
		Metadata: map[string]string{
			"sim_time_seconds":  formatFloat(simTimeSeconds),
			"events_dispatched": strconv.FormatInt(eventsDispatched, 10),
		},
	})
}

// PublishChunkCompleted publishes a chunk-fully-owned event.
func (p *EventPublisher) PublishChunkCompleted(runID, chunkID, node string, simTimeSeconds float64) {
	p.Publish(&SimEvent{
		RunID:     runID,
		EventType: EventChunkCompleted,
		Timestamp: time.Now(),
		Metadata: map[string]string{
			"chunk_id":         chunkID,
			"node":             node,
			"sim_time_seconds": formatFloat(simTimeSeconds),
		},
	})
}

// PublishCompleted publishes a run completed event.
func (p *EventPublisher) PublishCompleted(runID string, wallClockTime time.Duration) {
	p.Publish(&SimEvent{
		RunID:           runID,
		EventType:       EventSimCompleted,
		Timestamp:       time.Now(),
		ProgressPercent: 100,
		Message:         "simulation completed successfully",
		Metadata: map[string]string{
			"wall_clock_seconds": formatFloat(wallClockTime.Seconds()),
		},
	})
}

// PublishFailed publishes a run failed event.
func (p *EventPublisher) PublishFailed(runID, errorMessage string) {
	p.Publish(&SimEvent{
		RunID:     runID,
		EventType: EventSimFailed,
		Timestamp: time.Now(),
		Message:   errorMessage,
	})
}

// GetSubscriptionCount returns the number of active subscriptions.
func (p *EventPublisher) GetSubscriptionCount() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.subscriptions)
}

func formatFloat(f float64) string {
	return fmt.Sprintf("%.6f", f)
}
