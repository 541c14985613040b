package registry

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// EventType names a registry lifecycle event.
type EventType string

const (
	SchemaRegistered EventType = "schema:registered"
	SchemaFetched    EventType = "schema:fetched"
	CompileStart     EventType = "compile:start"
	CompileSuccess   EventType = "compile:success"
	CompileFailed    EventType = "compile:failed"
)

// Event describes something that happened to a registry entry.
type Event struct {
	Type      EventType `json:"type"`
	Key       string    `json:"key"`
	Timestamp int64     `json:"timestamp"`          // Unix milliseconds.
	Duration  *int64    `json:"duration,omitempty"` // Milliseconds, for compile results.
	Error     *string   `json:"error,omitempty"`
}

// EventCallbackFunction receives registry events.
type EventCallbackFunction func(ctx context.Context, event Event) error

// RegisterSubscriptionOptions describes a subscription to one event type.
type RegisterSubscriptionOptions struct {
	Event       EventType `json:"event"`
	Label       *string   `json:"label,omitempty"`
	Description *string   `json:"description,omitempty"`
	Callback    EventCallbackFunction
}

// SubscriptionInfo describes an active subscription.
type SubscriptionInfo struct {
	Id          *string   `json:"id,omitempty"`
	Event       EventType `json:"event"`
	Label       *string   `json:"label,omitempty"`
	Description *string   `json:"description,omitempty"`
	Unsubscribe func()    `json:"-"`
}

func createEvent(eventType EventType, key string, err error, startTime time.Time) Event {
	var duration *int64
	if !startTime.IsZero() {
		d := time.Since(startTime).Milliseconds()
		duration = &d
	}

	var errStr *string
	if err != nil {
		s := err.Error()
		errStr = &s
	}

	return Event{
		Type:      eventType,
		Key:       key,
		Timestamp: time.Now().UnixMilli(),
		Duration:  duration,
		Error:     errStr,
	}
}

func (r *Registry) emit(event Event) {
	if r.bus != nil {
		r.bus.Emit(string(event.Type), event)
	}
}

// RegisterSubscription registers a callback for one event type and returns an
// id for UnregisterSubscription.
func (r *Registry) RegisterSubscription(options RegisterSubscriptionOptions) string {
	r.subMu.Lock()
	defer r.subMu.Unlock()

	unsubscribe := r.bus.Subscribe(string(options.Event), options.Callback)
	id := uuid.New().String()

	r.subscriptions[id] = &SubscriptionInfo{
		Id:          &id,
		Event:       options.Event,
		Label:       options.Label,
		Description: options.Description,
		Unsubscribe: unsubscribe,
	}
	return id
}

// UnregisterSubscription removes a subscription by id.
func (r *Registry) UnregisterSubscription(id string) {
	r.subMu.Lock()
	defer r.subMu.Unlock()

	if info, ok := r.subscriptions[id]; ok {
		info.Unsubscribe()
		delete(r.subscriptions, id)
	}
}

// Subscriptions lists the active subscriptions.
func (r *Registry) Subscriptions() []SubscriptionInfo {
	r.subMu.RLock()
	defer r.subMu.RUnlock()

	subs := make([]SubscriptionInfo, 0, len(r.subscriptions))
	for _, sub := range r.subscriptions {
		subs = append(subs, *sub)
	}
	return subs
}
