package core

import "sync"

// EventType defines the type of event being published.
type EventType string

const (
	NotificationEvent    EventType = "Notification"
	ControlsChangedEvent EventType = "ControlsChanged"
	PanelChangedEvent    EventType = "PanelChanged"
	ScriptChangedEvent   EventType = "ScriptChanged"
	CommandResultEvent   EventType = "CommandResult"
)

// Notification is the payload of NotificationEvent: a toast for the panel.
type Notification struct {
	Message string `json:"message"`
	OK      bool   `json:"ok"`
}

// Result is the payload of CommandResultEvent.
type Result struct {
	Action Action `json:"action"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// Event is the envelope for all system events.
type Event struct {
	Type    EventType
	Payload interface{}
}

// Subscriber is a channel that receives events.
type Subscriber chan Event

const subscriberBuffer = 100

// EventBus fans events out to subscribers. Publishing never blocks: a
// subscriber whose buffer is full misses the event.
type EventBus struct {
	mu   sync.RWMutex
	subs map[Subscriber]map[EventType]bool
}

func NewEventBus() *EventBus {
	return &EventBus{subs: make(map[Subscriber]map[EventType]bool)}
}

// Subscribe returns a channel receiving events of the given types, or every
// event when none are given.
func (eb *EventBus) Subscribe(types ...EventType) Subscriber {
	ch := make(Subscriber, subscriberBuffer)
	var filter map[EventType]bool
	if len(types) > 0 {
		filter = make(map[EventType]bool, len(types))
		for _, t := range types {
			filter[t] = true
		}
	}

	eb.mu.Lock()
	eb.subs[ch] = filter
	eb.mu.Unlock()
	return ch
}

// Unsubscribe stops delivery to ch and closes it.
func (eb *EventBus) Unsubscribe(ch Subscriber) {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	if _, ok := eb.subs[ch]; ok {
		delete(eb.subs, ch)
		close(ch)
	}
}

func (eb *EventBus) Publish(event Event) {
	eb.mu.RLock()
	defer eb.mu.RUnlock()

	for ch, filter := range eb.subs {
		if filter != nil && !filter[event.Type] {
			continue
		}
		select {
		case ch <- event:
		default:
		}
	}
}

// Notify implements dispatch.Notifier on top of the bus.
func (eb *EventBus) Notify(message string, ok bool) {
	eb.Publish(Event{Type: NotificationEvent, Payload: Notification{Message: message, OK: ok}})
}

// SetControlsDisabled implements dispatch.Notifier on top of the bus.
func (eb *EventBus) SetControlsDisabled(disabled bool) {
	eb.Publish(Event{Type: ControlsChangedEvent, Payload: disabled})
}
