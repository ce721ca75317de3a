package scenegraph

const (
	ON_ATTACH EventType = iota
	ON_DETACH
	ON_WORLD_UPDATE
)

type EventType uint8

// Event interface - all events implement this
type Event interface {
	Type() EventType
}

// AttachEvent is emitted when Child is placed under Parent
type AttachEvent struct {
	Parent *Node
	Child  *Node
}

func (e AttachEvent) Type() EventType { return ON_ATTACH }

// DetachEvent is emitted when Child leaves Parent
type DetachEvent struct {
	Parent *Node
	Child  *Node
}

func (e DetachEvent) Type() EventType { return ON_DETACH }

// WorldUpdateEvent reports one root pass of Graph.Update
type WorldUpdateEvent struct {
	Root *Node
	// Recomputed is the number of world matrices recomputed under Root
	Recomputed int
}

func (e WorldUpdateEvent) Type() EventType { return ON_WORLD_UPDATE }

// EventListener - callback for events
type EventListener func(event Event)

// Events manager
type Events struct {
	// Listeners by event type
	listeners map[EventType][]EventListener

	// Event buffer to send at flush
	buffer []Event
}

func NewEvents() Events {
	return Events{
		listeners: make(map[EventType][]EventListener),
		buffer:    make([]Event, 0, 64),
	}
}

// Subscribe adds a listener for an event type
func (e *Events) Subscribe(eventType EventType, listener EventListener) {
	if e.listeners == nil {
		e.listeners = make(map[EventType][]EventListener)
	}
	e.listeners[eventType] = append(e.listeners[eventType], listener)
}

func (e *Events) record(event Event) {
	e.buffer = append(e.buffer, event)
}

// flush sends all buffered events in record order and clears the buffer.
// Events recorded by a listener are kept for the next flush.
func (e *Events) flush() {
	pending := e.buffer
	e.buffer = make([]Event, 0, cap(pending))

	for _, event := range pending {
		if listeners, ok := e.listeners[event.Type()]; ok {
			for _, listener := range listeners {
				listener(event)
			}
		}
	}
}
