package mapview

import "github.com/woozymasta/parcelmap/internal/geo"

// EventType names a widget event.
type EventType string

// Events the widget dispatches.
const (
	EventLoad       EventType = "load"
	EventClick      EventType = "click"
	EventMouseEnter EventType = "mouseenter"
	EventMouseLeave EventType = "mouseleave"
	EventZoom       EventType = "zoom"
)

// Event is the payload passed to listeners.
type Event struct {
	Type     EventType
	Layer    string
	Features []geo.Feature
	LngLat   geo.LngLat
}

// Handler receives widget events synchronously.
type Handler func(Event)

type listenerKey struct {
	event EventType
	layer string
}

// On subscribes h to event. An empty layer subscribes to map-level events;
// otherwise only events delivered to that layer reach h.
func (m *Map) On(event EventType, layer string, h Handler) {
	if m.removed || h == nil {
		return
	}

	k := listenerKey{event: event, layer: layer}
	m.listeners[k] = append(m.listeners[k], h)
}

// Load fires the load event once.
func (m *Map) Load() {
	if m.removed || m.loaded {
		return
	}

	m.loaded = true
	m.fire(EventLoad, "", Event{Type: EventLoad})
}

// Click delivers a click at lngLat. Map-level listeners always run; layer
// listeners run only when features of that layer are under the cursor.
func (m *Map) Click(layer string, features []geo.Feature, lngLat geo.LngLat) {
	if m.removed {
		return
	}

	ev := Event{Type: EventClick, LngLat: lngLat}
	m.fire(EventClick, "", ev)

	if layer == "" || len(features) == 0 {
		return
	}
	ev.Layer = layer
	ev.Features = features
	m.fire(EventClick, layer, ev)
}

// Enter delivers a mouseenter on layer.
func (m *Map) Enter(layer string) {
	if m.removed {
		return
	}
	m.fire(EventMouseEnter, layer, Event{Type: EventMouseEnter, Layer: layer})
}

// Leave delivers a mouseleave on layer.
func (m *Map) Leave(layer string) {
	if m.removed {
		return
	}
	m.fire(EventMouseLeave, layer, Event{Type: EventMouseLeave, Layer: layer})
}

func (m *Map) fire(event EventType, layer string, ev Event) {
	// copy: handlers may subscribe or remove the map while running
	handlers := append([]Handler(nil), m.listeners[listenerKey{event: event, layer: layer}]...)
	for _, h := range handlers {
		if m.removed {
			return
		}
		h(ev)
	}
}
