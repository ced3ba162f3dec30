// Package mapview models the browser map widget: its explicit construction
// options, vector sources, layers, event listeners and popup.
//
// The server uses it to build the bootstrap document the page hands to the
// real widget and to replay click events when resolving popups. A Map is not
// safe for concurrent use.
package mapview

import (
	"errors"
	"fmt"

	"github.com/woozymasta/parcelmap/internal/geo"
)

// Sentinel errors returned by widget mutations.
var (
	ErrRemoved         = errors.New("map removed")
	ErrDuplicateSource = errors.New("source already exists")
	ErrDuplicateLayer  = errors.New("layer already exists")
	ErrUnknownSource   = errors.New("unknown source")
	ErrInvalidOptions  = errors.New("invalid map options")
)

// MaxZoom is the deepest zoom the widget accepts.
const MaxZoom = 24

// Options are passed explicitly when the widget is created.
type Options struct {
	AccessToken string
	Style       string
	Center      geo.LngLat
	Zoom        float64
	Navigation  bool
}

// VectorSource is a remote vector tile source.
type VectorSource struct {
	Tiles   []string `json:"tiles"`
	MinZoom int      `json:"minzoom"`
	MaxZoom int      `json:"maxzoom"`
}

// Layer is a style layer drawn from a source.
type Layer struct {
	Paint       map[string]any `json:"paint,omitempty"`
	ID          string         `json:"id"`
	Type        string         `json:"type"`
	Source      string         `json:"source"`
	SourceLayer string         `json:"source-layer,omitempty"`
}

type namedSource struct {
	ID     string
	Source VectorSource
}

// Map is the in-process model of the map widget.
type Map struct {
	opts      Options
	popup     *Popup
	listeners map[listenerKey][]Handler
	sources   []namedSource
	layers    []Layer
	cursor    string
	zoom      float64
	loaded    bool
	removed   bool
}

// New creates a widget from explicit options.
func New(opts Options) (*Map, error) {
	if opts.Style == "" {
		return nil, fmt.Errorf("%w: empty style", ErrInvalidOptions)
	}
	if opts.Zoom < 0 || opts.Zoom > MaxZoom {
		return nil, fmt.Errorf("%w: zoom %v", ErrInvalidOptions, opts.Zoom)
	}
	if !opts.Center.Finite() || opts.Center.Lat < -90 || opts.Center.Lat > 90 {
		return nil, fmt.Errorf("%w: center %+v", ErrInvalidOptions, opts.Center)
	}

	return &Map{
		opts:      opts,
		zoom:      opts.Zoom,
		listeners: make(map[listenerKey][]Handler),
	}, nil
}

// AddSource registers a vector source under id.
func (m *Map) AddSource(id string, src VectorSource) error {
	if m.removed {
		return ErrRemoved
	}
	if _, ok := m.Source(id); ok {
		return fmt.Errorf("%w: %s", ErrDuplicateSource, id)
	}
	if len(src.Tiles) == 0 {
		return fmt.Errorf("source %s: no tile templates", id)
	}
	if src.MinZoom > src.MaxZoom {
		return fmt.Errorf("source %s: minzoom %d above maxzoom %d", id, src.MinZoom, src.MaxZoom)
	}

	m.sources = append(m.sources, namedSource{ID: id, Source: src})
	return nil
}

// Source returns the source registered under id.
func (m *Map) Source(id string) (VectorSource, bool) {
	for _, s := range m.sources {
		if s.ID == id {
			return s.Source, true
		}
	}

	return VectorSource{}, false
}

// AddLayer adds a layer on top of the existing ones.
func (m *Map) AddLayer(l Layer) error {
	if m.removed {
		return ErrRemoved
	}
	if _, ok := m.Layer(l.ID); ok {
		return fmt.Errorf("%w: %s", ErrDuplicateLayer, l.ID)
	}
	if _, ok := m.Source(l.Source); !ok {
		return fmt.Errorf("%w: %s (layer %s)", ErrUnknownSource, l.Source, l.ID)
	}

	m.layers = append(m.layers, l)
	return nil
}

// Layer returns the layer with the given id.
func (m *Map) Layer(id string) (Layer, bool) {
	for _, l := range m.layers {
		if l.ID == id {
			return l, true
		}
	}

	return Layer{}, false
}

// Zoom returns the current zoom level.
func (m *Map) Zoom() float64 {
	return m.zoom
}

// SetZoom changes the zoom level, clamped to [0, MaxZoom], and fires zoom.
func (m *Map) SetZoom(z float64) {
	if m.removed {
		return
	}
	z = max(0, min(z, MaxZoom))
	if z == m.zoom {
		return
	}

	m.zoom = z
	m.fire(EventZoom, "", Event{Type: EventZoom})
}

// SetCursor sets the canvas cursor style.
func (m *Map) SetCursor(c string) {
	m.cursor = c
}

// Cursor returns the canvas cursor style.
func (m *Map) Cursor() string {
	return m.cursor
}

// Popup returns the popup currently shown, or nil.
func (m *Map) Popup() *Popup {
	return m.popup
}

// Loaded reports whether the load event has fired.
func (m *Map) Loaded() bool {
	return m.loaded
}

// Removed reports whether Remove was called.
func (m *Map) Removed() bool {
	return m.removed
}

// Remove tears the widget down: listeners are dropped and the popup closed.
func (m *Map) Remove() {
	if m.removed {
		return
	}

	m.removed = true
	m.listeners = make(map[listenerKey][]Handler)
	m.popup = nil
	m.cursor = ""
}
