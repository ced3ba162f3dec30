package mapview

// Bootstrap is the document the browser page uses to construct the real
// widget with the same options, sources and layers as this model.
type Bootstrap struct {
	AccessToken string            `json:"accessToken"`
	Style       string            `json:"style"`
	Sources     []BootstrapSource `json:"sources"`
	Layers      []Layer           `json:"layers"`
	Interactive []string          `json:"interactive"`
	Center      [2]float64        `json:"center"`
	Zoom        float64           `json:"zoom"`
	Navigation  bool              `json:"navigation"`
}

// BootstrapSource is a source entry in mapbox style form.
type BootstrapSource struct {
	ID      string   `json:"id"`
	Type    string   `json:"type"`
	Tiles   []string `json:"tiles"`
	MinZoom int      `json:"minzoom"`
	MaxZoom int      `json:"maxzoom"`
}

// Bootstrap snapshots the widget. Interactive lists, in layer order, the
// layers with click listeners.
func (m *Map) Bootstrap() Bootstrap {
	b := Bootstrap{
		AccessToken: m.opts.AccessToken,
		Style:       m.opts.Style,
		Center:      m.opts.Center.Array(),
		Zoom:        m.zoom,
		Navigation:  m.opts.Navigation,
		Sources:     make([]BootstrapSource, 0, len(m.sources)),
		Layers:      append([]Layer{}, m.layers...),
		Interactive: []string{},
	}

	for _, s := range m.sources {
		b.Sources = append(b.Sources, BootstrapSource{
			ID:      s.ID,
			Type:    "vector",
			Tiles:   append([]string(nil), s.Source.Tiles...),
			MinZoom: s.Source.MinZoom,
			MaxZoom: s.Source.MaxZoom,
		})
	}

	for _, l := range m.layers {
		if len(m.listeners[listenerKey{event: EventClick, layer: l.ID}]) > 0 {
			b.Interactive = append(b.Interactive, l.ID)
		}
	}

	return b
}
