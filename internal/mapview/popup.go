package mapview

import "github.com/woozymasta/parcelmap/internal/geo"

// Popup is an informational overlay anchored at a geographic position.
type Popup struct {
	html   string
	lngLat geo.LngLat
	placed bool
}

// NewPopup creates an empty popup.
func NewPopup() *Popup {
	return &Popup{}
}

// SetLngLat anchors the popup.
func (p *Popup) SetLngLat(ll geo.LngLat) *Popup {
	p.lngLat = ll
	p.placed = true
	return p
}

// SetHTML sets the popup body markup.
func (p *Popup) SetHTML(html string) *Popup {
	p.html = html
	return p
}

// AddTo shows the popup on m, replacing any popup already shown.
// Popups without a position are not shown.
func (p *Popup) AddTo(m *Map) *Popup {
	if m.removed || !p.placed {
		return p
	}

	m.popup = p
	return p
}

// LngLat returns the anchor position.
func (p *Popup) LngLat() geo.LngLat {
	return p.lngLat
}

// HTML returns the body markup.
func (p *Popup) HTML() string {
	return p.html
}
