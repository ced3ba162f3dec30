// Package parcel wires the ownership parcel layer onto the map widget.
package parcel

import (
	"github.com/woozymasta/parcelmap/internal/anchor"
	"github.com/woozymasta/parcelmap/internal/config"
	"github.com/woozymasta/parcelmap/internal/mapview"

	"github.com/rs/zerolog/log"
)

// NewMap creates the widget from the configured view.
func NewMap(cfg *config.Config) (*mapview.Map, error) {
	return mapview.New(mapview.Options{
		AccessToken: cfg.AccessToken,
		Style:       cfg.Style,
		Center:      cfg.Center,
		Zoom:        cfg.Zoom,
		Navigation:  cfg.NavigationEnabled(),
	})
}

// Mount subscribes the parcel handlers on m. The ownership source and layer
// are added once the map loads. The returned function removes the map.
func Mount(m *mapview.Map, cfg *config.Config) (unmount func()) {
	layerID := cfg.Layer.ID

	m.On(mapview.EventZoom, "", func(mapview.Event) {
		log.Debug().Float64("zoom", m.Zoom()).Msg("Current zoom level")
	})

	m.On(mapview.EventLoad, "", func(mapview.Event) {
		if err := addOwnership(m, cfg); err != nil {
			log.Error().Err(err).Str("layer", layerID).Msg("Failed to add ownership layer")
			return
		}

		m.On(mapview.EventClick, layerID, func(ev mapview.Event) {
			showPopup(m, ev)
		})
		m.On(mapview.EventMouseEnter, layerID, func(mapview.Event) {
			m.SetCursor("pointer")
		})
		m.On(mapview.EventMouseLeave, layerID, func(mapview.Event) {
			m.SetCursor("")
		})
	})

	return m.Remove
}

func addOwnership(m *mapview.Map, cfg *config.Config) error {
	err := m.AddSource(cfg.Source.ID, mapview.VectorSource{
		Tiles:   cfg.Source.Tiles,
		MinZoom: cfg.Source.MinZoom,
		MaxZoom: cfg.Source.MaxZoom,
	})
	if err != nil {
		return err
	}

	return m.AddLayer(mapview.Layer{
		ID:          cfg.Layer.ID,
		Type:        "fill",
		Source:      cfg.Source.ID,
		SourceLayer: cfg.Layer.SourceLayer,
		Paint: map[string]any{
			"fill-color":         cfg.Layer.FillColor,
			"fill-opacity":       cfg.Layer.FillOpacity,
			"fill-outline-color": cfg.Layer.OutlineColor,
		},
	})
}

// showPopup anchors a popup for the first clicked feature. Features that
// cannot be anchored are logged and absorbed.
func showPopup(m *mapview.Map, ev mapview.Event) {
	if len(ev.Features) == 0 {
		return
	}
	feature := ev.Features[0]

	lngLat, content, err := anchor.Resolve(feature, ev.LngLat)
	if err != nil {
		log.Warn().
			Err(err).
			Str("geometry", feature.Type).
			Msg("Unhandled geometry type")
		return
	}

	mapview.NewPopup().
		SetLngLat(lngLat).
		SetHTML(content.HTML()).
		AddTo(m)
}
