// Package anchor resolves where the popup for a clicked feature is placed and
// what it shows.
package anchor

import (
	"github.com/woozymasta/parcelmap/internal/geo"

	"github.com/paulmach/orb"
)

// Resolve computes the popup anchor for a feature clicked at cursor and
// renders the feature's properties.
//
// The anchor is the feature's reference vertex with its longitude moved to
// the copy of the world closest to the cursor, so |cursor.Lng - anchor.Lng| <= 180.
// Features that cannot be anchored return an *UnsupportedGeometryError.
func Resolve(f geo.Feature, cursor geo.LngLat) (geo.LngLat, Content, error) {
	ref, err := Reference(f)
	if err != nil {
		return geo.LngLat{}, Content{}, err
	}
	if !ref.Finite() || !cursor.Finite() {
		return geo.LngLat{}, Content{}, &UnsupportedGeometryError{Type: f.Type, Reason: "non-finite coordinate"}
	}
	if !ref.Bounded() || !cursor.Bounded() {
		return geo.LngLat{}, Content{}, &UnsupportedGeometryError{Type: f.Type, Reason: "longitude out of range"}
	}

	anchor := geo.LngLat{
		Lng: geo.NearestLng(ref.Lng, cursor.Lng),
		Lat: ref.Lat,
	}

	return anchor, Render(f.Properties), nil
}

// Reference returns the feature's reference coordinate before normalization:
// the point itself, the first vertex of a polygon's outer ring, or the first
// vertex of the first polygon's outer ring.
func Reference(f geo.Feature) (geo.LngLat, error) {
	if f.Malformed != "" {
		return geo.LngLat{}, &UnsupportedGeometryError{Type: f.Type, Reason: f.Malformed}
	}

	switch g := f.Geometry.(type) {
	case orb.Point:
		return geo.FromPoint(g), nil

	case orb.Polygon:
		if len(g) == 0 || len(g[0]) == 0 {
			return geo.LngLat{}, &UnsupportedGeometryError{Type: f.Type, Reason: "polygon has no outer ring"}
		}
		return geo.FromPoint(g[0][0]), nil

	case orb.MultiPolygon:
		if len(g) == 0 || len(g[0]) == 0 || len(g[0][0]) == 0 {
			return geo.LngLat{}, &UnsupportedGeometryError{Type: f.Type, Reason: "multipolygon has no outer ring"}
		}
		return geo.FromPoint(g[0][0][0]), nil

	default:
		return geo.LngLat{}, &UnsupportedGeometryError{Type: f.Type}
	}
}
