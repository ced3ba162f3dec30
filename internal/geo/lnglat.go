// Package geo holds the geographic value types shared by the map widget model,
// the popup anchor resolver and the tiling pipeline.
package geo

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/paulmach/orb"
	"gopkg.in/yaml.v3"
)

// LngLat is a geographic position in degrees.
type LngLat struct {
	Lng float64 `json:"lng" yaml:"lng"`
	Lat float64 `json:"lat" yaml:"lat"`
}

// FromPoint converts an orb point ([lng, lat]) to a LngLat.
func FromPoint(p orb.Point) LngLat {
	return LngLat{Lng: p.Lon(), Lat: p.Lat()}
}

// Point converts the position to an orb point.
func (ll LngLat) Point() orb.Point {
	return orb.Point{ll.Lng, ll.Lat}
}

// Array returns the position in GeoJSON [lng, lat] order.
func (ll LngLat) Array() [2]float64 {
	return [2]float64{ll.Lng, ll.Lat}
}

// UnmarshalJSON accepts both {"lng":..,"lat":..} and [lng, lat].
func (ll *LngLat) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		var arr []float64
		if err := json.Unmarshal(data, &arr); err != nil {
			return err
		}
		if len(arr) < 2 {
			return fmt.Errorf("lnglat array needs 2 values, got %d", len(arr))
		}
		ll.Lng, ll.Lat = arr[0], arr[1]
		return nil
	}

	var obj struct {
		Lng *float64 `json:"lng"`
		Lat *float64 `json:"lat"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	if obj.Lng == nil || obj.Lat == nil {
		return fmt.Errorf("lnglat object needs lng and lat")
	}
	ll.Lng, ll.Lat = *obj.Lng, *obj.Lat

	return nil
}

// UnmarshalYAML accepts both a mapping and a [lng, lat] sequence.
func (ll *LngLat) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.SequenceNode {
		var arr []float64
		if err := node.Decode(&arr); err != nil {
			return err
		}
		if len(arr) < 2 {
			return fmt.Errorf("line %d: lnglat sequence needs 2 values, got %d", node.Line, len(arr))
		}
		ll.Lng, ll.Lat = arr[0], arr[1]
		return nil
	}

	type plain LngLat
	var p plain
	if err := node.Decode(&p); err != nil {
		return err
	}
	*ll = LngLat(p)

	return nil
}
