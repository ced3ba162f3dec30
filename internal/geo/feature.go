package geo

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/paulmach/orb"
)

// GeometryKind enumerates the geometry types a clicked feature may carry.
type GeometryKind int

// Known geometry kinds. Anything else decodes to KindUnsupported.
const (
	KindUnsupported GeometryKind = iota
	KindPoint
	KindPolygon
	KindMultiPolygon
)

// ParseGeometryKind maps a GeoJSON geometry type tag to its kind.
func ParseGeometryKind(tag string) GeometryKind {
	switch tag {
	case "Point":
		return KindPoint
	case "Polygon":
		return KindPolygon
	case "MultiPolygon":
		return KindMultiPolygon
	default:
		return KindUnsupported
	}
}

// KindOf returns the kind of an orb geometry.
func KindOf(g orb.Geometry) GeometryKind {
	switch g.(type) {
	case orb.Point:
		return KindPoint
	case orb.Polygon:
		return KindPolygon
	case orb.MultiPolygon:
		return KindMultiPolygon
	default:
		return KindUnsupported
	}
}

func (k GeometryKind) String() string {
	switch k {
	case KindPoint:
		return "Point"
	case KindPolygon:
		return "Polygon"
	case KindMultiPolygon:
		return "MultiPolygon"
	default:
		return "Unsupported"
	}
}

// Property is a single feature attribute.
type Property struct {
	Value any
	Name  string
}

// Properties is an ordered list of feature attributes.
type Properties []Property

// UnmarshalJSON decodes a JSON object keeping the key order of the document.
// Numbers are kept as json.Number so they render exactly as sent.
func (p *Properties) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		*p = nil
		return nil
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("properties must be an object, got %v", tok)
	}

	props := Properties{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		name, ok := tok.(string)
		if !ok {
			return fmt.Errorf("unexpected property key %v", tok)
		}

		var value any
		if err := dec.Decode(&value); err != nil {
			return fmt.Errorf("property %q: %w", name, err)
		}
		props = append(props, Property{Name: name, Value: value})
	}

	if _, err := dec.Token(); err != nil {
		return err
	}
	*p = props

	return nil
}

// Feature is a single clicked map entity as delivered by the widget.
type Feature struct {
	ID       any
	Geometry orb.Geometry // nil when the type is unsupported or the coordinates are malformed
	// Type is the geometry type tag exactly as received.
	Type       string
	Malformed  string // reason the coordinates were rejected, empty when well formed
	Properties Properties
	Kind       GeometryKind
}

// NewFeature builds a feature from an orb geometry.
func NewFeature(g orb.Geometry, props ...Property) Feature {
	f := Feature{
		Geometry:   g,
		Kind:       KindOf(g),
		Properties: props,
	}
	if g != nil {
		f.Type = g.GeoJSONType()
	}
	if f.Kind == KindUnsupported {
		f.Geometry = nil
	}

	return f
}

var errMalformed = errors.New("malformed coordinates")

type featureJSON struct {
	ID         any           `json:"id,omitempty"`
	Geometry   *geometryJSON `json:"geometry"`
	Properties Properties    `json:"properties"`
}

type geometryJSON struct {
	Type        string          `json:"type"`
	Coordinates json.RawMessage `json:"coordinates"`
}

// UnmarshalJSON decodes a GeoJSON feature. Unknown geometry types and
// malformed coordinates do not fail decoding; they leave Geometry nil and
// are reported when the feature is resolved.
func (f *Feature) UnmarshalJSON(data []byte) error {
	var raw featureJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*f = Feature{ID: raw.ID, Properties: raw.Properties}
	if raw.Geometry == nil {
		f.Malformed = "missing geometry"
		return nil
	}

	f.Type = raw.Geometry.Type
	f.Kind = ParseGeometryKind(raw.Geometry.Type)
	if f.Kind == KindUnsupported {
		return nil
	}

	g, err := decodeCoordinates(f.Kind, raw.Geometry.Coordinates)
	if err != nil {
		f.Malformed = err.Error()
		return nil
	}
	f.Geometry = g

	return nil
}

func decodeCoordinates(kind GeometryKind, raw json.RawMessage) (orb.Geometry, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: missing coordinates", errMalformed)
	}

	switch kind {
	case KindPoint:
		var c []float64
		if err := json.Unmarshal(raw, &c); err != nil {
			return nil, fmt.Errorf("%w: %v", errMalformed, err)
		}
		return toPoint(c)

	case KindPolygon:
		var c [][][]float64
		if err := json.Unmarshal(raw, &c); err != nil {
			return nil, fmt.Errorf("%w: %v", errMalformed, err)
		}
		return toPolygon(c)

	case KindMultiPolygon:
		var c [][][][]float64
		if err := json.Unmarshal(raw, &c); err != nil {
			return nil, fmt.Errorf("%w: %v", errMalformed, err)
		}
		if len(c) == 0 {
			return nil, fmt.Errorf("%w: multipolygon has no polygons", errMalformed)
		}
		mp := make(orb.MultiPolygon, 0, len(c))
		for _, pc := range c {
			poly, err := toPolygon(pc)
			if err != nil {
				return nil, err
			}
			mp = append(mp, poly)
		}
		return mp, nil

	default:
		return nil, fmt.Errorf("%w: unsupported kind %s", errMalformed, kind)
	}
}

func toPoint(c []float64) (orb.Point, error) {
	if len(c) < 2 {
		return orb.Point{}, fmt.Errorf("%w: position needs 2 values, got %d", errMalformed, len(c))
	}

	return orb.Point{c[0], c[1]}, nil
}

func toPolygon(c [][][]float64) (orb.Polygon, error) {
	if len(c) == 0 || len(c[0]) == 0 {
		return nil, fmt.Errorf("%w: polygon has no outer ring", errMalformed)
	}

	poly := make(orb.Polygon, 0, len(c))
	for _, rc := range c {
		ring := make(orb.Ring, 0, len(rc))
		for _, pc := range rc {
			p, err := toPoint(pc)
			if err != nil {
				return nil, err
			}
			ring = append(ring, p)
		}
		poly = append(poly, ring)
	}

	return poly, nil
}
