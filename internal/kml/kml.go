// Package kml converts KML and KMZ documents into GeoJSON feature collections.
package kml

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"path"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// ErrNoDocument is returned when a KMZ archive holds no .kml file.
var ErrNoDocument = errors.New("kmz: no kml document")

type placemark struct {
	Name          string         `xml:"name"`
	ExtendedData  extendedData   `xml:"ExtendedData"`
	Point         *point         `xml:"Point"`
	LineString    *lineString    `xml:"LineString"`
	Polygon       *polygon       `xml:"Polygon"`
	MultiGeometry *multiGeometry `xml:"MultiGeometry"`
}

type extendedData struct {
	Data       []data       `xml:"Data"`
	SchemaData []schemaData `xml:"SchemaData"`
}

type data struct {
	Name  string `xml:"name,attr"`
	Value string `xml:"value"`
}

type schemaData struct {
	SimpleData []simpleData `xml:"SimpleData"`
}

type simpleData struct {
	Name  string `xml:"name,attr"`
	Value string `xml:",chardata"`
}

type point struct {
	Coordinates string `xml:"coordinates"`
}

type lineString struct {
	Coordinates string `xml:"coordinates"`
}

type polygon struct {
	Outer string   `xml:"outerBoundaryIs>LinearRing>coordinates"`
	Inner []string `xml:"innerBoundaryIs>LinearRing>coordinates"`
}

type multiGeometry struct {
	Points      []point         `xml:"Point"`
	LineStrings []lineString    `xml:"LineString"`
	Polygons    []polygon       `xml:"Polygon"`
	Multi       []multiGeometry `xml:"MultiGeometry"`
}

// Decode reads a KML document and returns every Placemark that carries a
// geometry. Placemarks are collected from any Document or Folder depth.
func Decode(r io.Reader) (*geojson.FeatureCollection, error) {
	fc := geojson.NewFeatureCollection()
	dec := xml.NewDecoder(r)

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("kml: %w", err)
		}

		start, ok := tok.(xml.StartElement)
		if !ok || start.Name.Local != "Placemark" {
			continue
		}

		var pm placemark
		if err := dec.DecodeElement(&pm, &start); err != nil {
			return nil, fmt.Errorf("kml: placemark: %w", err)
		}

		g, err := pm.geometry()
		if err != nil {
			return nil, fmt.Errorf("kml: placemark %q: %w", pm.Name, err)
		}
		if g == nil {
			continue
		}

		f := geojson.NewFeature(g)
		if name := strings.TrimSpace(pm.Name); name != "" {
			f.Properties["name"] = name
		}
		for _, d := range pm.ExtendedData.Data {
			f.Properties[d.Name] = strings.TrimSpace(d.Value)
		}
		for _, sd := range pm.ExtendedData.SchemaData {
			for _, d := range sd.SimpleData {
				f.Properties[d.Name] = strings.TrimSpace(d.Value)
			}
		}
		fc.Append(f)
	}

	return fc, nil
}

// DecodeKMZ reads the main document of a KMZ archive. doc.kml is preferred,
// otherwise the first .kml entry is used.
func DecodeKMZ(data []byte) (*geojson.FeatureCollection, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("kmz: %w", err)
	}

	var doc *zip.File
	for _, f := range zr.File {
		if !strings.EqualFold(path.Ext(f.Name), ".kml") {
			continue
		}
		if doc == nil || strings.EqualFold(path.Base(f.Name), "doc.kml") {
			doc = f
		}
	}
	if doc == nil {
		return nil, ErrNoDocument
	}

	rc, err := doc.Open()
	if err != nil {
		return nil, fmt.Errorf("kmz: %w", err)
	}
	defer func() { _ = rc.Close() }()

	return Decode(rc)
}

// IsKMZ reports whether data starts with the zip local file header.
func IsKMZ(data []byte) bool {
	return bytes.HasPrefix(data, []byte("PK\x03\x04"))
}

// IsKML reports whether data looks like a KML document.
func IsKML(data []byte) bool {
	head := data
	if len(head) > 512 {
		head = head[:512]
	}

	return bytes.Contains(head, []byte("<kml"))
}

func (pm placemark) geometry() (orb.Geometry, error) {
	switch {
	case pm.Point != nil:
		return pm.Point.geometry()
	case pm.LineString != nil:
		return pm.LineString.geometry()
	case pm.Polygon != nil:
		return pm.Polygon.geometry()
	case pm.MultiGeometry != nil:
		return pm.MultiGeometry.geometry()
	default:
		return nil, nil
	}
}

func (p point) geometry() (orb.Geometry, error) {
	pts, err := parseCoordinates(p.Coordinates)
	if err != nil {
		return nil, err
	}
	if len(pts) != 1 {
		return nil, fmt.Errorf("point has %d positions", len(pts))
	}

	return pts[0], nil
}

func (l lineString) geometry() (orb.Geometry, error) {
	pts, err := parseCoordinates(l.Coordinates)
	if err != nil {
		return nil, err
	}

	return orb.LineString(pts), nil
}

func (p polygon) geometry() (orb.Geometry, error) {
	outer, err := parseCoordinates(p.Outer)
	if err != nil {
		return nil, err
	}
	if len(outer) == 0 {
		return nil, errors.New("polygon has no outer boundary")
	}

	poly := orb.Polygon{orb.Ring(outer)}
	for _, in := range p.Inner {
		ring, err := parseCoordinates(in)
		if err != nil {
			return nil, err
		}
		poly = append(poly, orb.Ring(ring))
	}

	return poly, nil
}

// geometry flattens nested multi geometries. A homogeneous set becomes the
// matching Multi type, a mixed one a Collection.
func (m multiGeometry) geometry() (orb.Geometry, error) {
	var parts []orb.Geometry
	if err := m.collect(&parts); err != nil {
		return nil, err
	}
	if len(parts) == 0 {
		return nil, nil
	}

	switch parts[0].(type) {
	case orb.Polygon:
		mp := make(orb.MultiPolygon, 0, len(parts))
		for _, g := range parts {
			p, ok := g.(orb.Polygon)
			if !ok {
				return orb.Collection(parts), nil
			}
			mp = append(mp, p)
		}
		return mp, nil

	case orb.Point:
		mp := make(orb.MultiPoint, 0, len(parts))
		for _, g := range parts {
			p, ok := g.(orb.Point)
			if !ok {
				return orb.Collection(parts), nil
			}
			mp = append(mp, p)
		}
		return mp, nil

	case orb.LineString:
		ml := make(orb.MultiLineString, 0, len(parts))
		for _, g := range parts {
			l, ok := g.(orb.LineString)
			if !ok {
				return orb.Collection(parts), nil
			}
			ml = append(ml, l)
		}
		return ml, nil
	}

	return orb.Collection(parts), nil
}

func (m multiGeometry) collect(parts *[]orb.Geometry) error {
	for _, p := range m.Polygons {
		g, err := p.geometry()
		if err != nil {
			return err
		}
		*parts = append(*parts, g)
	}
	for _, p := range m.Points {
		g, err := p.geometry()
		if err != nil {
			return err
		}
		*parts = append(*parts, g)
	}
	for _, l := range m.LineStrings {
		g, err := l.geometry()
		if err != nil {
			return err
		}
		*parts = append(*parts, g)
	}
	for _, sub := range m.Multi {
		if err := sub.collect(parts); err != nil {
			return err
		}
	}

	return nil
}

// parseCoordinates parses a KML coordinate list: "lng,lat[,alt]" tuples
// separated by whitespace. Altitude is dropped.
func parseCoordinates(s string) ([]orb.Point, error) {
	fields := strings.Fields(s)
	pts := make([]orb.Point, 0, len(fields))

	for _, tuple := range fields {
		parts := strings.Split(tuple, ",")
		if len(parts) < 2 {
			return nil, fmt.Errorf("invalid coordinate tuple %q", tuple)
		}

		lng, err := strconv.ParseFloat(parts[0], 64)
		if err != nil {
			return nil, fmt.Errorf("invalid longitude %q: %w", parts[0], err)
		}
		lat, err := strconv.ParseFloat(parts[1], 64)
		if err != nil {
			return nil, fmt.Errorf("invalid latitude %q: %w", parts[1], err)
		}

		pts = append(pts, orb.Point{lng, lat})
	}

	return pts, nil
}
