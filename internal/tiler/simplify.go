package tiler

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/simplify"
)

// Simplify applies Douglas-Peucker with the given tolerance (in degrees) to
// every feature in place and drops features that collapse. It returns the
// number of dropped features.
func Simplify(fc *geojson.FeatureCollection, tolerance float64) int {
	var s orb.Simplifier
	if tolerance > 0 {
		s = simplify.DouglasPeucker(tolerance)
	}

	kept := fc.Features[:0]
	for _, f := range fc.Features {
		if f == nil || f.Geometry == nil {
			continue
		}

		g := f.Geometry
		if s != nil {
			g = s.Simplify(g)
		}
		if g = clean(g); g == nil {
			continue
		}

		f.Geometry = g
		kept = append(kept, f)
	}

	dropped := len(fc.Features) - len(kept)
	clear(fc.Features[len(kept):])
	fc.Features = kept

	return dropped
}

// clean removes degenerate rings and lines, returning nil when nothing is left.
func clean(g orb.Geometry) orb.Geometry {
	switch g := g.(type) {
	case orb.Polygon:
		p := cleanPolygon(g)
		if p == nil {
			return nil
		}
		return p

	case orb.MultiPolygon:
		mp := make(orb.MultiPolygon, 0, len(g))
		for _, p := range g {
			if p = cleanPolygon(p); p != nil {
				mp = append(mp, p)
			}
		}
		if len(mp) == 0 {
			return nil
		}
		return mp

	case orb.LineString:
		if len(g) < 2 {
			return nil
		}
		return g

	case orb.MultiLineString:
		ml := make(orb.MultiLineString, 0, len(g))
		for _, l := range g {
			if len(l) >= 2 {
				ml = append(ml, l)
			}
		}
		if len(ml) == 0 {
			return nil
		}
		return ml

	case orb.Collection:
		c := make(orb.Collection, 0, len(g))
		for _, part := range g {
			if part = clean(part); part != nil {
				c = append(c, part)
			}
		}
		if len(c) == 0 {
			return nil
		}
		return c

	default:
		return g
	}
}

// cleanPolygon drops holes with fewer than 4 positions; a degenerate outer
// ring drops the polygon.
func cleanPolygon(p orb.Polygon) orb.Polygon {
	if len(p) == 0 || len(p[0]) < 4 {
		return nil
	}

	out := orb.Polygon{p[0]}
	for _, ring := range p[1:] {
		if len(ring) >= 4 {
			out = append(out, ring)
		}
	}

	return out
}
