package tiler

import (
	"slices"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/tidwall/rtree"
)

// Index is a read-only spatial index over feature bounds.
// It is safe for concurrent searches once built.
type Index struct {
	features []*geojson.Feature
	tree     rtree.RTreeG[int]
	bound    orb.Bound
}

// NewIndex indexes every feature with a geometry.
func NewIndex(fc *geojson.FeatureCollection) *Index {
	ix := &Index{}

	for _, f := range fc.Features {
		if f == nil || f.Geometry == nil {
			continue
		}

		b := f.Geometry.Bound()
		if len(ix.features) == 0 {
			ix.bound = b
		} else {
			ix.bound = ix.bound.Union(b)
		}

		ix.tree.Insert(
			[2]float64{b.Min.X(), b.Min.Y()},
			[2]float64{b.Max.X(), b.Max.Y()},
			len(ix.features),
		)
		ix.features = append(ix.features, f)
	}

	return ix
}

// Len returns the number of indexed features.
func (ix *Index) Len() int {
	return len(ix.features)
}

// Bound returns the union of all feature bounds.
func (ix *Index) Bound() orb.Bound {
	return ix.bound
}

// Search returns the features whose bounds intersect b, in collection order.
func (ix *Index) Search(b orb.Bound) []*geojson.Feature {
	var ids []int
	ix.tree.Search(
		[2]float64{b.Min.X(), b.Min.Y()},
		[2]float64{b.Max.X(), b.Max.Y()},
		func(_, _ [2]float64, id int) bool {
			ids = append(ids, id)
			return true
		},
	)
	slices.Sort(ids)

	out := make([]*geojson.Feature, len(ids))
	for i, id := range ids {
		out[i] = ix.features[id]
	}

	return out
}
