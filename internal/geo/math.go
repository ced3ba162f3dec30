package geo

import "math"

// MaxLng bounds the longitudes a popup anchor is computed for. Below it a
// shift by whole turns of 360 degrees is exact.
const MaxLng = 1e9

// NearestLng returns the representation of lng (shifted by whole turns of
// 360 degrees) that is angularly closest to ref, so that |ref - result| <= 180.
//
// The result equals stepping by 360 until |ref - lng| <= 180, including the
// exact 180 tie. Non-finite input is returned unchanged.
func NearestLng(lng, ref float64) float64 {
	if math.IsNaN(lng) || math.IsNaN(ref) || math.IsInf(lng, 0) || math.IsInf(ref, 0) {
		return lng
	}

	d := ref - lng
	if math.Abs(d) <= 180 {
		return lng
	}

	if math.Abs(lng) <= MaxLng && math.Abs(ref) <= MaxLng {
		shifted := lng
		if d > 0 {
			shifted += 360 * math.Ceil((d-180)/360)
		} else {
			shifted -= 360 * math.Ceil((-180-d)/360)
		}
		if math.Abs(ref-shifted) <= 180 {
			return shifted
		}
	}

	// whole turns are no longer exact here, keep the remainder against ref
	r := math.Remainder(d, 360)
	switch {
	case r == -180 && d > 0:
		r = 180
	case r == 180 && d < 0:
		r = -180
	}
	if c := ref - r; math.Abs(ref-c) <= 180 {
		return c
	}

	return ref
}

// Finite reports whether both coordinates are finite numbers.
func (ll LngLat) Finite() bool {
	return !math.IsNaN(ll.Lng) && !math.IsNaN(ll.Lat) &&
		!math.IsInf(ll.Lng, 0) && !math.IsInf(ll.Lat, 0)
}

// Bounded reports whether the position is finite and its longitude is
// within MaxLng.
func (ll LngLat) Bounded() bool {
	return ll.Finite() && math.Abs(ll.Lng) <= MaxLng
}
