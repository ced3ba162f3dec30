package anchor

import (
	"errors"
	"fmt"
)

// ErrUnsupportedGeometry is matched by every resolution failure.
var ErrUnsupportedGeometry = errors.New("unsupported geometry")

// UnsupportedGeometryError reports a feature whose geometry cannot anchor a popup.
type UnsupportedGeometryError struct {
	// Type is the geometry type tag of the clicked feature.
	Type string
	// Reason is set when the type is known but the coordinates are malformed.
	Reason string
}

func (e *UnsupportedGeometryError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("unsupported geometry %q: %s", e.Type, e.Reason)
	}

	return fmt.Sprintf("unsupported geometry %q", e.Type)
}

// Malformed reports whether the type was known but its coordinates were not usable.
func (e *UnsupportedGeometryError) Malformed() bool {
	return e.Reason != ""
}

// Is makes errors.Is(err, ErrUnsupportedGeometry) succeed.
func (e *UnsupportedGeometryError) Is(target error) bool {
	return target == ErrUnsupportedGeometry
}
