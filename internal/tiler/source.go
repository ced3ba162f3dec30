package tiler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/woozymasta/parcelmap/internal/kml"

	"github.com/paulmach/orb/geojson"
	"github.com/rs/zerolog/log"
)

// maxSourceSize caps the downloaded source document.
const maxSourceSize = 512 << 20

// Fetch loads the source parcels from an http(s) URL or a local path.
// KMZ archives, KML documents and GeoJSON feature collections are accepted.
func Fetch(ctx context.Context, client *http.Client, src string) (*geojson.FeatureCollection, error) {
	data, err := readSource(ctx, client, src)
	if err != nil {
		return nil, err
	}

	var fc *geojson.FeatureCollection
	format := "geojson"
	switch {
	case kml.IsKMZ(data):
		format = "kmz"
		fc, err = kml.DecodeKMZ(data)
	case kml.IsKML(data):
		format = "kml"
		fc, err = kml.Decode(bytes.NewReader(data))
	default:
		fc, err = geojson.UnmarshalFeatureCollection(data)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", src, err)
	}

	log.Info().
		Str("source", src).
		Str("format", format).
		Int("bytes", len(data)).
		Int("features", len(fc.Features)).
		Msg("Source loaded")

	return fc, nil
}

func readSource(ctx context.Context, client *http.Client, src string) ([]byte, error) {
	if !strings.HasPrefix(src, "http://") && !strings.HasPrefix(src, "https://") {
		return os.ReadFile(src)
	}

	log.Info().Str("url", src).Msg("Downloading source...")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return nil, err
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	// Explicitly ignore close error as it's a read-only operation
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download %s: status %d", src, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxSourceSize+1))
	if err != nil {
		return nil, err
	}
	if len(data) > maxSourceSize {
		return nil, fmt.Errorf("download %s: larger than %d bytes", src, maxSourceSize)
	}

	return data, nil
}

// SaveGeoJSON marshals the feature collection and writes it to path.
func SaveGeoJSON(path string, fc *geojson.FeatureCollection) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}

	// We care about write errors on close
	defer func() {
		if closeErr := f.Close(); closeErr != nil {
			log.Error().Err(closeErr).Str("path", path).Msg("Failed to close file")
		}
	}()

	return json.NewEncoder(f).Encode(fc)
}
