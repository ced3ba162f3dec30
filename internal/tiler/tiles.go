// Package tiler cuts parcel features into Mapbox vector tiles on disk.
package tiler

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/mvt"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/maptile"
	"github.com/rs/zerolog/log"
)

// maxMercatorLat is the latitude limit of web mercator tiles.
const maxMercatorLat = 85.05112878

// ErrTilesFailed is returned when at least one tile could not be written.
var ErrTilesFailed = errors.New("tiles failed")

// Options controls tile generation.
type Options struct {
	Dir         string
	Layer       string
	MinZoom     int
	MaxZoom     int
	Concurrency int
	Gzip        bool
	Force       bool
}

// Stats counts tile outcomes.
type Stats struct {
	Written int
	Skipped int
	Empty   int
	Failed  int
}

type outcome int

const (
	tileWritten outcome = iota
	tileSkipped
	tileEmpty
	tileFailed
)

func (s *Stats) add(o outcome) {
	switch o {
	case tileWritten:
		s.Written++
	case tileSkipped:
		s.Skipped++
	case tileEmpty:
		s.Empty++
	case tileFailed:
		s.Failed++
	}
}

// Build writes dir/{z}/{x}/{y}.pbf for every tile covering the index bound
// between MinZoom and MaxZoom. Tiles without features are not written.
func Build(ctx context.Context, ix *Index, opts Options) (Stats, error) {
	var total Stats
	if ix.Len() == 0 {
		log.Warn().Msg("No features to tile")
		return total, nil
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 8
	}

	log.Info().
		Str("dir", opts.Dir).
		Str("layer", opts.Layer).
		Int("features", ix.Len()).
		Int("min_zoom", opts.MinZoom).
		Int("max_zoom", opts.MaxZoom).
		Msg("Starting tile generation")

	for z := opts.MinZoom; z <= opts.MaxZoom; z++ {
		tiles := Cover(ix.Bound(), maptile.Zoom(z))
		log.Debug().Int("zoom", z).Int("count", len(tiles)).Msg("Processing zoom level")

		stats, err := processBatch(ctx, ix, tiles, opts)
		total.Written += stats.Written
		total.Skipped += stats.Skipped
		total.Empty += stats.Empty
		total.Failed += stats.Failed
		if err != nil {
			return total, err
		}
	}

	log.Info().
		Int("written", total.Written).
		Int("skipped", total.Skipped).
		Int("empty", total.Empty).
		Int("failed", total.Failed).
		Msg("Tile generation finished")

	if total.Failed > 0 {
		return total, fmt.Errorf("%w: %d", ErrTilesFailed, total.Failed)
	}

	return total, nil
}

// Cover lists the tiles at zoom z that intersect b.
func Cover(b orb.Bound, z maptile.Zoom) []maptile.Tile {
	minLat := math.Max(b.Min.Lat(), -maxMercatorLat)
	maxLat := math.Min(b.Max.Lat(), maxMercatorLat)
	if minLat > maxLat {
		return nil
	}

	topLeft := maptile.At(orb.Point{b.Min.Lon(), maxLat}, z)
	bottomRight := maptile.At(orb.Point{b.Max.Lon(), minLat}, z)

	last := uint32(1)<<z - 1
	minX, maxX := min(topLeft.X, last), min(bottomRight.X, last)
	minY, maxY := min(topLeft.Y, last), min(bottomRight.Y, last)

	tiles := make([]maptile.Tile, 0, int(maxX-minX+1)*int(maxY-minY+1))
	for x := minX; x <= maxX; x++ {
		for y := minY; y <= maxY; y++ {
			tiles = append(tiles, maptile.New(x, y, z))
		}
	}

	return tiles
}

func processBatch(ctx context.Context, ix *Index, tiles []maptile.Tile, opts Options) (Stats, error) {
	jobs := make(chan maptile.Tile)
	results := make(chan outcome, len(tiles))

	go func() {
		defer close(jobs)
		for _, t := range tiles {
			select {
			case jobs <- t:
			case <-ctx.Done():
				return
			}
		}
	}()

	var wg sync.WaitGroup
	for i := 0; i < opts.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for t := range jobs {
				o, err := writeTile(ix, t, opts)
				if err != nil {
					log.Error().
						Err(err).
						Str("tile", tilePath(t)).
						Msg("Failed to write tile")
				}
				results <- o
			}
		}()
	}
	wg.Wait()
	close(results)

	var stats Stats
	for o := range results {
		stats.add(o)
	}

	return stats, ctx.Err()
}

func tilePath(t maptile.Tile) string {
	return filepath.Join(
		strconv.Itoa(int(t.Z)),
		strconv.Itoa(int(t.X)),
		strconv.Itoa(int(t.Y))+".pbf",
	)
}

func writeTile(ix *Index, t maptile.Tile, opts Options) (outcome, error) {
	outPath := filepath.Join(opts.Dir, tilePath(t))

	// Check existence if not forcing overwrite
	if !opts.Force {
		if info, err := os.Stat(outPath); err == nil && info.Size() > 0 {
			return tileSkipped, nil
		}
	}

	data, err := EncodeTile(ix, t, opts.Layer, opts.Gzip)
	if err != nil {
		return tileFailed, err
	}
	if data == nil {
		return tileEmpty, nil
	}

	if err := os.MkdirAll(filepath.Dir(outPath), 0755); err != nil {
		return tileFailed, err
	}
	if err := os.WriteFile(outPath, data, 0644); err != nil {
		return tileFailed, err
	}

	return tileWritten, nil
}

// EncodeTile encodes the features intersecting t as a single layer vector
// tile. It returns nil data when no feature survives clipping.
func EncodeTile(ix *Index, t maptile.Tile, layer string, gzip bool) ([]byte, error) {
	b := t.Bound()
	pad := math.Max(b.Max.Lon()-b.Min.Lon(), b.Max.Lat()-b.Min.Lat())
	found := ix.Search(b.Pad(pad))
	if len(found) == 0 {
		return nil, nil
	}

	// projection and clipping work in place, the index keeps the originals
	features := make([]*geojson.Feature, 0, len(found))
	for _, f := range found {
		c := geojson.NewFeature(orb.Clone(f.Geometry))
		c.Properties = f.Properties.Clone()
		features = append(features, c)
	}

	layers := mvt.Layers{&mvt.Layer{
		Name:     layer,
		Version:  2,
		Extent:   mvt.DefaultExtent,
		Features: features,
	}}
	layers.ProjectToTile(t)
	layers.Clip(mvt.MapboxGLDefaultExtentBound)
	layers.RemoveEmpty(1.0, 1.0)

	if len(layers[0].Features) == 0 {
		return nil, nil
	}

	if gzip {
		return mvt.MarshalGzipped(layers)
	}

	return mvt.Marshal(layers)
}
