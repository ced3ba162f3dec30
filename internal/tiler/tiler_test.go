package tiler

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/mvt"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/maptile"
)

func square(minLon, minLat, size float64) orb.Polygon {
	return orb.Polygon{{
		{minLon, minLat},
		{minLon + size, minLat},
		{minLon + size, minLat + size},
		{minLon, minLat + size},
		{minLon, minLat},
	}}
}

func parcels() *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()

	ranch := geojson.NewFeature(square(-110.8, 43.4, 0.05))
	ranch.Properties["owner"] = "Smith Ranch"
	ranch.Properties["acres"] = 640
	fc.Append(ranch)

	town := geojson.NewFeature(square(-110.76, 43.47, 0.01))
	town.Properties["owner"] = "Town of Jackson"
	fc.Append(town)

	far := geojson.NewFeature(orb.Point{-104.99, 39.74})
	far.Properties["owner"] = "Denver"
	fc.Append(far)

	return fc
}

func TestCover(t *testing.T) {
	world := orb.Bound{Min: orb.Point{-180, -90}, Max: orb.Point{180, 90}}
	if got := Cover(world, 0); len(got) != 1 || got[0] != maptile.New(0, 0, 0) {
		t.Errorf("z0 cover = %v", got)
	}
	if got := Cover(world, 2); len(got) != 16 {
		t.Errorf("z2 cover = %d tiles, want 16", len(got))
	}

	jackson := orb.Bound{Min: orb.Point{-110.8, 43.4}, Max: orb.Point{-110.75, 43.45}}
	got := Cover(jackson, 6)
	want := maptile.At(orb.Point{-110.8, 43.45}, 6)
	if len(got) != 1 || got[0] != want {
		t.Errorf("z6 cover = %v, want [%v]", got, want)
	}

	for _, tile := range Cover(jackson, 12) {
		if !tile.Bound().Intersects(jackson) {
			t.Errorf("tile %v does not intersect the bound", tile)
		}
	}
}

func TestIndexSearch(t *testing.T) {
	ix := NewIndex(parcels())
	if ix.Len() != 3 {
		t.Fatalf("len = %d", ix.Len())
	}

	b := ix.Bound()
	if b.Min != (orb.Point{-110.8, 39.74}) || b.Max != (orb.Point{-104.99, 43.48}) {
		t.Errorf("bound = %v", b)
	}

	got := ix.Search(orb.Bound{Min: orb.Point{-110.77, 43.44}, Max: orb.Point{-110.74, 43.49}})
	if len(got) != 2 || got[0].Properties["owner"] != "Smith Ranch" || got[1].Properties["owner"] != "Town of Jackson" {
		t.Errorf("search = %v", got)
	}

	if got := ix.Search(orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{1, 1}}); len(got) != 0 {
		t.Errorf("empty search = %v", got)
	}
}

func TestIndexSkipsEmptyFeatures(t *testing.T) {
	fc := geojson.NewFeatureCollection()
	fc.Features = append(fc.Features, nil, &geojson.Feature{Type: "Feature"})
	fc.Append(geojson.NewFeature(orb.Point{1, 2}))

	if ix := NewIndex(fc); ix.Len() != 1 {
		t.Errorf("len = %d, want 1", ix.Len())
	}
}

func TestSimplify(t *testing.T) {
	fc := geojson.NewFeatureCollection()

	// collinear midpoints on every edge
	dense := geojson.NewFeature(orb.Polygon{{
		{0, 0}, {0.5, 0}, {1, 0}, {1, 0.5}, {1, 1}, {0.5, 1}, {0, 1}, {0, 0.5}, {0, 0},
	}})
	fc.Append(dense)

	// collapses below tolerance
	sliver := geojson.NewFeature(orb.Polygon{{{5, 5}, {5.0001, 5}, {5.0001, 5.00001}, {5, 5}}})
	fc.Append(sliver)

	fc.Append(geojson.NewFeature(orb.Point{3, 3}))

	dropped := Simplify(fc, 0.001)
	if dropped != 1 {
		t.Errorf("dropped = %d, want 1", dropped)
	}
	if len(fc.Features) != 2 {
		t.Fatalf("features = %d, want 2", len(fc.Features))
	}
	if ring := fc.Features[0].Geometry.(orb.Polygon)[0]; len(ring) != 5 {
		t.Errorf("simplified ring = %v", ring)
	}
}

func TestClean(t *testing.T) {
	hole := orb.Ring{{0.1, 0.1}, {0.2, 0.1}, {0.1, 0.1}}
	p := clean(orb.Polygon{square(0, 0, 1)[0], hole})
	if poly, ok := p.(orb.Polygon); !ok || len(poly) != 1 {
		t.Errorf("degenerate hole kept: %v", p)
	}

	if clean(orb.MultiPolygon{{{{0, 0}, {1, 1}}}}) != nil {
		t.Error("degenerate multipolygon kept")
	}
	if clean(orb.LineString{{0, 0}}) != nil {
		t.Error("single point line kept")
	}
	if got := clean(orb.Collection{orb.LineString{{0, 0}}, orb.Point{1, 1}}); len(got.(orb.Collection)) != 1 {
		t.Errorf("collection = %v", got)
	}
}

func TestEncodeTile(t *testing.T) {
	ix := NewIndex(parcels())
	tile := maptile.At(orb.Point{-110.78, 43.42}, 10)

	data, err := EncodeTile(ix, tile, "ownership_ownership", false)
	if err != nil {
		t.Fatal(err)
	}
	if data == nil {
		t.Fatal("no tile data")
	}

	layers, err := mvt.Unmarshal(data)
	if err != nil {
		t.Fatal(err)
	}
	if len(layers) != 1 || layers[0].Name != "ownership_ownership" {
		t.Fatalf("layers = %v", layers)
	}

	owners := map[any]bool{}
	for _, f := range layers[0].Features {
		owners[f.Properties["owner"]] = true
	}
	if !owners["Smith Ranch"] || owners["Denver"] {
		t.Errorf("owners = %v", owners)
	}

	// indexed geometry stays in degrees
	found := ix.Search(orb.Bound{Min: orb.Point{-110.8, 43.4}, Max: orb.Point{-110.8, 43.4}})
	if len(found) == 0 || found[0].Geometry.(orb.Polygon)[0][0] != (orb.Point{-110.8, 43.4}) {
		t.Error("original geometry was modified by encoding")
	}

	empty := maptile.At(orb.Point{10, 10}, 10)
	if data, err := EncodeTile(ix, empty, "ownership_ownership", false); err != nil || data != nil {
		t.Errorf("empty tile: %d bytes, err %v", len(data), err)
	}
}

func TestBuild(t *testing.T) {
	dir := t.TempDir()
	fc := geojson.NewFeatureCollection()
	fc.Append(parcels().Features[0])
	ix := NewIndex(fc)

	opts := Options{Dir: dir, Layer: "ownership_ownership", MinZoom: 6, MaxZoom: 8, Concurrency: 2}
	stats, err := Build(context.Background(), ix, opts)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Written == 0 || stats.Failed != 0 {
		t.Fatalf("stats = %+v", stats)
	}

	tile := maptile.At(orb.Point{-110.78, 43.42}, 6)
	if _, err := os.Stat(filepath.Join(dir, tilePath(tile))); err != nil {
		t.Errorf("z6 tile missing: %v", err)
	}

	again, err := Build(context.Background(), ix, opts)
	if err != nil {
		t.Fatal(err)
	}
	if again.Written != 0 || again.Skipped != stats.Written {
		t.Errorf("second run = %+v, want all %d skipped", again, stats.Written)
	}

	opts.Force = true
	opts.Gzip = true
	forced, err := Build(context.Background(), ix, opts)
	if err != nil {
		t.Fatal(err)
	}
	if forced.Written != stats.Written {
		t.Errorf("forced run = %+v", forced)
	}
	data, err := os.ReadFile(filepath.Join(dir, tilePath(tile)))
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.HasPrefix(data, []byte{0x1f, 0x8b}) {
		t.Error("tile is not gzipped")
	}
	if _, err := mvt.UnmarshalGzipped(data); err != nil {
		t.Errorf("gzipped tile: %v", err)
	}
}

func TestBuildCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Build(ctx, NewIndex(parcels()), Options{Dir: t.TempDir(), Layer: "l", MinZoom: 6, MaxZoom: 6})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestBuildEmpty(t *testing.T) {
	stats, err := Build(context.Background(), NewIndex(geojson.NewFeatureCollection()), Options{Dir: t.TempDir()})
	if err != nil || stats != (Stats{}) {
		t.Errorf("stats = %+v, err = %v", stats, err)
	}
}

const sampleKML = `<kml xmlns="http://www.opengis.net/kml/2.2"><Document><Placemark>
<name>Smith Ranch</name>
<Polygon><outerBoundaryIs><LinearRing><coordinates>-110.8,43.4 -110.7,43.4 -110.7,43.5 -110.8,43.4</coordinates></LinearRing></outerBoundaryIs></Polygon>
</Placemark></Document></kml>`

func TestFetchLocal(t *testing.T) {
	dir := t.TempDir()

	geoPath := filepath.Join(dir, "ownership.geojson")
	if err := SaveGeoJSON(geoPath, parcels()); err != nil {
		t.Fatal(err)
	}
	fc, err := Fetch(context.Background(), http.DefaultClient, geoPath)
	if err != nil {
		t.Fatal(err)
	}
	if len(fc.Features) != 3 {
		t.Errorf("geojson features = %d", len(fc.Features))
	}

	kmlPath := filepath.Join(dir, "ownership.kml")
	if err := os.WriteFile(kmlPath, []byte(sampleKML), 0644); err != nil {
		t.Fatal(err)
	}
	fc, err = Fetch(context.Background(), http.DefaultClient, kmlPath)
	if err != nil {
		t.Fatal(err)
	}
	if len(fc.Features) != 1 || fc.Features[0].Properties["name"] != "Smith Ranch" {
		t.Errorf("kml features = %v", fc.Features)
	}

	if _, err := Fetch(context.Background(), http.DefaultClient, filepath.Join(dir, "missing.kmz")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestFetchRemoteKMZ(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("doc.kml")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := w.Write([]byte(sampleKML)); err != nil {
		t.Fatal(err)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/ownership.kmz" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write(buf.Bytes())
	}))
	defer srv.Close()

	fc, err := Fetch(context.Background(), srv.Client(), srv.URL+"/ownership.kmz")
	if err != nil {
		t.Fatal(err)
	}
	if len(fc.Features) != 1 {
		t.Errorf("features = %d", len(fc.Features))
	}

	if _, err := Fetch(context.Background(), srv.Client(), srv.URL+"/missing.kmz"); err == nil {
		t.Error("expected error for 404")
	}
}

func TestFetchInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "junk.json")
	if err := os.WriteFile(path, []byte("not json"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Fetch(context.Background(), http.DefaultClient, path); err == nil {
		t.Error("expected decode error")
	}
}
