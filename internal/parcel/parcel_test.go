package parcel

import (
	"bytes"
	"encoding/json"
	"math"
	"strings"
	"testing"

	"github.com/woozymasta/parcelmap/internal/config"
	"github.com/woozymasta/parcelmap/internal/geo"
	"github.com/woozymasta/parcelmap/internal/mapview"

	"github.com/paulmach/orb"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Parse([]byte("access_token: pk.test\n"))
	if err != nil {
		t.Fatal(err)
	}
	return cfg
}

func mounted(t *testing.T) (*mapview.Map, *config.Config) {
	t.Helper()
	cfg := testConfig(t)
	m, err := NewMap(cfg)
	if err != nil {
		t.Fatal(err)
	}
	unmount := Mount(m, cfg)
	t.Cleanup(unmount)
	m.Load()
	return m, cfg
}

func captureLog(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := log.Logger
	log.Logger = zerolog.New(&buf)
	prevLevel := zerolog.GlobalLevel()
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
	t.Cleanup(func() {
		log.Logger = prev
		zerolog.SetGlobalLevel(prevLevel)
	})
	return &buf
}

func TestMountAddsOwnershipOnLoad(t *testing.T) {
	cfg := testConfig(t)
	m, err := NewMap(cfg)
	if err != nil {
		t.Fatal(err)
	}
	Mount(m, cfg)

	if _, ok := m.Source("ownership"); ok {
		t.Fatal("source added before load")
	}
	m.Load()

	src, ok := m.Source("ownership")
	if !ok || src.MinZoom != 6 || src.MaxZoom != 14 {
		t.Fatalf("source = %+v, %v", src, ok)
	}
	layer, ok := m.Layer("ownership-layer")
	if !ok {
		t.Fatal("layer missing")
	}
	if layer.Type != "fill" || layer.SourceLayer != "ownership_ownership" || layer.Source != "ownership" {
		t.Errorf("layer = %+v", layer)
	}
	if layer.Paint["fill-color"] != "#AAAAAA" || layer.Paint["fill-opacity"] != 0.3 || layer.Paint["fill-outline-color"] != "#000000" {
		t.Errorf("paint = %v", layer.Paint)
	}

	b := m.Bootstrap()
	if len(b.Interactive) != 1 || b.Interactive[0] != "ownership-layer" {
		t.Errorf("interactive = %v", b.Interactive)
	}
	if b.AccessToken != "pk.test" || !b.Navigation {
		t.Errorf("bootstrap = %+v", b)
	}
}

func TestClickShowsPopup(t *testing.T) {
	m, cfg := mounted(t)

	var f geo.Feature
	doc := `{"geometry":{"type":"Point","coordinates":[-179.9,43.5]},
		"properties":{"owner":"Smith Ranch","acres":640}}`
	if err := json.Unmarshal([]byte(doc), &f); err != nil {
		t.Fatal(err)
	}

	m.Click(cfg.Layer.ID, []geo.Feature{f}, geo.LngLat{Lng: 179.9, Lat: 43.5})

	p := m.Popup()
	if p == nil {
		t.Fatal("no popup shown")
	}
	if math.Abs(p.LngLat().Lng-180.1) > 1e-9 || p.LngLat().Lat != 43.5 {
		t.Errorf("anchor = %+v", p.LngLat())
	}
	want := "<div><strong>owner</strong>: Smith Ranch<br><strong>acres</strong>: 640</div>"
	if p.HTML() != want {
		t.Errorf("html = %q", p.HTML())
	}
}

func TestClickUsesFirstFeature(t *testing.T) {
	m, cfg := mounted(t)

	first := geo.NewFeature(orb.Polygon{{{-110.1, 43.1}, {-110.2, 43.1}, {-110.2, 43.2}, {-110.1, 43.1}}},
		geo.Property{Name: "owner", Value: "First"})
	second := geo.NewFeature(orb.Point{-111, 44}, geo.Property{Name: "owner", Value: "Second"})

	m.Click(cfg.Layer.ID, []geo.Feature{first, second}, geo.LngLat{Lng: -110.15, Lat: 43.15})

	p := m.Popup()
	if p == nil {
		t.Fatal("no popup shown")
	}
	if p.LngLat() != (geo.LngLat{Lng: -110.1, Lat: 43.1}) {
		t.Errorf("anchor = %+v", p.LngLat())
	}
	if !strings.Contains(p.HTML(), "First") {
		t.Errorf("html = %q", p.HTML())
	}
}

func TestClickUnsupportedIsAbsorbed(t *testing.T) {
	buf := captureLog(t)
	m, cfg := mounted(t)

	line := geo.NewFeature(orb.LineString{{0, 0}, {1, 1}})
	m.Click(cfg.Layer.ID, []geo.Feature{line}, geo.LngLat{})

	if m.Popup() != nil {
		t.Error("popup shown for unsupported geometry")
	}
	out := buf.String()
	if !strings.Contains(out, "Unhandled geometry type") || !strings.Contains(out, "LineString") {
		t.Errorf("diagnostic missing: %q", out)
	}
}

func TestClickUnsupportedKeepsPreviousPopup(t *testing.T) {
	m, cfg := mounted(t)

	m.Click(cfg.Layer.ID, []geo.Feature{geo.NewFeature(orb.Point{1, 1})}, geo.LngLat{Lng: 1, Lat: 1})
	prev := m.Popup()
	if prev == nil {
		t.Fatal("no popup shown")
	}

	m.Click(cfg.Layer.ID, []geo.Feature{geo.NewFeature(orb.Polygon{})}, geo.LngLat{})
	if m.Popup() != prev {
		t.Error("malformed click replaced the popup")
	}
}

func TestCursorAndZoom(t *testing.T) {
	buf := captureLog(t)
	m, cfg := mounted(t)

	m.Enter(cfg.Layer.ID)
	if m.Cursor() != "pointer" {
		t.Errorf("cursor = %q", m.Cursor())
	}
	m.Leave(cfg.Layer.ID)
	if m.Cursor() != "" {
		t.Errorf("cursor = %q", m.Cursor())
	}

	m.SetZoom(11)
	if !strings.Contains(buf.String(), "Current zoom level") {
		t.Errorf("zoom not logged: %q", buf.String())
	}
}

func TestUnmount(t *testing.T) {
	cfg := testConfig(t)
	m, err := NewMap(cfg)
	if err != nil {
		t.Fatal(err)
	}
	unmount := Mount(m, cfg)
	m.Load()
	unmount()

	m.Click(cfg.Layer.ID, []geo.Feature{geo.NewFeature(orb.Point{1, 1})}, geo.LngLat{})
	if m.Popup() != nil || !m.Removed() {
		t.Error("map still active after unmount")
	}
}

func TestMountDuplicateSourceLogged(t *testing.T) {
	buf := captureLog(t)
	cfg := testConfig(t)
	m, err := NewMap(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if err := m.AddSource(cfg.Source.ID, mapview.VectorSource{Tiles: []string{"x"}}); err != nil {
		t.Fatal(err)
	}
	Mount(m, cfg)
	m.Load()

	if _, ok := m.Layer(cfg.Layer.ID); ok {
		t.Error("layer added despite source failure")
	}
	if !strings.Contains(buf.String(), "Failed to add ownership layer") {
		t.Errorf("failure not logged: %q", buf.String())
	}
}
