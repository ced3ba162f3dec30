// Package config handles configuration loading and shared data structures.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/woozymasta/parcelmap/internal/geo"

	"gopkg.in/yaml.v3"
)

// Config represents the root configuration file structure.
type Config struct {
	AccessToken string     `yaml:"access_token" json:"access_token"`
	Style       string     `yaml:"style" json:"style"`
	Center      geo.LngLat `yaml:"center" json:"center"`
	Source      Source     `yaml:"source" json:"source"`
	Layer       Layer      `yaml:"layer" json:"layer"`
	Tiles       Tiles      `yaml:"tiles" json:"-"`
	Zoom        float64    `yaml:"zoom" json:"zoom"`
	Navigation  *bool      `yaml:"navigation,omitempty" json:"navigation"`
}

// Source describes the remote vector tile source shown on the map.
type Source struct {
	ID      string   `yaml:"id" json:"id"`
	Tiles   []string `yaml:"tiles" json:"tiles"`
	MinZoom int      `yaml:"minzoom" json:"minzoom"`
	MaxZoom int      `yaml:"maxzoom" json:"maxzoom"`
}

// Layer describes the fill layer drawing the parcels.
type Layer struct {
	ID           string  `yaml:"id" json:"id"`
	SourceLayer  string  `yaml:"source_layer" json:"source_layer"`
	FillColor    string  `yaml:"fill_color" json:"fill_color"`
	OutlineColor string  `yaml:"outline_color" json:"outline_color"`
	FillOpacity  float64 `yaml:"fill_opacity" json:"fill_opacity"`
}

// Tiles configures the loader that builds vector tiles from the county data.
type Tiles struct {
	Source   string  `yaml:"source"`
	Dir      string  `yaml:"dir"`
	Name     string  `yaml:"name"`
	Simplify float64 `yaml:"simplify"`
	MinZoom  int     `yaml:"minzoom"`
	MaxZoom  int     `yaml:"maxzoom"`
	Gzip     bool    `yaml:"gzip,omitempty"`
}

// Defaults matching the deployed Teton County ownership map.
const (
	DefaultStyle        = "mapbox://styles/mapbox/streets-v11"
	DefaultZoom         = 9
	DefaultSourceID     = "ownership"
	DefaultSourceMin    = 6
	DefaultSourceMax    = 14
	DefaultLayerID      = "ownership-layer"
	DefaultSourceLayer  = "ownership_ownership"
	DefaultFillColor    = "#AAAAAA"
	DefaultOutlineColor = "#000000"
	DefaultFillOpacity  = 0.3
	DefaultTilesDir     = "tiles"
	DefaultTilesName    = "ownership"
	DefaultSimplify     = 0.001
	DefaultTilesMin     = 6
	DefaultTilesMax     = 10
	MaxZoom             = 24
)

// DefaultCenter is the initial map center (Jackson Hole, WY).
var DefaultCenter = geo.LngLat{Lng: -110.76, Lat: 43.5}

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid configuration")

// Load reads and parses the YAML configuration file from the specified path.
// Missing values are filled with defaults and the result is validated.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	return Parse(data)
}

// Parse decodes YAML configuration bytes, applies defaults and validates.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	var set explicit
	if err := yaml.Unmarshal(data, &set); err != nil {
		return nil, err
	}

	cfg.ApplyDefaults()
	set.restore(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// explicit captures values whose zero is meaningful, so that writing them
// in the file is not mistaken for leaving them out.
type explicit struct {
	Center *geo.LngLat `yaml:"center"`
	Zoom   *float64    `yaml:"zoom"`
	Source struct {
		MinZoom *int `yaml:"minzoom"`
	} `yaml:"source"`
	Layer struct {
		FillOpacity *float64 `yaml:"fill_opacity"`
	} `yaml:"layer"`
	Tiles struct {
		Simplify *float64 `yaml:"simplify"`
		MinZoom  *int     `yaml:"minzoom"`
	} `yaml:"tiles"`
}

func (e explicit) restore(c *Config) {
	if e.Center != nil {
		c.Center = *e.Center
	}
	if e.Zoom != nil {
		c.Zoom = *e.Zoom
	}
	if e.Source.MinZoom != nil {
		c.Source.MinZoom = *e.Source.MinZoom
	}
	if e.Layer.FillOpacity != nil {
		c.Layer.FillOpacity = *e.Layer.FillOpacity
	}
	if e.Tiles.Simplify != nil {
		c.Tiles.Simplify = *e.Tiles.Simplify
	}
	if e.Tiles.MinZoom != nil {
		c.Tiles.MinZoom = *e.Tiles.MinZoom
	}
}

// ApplyDefaults fills zero values with the deployed defaults.
func (c *Config) ApplyDefaults() {
	if c.Style == "" {
		c.Style = DefaultStyle
	}
	if c.Center == (geo.LngLat{}) {
		c.Center = DefaultCenter
	}
	if c.Zoom == 0 {
		c.Zoom = DefaultZoom
	}
	if c.Navigation == nil {
		enabled := true
		c.Navigation = &enabled
	}

	if c.Source.ID == "" {
		c.Source.ID = DefaultSourceID
	}
	if c.Source.MinZoom == 0 {
		c.Source.MinZoom = DefaultSourceMin
	}
	if c.Source.MaxZoom == 0 {
		c.Source.MaxZoom = DefaultSourceMax
	}

	if c.Layer.ID == "" {
		c.Layer.ID = DefaultLayerID
	}
	if c.Layer.SourceLayer == "" {
		c.Layer.SourceLayer = DefaultSourceLayer
	}
	if c.Layer.FillColor == "" {
		c.Layer.FillColor = DefaultFillColor
	}
	if c.Layer.OutlineColor == "" {
		c.Layer.OutlineColor = DefaultOutlineColor
	}
	if c.Layer.FillOpacity == 0 {
		c.Layer.FillOpacity = DefaultFillOpacity
	}

	if c.Tiles.Dir == "" {
		c.Tiles.Dir = DefaultTilesDir
	}
	if c.Tiles.Name == "" {
		c.Tiles.Name = DefaultTilesName
	}
	if c.Tiles.Simplify == 0 {
		c.Tiles.Simplify = DefaultSimplify
	}
	if c.Tiles.MinZoom == 0 {
		c.Tiles.MinZoom = DefaultTilesMin
	}
	if c.Tiles.MaxZoom == 0 {
		c.Tiles.MaxZoom = DefaultTilesMax
	}

	// serve locally built tiles when no remote template is configured
	if len(c.Source.Tiles) == 0 {
		c.Source.Tiles = []string{"/tiles/{z}/{x}/{y}.pbf"}
	}
}

// NavigationEnabled reports whether the zoom and rotation controls are shown.
func (c *Config) NavigationEnabled() bool {
	return c.Navigation == nil || *c.Navigation
}

// Validate checks ranges and tile URL templates.
func (c *Config) Validate() error {
	if c.Center.Lat < -90 || c.Center.Lat > 90 {
		return fmt.Errorf("%w: center latitude %v out of range", ErrInvalid, c.Center.Lat)
	}
	if c.Zoom < 0 || c.Zoom > MaxZoom {
		return fmt.Errorf("%w: zoom %v out of range", ErrInvalid, c.Zoom)
	}
	if err := checkZoomRange("source", c.Source.MinZoom, c.Source.MaxZoom); err != nil {
		return err
	}
	if err := checkZoomRange("tiles", c.Tiles.MinZoom, c.Tiles.MaxZoom); err != nil {
		return err
	}
	for _, tpl := range c.Source.Tiles {
		for _, p := range []string{"{z}", "{x}", "{y}"} {
			if !strings.Contains(tpl, p) {
				return fmt.Errorf("%w: tile template %q lacks %s", ErrInvalid, tpl, p)
			}
		}
	}
	if c.Layer.FillOpacity < 0 || c.Layer.FillOpacity > 1 {
		return fmt.Errorf("%w: fill opacity %v out of range", ErrInvalid, c.Layer.FillOpacity)
	}
	if c.Tiles.Simplify < 0 {
		return fmt.Errorf("%w: negative simplify tolerance", ErrInvalid)
	}

	return nil
}

func checkZoomRange(name string, minZoom, maxZoom int) error {
	if minZoom < 0 || maxZoom > MaxZoom || minZoom > maxZoom {
		return fmt.Errorf("%w: %s zoom range %d..%d", ErrInvalid, name, minZoom, maxZoom)
	}

	return nil
}
