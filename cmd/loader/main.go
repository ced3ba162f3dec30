package main

import (
	"context"
	"crypto/tls"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/woozymasta/parcelmap/internal/config"
	"github.com/woozymasta/parcelmap/internal/logger"
	"github.com/woozymasta/parcelmap/internal/tiler"

	"github.com/jessevdk/go-flags"
	"github.com/paulmach/orb/geojson"
	"github.com/rs/zerolog/log"
)

type Options struct {
	Logger logger.Logger `group:"Logger options"`

	ConfigFile  string `short:"c" long:"config"       env:"CONFIG_FILE"  description:"Path to configuration file" default:"config.yaml"`
	Source      string `short:"s" long:"source"       env:"TILES_SOURCE" description:"KMZ, KML or GeoJSON URL or path (overrides config)"`
	Concurrency int    `short:"p" long:"concurrency"  env:"CONCURRENCY"  description:"Concurrency" default:"8"`
	TilesOnly   bool   `short:"t" long:"tiles-only"   description:"Build tiles from the saved simplified GeoJSON only"`
	GeoJSONOnly bool   `short:"g" long:"geojson-only" description:"Generate GeoJSON only"`
	Force       bool   `short:"f" long:"force"        description:"Force overwrite of existing files"`
}

func main() {
	var opts Options
	parser := flags.NewParser(&opts, flags.Default)
	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	opts.Logger.Setup()

	cfg, err := config.Load(opts.ConfigFile)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if opts.Source != "" {
		cfg.Tiles.Source = opts.Source
	}

	processTiles := true
	processGeo := true
	if opts.TilesOnly && !opts.GeoJSONOnly {
		processGeo = false
	} else if opts.GeoJSONOnly && !opts.TilesOnly {
		processTiles = false
	}

	client := &http.Client{
		Transport: &http.Transport{
			TLSNextProto:        make(map[string]func(string, *tls.Conn) http.RoundTripper),
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 100,
		},
		Timeout: 5 * time.Minute,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rawPath := filepath.Join(cfg.Tiles.Dir, cfg.Tiles.Name+".geojson")
	simplifiedPath := filepath.Join(cfg.Tiles.Dir, cfg.Tiles.Name+"_simplified.geojson")

	log.Info().
		Str("source", cfg.Tiles.Source).
		Str("dir", cfg.Tiles.Dir).
		Bool("geojson", processGeo).
		Bool("tiles", processTiles).
		Msg("Starting loader")

	var fc *geojson.FeatureCollection
	if processGeo {
		fc, err = loadGeoJSON(ctx, client, cfg, rawPath, simplifiedPath)
	} else {
		fc, err = readGeoJSON(simplifiedPath)
	}
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to prepare features")
	}

	if !processTiles {
		log.Info().Msg("Loader finished successfully")
		return
	}

	stats, err := tiler.Build(ctx, tiler.NewIndex(fc), tiler.Options{
		Dir:         cfg.Tiles.Dir,
		Layer:       cfg.Layer.SourceLayer,
		MinZoom:     cfg.Tiles.MinZoom,
		MaxZoom:     cfg.Tiles.MaxZoom,
		Concurrency: opts.Concurrency,
		Gzip:        cfg.Tiles.Gzip,
		Force:       opts.Force,
	})
	if err != nil {
		log.Fatal().Err(err).Int("written", stats.Written).Msg("Failed to build tiles")
	}

	log.Info().Msg("Loader finished successfully")
}

// loadGeoJSON fetches the source, saves it and its simplified copy.
func loadGeoJSON(ctx context.Context, client *http.Client, cfg *config.Config, rawPath, simplifiedPath string) (*geojson.FeatureCollection, error) {
	if cfg.Tiles.Source == "" {
		return nil, errors.New("no tiles source configured")
	}

	fc, err := tiler.Fetch(ctx, client, cfg.Tiles.Source)
	if err != nil {
		return nil, err
	}

	if err := tiler.SaveGeoJSON(rawPath, fc); err != nil {
		return nil, err
	}
	log.Info().Str("path", rawPath).Msg("GeoJSON saved")

	dropped := tiler.Simplify(fc, cfg.Tiles.Simplify)
	if err := tiler.SaveGeoJSON(simplifiedPath, fc); err != nil {
		return nil, err
	}
	log.Info().
		Str("path", simplifiedPath).
		Float64("tolerance", cfg.Tiles.Simplify).
		Int("features", len(fc.Features)).
		Int("dropped", dropped).
		Msg("Simplified GeoJSON saved")

	return fc, nil
}

func readGeoJSON(path string) (*geojson.FeatureCollection, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	return geojson.UnmarshalFeatureCollection(data)
}
