package main

import (
	"os"
	"path/filepath"

	"github.com/woozymasta/parcelmap/internal/config"
	"github.com/woozymasta/parcelmap/internal/logger"
	"github.com/woozymasta/parcelmap/internal/server"

	"github.com/jessevdk/go-flags"
	"github.com/rs/zerolog/log"
)

type Options struct {
	Logger logger.Logger `group:"Logger options"`

	ConfigFile  string `short:"c" long:"config"       env:"CONFIG_FILE"         description:"Path to configuration file" default:"config.yaml"`
	AccessToken string `short:"t" long:"access-token" env:"MAPBOX_ACCESS_TOKEN" description:"Mapbox access token (overrides config)"`
	OutDir      string `short:"o" long:"out"          description:"Output directory for index.html and map.json" default:"dist"`
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
	if opts.AccessToken != "" {
		cfg.AccessToken = opts.AccessToken
	}

	srvCtx, err := server.NewServerContext(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to render page")
	}

	if err := os.MkdirAll(opts.OutDir, 0755); err != nil {
		log.Fatal().Err(err).Msg("Failed to create output directory")
	}

	files := map[string][]byte{
		"index.html":  srvCtx.IndexHTML,
		"map.json":    srvCtx.Bootstrap,
		"favicon.svg": srvCtx.Favicon,
	}
	for name, data := range files {
		path := filepath.Join(opts.OutDir, name)
		if err := os.WriteFile(path, data, 0644); err != nil {
			log.Fatal().Err(err).Str("path", path).Msg("Failed to write file")
		}
		log.Info().Str("path", path).Int("bytes", len(data)).Msg("File written")
	}

	log.Info().Msg("Minify done")
}
