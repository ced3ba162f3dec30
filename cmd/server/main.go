package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/woozymasta/parcelmap/internal/config"
	"github.com/woozymasta/parcelmap/internal/logger"
	"github.com/woozymasta/parcelmap/internal/server"

	"github.com/jessevdk/go-flags"
	"github.com/rs/zerolog/log"
)

type Options struct {
	Logger logger.Logger `group:"Logger options"`

	ConfigFile  string `short:"c" long:"config"       env:"CONFIG_FILE"         description:"Path to configuration file" default:"config.yaml"`
	Addr        string `short:"a" long:"addr"         env:"LISTEN_ADDRESS"      description:"Address to listen on"       default:"0.0.0.0"`
	AccessToken string `short:"t" long:"access-token" env:"MAPBOX_ACCESS_TOKEN" description:"Mapbox access token (overrides config)"`
	TilesDir    string `short:"d" long:"tiles-dir"    env:"TILES_DIR"           description:"Directory with built vector tiles (overrides config)"`
	Port        int    `short:"p" long:"port"         env:"LISTEN_PORT"         description:"Port to listen on"          default:"8080"`
}

const shutdownTimeout = 10 * time.Second

func main() {
	var opts Options
	parser := flags.NewParser(&opts, flags.Default)
	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	// Setup Logging
	opts.Logger.Setup()

	// Load Config
	cfg, err := config.Load(opts.ConfigFile)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if opts.AccessToken != "" {
		cfg.AccessToken = opts.AccessToken
	}
	if opts.TilesDir != "" {
		cfg.Tiles.Dir = opts.TilesDir
	}

	srvCtx, err := server.NewServerContext(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize server")
	}

	listenAddr := fmt.Sprintf("%s:%d", opts.Addr, opts.Port)
	srv := &http.Server{
		Addr:              listenAddr,
		Handler:           server.RequestLogger(srvCtx.Routes()),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		log.Info().Msg("Shutting down web server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Graceful shutdown failed")
		}
	}()

	log.Info().
		Str("addr", listenAddr).
		Str("source", cfg.Source.ID).
		Strs("tiles", cfg.Source.Tiles).
		Float64("zoom", cfg.Zoom).
		Msg("Web server started")

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("Server failed")
	}
}
