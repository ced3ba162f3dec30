package server

import (
	"encoding/json"
	"fmt"
	"hash/fnv"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/woozymasta/parcelmap/assets"
	"github.com/woozymasta/parcelmap/internal/config"
	"github.com/woozymasta/parcelmap/internal/parcel"
)

// PageTitle is the title of the map page.
const PageTitle = "Land Ownership Map"

// ServerContext holds dependencies for request handlers.
// Everything in it is read-only once built.
type ServerContext struct {
	Config    *config.Config
	Bootstrap []byte
	IndexHTML []byte
	IndexETag string
	Favicon   []byte
	TilesDir  string
	LocalTile bool
}

// NewServerContext mounts the parcel layer on a widget model, snapshots its
// bootstrap document and renders the page around it.
func NewServerContext(cfg *config.Config) (*ServerContext, error) {
	m, err := parcel.NewMap(cfg)
	if err != nil {
		return nil, err
	}
	unmount := parcel.Mount(m, cfg)
	defer unmount()
	m.Load()

	if _, ok := m.Layer(cfg.Layer.ID); !ok {
		return nil, fmt.Errorf("layer %s was not mounted", cfg.Layer.ID)
	}

	bootstrap, err := json.Marshal(m.Bootstrap())
	if err != nil {
		return nil, fmt.Errorf("marshal bootstrap: %w", err)
	}

	page, err := assets.Render(PageTitle, bootstrap)
	if err != nil {
		return nil, fmt.Errorf("render page: %w", err)
	}

	if cfg.AccessToken == "" {
		log.Warn().Msg("Access token is empty, mapbox styles will fail to load")
	}

	local := false
	for _, tpl := range cfg.Source.Tiles {
		if len(tpl) > 0 && tpl[0] == '/' {
			local = true
		}
	}

	if local {
		if _, err := os.Stat(cfg.Tiles.Dir); os.IsNotExist(err) {
			log.Warn().
				Str("path", cfg.Tiles.Dir).
				Msg("Local tile directory not found, run the loader first")
		} else {
			log.Debug().
				Str("path", cfg.Tiles.Dir).
				Msg("Local tile directory found")
		}
	}

	log.Info().
		Str("source", cfg.Source.ID).
		Str("layer", cfg.Layer.ID).
		Bool("local_tiles", local).
		Int("page_bytes", len(page)).
		Msg("Server context initialized successfully")

	return &ServerContext{
		Config:    cfg,
		Bootstrap: bootstrap,
		IndexHTML: page,
		IndexETag: pageETag(page),
		Favicon:   assets.Favicon,
		TilesDir:  cfg.Tiles.Dir,
		LocalTile: local,
	}, nil
}

// pageETag fingerprints the rendered page, which changes with the inlined
// bootstrap even when its length does not.
func pageETag(page []byte) string {
	h := fnv.New64a()
	_, _ = h.Write(page)
	return fmt.Sprintf(`"%x"`, h.Sum64())
}
