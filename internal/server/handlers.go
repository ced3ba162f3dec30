// Package server handles HTTP requests and middleware.
package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/woozymasta/parcelmap/assets"
	"github.com/woozymasta/parcelmap/internal/geo"
	"github.com/woozymasta/parcelmap/internal/mapview"
	"github.com/woozymasta/parcelmap/internal/parcel"
)

const (
	etagCap        = 64
	maxPopupBody   = 1 << 20
	vectorTileType = "application/vnd.mapbox-vector-tile"
)

// Routes registers all handlers on a new mux.
func (s *ServerContext) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/map", s.HandleMapConfig)
	mux.HandleFunc("/api/popup", s.HandlePopup)
	if s.LocalTile {
		mux.HandleFunc("GET /tiles/{z}/{x}/{y}", s.HandleTile)
	}
	mux.HandleFunc("/favicon.ico", s.HandleFavicon)
	mux.HandleFunc("/", s.HandleIndex)
	return mux
}

// HandleMapConfig serves the widget bootstrap document.
func (s *ServerContext) HandleMapConfig(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "public, no-cache")
	_, _ = w.Write(s.Bootstrap)
}

// HandleFavicon serves the site favicon.
func (s *ServerContext) HandleFavicon(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/favicon.ico" {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Content-Type", assets.FaviconType)
	w.Header().Set("Cache-Control", "public, max-age=86400")
	_, _ = w.Write(s.Favicon)
}

// HandleIndex serves the main HTML application.
func (s *ServerContext) HandleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" && strings.Contains(r.URL.Path, ".") {
		http.NotFound(w, r)
		return
	}

	if match := r.Header.Get("If-None-Match"); match == s.IndexETag {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("ETag", s.IndexETag)
	w.Header().Set("Cache-Control", "public, no-cache")
	_, _ = w.Write(s.IndexHTML)
}

type popupRequest struct {
	LngLat   *geo.LngLat   `json:"lngLat"`
	Features []geo.Feature `json:"features"`
}

type popupResponse struct {
	HTML   string     `json:"html"`
	LngLat geo.LngLat `json:"lngLat"`
}

// HandlePopup replays a click on the ownership layer against a fresh widget
// model and returns the popup it produced. No popup yields 204.
func (s *ServerContext) HandlePopup(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req popupRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxPopupBody))
	if err := dec.Decode(&req); err != nil {
		status := http.StatusBadRequest
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		log.Debug().Err(err).Msg("Failed to decode popup request")
		http.Error(w, "invalid request body", status)
		return
	}
	if req.LngLat == nil {
		http.Error(w, "lngLat is required", http.StatusBadRequest)
		return
	}

	m, err := parcel.NewMap(s.Config)
	if err != nil {
		log.Error().Err(err).Msg("Failed to create map")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	unmount := parcel.Mount(m, s.Config)
	defer unmount()

	m.Load()
	m.Click(s.Config.Layer.ID, req.Features, *req.LngLat)

	popup := m.Popup()
	if popup == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	writePopup(w, popup)
}

func writePopup(w http.ResponseWriter, p *mapview.Popup) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	// Ignoring error as we cannot handle client disconnects
	_ = json.NewEncoder(w).Encode(popupResponse{LngLat: p.LngLat(), HTML: p.HTML()})
}

// HandleTile serves locally built vector tiles.
func (s *ServerContext) HandleTile(w http.ResponseWriter, r *http.Request) {
	name, ok := strings.CutSuffix(r.PathValue("y"), ".pbf")
	if !ok {
		http.NotFound(w, r)
		return
	}

	z, errZ := strconv.Atoi(r.PathValue("z"))
	x, errX := strconv.Atoi(r.PathValue("x"))
	y, errY := strconv.Atoi(name)

	// allow only valid tile addresses to prevent path probing
	if errZ != nil || errX != nil || errY != nil || z < 0 || z > mapview.MaxZoom {
		http.NotFound(w, r)
		return
	}
	if limit := 1 << z; x < 0 || y < 0 || x >= limit || y >= limit {
		http.NotFound(w, r)
		return
	}

	path := filepath.Join(s.TilesDir, strconv.Itoa(z), strconv.Itoa(x), strconv.Itoa(y)+".pbf")
	encoding := ""
	if s.Config.Tiles.Gzip {
		encoding = "gzip"
	}
	if s.serveFile(w, r, path, vectorTileType, encoding) {
		return
	}

	// empty tile
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.WriteHeader(http.StatusNoContent)
}

// serveFile tries to serve a file from disk with ETag generation.
// It returns true if the file was found and served (or 304).
func (s *ServerContext) serveFile(w http.ResponseWriter, r *http.Request, path, contentType, encoding string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	if info.IsDir() {
		return false
	}

	buf := make([]byte, 0, etagCap)
	buf = append(buf, '"')
	buf = strconv.AppendInt(buf, info.Size(), 16)
	buf = append(buf, '-')
	buf = strconv.AppendInt(buf, info.ModTime().UnixNano(), 16)
	buf = append(buf, '"')
	etag := string(buf)

	// check If-None-Match (client sent ETag)
	if match := r.Header.Get("If-None-Match"); match == etag {
		w.WriteHeader(http.StatusNotModified)
		return true
	}

	w.Header().Set("ETag", etag)
	w.Header().Set("Cache-Control", "public, no-cache")

	if contentType != "" {
		w.Header().Set("Content-Type", contentType)
	}
	if encoding != "" {
		w.Header().Set("Content-Encoding", encoding)
	}

	http.ServeFile(w, r, path)
	return true
}
