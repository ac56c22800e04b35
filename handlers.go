package main

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/kwv/scanrisk/risk"
)

// healthStatus is the /health response body
type healthStatus struct {
	Status       string    `json:"status"`
	Timestamp    time.Time `json:"timestamp"`
	MapLoaded    bool      `json:"mapLoaded"`
	StaticPoints int       `json:"staticPoints"`
	LastCycle    uint64    `json:"lastCycle"`
	ScanAgeMs    int64     `json:"scanAgeMs"`
	PoseAgeMs    int64     `json:"poseAgeMs"`
}

// newHTTPServer creates an HTTP server with all endpoints. est may be nil
// before the static map is installed.
func newHTTPServer(stateTracker *risk.StateTracker, est *risk.RiskEstimator, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	mux := http.NewServeMux()

	// Health check endpoint
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		logger.Debug("health request", "remote", r.RemoteAddr)
		loaded, points := stateTracker.MapLoaded()
		scanAge, poseAge := stateTracker.Ages()
		status := healthStatus{
			Status:       "ok",
			Timestamp:    time.Now(),
			MapLoaded:    loaded,
			StaticPoints: points,
			ScanAgeMs:    scanAge.Milliseconds(),
			PoseAgeMs:    poseAge.Milliseconds(),
		}
		if last := stateTracker.LastResult(); last != nil {
			status.LastCycle = last.Cycle
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(status); err != nil {
			logger.Warn("encoding health status failed", "error", err)
		}
	})

	// Latest processed cycle
	mux.HandleFunc("/field.json", func(w http.ResponseWriter, r *http.Request) {
		last := stateTracker.LastResult()
		if last == nil {
			http.Error(w, "No field available", http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-cache")
		if err := json.NewEncoder(w).Encode(last); err != nil {
			logger.Warn("encoding field failed", "error", err)
		}
	})

	// Clusters, approach lines and static obstacles in world coordinates
	mux.HandleFunc("/clusters.geojson", func(w http.ResponseWriter, r *http.Request) {
		last := stateTracker.LastResult()
		if last == nil {
			http.Error(w, "No field available", http.StatusServiceUnavailable)
			return
		}
		var static *risk.StaticIndex
		if est != nil && r.URL.Query().Get("static") != "false" {
			static = est.Static()
		}
		fc := risk.CycleToFeatureCollection(last, static)
		data, err := fc.MarshalJSON()
		if err != nil {
			logger.Warn("encoding GeoJSON failed", "error", err)
			http.Error(w, "Failed to encode GeoJSON", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/geo+json")
		w.Header().Set("Cache-Control", "no-cache")
		if _, err := w.Write(data); err != nil {
			logger.Warn("writing GeoJSON failed", "error", err)
		}
	})

	// Raster polar plot; ?style=vector rasterizes the vector plot instead
	mux.HandleFunc("/field.png", func(w http.ResponseWriter, r *http.Request) {
		last := stateTracker.LastResult()
		if last == nil {
			http.Error(w, "No field available", http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Cache-Control", "no-cache")

		var err error
		if r.URL.Query().Get("style") == "vector" {
			err = risk.NewVectorFieldPlot().RenderToPNG(w, last)
		} else {
			err = risk.RenderFieldPNG(w, last)
		}
		if err != nil {
			logger.Warn("encoding field PNG failed", "error", err)
		}
	})

	// Vector polar plot
	mux.HandleFunc("/field.svg", func(w http.ResponseWriter, r *http.Request) {
		last := stateTracker.LastResult()
		if last == nil {
			http.Error(w, "No field available", http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "image/svg+xml")
		w.Header().Set("Cache-Control", "no-cache")
		if err := risk.RenderFieldSVG(w, last); err != nil {
			logger.Warn("encoding field SVG failed", "error", err)
		}
	})

	return mux
}
