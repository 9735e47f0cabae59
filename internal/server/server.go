// Package server provides the HTTP API and live overlay feeds for posecam.
package server

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/ayusman/posecam/internal/app"
	"github.com/ayusman/posecam/internal/device"
)

// Controller is the part of the running overlay the API drives.
type Controller interface {
	Status() app.Status
	Facing() device.Facing
	SetFacing(device.Facing) error
	Debug() bool
	SetDebug(bool) error
	SetOrientation(device.Orientation)
}

// Config holds the server configuration.
type Config struct {
	StaticDir  string
	Controller Controller
	Hub        *OverlayHub
	Frames     JPEGSource
}

// Server represents the HTTP server for posecam.
type Server struct {
	config Config
	mux    *http.ServeMux
	start  time.Time
}

// New creates a new Server with the given configuration.
func New(config Config) *Server {
	s := &Server{
		config: config,
		mux:    http.NewServeMux(),
		start:  time.Now(),
	}
	s.setupRoutes()
	return s
}

// setupRoutes configures all HTTP routes for the server.
func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/api/health", s.handleHealth)

	if s.config.Controller != nil {
		s.mux.HandleFunc("/api/status", s.handleStatus)
		s.mux.HandleFunc("/api/settings", s.handleSettings)
		s.mux.HandleFunc("/api/orientation", s.handleOrientation)
	}

	if s.config.Hub != nil {
		s.mux.Handle("/api/overlay", s.config.Hub)
	}

	if s.config.Frames != nil {
		s.mux.Handle("/api/overlay.mjpg", NewStreamHandler(s.config.Frames))
	}

	// Serve static files if StaticDir is configured
	if s.config.StaticDir != "" {
		fs := http.FileServer(http.Dir(s.config.StaticDir))
		s.mux.Handle("/", fs)
	}
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// handleHealth handles GET requests to /api/health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "ok",
		"uptime": time.Since(s.start).String(),
	})
}

// handleStatus handles GET requests to /api/status.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	writeJSON(w, http.StatusOK, s.config.Controller.Status())
}

type settingsResponse struct {
	Facing device.Facing `json:"facing"`
	Debug  bool          `json:"debug"`
}

// settingsRequest fields are optional; absent fields are left unchanged.
type settingsRequest struct {
	Facing *device.Facing `json:"facing"`
	Debug  *bool          `json:"debug"`
}

// handleSettings handles GET and PUT requests to /api/settings.
func (s *Server) handleSettings(w http.ResponseWriter, r *http.Request) {
	ctrl := s.config.Controller

	switch r.Method {
	case http.MethodGet:
	case http.MethodPut:
		var req settingsRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		if req.Facing != nil {
			if err := ctrl.SetFacing(*req.Facing); err != nil {
				log.Printf("failed to save facing: %v", err)
				http.Error(w, "Failed to save settings", http.StatusInternalServerError)
				return
			}
		}
		if req.Debug != nil {
			if err := ctrl.SetDebug(*req.Debug); err != nil {
				log.Printf("failed to save debug mode: %v", err)
				http.Error(w, "Failed to save settings", http.StatusInternalServerError)
				return
			}
		}
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	writeJSON(w, http.StatusOK, settingsResponse{
		Facing: ctrl.Facing(),
		Debug:  ctrl.Debug(),
	})
}

type orientationRequest struct {
	Orientation *device.Orientation `json:"orientation"`
}

// handleOrientation handles PUT requests to /api/orientation.
func (s *Server) handleOrientation(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req orientationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Orientation == nil {
		http.Error(w, "Invalid orientation", http.StatusBadRequest)
		return
	}

	s.config.Controller.SetOrientation(*req.Orientation)
	writeJSON(w, http.StatusOK, req)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("failed to encode response: %v", err)
	}
}

// ListenAndServe starts the HTTP server on the given address.
func (s *Server) ListenAndServe(addr string) error {
	return http.ListenAndServe(addr, s)
}
