package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/emaforlin/ivr-ws-service/config"
	"github.com/emaforlin/ivr-ws-service/logger"
)

// RootResponse represents the service status response
type RootResponse struct {
	Message string `json:"message"`
	Version string `json:"version"`
	Status  string `json:"status"`
}

// RootHandler reports the service identity and status
type RootHandler struct {
	config *config.Settings
}

// NewRootHandler creates a new root handler
func NewRootHandler(cfg *config.Settings) *RootHandler {
	return &RootHandler{
		config: cfg,
	}
}

// ServeHTTP implements http.Handler for the root endpoint. The "/" pattern
// also receives every unmatched path, so anything but the exact root path is
// answered with a JSON 404.
func (h *RootHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		NotFoundHandler(w, r)
		return
	}
	if r.Method != http.MethodGet {
		MethodNotAllowedHandler(w, r)
		return
	}

	logger.FromRequest(r).Debug().Msg("Root endpoint called")

	response := RootResponse{
		Message: h.config.AppName + " is running",
		Version: h.config.AppVersion,
		Status:  "healthy",
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	if err := json.NewEncoder(w).Encode(response); err != nil {
		logger.FromRequest(r).Error().Err(err).Msg("Failed to encode root response")
	}
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status string `json:"status"`
}

// HealthHandler handles health check requests
type HealthHandler struct{}

// NewHealthHandler creates a new health handler
func NewHealthHandler() *HealthHandler {
	return &HealthHandler{}
}

// ServeHTTP implements http.Handler for health checks
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		MethodNotAllowedHandler(w, r)
		return
	}

	response := HealthResponse{Status: "okay"}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	if err := json.NewEncoder(w).Encode(response); err != nil {
		logger.FromRequest(r).Error().Err(err).Msg("Failed to encode health response")
	}
}

// NotFoundHandler handles 404 errors
func NotFoundHandler(w http.ResponseWriter, r *http.Request) {
	response := map[string]any{
		"error":   "Not Found",
		"message": "The requested resource was not found",
		"path":    r.URL.Path,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusNotFound)
	json.NewEncoder(w).Encode(response)
}

// MethodNotAllowedHandler handles 405 errors
func MethodNotAllowedHandler(w http.ResponseWriter, r *http.Request) {
	response := map[string]any{
		"error":   "Method Not Allowed",
		"message": "The requested method is not allowed for this resource",
		"method":  r.Method,
		"path":    r.URL.Path,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusMethodNotAllowed)
	json.NewEncoder(w).Encode(response)
}
