package server

import (
	"log/slog"
	"net/http"
)

// Config contains server configuration options.
type Config struct {
	// AllowedOrigins is the list of allowed CORS origins.
	AllowedOrigins []string
	// OutputsDir, when set, serves archived result files under /outputs/.
	OutputsDir string
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		AllowedOrigins: []string{"*"},
	}
}

// NewRouter creates a new HTTP router with all routes configured.
// It uses Go 1.22+ ServeMux with method-based routing.
func NewRouter(h *Handlers, logger *slog.Logger, cfg Config) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", h.Info)
	mux.HandleFunc("GET /health", h.Health)
	mux.HandleFunc("POST /api/swap", h.CreateSwap)
	mux.HandleFunc("GET /api/swap/{job_id}", h.GetJob)
	mux.HandleFunc("DELETE /api/swap/{job_id}", h.CancelJob)
	mux.HandleFunc("POST /api/lipsync", h.CreateLipSync)
	mux.HandleFunc("GET /api/lipsync/{job_id}", h.GetJob)

	if cfg.OutputsDir != "" {
		fs := http.FileServer(http.Dir(cfg.OutputsDir))
		mux.Handle("GET /outputs/", http.StripPrefix("/outputs/", fs))
	}

	chain := ChainMiddleware(
		RecoveryMiddleware(logger),
		LoggingMiddleware(logger),
		CORSMiddleware(cfg.AllowedOrigins),
	)

	return chain(mux)
}
