// Package api exposes the evaluation and administration surfaces over
// HTTP. Evaluation endpoints return decisions as data with status 200;
// an HTTP error from this API always means the request itself was
// malformed or the serving stack failed, never "denied".
package api

import (
	"net/http"

	"github.com/archvision/entgate/internal/engine"
	"github.com/archvision/entgate/internal/logging"
	"github.com/archvision/entgate/internal/metrics"
	"github.com/archvision/entgate/internal/observability"
	"github.com/archvision/entgate/internal/service"
	"github.com/archvision/entgate/internal/store"
)

// ServerConfig contains dependencies for the HTTP server.
type ServerConfig struct {
	Engine *engine.Engine
	Admin  *service.AdminService
	Store  store.Store
}

// NewHandler builds the full route table.
func NewHandler(cfg ServerConfig) http.Handler {
	mux := http.NewServeMux()

	h := &Handler{
		Engine: cfg.Engine,
		Admin:  cfg.Admin,
		Store:  cfg.Store,
	}
	h.RegisterRoutes(mux)

	mux.Handle("GET /metrics", metrics.PrometheusHandler())

	return observability.HTTPMiddleware(mux)
}

// StartHTTPServer creates and starts the HTTP server.
func StartHTTPServer(addr string, cfg ServerConfig) *http.Server {
	server := &http.Server{
		Addr:    addr,
		Handler: NewHandler(cfg),
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Op().Error("HTTP server error", "error", err)
		}
	}()

	return server
}
