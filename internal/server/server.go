package server

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/classflow/livetutor/internal/auth"
	"github.com/classflow/livetutor/internal/config"
	"github.com/classflow/livetutor/internal/livesrv"
	"github.com/classflow/livetutor/internal/metrics"
	"github.com/classflow/livetutor/internal/serverstate"
	"github.com/classflow/livetutor/internal/session"
)

// New constructs the HTTP handler for the server.
func New(cfg config.ServerConfig, lc session.Lifecycle, reg *livesrv.Registry) http.Handler {
	r := chi.NewRouter()
	if len(cfg.AllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: cfg.AllowedOrigins,
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{"*"},
		}))
	}

	preg := prometheus.NewRegistry()
	prometheus.DefaultRegisterer = preg
	prometheus.DefaultGatherer = preg
	metrics.Register(preg)

	r.Get("/healthz", healthz)
	r.Get("/v1/session/connect", livesrv.WSHandler(lc, reg, livesrv.Options{
		HandshakeTimeout: cfg.HandshakeTimeout,
		ShutdownGrace:    cfg.ShutdownGrace,
	}))
	r.Route("/api", func(ar chi.Router) {
		ar.Use(auth.BearerSecretMiddleware(cfg.APIKey))
		ar.Get("/state", stateHandler(reg))
	})

	if cfg.MetricsAddr == fmt.Sprintf(":%d", cfg.Port) {
		r.Handle("/metrics", promhttp.HandlerFor(preg, promhttp.HandlerOpts{}))
	}

	return r
}

func healthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

// stateView is the read-only operational snapshot served by /api/state.
type stateView struct {
	Status   string             `json:"status"`
	Draining bool               `json:"draining"`
	Sessions []livesrv.ConnInfo `json:"sessions"`
}

func stateHandler(reg *livesrv.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		view := stateView{
			Status:   serverstate.GetState(),
			Draining: serverstate.IsDraining(),
			Sessions: reg.Snapshot(),
		}
		if view.Sessions == nil {
			view.Sessions = []livesrv.ConnInfo{}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(view)
	}
}
