package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Check is the status of one dependency in /healthz
type Check struct {
	Status  string `json:"status"` // "pass" or "fail"
	Latency string `json:"latency,omitempty"`
	Message string `json:"message,omitempty"`
}

// HealthResponse is the body of /healthz
type HealthResponse struct {
	Status    string           `json:"status"` // "healthy" or "degraded"
	Version   string           `json:"version"`
	Checks    map[string]Check `json:"checks"`
	Timestamp string           `json:"timestamp"`
}

// HealthCheck probes one dependency
type HealthCheck func(ctx context.Context) error

// NewAdminRouter serves /metrics, /debug/pprof and /healthz on the admin listener
func NewAdminRouter(logger zerolog.Logger, checks map[string]HealthCheck) *chi.Mux {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(adminLogger(logger))

	r.Handle("/metrics", promhttp.Handler())
	r.Mount("/debug", chimw.Profiler())
	r.Get("/healthz", healthz(checks))

	return r
}

func healthz(checks map[string]HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()

		resp := HealthResponse{
			Status:    "healthy",
			Version:   Version,
			Checks:    make(map[string]Check, len(checks)),
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		}
		for name, check := range checks {
			start := time.Now()
			if err := check(ctx); err != nil {
				resp.Checks[name] = Check{Status: "fail", Message: err.Error()}
				resp.Status = "degraded"
				continue
			}
			resp.Checks[name] = Check{Status: "pass", Latency: time.Since(start).String()}
		}

		status := http.StatusOK
		if resp.Status != "healthy" {
			status = http.StatusServiceUnavailable
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(resp)
	}
}

// adminLogger logs admin requests at debug level so scrapes stay quiet
func adminLogger(logger zerolog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)

			defer func() {
				logger.Debug().
					Str("method", r.Method).
					Str("path", r.URL.Path).
					Int("status", ww.Status()).
					Dur("latency", time.Since(start)).
					Str("request_id", chimw.GetReqID(r.Context())).
					Msg("admin request")
			}()

			next.ServeHTTP(ww, r)
		})
	}
}
