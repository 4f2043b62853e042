package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"auth-cdc/internal/telemetry"
)

// BrokerStatus reports broker connectivity
type BrokerStatus interface {
	IsConnected() bool
}

// Pinger verifies the relational store is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Services  map[string]string `json:"services"`
}

// NewRouter builds the observability surface: health and metrics.
// Pipeline failures are never surfaced through API responses; this is
// the only externally visible signal besides the logs.
func NewRouter(broker BrokerStatus, db Pinger) http.Handler {
	r := chi.NewRouter()
	r.Get("/health", healthHandler(broker, db))
	r.Handle("/metrics", telemetry.Handler())
	return r
}

func healthHandler(broker BrokerStatus, db Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		ctx, cancel := context.WithTimeout(req.Context(), 5*time.Second)
		defer cancel()

		services := make(map[string]string)
		status := "healthy"

		if broker.IsConnected() {
			services["kafka"] = "healthy"
		} else {
			services["kafka"] = "unhealthy: not connected"
			status = "unhealthy"
		}

		if err := db.Ping(ctx); err != nil {
			services["database"] = "unhealthy: " + err.Error()
			status = "unhealthy"
		} else {
			services["database"] = "healthy"
		}

		response := HealthResponse{
			Status:    status,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Services:  services,
		}

		w.Header().Set("Content-Type", "application/json")
		if status != "healthy" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(response)
	}
}
