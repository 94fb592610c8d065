package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/mkrogh/bookmarket-backend/api/responses"
	"github.com/mkrogh/bookmarket-backend/pkg/config"
	"github.com/mkrogh/bookmarket-backend/pkg/logger"
)

const readinessTimeout = 2 * time.Second

// Pinger is any dependency that can report liveness.
type Pinger interface {
	Ping(ctx context.Context) error
}

type dependencyStatus struct {
	Name   string `json:"name"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

type readiness struct {
	Status       string             `json:"status"`
	Dependencies []dependencyStatus `json:"dependencies"`
}

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-BookMarket-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady pings every named dependency. All green is healthy, any
// failure degrades the report and flips the status code to 503.
func HealthReady(cfg *config.Config, logg *logger.Logger, deps map[string]Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
		defer cancel()

		report := readiness{Status: "healthy", Dependencies: make([]dependencyStatus, 0, len(deps))}
		for name, dep := range deps {
			status := dependencyStatus{Name: name, Status: "up"}
			if dep == nil {
				status.Status = "down"
				status.Error = "not configured"
			} else if err := dep.Ping(ctx); err != nil {
				status.Status = "down"
				status.Error = err.Error()
				if logg != nil {
					logg.Error(logg.WithField(r.Context(), "dependency", name), "health.dependency_down", err)
				}
			}
			if status.Status == "down" {
				report.Status = "degraded"
			}
			report.Dependencies = append(report.Dependencies, status)
		}

		w.Header().Set("X-BookMarket-Env", cfg.App.Env)
		code := http.StatusOK
		if report.Status != "healthy" {
			code = http.StatusServiceUnavailable
		}
		responses.WriteSuccessStatus(w, code, report)
	}
}
