package controllers

import (
	"context"
	"net/http"

	"github.com/brickmill/storefront-backend/api/responses"
	"github.com/brickmill/storefront-backend/pkg/config"
	pkgerrors "github.com/brickmill/storefront-backend/pkg/errors"
	"github.com/brickmill/storefront-backend/pkg/logger"
)

const envHeader = "X-Storefront-Env"

type dependencyPinger interface {
	Ping(ctx context.Context) error
}

// Dependency pairs a name with its health probe for the readiness report.
type Dependency struct {
	Name   string
	Pinger dependencyPinger
}

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(envHeader, cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady probes each dependency and reports per-dependency status. Any
// failing probe turns the response into a 503 so load balancers stop routing.
func HealthReady(cfg *config.Config, logg *logger.Logger, deps ...Dependency) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(envHeader, cfg.App.Env)

		statuses := map[string]string{}
		healthy := true
		for _, dep := range deps {
			if dep.Pinger == nil {
				statuses[dep.Name] = "skipped"
				continue
			}
			if err := dep.Pinger.Ping(r.Context()); err != nil {
				healthy = false
				statuses[dep.Name] = "down"
				if logg != nil {
					ctx := logg.WithFields(r.Context(), map[string]any{"dependency": dep.Name})
					logg.Error(ctx, "health.dependency_down", err)
				}
				continue
			}
			statuses[dep.Name] = "up"
		}

		if !healthy {
			responses.WriteError(r.Context(), nil, w,
				pkgerrors.New(pkgerrors.CodeDependency, "dependency down").WithDetails(statuses))
			return
		}
		responses.WriteSuccess(w, map[string]any{"status": "ready", "dependencies": statuses})
	}
}
