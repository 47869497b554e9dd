package http

import (
	"context"
	"net/http"
	"time"

	"github.com/IaSoC/sekai-pass-l10n/internal/auth/store"
	"github.com/IaSoC/sekai-pass-l10n/pkg/authsdk"
	"github.com/IaSoC/sekai-pass-l10n/pkg/httpx"
	"github.com/IaSoC/sekai-pass-l10n/pkg/slogx"
)

const readinessTimeout = 2 * time.Second

// ReadyzHandler godoc
//
//	@Summary		Readiness Check Endpoint
//	@Description	Readiness probe endpoint returning service health status and checks for critical dependencies
//	@Description	Pings the database, and the Redis replay cache when configured
//	@Tags			Health
//	@Produce		json
//	@Success		200	{object}	authsdk.HealthResponse	"status, uptime, version, checks"
//	@Failure		503	{object}	authsdk.HealthResponse	"status, uptime, version, checks - service not ready"
//	@Router			/readyz [get]
func ReadyzHandler(
	startTime time.Time,
	version string,
	st store.Store,
	extra ...ReadinessCheck,
) http.HandlerFunc {
	checks := append([]ReadinessCheck{{Name: "database", Check: st.Ping}}, extra...)

	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
		defer cancel()

		results := make(map[string]string, len(checks))
		overallStatus := "ok"
		statusCode := http.StatusOK

		for _, c := range checks {
			if err := c.Check(ctx); err != nil {
				slogx.FromContext(ctx).Warn("readiness check failed", "check", c.Name, "err", err)
				results[c.Name] = "error"
				overallStatus = "degraded"
				statusCode = http.StatusServiceUnavailable
				continue
			}
			results[c.Name] = "ok"
		}

		response := authsdk.HealthResponse{
			Status:    overallStatus,
			Uptime:    time.Since(startTime).Truncate(time.Second).String(),
			Version:   version,
			Timestamp: time.Now().Unix(),
			Checks:    results,
		}
		httpx.WriteJSON(w, statusCode, response)
	}
}
