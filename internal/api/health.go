package api

import (
	"context"
	"net/http"
	"time"
)

type HealthResponse struct {
	Status string `json:"status"`
}

func (a *API) Health() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if a.health != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := a.health(ctx); err != nil {
				loggerFor(r).WithError(err).Warn("health check failed")
				returnJsonStatus(http.StatusServiceUnavailable, &HealthResponse{Status: "unavailable"}, w)
				return
			}
		}
		returnJson(&HealthResponse{Status: "ok"}, w)
	}
}
