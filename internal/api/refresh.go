package api

import (
	"errors"
	"net/http"

	"git.sr.ht/~jakintosh/warrant/internal/service"
)

type RefreshResponse struct {
	Success     bool   `json:"success"`
	AccessToken string `json:"accessToken"`
	User        User   `json:"user"`
}

// Refresh reads only the cookie; the refresh token never travels in a body.
func (a *API) Refresh() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, err := a.service.Refresh(r.Context(), refreshCookieValue(r), a.transport(w))
		if err != nil {
			a.metrics.Refresh(refreshOutcome(err))
			a.writeServiceError(w, r, err)
			return
		}

		a.metrics.Refresh("success")
		response := RefreshResponse{
			Success:     true,
			AccessToken: session.AccessToken.Encoded(),
			User:        userOf(session.Identity),
		}
		returnJson(&response, w)
	}
}

func refreshOutcome(err error) string {
	switch {
	case errors.Is(err, service.ErrRefreshExpired):
		return "expired"
	case errors.Is(err, service.ErrRefreshInvalid):
		return "invalid"
	case errors.Is(err, service.ErrUserNotFound):
		return "user_not_found"
	default:
		return "error"
	}
}
