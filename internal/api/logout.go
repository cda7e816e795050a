package api

import "net/http"

// Logout always succeeds. The refresh cookie is cleared whether or not
// one was presented.
func (a *API) Logout() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a.service.Logout(a.transport(w))
		returnJson(&MessageResponse{
			Success: true,
			Message: "Logged out successfully",
		}, w)
	}
}
