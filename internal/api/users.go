package api

import (
	"errors"
	"net/http"
	"time"

	"git.sr.ht/~jakintosh/warrant/internal/gate"
	"git.sr.ht/~jakintosh/warrant/internal/rbac"
	"git.sr.ht/~jakintosh/warrant/internal/service"
	"github.com/gorilla/mux"
)

type MeResponse struct {
	Success     bool          `json:"success"`
	User        User          `json:"user"`
	Permissions []rbac.Action `json:"permissions"`
}

type UsersResponse struct {
	Success bool   `json:"success"`
	Users   []User `json:"users"`
}

type Stats struct {
	Users         int            `json:"users"`
	Roles         map[string]int `json:"roles"`
	UptimeSeconds int64          `json:"uptimeSeconds"`
}

type StatsResponse struct {
	Success bool  `json:"success"`
	Stats   Stats `json:"stats"`
}

func (a *API) Me() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		principal, ok := gate.PrincipalFromContext(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, CodeInvalidToken, "invalid or missing access token")
			return
		}

		identity, err := a.service.UserByID(r.Context(), principal.Subject)
		if err != nil {
			a.writeServiceError(w, r, err)
			return
		}

		returnJson(&MeResponse{
			Success:     true,
			User:        userOf(identity),
			Permissions: a.policy.Actions(identity.Role),
		}, w)
	}
}

func (a *API) ListUsers() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identities, err := a.service.ListUsers(r.Context())
		if err != nil {
			a.writeServiceError(w, r, err)
			return
		}

		users := make([]User, 0, len(identities))
		for _, identity := range identities {
			users = append(users, userOf(identity))
		}
		returnJson(&UsersResponse{Success: true, Users: users}, w)
	}
}

func (a *API) DeleteUser() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := mux.Vars(r)["id"]

		err := a.service.DeleteUser(r.Context(), id)
		if err != nil {
			if errors.Is(err, service.ErrUserNotFound) {
				writeError(w, http.StatusNotFound, CodeUserNotFound, "User not found")
				return
			}
			a.writeServiceError(w, r, err)
			return
		}

		returnJson(&MessageResponse{Success: true, Message: "User deleted"}, w)
	}
}

func (a *API) AdminStats() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identities, err := a.service.ListUsers(r.Context())
		if err != nil {
			a.writeServiceError(w, r, err)
			return
		}

		stats := Stats{
			Users:         len(identities),
			Roles:         map[string]int{},
			UptimeSeconds: int64(time.Since(a.started).Seconds()),
		}
		for _, identity := range identities {
			stats.Roles[string(identity.Role)]++
		}
		returnJson(&StatsResponse{Success: true, Stats: stats}, w)
	}
}
