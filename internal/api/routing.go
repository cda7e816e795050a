package api

import (
	"net/http"

	"git.sr.ht/~jakintosh/warrant/internal/gate"
	"git.sr.ht/~jakintosh/warrant/internal/rbac"
	"github.com/gorilla/mux"
)

// Rules is the route classification the gate enforces for Router.
func Rules() []gate.Rule {
	return []gate.Rule{
		{Path: "/auth", Class: gate.ClassPublic},
		{Path: "/login", Exact: true, Class: gate.ClassPublic},
		{Path: "/healthz", Exact: true, Class: gate.ClassPublic},
		{Path: "/metrics", Exact: true, Class: gate.ClassPublic},
		{Path: "/api/me", Exact: true, Class: gate.ClassIdentity},
		{Method: http.MethodGet, Path: "/api/users", Class: gate.ClassRole, Action: rbac.ActionRead},
		{Method: http.MethodDelete, Path: "/api/users", Class: gate.ClassRole, Action: rbac.ActionDelete},
		{Path: "/api/admin", Class: gate.ClassRole, Action: rbac.ActionManage},
		{Path: "/dashboard", Class: gate.ClassPage},
		{Path: "/users", Class: gate.ClassPage, Action: rbac.ActionRead},
	}
}

func (a *API) Router() http.Handler {
	r := mux.NewRouter()
	r.Use(a.requestID, a.logging, a.instrument, a.gate.Handler)

	auth := r.PathPrefix("/auth").Subrouter()
	auth.HandleFunc("/login", a.limited(a.Login())).Methods(http.MethodPost)
	auth.HandleFunc("/refresh", a.limited(a.Refresh())).Methods(http.MethodPost)
	auth.HandleFunc("/logout", a.Logout()).Methods(http.MethodPost)
	auth.HandleFunc("/register", a.Register()).Methods(http.MethodPost)

	protected := r.PathPrefix("/api").Subrouter()
	protected.HandleFunc("/me", a.Me()).Methods(http.MethodGet)
	protected.HandleFunc("/users", a.ListUsers()).Methods(http.MethodGet)
	protected.HandleFunc("/users/{id}", a.DeleteUser()).Methods(http.MethodDelete)
	protected.HandleFunc("/admin/stats", a.AdminStats()).Methods(http.MethodGet)

	r.HandleFunc("/login", a.LoginPage()).Methods(http.MethodGet)
	r.HandleFunc("/dashboard", a.DashboardPage()).Methods(http.MethodGet)
	r.HandleFunc("/users", a.UsersPage()).Methods(http.MethodGet)
	r.HandleFunc("/healthz", a.Health()).Methods(http.MethodGet)
	r.Handle("/metrics", a.metrics.Handler()).Methods(http.MethodGet)

	return r
}
