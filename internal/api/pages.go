package api

import (
	"net/http"

	"git.sr.ht/~jakintosh/warrant/internal/gate"
	"git.sr.ht/~jakintosh/warrant/internal/rbac"
	"git.sr.ht/~jakintosh/warrant/internal/resources"
)

const serverErrorHTML = "<!DOCTYPE html><html><body><h1>Something went wrong</h1></body></html>"

type dashboardModel struct {
	Title       string
	User        User
	Permissions []rbac.Action
}

type usersModel struct {
	Title string
	Users []User
}

type loginModel struct {
	Title string
	Next  string
	Error string
}

var loginProblems = map[string]string{
	"invalid":     "Invalid email or password",
	"unavailable": "Sign in is unavailable, try again later",
}

func (a *API) LoginPage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()
		a.renderPage(w, r, "login.html", loginModel{
			Title: "Sign in",
			Next:  SafeNext(query.Get("next")),
			Error: loginProblems[query.Get("error")],
		})
	}
}

func (a *API) DashboardPage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		principal, ok := gate.PrincipalFromContext(r.Context())
		if !ok {
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}
		identity, err := a.service.UserByID(r.Context(), principal.Subject)
		if err != nil {
			loggerFor(r).WithError(err).Info("dashboard identity unavailable")
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}

		a.renderPage(w, r, "dashboard.html", dashboardModel{
			Title:       "Dashboard",
			User:        userOf(identity),
			Permissions: a.policy.Actions(identity.Role),
		})
	}
}

func (a *API) UsersPage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identities, err := a.service.ListUsers(r.Context())
		if err != nil {
			loggerFor(r).WithError(err).Error("couldn't list users")
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte(serverErrorHTML))
			return
		}

		users := make([]User, 0, len(identities))
		for _, identity := range identities {
			users = append(users, userOf(identity))
		}
		a.renderPage(w, r, "users.html", usersModel{Title: "Users", Users: users})
	}
}

func (a *API) renderPage(w http.ResponseWriter, r *http.Request, name string, model any) {
	page, err := resources.RenderTemplate(name, model)
	if err != nil {
		loggerFor(r).WithError(err).Errorf("couldn't render %s", name)
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(serverErrorHTML))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.Write(page)
}
