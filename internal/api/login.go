package api

import (
	"errors"
	"mime"
	"net/http"
	"net/url"
	"strings"

	"git.sr.ht/~jakintosh/warrant/internal/service"
)

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Success     bool   `json:"success"`
	Message     string `json:"message"`
	User        User   `json:"user"`
	AccessToken string `json:"accessToken"`
}

// DefaultNext is where a form login lands when no usable next path was given.
const DefaultNext = "/dashboard"

func (a *API) Login() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if isFormPost(r) {
			a.loginForm(w, r)
			return
		}

		req := LoginRequest{}
		if ok := decodeRequest(&req, w, r); !ok {
			return
		}

		session, err := a.service.Login(r.Context(), req.Email, req.Password, a.transport(w))
		if err != nil {
			a.metrics.Login(loginOutcome(err))
			a.writeServiceError(w, r, err)
			return
		}

		a.metrics.Login("success")
		response := LoginResponse{
			Success:     true,
			Message:     "Login successful",
			User:        userOf(session.Identity),
			AccessToken: session.AccessToken.Encoded(),
		}
		returnJson(&response, w)
	}
}

// loginForm serves the browser sign-in page: the refresh cookie is set and
// the browser is sent on to next, where the page gate picks the session up.
func (a *API) loginForm(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := r.ParseForm(); err != nil {
		logApiErr(r, "bad form request")
		http.Redirect(w, r, loginURL(DefaultNext, "invalid"), http.StatusSeeOther)
		return
	}
	next := SafeNext(r.PostFormValue("next"))

	_, err := a.service.Login(r.Context(), r.PostFormValue("email"), r.PostFormValue("password"), a.transport(w))
	if err != nil {
		a.metrics.Login(loginOutcome(err))
		if errors.Is(err, service.ErrInvalidCredentials) {
			http.Redirect(w, r, loginURL(next, "invalid"), http.StatusSeeOther)
			return
		}
		loggerFor(r).WithError(err).Error("form login failed")
		http.Redirect(w, r, loginURL(next, "unavailable"), http.StatusSeeOther)
		return
	}

	a.metrics.Login("success")
	http.Redirect(w, r, next, http.StatusSeeOther)
}

func loginOutcome(err error) string {
	if errors.Is(err, service.ErrInvalidCredentials) {
		return "invalid_credentials"
	}
	return "error"
}

func isFormPost(r *http.Request) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mediaType == "application/x-www-form-urlencoded"
}

// SafeNext returns next when it is a same-origin absolute path, and
// DefaultNext otherwise.
func SafeNext(next string) string {
	if !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.ContainsAny(next, "\\\r\n") {
		return DefaultNext
	}
	u, err := url.Parse(next)
	if err != nil || u.Scheme != "" || u.Host != "" {
		return DefaultNext
	}
	return next
}

func loginURL(next, problem string) string {
	q := url.Values{}
	q.Set("next", next)
	q.Set("error", problem)
	return "/login?" + q.Encode()
}
