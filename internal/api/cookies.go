package api

import (
	"net/http"

	"git.sr.ht/~jakintosh/warrant/pkg/tokens"
)

// cookieTransport carries the refresh token in an HttpOnly cookie scoped
// to a single response.
type cookieTransport struct {
	w      http.ResponseWriter
	secure bool
}

func (a *API) transport(w http.ResponseWriter) *cookieTransport {
	return &cookieTransport{w: w, secure: a.secure}
}

func (t *cookieTransport) SetRefreshToken(token *tokens.Token) {
	http.SetCookie(t.w, &http.Cookie{
		Name:     RefreshCookieName,
		Value:    token.Encoded(),
		Path:     "/",
		MaxAge:   int(token.Lifetime().Seconds()),
		HttpOnly: true,
		Secure:   t.secure,
		SameSite: http.SameSiteStrictMode,
	})
}

// ClearRefreshToken emits "Max-Age=0" so the browser drops the cookie.
func (t *cookieTransport) ClearRefreshToken() {
	http.SetCookie(t.w, &http.Cookie{
		Name:     RefreshCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   t.secure,
		SameSite: http.SameSiteStrictMode,
	})
}

func refreshCookieValue(r *http.Request) string {
	c, err := r.Cookie(RefreshCookieName)
	if err != nil {
		return ""
	}
	return c.Value
}
