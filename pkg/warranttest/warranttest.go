// Package warranttest mints tokens and cookies for tests of services that
// sit behind a warrant server, without running one.
package warranttest

import (
	"crypto/rand"
	"net/http"
	"time"

	"git.sr.ht/~jakintosh/warrant/pkg/tokens"
)

// RefreshCookieName matches the cookie the server sets on login.
const RefreshCookieName = "refreshToken"

// Keys holds a pair of distinct HMAC secrets.
type Keys struct {
	AccessKey  []byte
	RefreshKey []byte
}

// Session holds token strings and metadata for a test session.
type Session struct {
	Subject          string
	Role             string
	AccessToken      string
	RefreshToken     string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
	RefreshLifetime  time.Duration
}

// CookieOptions configures cookie attributes for test cookies.
type CookieOptions struct {
	Secure bool
	Path   string
	MaxAge int // if 0, the refresh token's lifetime
}

// NewKeys generates random 32-byte access and refresh secrets.
func NewKeys() (*Keys, error) {
	keys := &Keys{AccessKey: make([]byte, 32), RefreshKey: make([]byte, 32)}
	if _, err := rand.Read(keys.AccessKey); err != nil {
		return nil, err
	}
	if _, err := rand.Read(keys.RefreshKey); err != nil {
		return nil, err
	}
	return keys, nil
}

// Codec builds a codec over keys. A nil now uses the wall clock.
func Codec(keys *Keys, now func() time.Time) (*tokens.Codec, error) {
	if now == nil {
		return tokens.NewCodec(keys.AccessKey, keys.RefreshKey)
	}
	return tokens.NewCodec(keys.AccessKey, keys.RefreshKey, tokens.WithClock(now))
}

// NewSession mints an access and refresh token pair for subject.
func NewSession(codec *tokens.Codec, subject, role string, accessLifetime, refreshLifetime time.Duration) (*Session, error) {
	access, err := codec.IssueAccess(subject, role, accessLifetime)
	if err != nil {
		return nil, err
	}
	refresh, err := codec.IssueRefresh(subject, refreshLifetime)
	if err != nil {
		return nil, err
	}

	return &Session{
		Subject:          subject,
		Role:             role,
		AccessToken:      access.Encoded(),
		RefreshToken:     refresh.Encoded(),
		AccessExpiresAt:  access.Expiration(),
		RefreshExpiresAt: refresh.Expiration(),
		RefreshLifetime:  refresh.Lifetime(),
	}, nil
}

// Cookie builds the refresh cookie the server would have set for sess.
func Cookie(sess *Session, opts CookieOptions) *http.Cookie {
	maxAge := opts.MaxAge
	if maxAge == 0 {
		maxAge = int(sess.RefreshLifetime.Seconds())
	}
	path := opts.Path
	if path == "" {
		path = "/"
	}

	return &http.Cookie{
		Name:     RefreshCookieName,
		Value:    sess.RefreshToken,
		Path:     path,
		MaxAge:   maxAge,
		Secure:   opts.Secure,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	}
}

// Authorize sets the bearer header for sess on r.
func Authorize(r *http.Request, sess *Session) {
	r.Header.Set("Authorization", "Bearer "+sess.AccessToken)
}

// AddCookie adds the refresh cookie for sess to r.
func AddCookie(r *http.Request, sess *Session) {
	r.AddCookie(Cookie(sess, CookieOptions{}))
}
