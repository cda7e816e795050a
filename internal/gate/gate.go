// Package gate is the per-request interceptor that admits, rejects, or
// redirects requests according to their route class, their credential,
// and the role policy.
package gate

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"

	"git.sr.ht/~jakintosh/warrant/internal/rbac"
	"git.sr.ht/~jakintosh/warrant/pkg/tokens"
	"github.com/sirupsen/logrus"
)

const (
	CodeTokenExpired = "TOKEN_EXPIRED"
	CodeInvalidToken = "INVALID_TOKEN"
	CodeForbidden    = "FORBIDDEN"
)

// SessionResolver turns the long-lived session cookie presented by a page
// request into a principal. It is only consulted for ClassPage routes.
type SessionResolver func(ctx context.Context, refreshToken string) (Principal, error)

// Recorder receives one decision per gated request.
type Recorder interface {
	GateDecision(class, outcome string)
}

type Gate struct {
	codec     *tokens.Codec
	policy    *rbac.Policy
	rules     []Rule
	sessions  SessionResolver
	cookie    string
	loginPath string
	log       logrus.FieldLogger
	recorder  Recorder
}

type Option func(*Gate)

// WithSessions enables the cookie fallback for page routes.
func WithSessions(cookieName string, resolve SessionResolver) Option {
	return func(g *Gate) {
		g.cookie = cookieName
		g.sessions = resolve
	}
}

func WithLoginPath(path string) Option {
	return func(g *Gate) { g.loginPath = path }
}

func WithLogger(log logrus.FieldLogger) Option {
	return func(g *Gate) { g.log = log }
}

func WithRecorder(r Recorder) Option {
	return func(g *Gate) { g.recorder = r }
}

func New(
	codec *tokens.Codec,
	policy *rbac.Policy,
	rules []Rule,
	opts ...Option,
) *Gate {
	discard := logrus.New()
	discard.SetOutput(io.Discard)

	g := &Gate{
		codec:     codec,
		policy:    policy,
		rules:     append([]Rule(nil), rules...),
		loginPath: "/login",
		log:       discard,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Classify reports the rule that governs r.
func (g *Gate) Classify(r *http.Request) Rule {
	return classify(g.rules, r)
}

// Handler wraps next with the gate. It has the shape of a mux middleware.
func (g *Gate) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rule := g.Classify(r)
		switch rule.Class {
		case ClassPublic:
			next.ServeHTTP(w, r)
		case ClassPage:
			g.servePage(rule, next, w, r)
		default:
			g.serveAPI(rule, next, w, r)
		}
	})
}

func (g *Gate) serveAPI(rule Rule, next http.Handler, w http.ResponseWriter, r *http.Request) {
	principal, code := g.bearer(r)
	if code != "" {
		g.decide(rule, outcomeFor(code))
		writeUnauthorized(w, code)
		return
	}

	if rule.Class == ClassRole && !g.policy.IsPermitted(principal.Role, rule.Action) {
		g.log.WithFields(logrus.Fields{
			"user":   principal.Subject,
			"role":   principal.Role,
			"action": rule.Action,
			"path":   r.URL.Path,
		}).Info("permission denied")
		g.decide(rule, "forbidden")
		writeError(w, http.StatusForbidden, CodeForbidden, "insufficient permissions")
		return
	}

	g.decide(rule, "pass")
	next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), principal)))
}

func (g *Gate) servePage(rule Rule, next http.Handler, w http.ResponseWriter, r *http.Request) {
	principal, code := g.bearer(r)
	if code != "" {
		principal, code = g.session(r)
	}
	if code != "" {
		g.decide(rule, "redirect")
		target := g.loginPath + "?next=" + url.QueryEscape(r.URL.RequestURI())
		http.Redirect(w, r, target, http.StatusSeeOther)
		return
	}

	if rule.Action != "" && !g.policy.IsPermitted(principal.Role, rule.Action) {
		g.decide(rule, "forbidden")
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	g.decide(rule, "pass")
	next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), principal)))
}

// bearer verifies the Authorization header. On failure it returns the
// machine code to report.
func (g *Gate) bearer(r *http.Request) (Principal, string) {
	enc, ok := BearerToken(r.Header.Get("Authorization"))
	if !ok {
		return Principal{}, CodeInvalidToken
	}

	token, err := g.codec.VerifyAccess(enc)
	if err != nil {
		g.log.WithError(err).WithField("path", r.URL.Path).Debug("bearer rejected")
		if errors.Is(err, tokens.ErrTokenExpired()) {
			return Principal{}, CodeTokenExpired
		}
		return Principal{}, CodeInvalidToken
	}

	return Principal{
		Subject: token.Subject(),
		Role:    rbac.Role(token.Role()),
		Source:  SourceBearer,
	}, ""
}

func (g *Gate) session(r *http.Request) (Principal, string) {
	if g.sessions == nil {
		return Principal{}, CodeInvalidToken
	}
	c, err := r.Cookie(g.cookie)
	if err != nil || c.Value == "" {
		return Principal{}, CodeInvalidToken
	}
	principal, err := g.sessions(r.Context(), c.Value)
	if err != nil {
		g.log.WithError(err).WithField("path", r.URL.Path).Debug("session rejected")
		return Principal{}, CodeInvalidToken
	}
	principal.Source = SourceSession
	return principal, ""
}

func (g *Gate) decide(rule Rule, outcome string) {
	if g.recorder != nil {
		g.recorder.GateDecision(rule.Class.String(), outcome)
	}
}

func outcomeFor(code string) string {
	if code == CodeTokenExpired {
		return "expired"
	}
	return "invalid"
}

// BearerToken extracts the credential from an Authorization header value.
// The scheme is matched case-insensitively.
func BearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

type errorBody struct {
	Success bool   `json:"success"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeUnauthorized(w http.ResponseWriter, code string) {
	message := "invalid or missing access token"
	challenge := `Bearer error="invalid_token"`
	if code == CodeTokenExpired {
		message = "access token expired"
		challenge = `Bearer error="invalid_token", error_description="token expired"`
	}
	w.Header().Set("WWW-Authenticate", challenge)
	writeError(w, http.StatusUnauthorized, code, message)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorBody{Code: code, Message: message})
}
