// Package api serves the warrant HTTP surface: the auth endpoints, the
// sample gated resources, and the pages behind the session cookie.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"time"

	"git.sr.ht/~jakintosh/warrant/internal/gate"
	"git.sr.ht/~jakintosh/warrant/internal/metrics"
	"git.sr.ht/~jakintosh/warrant/internal/rbac"
	"git.sr.ht/~jakintosh/warrant/internal/service"
	"github.com/sirupsen/logrus"
)

const (
	RefreshCookieName = "refreshToken"
	maxBodyBytes      = 1 << 20
)

type API struct {
	service *service.Service
	policy  *rbac.Policy
	gate    *gate.Gate
	metrics *metrics.Metrics
	log     logrus.FieldLogger
	health  func(context.Context) error
	limiter *rateLimiter
	secure  bool
	started time.Time
}

type Option func(*API)

func WithMetrics(m *metrics.Metrics) Option {
	return func(a *API) { a.metrics = m }
}

func WithLogger(log logrus.FieldLogger) Option {
	return func(a *API) { a.log = log }
}

// WithSecureCookies sets the Secure attribute on the refresh cookie. It
// should be on for every production deployment.
func WithSecureCookies(secure bool) Option {
	return func(a *API) { a.secure = secure }
}

// WithRateLimit throttles login and refresh per client address.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(a *API) {
		if perSecond > 0 && burst > 0 {
			a.limiter = newRateLimiter(perSecond, burst)
		}
	}
}

func WithHealthCheck(check func(context.Context) error) Option {
	return func(a *API) { a.health = check }
}

func New(
	svc *service.Service,
	policy *rbac.Policy,
	opts ...Option,
) *API {
	discard := logrus.New()
	discard.SetOutput(io.Discard)

	a := &API{
		service: svc,
		policy:  policy,
		log:     discard,
		started: time.Now(),
	}
	for _, opt := range opts {
		opt(a)
	}

	a.gate = gate.New(
		svc.Codec(),
		policy,
		Rules(),
		gate.WithSessions(RefreshCookieName, a.resolveSession),
		gate.WithLoginPath("/login"),
		gate.WithLogger(a.log),
		gate.WithRecorder(a.metrics),
	)
	return a
}

func (a *API) resolveSession(ctx context.Context, refreshToken string) (gate.Principal, error) {
	identity, err := a.service.ResolveRefresh(ctx, refreshToken)
	if err != nil {
		return gate.Principal{}, err
	}
	return gate.Principal{Subject: identity.ID, Role: identity.Role}, nil
}

type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  string `json:"role"`
}

func userOf(identity service.Identity) User {
	return User{
		ID:    identity.ID,
		Email: identity.Email,
		Name:  identity.DisplayName,
		Role:  string(identity.Role),
	}
}

type ErrorResponse struct {
	Success   bool   `json:"success"`
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"requestId,omitempty"`
}

type MessageResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

const (
	CodeInvalidCredentials = "INVALID_CREDENTIALS"
	CodeRefreshExpired     = "REFRESH_EXPIRED"
	CodeRefreshInvalid     = "REFRESH_INVALID"
	CodeUserNotFound       = "USER_NOT_FOUND"
	CodeInternal           = "INTERNAL_ERROR"
	CodeBadRequest         = "BAD_REQUEST"
	CodeEmailExists        = "EMAIL_EXISTS"
	CodeRateLimited        = "RATE_LIMITED"
	CodeTokenExpired       = gate.CodeTokenExpired
	CodeInvalidToken       = gate.CodeInvalidToken
	CodeForbidden          = gate.CodeForbidden
)

func decodeRequest[T any](req *T, w http.ResponseWriter, r *http.Request) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || mediaType != "application/json" {
		logApiErr(r, "unsupported content type")
		writeError(w, http.StatusUnsupportedMediaType, CodeBadRequest, "expected application/json")
		return false
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		logApiErr(r, "bad json request")
		writeError(w, http.StatusBadRequest, CodeBadRequest, "malformed JSON body")
		return false
	}
	return true
}

func returnJson(data any, w http.ResponseWriter) {
	returnJsonStatus(http.StatusOK, data, w)
}

func returnJsonStatus(status int, data any, w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	returnJsonStatus(status, ErrorResponse{Code: code, Message: message}, w)
}

func logApiErr(r *http.Request, msg string) {
	loggerFor(r).Debugf("%s %s: %s", r.Method, r.RequestURI, msg)
}

// writeServiceError maps a service error onto its status and stable code.
// Internal causes are logged and never echoed.
func (a *API) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, CodeInvalidCredentials, "Invalid email or password")
	case errors.Is(err, service.ErrRefreshExpired):
		writeError(w, http.StatusUnauthorized, CodeRefreshExpired, "Refresh token expired")
	case errors.Is(err, service.ErrRefreshInvalid):
		writeError(w, http.StatusUnauthorized, CodeRefreshInvalid, "Invalid refresh token")
	case errors.Is(err, service.ErrUserNotFound):
		writeError(w, http.StatusUnauthorized, CodeUserNotFound, "User not found")
	case errors.Is(err, service.ErrEmailExists):
		writeError(w, http.StatusConflict, CodeEmailExists, "User with this email already exists")
	case errors.Is(err, service.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, CodeBadRequest, err.Error())
	default:
		loggerFor(r).WithError(err).Error("internal error")
		returnJsonStatus(http.StatusInternalServerError, ErrorResponse{
			Code:      CodeInternal,
			Message:   "Internal server error",
			RequestID: requestIDFrom(r.Context()),
		}, w)
	}
}
