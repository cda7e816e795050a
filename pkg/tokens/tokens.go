package tokens

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ClaimsVersion is the only claim-set layout this package accepts.
const ClaimsVersion = 1

// Kind partitions tokens into the access and refresh spaces.
type Kind string

const (
	KindAccess  Kind = "access"
	KindRefresh Kind = "refresh"
)

type verifyError struct {
	context string
	err     error
}

func (t *verifyError) Context() string { return t.context }
func (t *verifyError) Error() string   { return fmt.Sprintf("%v", t.err) }
func (t *verifyError) Unwrap() error   { return t.err }

var (
	errTokenMalformed    = errors.New("token malformed")
	errTokenBadSignature = errors.New("token bad signature")
	errTokenExpired      = errors.New("token expired")
	errMissingKey        = errors.New("signing key is empty")
	errSharedKey         = errors.New("access and refresh keys must differ")
)

func ErrTokenMalformed() error    { return errTokenMalformed }
func ErrTokenBadSignature() error { return errTokenBadSignature }
func ErrTokenExpired() error      { return errTokenExpired }

// Claims is the fixed claim set carried inside every token. Role is only
// present on access tokens.
type Claims struct {
	Version   int              `json:"ver"`
	Kind      Kind             `json:"typ"`
	Subject   string           `json:"sub"`
	Role      string           `json:"role,omitempty"`
	IssuedAt  *jwt.NumericDate `json:"iat"`
	ExpiresAt *jwt.NumericDate `json:"exp"`
}

func (c *Claims) GetExpirationTime() (*jwt.NumericDate, error) { return c.ExpiresAt, nil }
func (c *Claims) GetIssuedAt() (*jwt.NumericDate, error)       { return c.IssuedAt, nil }
func (c *Claims) GetNotBefore() (*jwt.NumericDate, error)      { return nil, nil }
func (c *Claims) GetIssuer() (string, error)                   { return "", nil }
func (c *Claims) GetSubject() (string, error)                  { return c.Subject, nil }
func (c *Claims) GetAudience() (jwt.ClaimStrings, error)       { return nil, nil }

// claimFields lists exactly which JSON members a token of the given kind
// must carry; anything more or less is rejected.
func claimFields(kind Kind) []string {
	switch kind {
	case KindAccess:
		return []string{"ver", "typ", "sub", "role", "iat", "exp"}
	default:
		return []string{"ver", "typ", "sub", "iat", "exp"}
	}
}

func checkShape(encClaims string, kind Kind) error {
	raw, err := base64.RawURLEncoding.DecodeString(encClaims)
	if err != nil {
		return fmt.Errorf("invalid base64 encoding: %v", err)
	}
	fields := map[string]json.RawMessage{}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return fmt.Errorf("not valid JSON: %v", err)
	}
	want := claimFields(kind)
	if len(fields) != len(want) {
		return fmt.Errorf("expected %d claims, found %d", len(want), len(fields))
	}
	for _, name := range want {
		if _, ok := fields[name]; !ok {
			return fmt.Errorf("missing claim %q", name)
		}
	}
	return nil
}

func validateStructure(tokenStr string) (
	header string,
	claims string,
	signature string,
	err error,
) {
	parts := strings.Split(tokenStr, ".")
	if len(parts) != 3 {
		err = fmt.Errorf("JWT expected three parts, found %d", len(parts))
		return
	}
	header = parts[0]
	claims = parts[1]
	signature = parts[2]
	return
}

func validateClaims(claims *Claims, kind Kind, now time.Time) error {
	if claims.Version != ClaimsVersion {
		return fmt.Errorf("unsupported claims version %d", claims.Version)
	}
	if claims.Kind != kind {
		return fmt.Errorf("expected %s token, found %q", kind, claims.Kind)
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return errors.New("subject missing")
	}
	if kind == KindAccess && claims.Role == "" {
		return errors.New("role missing")
	}
	if claims.IssuedAt == nil || claims.ExpiresAt == nil {
		return errors.New("timestamps missing")
	}
	if !claims.ExpiresAt.After(claims.IssuedAt.Time) {
		return errors.New("expiry precedes issued-at")
	}
	return nil
}

func signToken(claims *Claims, key []byte) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(key)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %v", err)
	}
	return signed, nil
}

func decodeToken(
	tokenStr string,
	key []byte,
	kind Kind,
	now func() time.Time,
) (*Claims, *verifyError) {
	_, encClaims, _, err := validateStructure(tokenStr)
	if err != nil {
		return nil, &verifyError{
			context: fmt.Sprintf("token malformed: %v", err),
			err:     errTokenMalformed,
		}
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(now),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
	)
	claims := &Claims{}
	_, err = parser.ParseWithClaims(tokenStr, claims, func(*jwt.Token) (any, error) {
		return key, nil
	})
	switch {
	case err == nil:
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, &verifyError{
			context: fmt.Sprintf("token claims invalid: %v", err),
			err:     errTokenExpired,
		}
	case errors.Is(err, jwt.ErrTokenSignatureInvalid),
		errors.Is(err, jwt.ErrTokenUnverifiable):
		return nil, &verifyError{
			context: fmt.Sprintf("token signature illegal: %v", err),
			err:     errTokenBadSignature,
		}
	default:
		return nil, &verifyError{
			context: fmt.Sprintf("token malformed: %v", err),
			err:     errTokenMalformed,
		}
	}

	if err := checkShape(encClaims, kind); err != nil {
		return nil, &verifyError{
			context: fmt.Sprintf("token claims malformed: %v", err),
			err:     errTokenMalformed,
		}
	}
	if err := validateClaims(claims, kind, now()); err != nil {
		return nil, &verifyError{
			context: fmt.Sprintf("token claims invalid: %v", err),
			err:     errTokenMalformed,
		}
	}

	// a token is already expired at exactly exp
	if !now().Before(claims.ExpiresAt.Time) {
		return nil, &verifyError{
			context: "token claims invalid: expired at boundary",
			err:     errTokenExpired,
		}
	}

	return claims, nil
}
