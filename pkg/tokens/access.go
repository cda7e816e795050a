package tokens

import (
	"fmt"
	"time"
)

// Token is a verified or freshly issued token of either kind.
type Token struct {
	kind       Kind
	subject    string
	role       string
	issuedAt   time.Time
	expiration time.Time
	encoded    string
}

func (t *Token) Kind() Kind            { return t.kind }
func (t *Token) Subject() string       { return t.subject }
func (t *Token) Role() string          { return t.role }
func (t *Token) IssuedAt() time.Time   { return t.issuedAt }
func (t *Token) Expiration() time.Time { return t.expiration }
func (t *Token) Encoded() string       { return t.encoded }

// Lifetime is the number of whole seconds between iat and exp.
func (t *Token) Lifetime() time.Duration { return t.expiration.Sub(t.issuedAt) }

func (token *Token) intoClaims() *Claims {
	claims := &Claims{
		Version:   ClaimsVersion,
		Kind:      token.kind,
		Subject:   token.subject,
		IssuedAt:  numericDate(token.issuedAt),
		ExpiresAt: numericDate(token.expiration),
	}
	if token.kind == KindAccess {
		claims.Role = token.role
	}
	return claims
}

func (token *Token) fromClaims(claims *Claims, encToken string) {
	token.kind = claims.Kind
	token.subject = claims.Subject
	token.role = claims.Role
	token.issuedAt = claims.IssuedAt.Time
	token.expiration = claims.ExpiresAt.Time
	token.encoded = encToken
}

// IssueAccess signs a short-lived token carrying the subject's role.
func (c *Codec) IssueAccess(subject, role string, lifetime time.Duration) (*Token, error) {
	if role == "" {
		return nil, fmt.Errorf("can't issue access token: empty role")
	}
	return c.issue(KindAccess, subject, role, lifetime)
}

// VerifyAccess checks signature, shape and expiry against the access key.
// Errors match ErrTokenExpired, ErrTokenBadSignature, or ErrTokenMalformed.
func (c *Codec) VerifyAccess(encToken string) (*Token, error) {
	return c.verify(KindAccess, encToken)
}
