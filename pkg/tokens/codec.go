package tokens

import (
	"fmt"
	"time"
)

// Codec issues and verifies both kinds of token. Access and refresh tokens
// are signed with separate keys, so a token of one kind never verifies as
// the other.
type Codec struct {
	accessKey  []byte
	refreshKey []byte
	now        func() time.Time
}

type CodecOption func(*Codec)

// WithClock overrides the time source used for iat, exp, and expiry checks.
func WithClock(now func() time.Time) CodecOption {
	return func(c *Codec) { c.now = now }
}

func NewCodec(accessKey, refreshKey []byte, opts ...CodecOption) (*Codec, error) {
	if len(accessKey) == 0 || len(refreshKey) == 0 {
		return nil, errMissingKey
	}
	if string(accessKey) == string(refreshKey) {
		return nil, errSharedKey
	}
	c := &Codec{
		accessKey:  append([]byte(nil), accessKey...),
		refreshKey: append([]byte(nil), refreshKey...),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Codec) Now() time.Time { return c.now() }

func (c *Codec) keyFor(kind Kind) []byte {
	if kind == KindAccess {
		return c.accessKey
	}
	return c.refreshKey
}

func (c *Codec) issue(kind Kind, subject, role string, lifetime time.Duration) (*Token, error) {
	if subject == "" {
		return nil, fmt.Errorf("can't issue %s token: empty subject", kind)
	}
	if lifetime <= 0 {
		return nil, fmt.Errorf("can't issue %s token: non-positive lifetime %v", kind, lifetime)
	}

	iat := c.now().Truncate(time.Second)
	token := &Token{
		kind:       kind,
		subject:    subject,
		role:       role,
		issuedAt:   iat,
		expiration: iat.Add(lifetime),
	}
	encoded, err := signToken(token.intoClaims(), c.keyFor(kind))
	if err != nil {
		return nil, err
	}
	token.encoded = encoded
	return token, nil
}

func (c *Codec) verify(kind Kind, encToken string) (*Token, error) {
	claims, err := decodeToken(encToken, c.keyFor(kind), kind, c.now)
	if err != nil {
		return nil, err
	}
	token := &Token{}
	token.fromClaims(claims, encToken)
	return token, nil
}
