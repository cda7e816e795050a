package tokens

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// IssueRefresh signs a long-lived token that only identifies the subject.
func (c *Codec) IssueRefresh(subject string, lifetime time.Duration) (*Token, error) {
	return c.issue(KindRefresh, subject, "", lifetime)
}

// VerifyRefresh checks signature, shape and expiry against the refresh key.
func (c *Codec) VerifyRefresh(encToken string) (*Token, error) {
	return c.verify(KindRefresh, encToken)
}

func numericDate(t time.Time) *jwt.NumericDate {
	return jwt.NewNumericDate(t)
}
