package tokens

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// PeekExpiry reads the exp claim without checking the signature. Clients
// use it to schedule a refresh; it must never be used to authorize.
func PeekExpiry(encToken string) (time.Time, error) {
	claims := &Claims{}
	_, _, err := jwt.NewParser().ParseUnverified(encToken, claims)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %v", errTokenMalformed, err)
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, errors.Join(errTokenMalformed, errors.New("exp missing"))
	}
	return claims.ExpiresAt.Time, nil
}
