package kling

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const tokenTTL = 30 * time.Minute

// signToken builds the short-lived bearer token the Kling API expects:
// HS256 signed with the secret key, issuer set to the access key, valid
// from five seconds in the past.
func signToken(accessKey, secretKey string, now time.Time) (string, error) {
	claims := jwt.RegisteredClaims{
		Issuer:    accessKey,
		ExpiresAt: jwt.NewNumericDate(now.Add(tokenTTL)),
		NotBefore: jwt.NewNumericDate(now.Add(-5 * time.Second)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secretKey))
}
