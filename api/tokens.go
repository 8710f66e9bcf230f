package main

import (
	"fmt"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
)

// newToken signs an HS256 access token for userID.
func (app *application) newToken(userID uuid.UUID) (string, error) {
	now := app.now()
	claims := jwt.RegisteredClaims{
		Subject:   userID.String(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(app.config.jwt.ttl)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(app.config.jwt.secret))
}

// parseToken validates tokenStr and returns the user id it was issued for.
func (app *application) parseToken(tokenStr string) (uuid.UUID, error) {
	var claims jwt.RegisteredClaims
	// Expiry is checked below against the application clock.
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	)
	token, err := parser.ParseWithClaims(tokenStr, &claims, func(t *jwt.Token) (any, error) {
		return []byte(app.config.jwt.secret), nil
	})
	if err != nil || !token.Valid {
		return uuid.Nil, fmt.Errorf("%w: %v", errInvalidToken, err)
	}
	if claims.ExpiresAt == nil || !app.now().Before(claims.ExpiresAt.Time) {
		return uuid.Nil, fmt.Errorf("%w: expired", errInvalidToken)
	}
	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: bad subject", errInvalidToken)
	}
	return id, nil
}
