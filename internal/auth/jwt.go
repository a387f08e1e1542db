package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Issuer is the value expected in the iss claim of guardian tokens.
const Issuer = "canteen-ledger"

const clockSkew = 30 * time.Second

var ErrInvalidSubject = errors.New("token subject is not a guardian id")

// Claims identifies the authenticated guardian. Tokens are minted by the
// account service; this package only verifies them.
type Claims struct {
	GuardianID uuid.UUID
	ExpiresAt  time.Time
}

// GenerateToken signs an HS256 token for a guardian. Used by local tooling and tests.
func GenerateToken(guardianID uuid.UUID, secret string, expiry time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Issuer:    Issuer,
		Subject:   guardianID.String(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(expiry)),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("GenerateToken: %w", err)
	}
	return signed, nil
}

func ValidateToken(tokenString string, secret string) (*Claims, error) {
	var rc jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(tokenString, &rc,
		func(*jwt.Token) (any, error) { return []byte(secret), nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(clockSkew),
	)
	if err != nil {
		return nil, fmt.Errorf("ValidateToken: %w", err)
	}

	guardianID, err := uuid.Parse(rc.Subject)
	if err != nil || guardianID == uuid.Nil {
		return nil, fmt.Errorf("ValidateToken: %w", ErrInvalidSubject)
	}

	return &Claims{
		GuardianID: guardianID,
		ExpiresAt:  rc.ExpiresAt.Time,
	}, nil
}
