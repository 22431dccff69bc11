package auth

import (
	chaterrors "chatline/errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const issuer = "chatline"

// CustomClaims defines the structure of the data stored inside the JWT.
// UserID is the user's email, the identifier used as participant everywhere.
type CustomClaims struct {
	UserID string `json:"user_id"`
	jwt.RegisteredClaims
}

// GenerateToken creates a signed JWT for a specific user.
func (p *Provider) GenerateToken(userID string) (string, error) {
	now := p.clock()
	claims := &CustomClaims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			ExpiresAt: jwt.NewNumericDate(now.Add(p.tokenDuration)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    issuer,
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(p.key)
}

// ValidateToken parses and validates the signature, expiration and revocation of a JWT string.
func (p *Provider) ValidateToken(tokenString string) (*CustomClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &CustomClaims{},
		func(token *jwt.Token) (interface{}, error) {
			return p.key, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithTimeFunc(p.clock),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", chaterrors.ErrUnauthenticated, err)
	}
	claims, ok := token.Claims.(*CustomClaims)
	if !ok || !token.Valid || claims.UserID == "" {
		return nil, chaterrors.ErrUnauthenticated
	}
	if p.isRevoked(claims.ID) {
		return nil, chaterrors.ErrTokenRevoked
	}
	return claims, nil
}

func expiry(claims *CustomClaims) time.Time {
	if claims.ExpiresAt == nil {
		return time.Time{}
	}
	return claims.ExpiresAt.Time
}
