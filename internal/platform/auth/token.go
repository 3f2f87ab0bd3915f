package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var ErrInvalidToken = errors.New("invalid session token")

// Claims is the signed session mirror. Profile carries the user record as
// it was when the token was issued.
type Claims struct {
	jwt.RegisteredClaims
	Role    string          `json:"role"`
	Area    string          `json:"area,omitempty"`
	Profile json.RawMessage `json:"profile,omitempty"`
}

// TokenCodec issues and verifies HS256 session tokens.
type TokenCodec struct {
	key    []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

func NewTokenCodec(key []byte, issuer string, ttl time.Duration) *TokenCodec {
	return &TokenCodec{key: key, issuer: issuer, ttl: ttl, now: time.Now}
}

func (c *TokenCodec) TTL() time.Duration { return c.ttl }

// Issue signs a new token for subject with a fresh jti.
func (c *TokenCodec) Issue(subject, role, area string, profile json.RawMessage) (string, *Claims, error) {
	now := c.now()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Subject:   subject,
			Issuer:    c.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.ttl)),
		},
		Role:    role,
		Area:    area,
		Profile: profile,
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.key)
	if err != nil {
		return "", nil, fmt.Errorf("sign session token: %w", err)
	}
	return token, claims, nil
}

// Parse verifies signature, issuer and expiry.
func (c *TokenCodec) Parse(token string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return c.key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(c.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil || !parsed.Valid {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Subject == "" || claims.ID == "" {
		return nil, fmt.Errorf("%w: missing subject or id", ErrInvalidToken)
	}
	return claims, nil
}
