package jwt

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrExpiredToken     = errors.New("token expired")
	ErrMalformedToken   = errors.New("token malformed")
	ErrInvalidSignature = errors.New("token signature invalid")
)

// Service signs and verifies access tokens. Verification never touches a
// store, so any instance holding the secret can check any token.
type Service struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// Subject is the identity embedded into an access token.
type Subject struct {
	UserID int64
	Email  string
	Roles  []string
}

type Claims struct {
	Email string   `json:"email"`
	Roles []string `json:"roles"`
	jwtlib.RegisteredClaims
}

// UserID parses the numeric subject claim.
func (c *Claims) UserID() (int64, error) {
	return strconv.ParseInt(c.Subject, 10, 64)
}

func New(secret string, ttl time.Duration) *Service {
	return &Service{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

// GenerateToken issues a token with the configured TTL.
func (s *Service) GenerateToken(sub Subject) (string, error) {
	return s.Issue(sub, s.ttl)
}

func (s *Service) Issue(sub Subject, ttl time.Duration) (string, error) {
	now := s.now()
	roles := sub.Roles
	if roles == nil {
		roles = []string{}
	}
	claims := Claims{
		Email: sub.Email,
		Roles: roles,
		RegisteredClaims: jwtlib.RegisteredClaims{
			Subject:   strconv.FormatInt(sub.UserID, 10),
			ID:        uuid.NewString(),
			ExpiresAt: jwtlib.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwtlib.NewNumericDate(now),
		},
	}

	token := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

func (s *Service) ValidateToken(tokenStr string) (*Claims, error) {
	token, err := jwtlib.ParseWithClaims(tokenStr, &Claims{}, func(t *jwtlib.Token) (any, error) {
		return s.secret, nil
	},
		jwtlib.WithValidMethods([]string{jwtlib.SigningMethodHS256.Alg()}),
		jwtlib.WithTimeFunc(s.now),
		jwtlib.WithExpirationRequired(),
	)
	if err != nil {
		switch {
		case errors.Is(err, jwtlib.ErrTokenExpired):
			return nil, ErrExpiredToken
		case errors.Is(err, jwtlib.ErrTokenSignatureInvalid):
			return nil, ErrInvalidSignature
		default:
			return nil, ErrMalformedToken
		}
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrMalformedToken
	}
	if _, err := claims.UserID(); err != nil {
		return nil, ErrMalformedToken
	}
	return claims, nil
}
