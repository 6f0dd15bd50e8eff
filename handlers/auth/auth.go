package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"
)

// DefaultTTL is how long an issued token stays valid.
const DefaultTTL = time.Hour

var (
	// ErrMalformed covers tokens that cannot be parsed or whose signature does not match.
	ErrMalformed = errors.New("malformed token")

	// ErrExpired is returned for well-formed tokens past their expiry.
	ErrExpired = errors.New("token expired")
)

// AppClaims is the token payload: the caller's email plus iat/exp.
type AppClaims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// TokenService issues and verifies stateless HS256 bearer tokens.
// There is no revocation list; logout means the client drops the token.
type TokenService struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokenService(secret []byte, ttl time.Duration) *TokenService {
	if len(secret) == 0 {
		logrus.Warn("ACCESS_TOKEN is not set. Token verification will fail for every request.")
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &TokenService{secret: secret, ttl: ttl, now: time.Now}
}

// WithClock replaces the wall clock, for tests.
func (s *TokenService) WithClock(now func() time.Time) *TokenService {
	s.now = now
	return s
}

// Issue signs a token carrying email that expires after the service TTL.
func (s *TokenService) Issue(email string) (string, error) {
	if len(s.secret) == 0 {
		return "", errors.New("token signing secret is not configured")
	}
	now := s.now()
	claims := AppClaims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// Verify checks the signature and expiry of tokenString and returns its claims.
// Failures wrap ErrExpired or ErrMalformed.
func (s *TokenService) Verify(tokenString string) (*AppClaims, error) {
	if len(s.secret) == 0 || strings.TrimSpace(tokenString) == "" {
		return nil, ErrMalformed
	}

	token, err := jwt.ParseWithClaims(tokenString, &AppClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now), jwt.WithExpirationRequired())

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: %v", ErrExpired, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	if claims, ok := token.Claims.(*AppClaims); ok && token.Valid {
		return claims, nil
	}

	return nil, ErrMalformed
}
