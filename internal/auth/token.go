package auth

import (
	"errors"
	"fmt"
	"maps"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultTokenTTL applies when the configuration leaves the ttl unset.
const DefaultTokenTTL = 30 * time.Minute

// TokenConfig holds the signing settings for access tokens.
type TokenConfig struct {
	Secret    string
	Algorithm string
	TTL       time.Duration
}

// TokenService issues and verifies signed, time-limited bearer tokens.
// Tokens are not stored; a token stays valid until it expires.
type TokenService struct {
	secret []byte
	method jwt.SigningMethod
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenService validates cfg and returns a TokenService.
func NewTokenService(cfg TokenConfig) (*TokenService, error) {
	const op = "auth.NewTokenService"

	if cfg.Secret == "" {
		return nil, fmt.Errorf("%s: empty secret", op)
	}
	alg := cfg.Algorithm
	if alg == "" {
		alg = jwt.SigningMethodHS256.Alg()
	}
	if alg != jwt.SigningMethodHS256.Alg() {
		return nil, fmt.Errorf("%s: unsupported algorithm %q", op, alg)
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}

	return &TokenService{
		secret: []byte(cfg.Secret),
		method: jwt.SigningMethodHS256,
		ttl:    ttl,
		now:    time.Now,
	}, nil
}

// TTL returns the default lifetime of issued tokens.
func (s *TokenService) TTL() time.Duration {
	return s.ttl
}

// Issue signs claims plus an expiry ttl from now. The claims must carry a
// non-empty "sub". A non-positive ttl means the configured default.
func (s *TokenService) Issue(claims map[string]any, ttl time.Duration) (string, error) {
	const op = "auth.TokenService.Issue"

	if sub, _ := claims["sub"].(string); sub == "" {
		return "", fmt.Errorf("%s: %w", op, errors.New("missing subject claim"))
	}
	if ttl <= 0 {
		ttl = s.ttl
	}

	now := s.now()
	mapClaims := jwt.MapClaims{}
	maps.Copy(mapClaims, claims)
	mapClaims["iat"] = jwt.NewNumericDate(now)
	mapClaims["exp"] = jwt.NewNumericDate(now.Add(ttl))

	signed, err := jwt.NewWithClaims(s.method, mapClaims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return signed, nil
}

// IssueFor issues a default-ttl token for subject.
func (s *TokenService) IssueFor(subject string) (string, error) {
	return s.Issue(map[string]any{"sub": subject}, 0)
}

// Verify checks signature, algorithm and expiry and returns the subject.
// Every failure is reported the same way: ok is false.
func (s *TokenService) Verify(token string) (subject string, ok bool) {
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{s.method.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !parsed.Valid {
		return "", false
	}

	sub, err := parsed.Claims.GetSubject()
	if err != nil || sub == "" {
		return "", false
	}
	return sub, true
}
