package signer

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/nkiryanov/smarthome/internal/apperrors"
	"github.com/nkiryanov/smarthome/internal/models"
)

const defaultSigningMethod = "HS256"

// Extra claims the token may carry
type Claims struct {
	// Role authority, e.g. 'ROLE_ADMIN'. Empty for refresh tokens
	Role string
}

// Verified content of signed token
type Credential struct {
	Subject   string
	Role      string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

type tokenClaims struct {
	jwt.RegisteredClaims
	Role string `json:"role,omitempty"`
}

type Config struct {
	// Secret key to sign tokens
	// Required to be set
	SecretKey string

	// JWT MAC (Message Authentication Code) algorithm
	// If not set than default is used
	Alg string

	// Clock, time.Now if not set
	Now func() time.Time
}

// Signer issues and verifies self validating tokens
// It's immutable after creation and safe for concurrent use
type Signer struct {
	key []byte
	alg jwt.SigningMethod
	now func() time.Time
}

func New(cfg Config) (*Signer, error) {
	if cfg.SecretKey == "" {
		return nil, errors.New("secret key must not be empty")
	}

	if cfg.Alg == "" {
		cfg.Alg = defaultSigningMethod
	}

	alg := jwt.GetSigningMethod(cfg.Alg)
	if _, ok := alg.(*jwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("unsupported signing method %q, HMAC family expected", cfg.Alg)
	}

	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &Signer{
		key: []byte(cfg.SecretKey),
		alg: alg,
		now: cfg.Now,
	}, nil
}

// Issue signed token for the subject valid for ttl
// Every issued value is unique cause of random jti
func (s *Signer) Issue(subject string, claims Claims, ttl time.Duration) (models.IssuedToken, error) {
	now := s.now().Truncate(time.Second)
	expiresAt := now.Add(ttl)

	token := jwt.NewWithClaims(s.alg, tokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		Role: claims.Role,
	})

	value, err := token.SignedString(s.key)
	if err != nil {
		return models.IssuedToken{}, fmt.Errorf("error while signing token. Err: %w", err)
	}

	return models.IssuedToken{Value: value, ExpiresAt: expiresAt}, nil
}

// Verify signature and expiration
// Returned error always wraps apperrors.ErrTokenInvalid
func (s *Signer) Verify(value string) (Credential, error) {
	return s.parse(value, jwt.WithExpirationRequired(), jwt.WithTimeFunc(s.now))
}

// Verify signature only, the token may be expired
// Use it to find out whom the token belongs to
func (s *Signer) Decode(value string) (Credential, error) {
	return s.parse(value, jwt.WithoutClaimsValidation())
}

func (s *Signer) parse(value string, opts ...jwt.ParserOption) (Credential, error) {
	claims := &tokenClaims{}
	opts = append(opts, jwt.WithValidMethods([]string{s.alg.Alg()}))

	_, err := jwt.ParseWithClaims(
		value,
		claims,
		func(t *jwt.Token) (any, error) {
			return s.key, nil
		},
		opts...,
	)
	if err != nil {
		return Credential{}, fmt.Errorf("%w: %w", apperrors.ErrTokenInvalid, err)
	}

	if claims.Subject == "" {
		return Credential{}, fmt.Errorf("%w: subject is missing", apperrors.ErrTokenInvalid)
	}

	cred := Credential{Subject: claims.Subject, Role: claims.Role}
	if claims.IssuedAt != nil {
		cred.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		cred.ExpiresAt = claims.ExpiresAt.Time
	}

	return cred, nil
}
