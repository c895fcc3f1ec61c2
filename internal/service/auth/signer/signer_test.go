package signer

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nkiryanov/smarthome/internal/apperrors"
)

func newSigner(t *testing.T) *Signer {
	s, err := New(Config{SecretKey: "test-secret-key"})
	require.NoError(t, err, "signer should be created without errors")
	return s
}

func TestSigner_New(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		s, err := New(Config{SecretKey: "secret"})

		require.NoError(t, err)
		assert.Equal(t, []byte("secret"), s.key)
		assert.Equal(t, defaultSigningMethod, s.alg.Alg())
	})

	t.Run("empty secret", func(t *testing.T) {
		_, err := New(Config{})

		require.Error(t, err)
	})

	t.Run("not hmac alg", func(t *testing.T) {
		tests := []string{"RS256", "none", "unknown"}

		for _, alg := range tests {
			t.Run(alg, func(t *testing.T) {
				_, err := New(Config{SecretKey: "secret", Alg: alg})

				require.Error(t, err)
			})
		}
	})
}

func TestSigner_Issue(t *testing.T) {
	s := newSigner(t)

	t.Run("verify issued token", func(t *testing.T) {
		issued, err := s.Issue("alice", Claims{Role: "ROLE_USER"}, 5*time.Minute)
		require.NoError(t, err)

		cred, err := s.Verify(issued.Value)

		require.NoError(t, err)
		assert.Equal(t, "alice", cred.Subject)
		assert.Equal(t, "ROLE_USER", cred.Role)
		assert.WithinDuration(t, time.Now(), cred.IssuedAt, 2*time.Second)
		assert.WithinDuration(t, time.Now().Add(5*time.Minute), cred.ExpiresAt, 2*time.Second)
		assert.WithinDuration(t, issued.ExpiresAt, cred.ExpiresAt, 0, "expiration in token must match issued one")
	})

	t.Run("role claim omitted", func(t *testing.T) {
		issued, err := s.Issue("alice", Claims{}, time.Minute)
		require.NoError(t, err)

		claims := jwt.MapClaims{}
		_, _, err = jwt.NewParser().ParseUnverified(issued.Value, claims)
		require.NoError(t, err)

		assert.NotContains(t, claims, "role", "refresh tokens carry no role")
		assert.Equal(t, "alice", claims["sub"])
		assert.NotEmpty(t, claims["jti"])
	})

	t.Run("values are unique", func(t *testing.T) {
		first, err := s.Issue("alice", Claims{}, time.Minute)
		require.NoError(t, err)
		second, err := s.Issue("alice", Claims{}, time.Minute)
		require.NoError(t, err)

		assert.NotEqual(t, first.Value, second.Value, "same subject and ttl must give different values")
	})
}

func TestSigner_Verify(t *testing.T) {
	s := newSigner(t)

	t.Run("expired", func(t *testing.T) {
		issued, err := s.Issue("alice", Claims{}, -time.Minute)
		require.NoError(t, err)

		_, err = s.Verify(issued.Value)

		require.ErrorIs(t, err, apperrors.ErrTokenInvalid)
		require.ErrorIs(t, err, jwt.ErrTokenExpired)
	})

	t.Run("other key", func(t *testing.T) {
		other, err := New(Config{SecretKey: "other-secret"})
		require.NoError(t, err)
		issued, err := other.Issue("alice", Claims{}, time.Minute)
		require.NoError(t, err)

		_, err = s.Verify(issued.Value)

		require.ErrorIs(t, err, apperrors.ErrTokenInvalid)
	})

	t.Run("tampered payload", func(t *testing.T) {
		issued, err := s.Issue("alice", Claims{Role: "ROLE_USER"}, time.Minute)
		require.NoError(t, err)
		forged, err := s.Issue("mallory", Claims{Role: "ROLE_ADMIN"}, time.Minute)
		require.NoError(t, err)

		parts := strings.Split(issued.Value, ".")
		forgedParts := strings.Split(forged.Value, ".")
		tampered := parts[0] + "." + forgedParts[1] + "." + parts[2]

		_, err = s.Verify(tampered)

		require.ErrorIs(t, err, apperrors.ErrTokenInvalid)
	})

	t.Run("alg none", func(t *testing.T) {
		token := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{
			Subject:   "alice",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
		})
		value, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)

		_, err = s.Verify(value)

		require.ErrorIs(t, err, apperrors.ErrTokenInvalid)
	})

	t.Run("no subject", func(t *testing.T) {
		issued, err := s.Issue("", Claims{}, time.Minute)
		require.NoError(t, err)

		_, err = s.Verify(issued.Value)

		require.ErrorIs(t, err, apperrors.ErrTokenInvalid)
	})

	t.Run("no expiration", func(t *testing.T) {
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{Subject: "alice"})
		value, err := token.SignedString([]byte("test-secret-key"))
		require.NoError(t, err)

		_, err = s.Verify(value)

		require.ErrorIs(t, err, apperrors.ErrTokenInvalid)
	})

	t.Run("garbage", func(t *testing.T) {
		tests := []string{"", "abc", "a.b.c", "....", "eyJhbGciOiJIUzI1NiJ9.e30."}

		for _, value := range tests {
			_, err := s.Verify(value)

			require.ErrorIs(t, err, apperrors.ErrTokenInvalid, "value %q must be rejected", value)
		}
	})
}

func TestSigner_Decode(t *testing.T) {
	s := newSigner(t)

	t.Run("expired token decoded", func(t *testing.T) {
		issued, err := s.Issue("alice", Claims{}, -time.Hour)
		require.NoError(t, err)

		cred, err := s.Decode(issued.Value)

		require.NoError(t, err)
		assert.Equal(t, "alice", cred.Subject)
	})

	t.Run("signature still checked", func(t *testing.T) {
		other, err := New(Config{SecretKey: "other-secret"})
		require.NoError(t, err)
		issued, err := other.Issue("alice", Claims{}, time.Minute)
		require.NoError(t, err)

		_, err = s.Decode(issued.Value)

		require.ErrorIs(t, err, apperrors.ErrTokenInvalid)
	})
}

func TestSigner_Clock(t *testing.T) {
	now := time.Date(2030, 1, 1, 12, 0, 0, 0, time.UTC)
	s, err := New(Config{SecretKey: "secret", Now: func() time.Time { return now }})
	require.NoError(t, err)

	issued, err := s.Issue("alice", Claims{}, time.Hour)
	require.NoError(t, err)
	require.Equal(t, now.Add(time.Hour), issued.ExpiresAt)

	now = now.Add(2 * time.Hour)
	_, err = s.Verify(issued.Value)
	require.ErrorIs(t, err, apperrors.ErrTokenInvalid, "token must expire on signer clock")
}
