package jwtx_test

import (
	"crypto/rand"
	"crypto/rsa"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/soundlab/soundlab/pkg/jwtx"
)

const (
	testSecret   = "test_secret_key"
	testAudience = "soundlab-api"
)

// mint signs an HS256 token for the given claims with the test secret.
func mint(t *testing.T, claims jwtx.Claims) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return tok
}

// baseClaims returns a well-formed 10 minute token issued at t0.
func baseClaims(t0 time.Time, jti string) jwtx.Claims {
	return jwtx.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "test_user",
			Audience:  jwt.ClaimStrings{testAudience},
			IssuedAt:  jwt.NewNumericDate(t0),
			ExpiresAt: jwt.NewNumericDate(t0.Add(10 * time.Minute)),
			ID:        jti,
		},
	}
}

func newValidator() *jwtx.HS256Validator {
	return jwtx.NewValidatorHS256([]byte(testSecret), jwtx.Options{Audience: testAudience})
}

func TestValidateAcceptsFreshToken(t *testing.T) {
	t0 := time.Now().UTC()
	v := newValidator()

	claims, err := v.Validate(mint(t, baseClaims(t0, "fresh_nonce_1")), t0.Add(10*time.Second))
	require.NoError(t, err)
	require.Equal(t, "test_user", claims.Subject)
	require.Contains(t, claims.Audience, testAudience)
}

func TestValidateRejectsReplay(t *testing.T) {
	// Scenario: first use at t0+10s succeeds, same token at t0+20s is
	// replay, regardless of the token still being otherwise valid.
	t0 := time.Now().UTC()
	v := newValidator()
	tok := mint(t, baseClaims(t0, "abc123"))

	_, err := v.Validate(tok, t0.Add(10*time.Second))
	require.NoError(t, err)

	_, err = v.Validate(tok, t0.Add(20*time.Second))
	require.ErrorIs(t, err, jwtx.ErrReplayDetected)
}

func TestValidateRejectsExpired(t *testing.T) {
	t0 := time.Now().UTC()
	v := newValidator()
	tok := mint(t, baseClaims(t0, "expired_nonce"))

	// Beyond exp plus the 60s default leeway.
	_, err := v.Validate(tok, t0.Add(10*time.Minute+2*time.Minute))
	require.ErrorIs(t, err, jwtx.ErrTokenExpired)
}

func TestValidateLeewayToleratesSkew(t *testing.T) {
	t0 := time.Now().UTC()
	v := newValidator()
	tok := mint(t, baseClaims(t0, "skewed_nonce"))

	// 30s past exp is inside the 60s leeway.
	_, err := v.Validate(tok, t0.Add(10*time.Minute+30*time.Second))
	require.NoError(t, err)
}

func TestValidateRejectsWrongAudience(t *testing.T) {
	t0 := time.Now().UTC()
	v := newValidator()

	c := baseClaims(t0, "wrong_aud_nonce")
	c.Audience = jwt.ClaimStrings{"wrong-api"}

	_, err := v.Validate(mint(t, c), t0)
	require.ErrorIs(t, err, jwtx.ErrInvalidAudience)
}

func TestValidateRejectsBadSignature(t *testing.T) {
	t0 := time.Now().UTC()
	v := newValidator()

	c := baseClaims(t0, "bad_sig_nonce")
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString([]byte("other_secret"))
	require.NoError(t, err)

	_, err = v.Validate(tok, t0)
	require.ErrorIs(t, err, jwtx.ErrInvalidSignature)

	_, err = v.Validate("not-even-a-jwt", t0)
	require.ErrorIs(t, err, jwtx.ErrInvalidSignature)
}

func TestValidateRejectsMissingTemporalClaims(t *testing.T) {
	t0 := time.Now().UTC()
	v := newValidator()

	c := baseClaims(t0, "no_iat_nonce")
	c.IssuedAt = nil

	_, err := v.Validate(mint(t, c), t0)
	require.ErrorIs(t, err, jwtx.ErrMissingTemporalClaim)
}

func TestValidateRejectsExcessiveLifetime(t *testing.T) {
	// 2000s lifetime against a 900s max; the token itself is unexpired.
	t0 := time.Now().UTC()
	v := newValidator()

	c := baseClaims(t0, "long_lifetime_nonce")
	c.ExpiresAt = jwt.NewNumericDate(t0.Add(2000 * time.Second))

	_, err := v.Validate(mint(t, c), t0.Add(5*time.Second))
	require.ErrorIs(t, err, jwtx.ErrTokenLifetimeExceeded)
	require.Contains(t, err.Error(), "2000")
	require.Contains(t, err.Error(), "900")
}

func TestValidateRejectsMissingNonce(t *testing.T) {
	t0 := time.Now().UTC()
	v := newValidator()

	c := baseClaims(t0, "")
	_, err := v.Validate(mint(t, c), t0)
	require.ErrorIs(t, err, jwtx.ErrMissingNonce)
}

func TestValidateAcceptsNonceClaimFallback(t *testing.T) {
	t0 := time.Now().UTC()
	v := newValidator()

	c := baseClaims(t0, "")
	c.Nonce = "custom_nonce_claim"

	_, err := v.Validate(mint(t, c), t0)
	require.NoError(t, err)

	// The fallback nonce is consumed just like a jti.
	_, err = v.Validate(mint(t, c), t0)
	require.ErrorIs(t, err, jwtx.ErrReplayDetected)
}

func TestValidateRejectionDoesNotBurnNonce(t *testing.T) {
	// A token rejected for audience keeps its nonce unconsumed; a later
	// well-formed token with the same nonce still validates.
	t0 := time.Now().UTC()
	v := newValidator()

	bad := baseClaims(t0, "shared_nonce")
	bad.Audience = jwt.ClaimStrings{"wrong-api"}
	_, err := v.Validate(mint(t, bad), t0)
	require.ErrorIs(t, err, jwtx.ErrInvalidAudience)

	good := baseClaims(t0, "shared_nonce")
	_, err = v.Validate(mint(t, good), t0)
	require.NoError(t, err)
}

func TestValidateRS256(t *testing.T) {
	t0 := time.Now().UTC()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	v := jwtx.NewValidatorRS256(&key.PublicKey, jwtx.Options{Audience: testAudience})

	c := baseClaims(t0, "rs256_nonce")
	tok, err := jwt.NewWithClaims(jwt.SigningMethodRS256, c).SignedString(key)
	require.NoError(t, err)

	claims, err := v.Validate(tok, t0)
	require.NoError(t, err)
	require.Equal(t, "test_user", claims.Subject)

	// HS256 token against an RS256 validator must fail closed.
	_, err = v.Validate(mint(t, baseClaims(t0, "alg_swap_nonce")), t0)
	require.ErrorIs(t, err, jwtx.ErrInvalidSignature)
}
