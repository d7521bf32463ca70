package identity

import (
	"crypto/ed25519"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	apperrors "github.com/lostclubtoys/vault/internal/platform/errors"
)

// DelegationClaims captures the validated delegation claims.
type DelegationClaims struct {
	PrincipalID string
	Issuer      string
	ExpiresAt   time.Time
	IssuedAt    time.Time
}

// delegationClaims is the internal claims type used for JWT parsing.
type delegationClaims struct {
	jwt.RegisteredClaims
}

// VerifierConfig defines how delegation tokens are verified.
type VerifierConfig struct {
	Issuer string
	Key    ed25519.PublicKey
	Now    func() time.Time
}

// ParseVerifierKey decodes a base64-encoded ed25519 public key.
func ParseVerifierKey(value string) (ed25519.PublicKey, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, errors.New("empty verifier key")
	}
	decoded, err := base64.RawStdEncoding.DecodeString(value)
	if err != nil {
		decoded, err = base64.StdEncoding.DecodeString(value)
	}
	if err != nil {
		return nil, fmt.Errorf("decode verifier key: %w", err)
	}
	if len(decoded) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("verifier key must be %d bytes", ed25519.PublicKeySize)
	}
	return ed25519.PublicKey(decoded), nil
}

// VerifyDelegation verifies a delegation token's signature and claims.
// An expired delegation fails with SESSION_EXPIRED so callers can
// distinguish it from a forged or malformed one.
func VerifyDelegation(token string, cfg VerifierConfig) (DelegationClaims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return DelegationClaims{}, apperrors.New(apperrors.CodeNotAuthenticated, "delegation is required")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Issuer == "" || len(cfg.Key) != ed25519.PublicKeySize {
		return DelegationClaims{}, errors.New("delegation verifier is not configured")
	}

	var parsed delegationClaims
	_, err := jwt.ParseWithClaims(token, &parsed, func(token *jwt.Token) (any, error) {
		return cfg.Key, nil
	},
		jwt.WithValidMethods([]string{"EdDSA"}),
		jwt.WithoutClaimsValidation(),
	)
	if err != nil {
		return DelegationClaims{}, mapJWTError(err)
	}

	if parsed.Issuer == "" || parsed.Issuer != cfg.Issuer {
		return DelegationClaims{}, apperrors.WithMetadata(
			apperrors.CodeNotAuthenticated,
			"delegation issuer mismatch",
			map[string]string{"Field": "issuer"},
		)
	}
	if strings.TrimSpace(parsed.Subject) == "" {
		return DelegationClaims{}, apperrors.New(apperrors.CodeNotAuthenticated, "delegation sub is required")
	}
	if parsed.ExpiresAt == nil {
		return DelegationClaims{}, apperrors.New(apperrors.CodeNotAuthenticated, "delegation exp is required")
	}

	now := cfg.Now().UTC()
	exp := parsed.ExpiresAt.Time.UTC()
	if !exp.After(now) {
		return DelegationClaims{}, apperrors.New(apperrors.CodeSessionExpired, "delegation is expired")
	}
	if parsed.NotBefore != nil && now.Before(parsed.NotBefore.Time.UTC()) {
		return DelegationClaims{}, apperrors.New(apperrors.CodeNotAuthenticated, "delegation not active yet")
	}

	claims := DelegationClaims{
		PrincipalID: parsed.Subject,
		Issuer:      parsed.Issuer,
		ExpiresAt:   exp,
	}
	if parsed.IssuedAt != nil {
		claims.IssuedAt = parsed.IssuedAt.Time.UTC()
	}
	return claims, nil
}

// mapJWTError translates jwt library errors to application errors.
func mapJWTError(err error) error {
	if errors.Is(err, jwt.ErrTokenSignatureInvalid) || errors.Is(err, jwt.ErrEd25519Verification) {
		return apperrors.New(apperrors.CodeNotAuthenticated, "delegation signature is invalid")
	}
	if errors.Is(err, jwt.ErrTokenUnverifiable) {
		return apperrors.New(apperrors.CodeNotAuthenticated, "delegation alg is invalid")
	}
	return apperrors.New(apperrors.CodeNotAuthenticated, "delegation is invalid")
}
