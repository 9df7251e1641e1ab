package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// clockSkew is the tolerance applied to exp/nbf/iat validation, per the
// Credential Verifier's ±30s allowance.
const clockSkew = 30 * time.Second

// claims is the structural shape of the scheduler's bearer token.
type claims struct {
	jwt.RegisteredClaims
}

// Issuer signs and verifies bearer tokens binding a principal and an
// absolute expiry. Tokens are self-validating, so verification never
// touches the credential store or any session state.
type Issuer struct {
	secretKey         []byte
	algorithm         string
	expiration        time.Duration
	signingMethod     jwt.SigningMethod
}

// NewIssuer builds an Issuer. Only HS256 is supported; any other configured
// algorithm is rejected at construction so misconfiguration fails at
// startup, not on the first request.
func NewIssuer(secretKey, algorithm string, expirationMinutes int) (*Issuer, error) {
	if secretKey == "" {
		return nil, errors.New("auth: secret key must not be empty")
	}
	if algorithm != "HS256" {
		return nil, errors.New("auth: unsupported algorithm " + algorithm)
	}
	if expirationMinutes < 0 {
		return nil, errors.New("auth: expiration minutes must not be negative")
	}
	return &Issuer{
		secretKey:     []byte(secretKey),
		algorithm:     algorithm,
		expiration:    time.Duration(expirationMinutes) * time.Minute,
		signingMethod: jwt.SigningMethodHS256,
	}, nil
}

// Issue mints a signed bearer token for principal, expiring after the
// Issuer's configured expiration. With a zero expiration the token's expiry
// equals its issue time; Verify still accepts it for up to clockSkew after
// issuance.
func (i *Issuer) Issue(principal Principal) (string, error) {
	now := time.Now()
	c := claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   principal.Username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.expiration)),
		},
	}
	token := jwt.NewWithClaims(i.signingMethod, c)
	return token.SignedString(i.secretKey)
}

// Verify validates a bearer token's signature, expiry and structural
// integrity, returning the embedded Principal. Any failure collapses to
// ErrUnauthorized.
func (i *Issuer) Verify(tokenString string) (Principal, error) {
	var c claims
	_, err := jwt.ParseWithClaims(tokenString, &c, func(t *jwt.Token) (any, error) {
		return i.secretKey, nil
	}, jwt.WithValidMethods([]string{i.algorithm}), jwt.WithLeeway(clockSkew))
	if err != nil {
		return Principal{}, ErrUnauthorized
	}
	if c.Subject == "" {
		return Principal{}, ErrUnauthorized
	}
	return Principal{Username: c.Subject}, nil
}
