// Package auth implements the Credential Verifier: a local username/password
// store and a self-signed bearer token issuer, replacing the teacher's
// OIDC-provider integration since the scheduler has no external identity
// provider in scope.
package auth

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// ErrUnauthorized is returned by VerifyCredentials and Issuer.Verify when
// credentials or a bearer token fail validation. Callers never receive more detail than this:
// the HTTP surface maps it uniformly to 401.
var ErrUnauthorized = errors.New("unauthorized")

// Principal is the authenticated identity carried by a bearer token.
type Principal struct {
	Username string
}

// CredentialStore maps a username to its stored, salted password hash. It
// is opaque by design: the scheduler does not persist users, only look them
// up.
type CredentialStore interface {
	// PasswordHash returns the stored bcrypt hash for username, and whether
	// the username exists.
	PasswordHash(username string) (hash string, ok bool)
}

// StaticCredentialStore is an in-memory CredentialStore seeded at startup,
// suitable for the scheduler's opaque-credential-store requirement.
type StaticCredentialStore struct {
	hashes map[string]string
}

// NewStaticCredentialStore builds a StaticCredentialStore from plaintext
// username/password pairs, hashing each password with HashPassword. A
// password that fails to hash is dropped from the store rather than panicking
// the process: its username simply never authenticates.
func NewStaticCredentialStore(users map[string]string) *StaticCredentialStore {
	hashes := make(map[string]string, len(users))
	for username, password := range users {
		hash, err := HashPassword(password)
		if err != nil {
			continue
		}
		hashes[username] = hash
	}
	return &StaticCredentialStore{hashes: hashes}
}

// PasswordHash implements CredentialStore.
func (s *StaticCredentialStore) PasswordHash(username string) (string, bool) {
	hash, ok := s.hashes[username]
	return hash, ok
}

// HashPassword derives a bcrypt hash, which embeds a random per-password
// salt and the cost factor alongside the digest, so two users sharing a
// password never end up with the same stored hash.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// VerifyCredentials checks username/password against store. bcrypt's own
// comparison re-derives the hash from the stored salt and cost before
// comparing, so it does not leak timing information about a wrong password.
func VerifyCredentials(store CredentialStore, username, password string) (Principal, error) {
	want, ok := store.PasswordHash(username)
	if !ok {
		return Principal{}, ErrUnauthorized
	}
	if bcrypt.CompareHashAndPassword([]byte(want), []byte(password)) != nil {
		return Principal{}, ErrUnauthorized
	}
	return Principal{Username: username}, nil
}
