package security

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

var ErrSecretMismatch = errors.New("secret does not match")

// SecretVerifier checks a presented credential against a stored bcrypt
// hash. Only the hash is configured on this side; the plaintext lives with
// the counterparty.
type SecretVerifier interface {
	Verify(secret string) error
}

type bcryptVerifier struct {
	hash []byte
}

// NewBcryptVerifier wraps an already-hashed credential.
func NewBcryptVerifier(hash string) SecretVerifier {
	return &bcryptVerifier{hash: []byte(hash)}
}

func (v *bcryptVerifier) Verify(secret string) error {
	if err := bcrypt.CompareHashAndPassword(v.hash, []byte(secret)); err != nil {
		return ErrSecretMismatch
	}
	return nil
}

// HashSecret produces the hash to configure when provisioning a new
// credential.
func HashSecret(secret string, cost int) (string, error) {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(secret), cost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}
