package security

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSecretVerifier(t *testing.T) {
	hash, err := HashSecret("gateway-token-2026", 4)
	require.NoError(t, err)

	v := NewBcryptVerifier(hash)
	assert.NoError(t, v.Verify("gateway-token-2026"))
	assert.ErrorIs(t, v.Verify("wrong-token"), ErrSecretMismatch)
	assert.ErrorIs(t, v.Verify(""), ErrSecretMismatch)
}

func TestHashSecretClampsCost(t *testing.T) {
	// An out-of-range cost falls back to the bcrypt default rather than
	// failing provisioning.
	hash, err := HashSecret("gateway-token-2026", 99)
	require.NoError(t, err)
	assert.NoError(t, NewBcryptVerifier(hash).Verify("gateway-token-2026"))
}
