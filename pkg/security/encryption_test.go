package security

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fieldKey = []byte("0123456789abcdef0123456789abcdef")

func TestFieldCipherRoundTrip(t *testing.T) {
	c, err := NewFieldCipher(fieldKey)
	require.NoError(t, err)

	sealed, err := c.Seal("temporary_password", []byte("Xk4-pQ9z"))
	require.NoError(t, err)
	assert.NotContains(t, string(sealed), "Xk4-pQ9z")

	again, err := c.Seal("temporary_password", []byte("Xk4-pQ9z"))
	require.NoError(t, err)
	assert.NotEqual(t, sealed, again, "every seal uses a fresh nonce")

	opened, err := c.Open("temporary_password", sealed)
	require.NoError(t, err)
	assert.Equal(t, "Xk4-pQ9z", string(opened))
}

func TestFieldCipherBindsFieldName(t *testing.T) {
	c, err := NewFieldCipher(fieldKey)
	require.NoError(t, err)

	sealed, err := c.Seal("temporary_password", []byte("Xk4-pQ9z"))
	require.NoError(t, err)

	_, err = c.Open("reason", sealed)
	assert.ErrorIs(t, err, ErrOpenFailed)
}

func TestFieldCipherRejectsDamagedInput(t *testing.T) {
	c, err := NewFieldCipher(fieldKey)
	require.NoError(t, err)

	sealed, err := c.Seal("temporary_password", []byte("Xk4-pQ9z"))
	require.NoError(t, err)
	sealed[len(sealed)-1] ^= 0xff

	_, err = c.Open("temporary_password", sealed)
	assert.ErrorIs(t, err, ErrOpenFailed)
	_, err = c.Open("temporary_password", []byte("short"))
	assert.ErrorIs(t, err, ErrOpenFailed)

	other, err := NewFieldCipher([]byte("fedcba9876543210fedcba9876543210"))
	require.NoError(t, err)
	fresh, err := c.Seal("temporary_password", []byte("Xk4-pQ9z"))
	require.NoError(t, err)
	_, err = other.Open("temporary_password", fresh)
	assert.ErrorIs(t, err, ErrOpenFailed)
}

func TestNewFieldCipherKeySize(t *testing.T) {
	for _, n := range []int{0, 8, 31, 33} {
		_, err := NewFieldCipher(make([]byte, n))
		assert.ErrorIs(t, err, ErrInvalidKeySize, n)
	}
	for _, n := range []int{16, 24, 32} {
		_, err := NewFieldCipher(make([]byte, n))
		assert.NoError(t, err, n)
	}
}
