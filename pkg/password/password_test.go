package password

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestHasher_HashAndVerify(t *testing.T) {
	h := New(WithCost(bcrypt.MinCost))

	hash, err := h.Hash("Sup3rSecret")
	require.NoError(t, err)
	assert.NotEqual(t, "Sup3rSecret", hash)

	assert.NoError(t, h.Verify("Sup3rSecret", hash))
	assert.ErrorIs(t, h.Verify("WrongPass1", hash), ErrPasswordMismatch)
}

func TestHasher_PolicyEnforcedOnHash(t *testing.T) {
	h := New(WithCost(bcrypt.MinCost))

	tests := []struct {
		name     string
		password string
		wantErr  error
	}{
		{"too short", "Ab1", ErrPasswordTooShort},
		{"no uppercase", "lowercase1", ErrPasswordNoUppercase},
		{"no lowercase", "UPPERCASE1", ErrPasswordNoLowercase},
		{"no number", "NoNumbersHere", ErrPasswordNoNumber},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.Hash(tt.password)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestHasher_CustomPolicy(t *testing.T) {
	h := New(WithCost(bcrypt.MinCost), WithPolicy(Policy{MinLength: 4}))

	// Relaxed policy drops the character-class requirements.
	_, err := h.Hash("abcd")
	assert.NoError(t, err)

	_, err = h.Hash("abc")
	assert.ErrorIs(t, err, ErrPasswordTooShort)
}

func TestWithCost_IgnoresOutOfRange(t *testing.T) {
	h := New(WithCost(99))
	assert.Equal(t, DefaultCost, h.cost)
}
