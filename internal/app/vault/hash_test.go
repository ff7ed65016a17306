package vault

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Known verifier for "pwd-pwd" under salt 00..0f.
const (
	fixtureSalt = "000102030405060708090a0b0c0d0e0f"
	fixtureHash = "61f4f07fc74a964084419c1b75073e1011cea6be77210857db8fadf19fb9ef1d"
	emptyHash   = "d31bf6e15b170b6246f99f2a17f3cb365e25acee028c25b9a242ac86dd422e86"
)

func mustHex(t *testing.T, s string) []byte {
	t.Helper()
	b, err := hex.DecodeString(s)
	require.NoError(t, err)
	return b
}

func TestHashPassword_KnownFixture(t *testing.T) {
	salt := mustHex(t, fixtureSalt)

	got, err := HashPassword("pwd-pwd", salt)
	require.NoError(t, err)
	assert.Equal(t, fixtureHash, hex.EncodeToString(got))
	assert.Len(t, got, HashWidth)
}

func TestHashPassword_EmptyPassword(t *testing.T) {
	got, err := HashPassword("", mustHex(t, fixtureSalt))
	require.NoError(t, err)
	assert.Equal(t, emptyHash, hex.EncodeToString(got))
}

func TestVerify(t *testing.T) {
	salt := mustHex(t, fixtureSalt)
	stored := mustHex(t, fixtureHash)

	ok, err := Verify("pwd-pwd", stored, salt)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = Verify("wrong-pwd", stored, salt)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestNewSalt(t *testing.T) {
	a, err := NewSalt()
	require.NoError(t, err)
	b, err := NewSalt()
	require.NoError(t, err)

	assert.Len(t, a, SaltWidth)
	assert.NotEqual(t, a, b)
}
