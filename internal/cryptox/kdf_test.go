package cryptox

import (
	"encoding/hex"
	"errors"
	"testing"

	"github.com/dmitrijs2005/sekure/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedSalt = []byte("sekure-fixed-salt-0123456789abcd")

func lowerIterations(t *testing.T) {
	t.Helper()
	old := Iterations
	Iterations = 1000
	t.Cleanup(func() { Iterations = old })
}

func TestDeriveKey_DeterministicAtProductionCost(t *testing.T) {
	k1, err := DeriveKey([]byte("Tr0ub4dor&3"), fixedSalt)
	require.NoError(t, err)
	k2, err := DeriveKey([]byte("Tr0ub4dor&3"), fixedSalt)
	require.NoError(t, err)

	assert.Len(t, k1.Export(), KeySize)
	assert.True(t, k1.Equal(k2))
	assert.Equal(t, Personal(), k1.Domain())

	// snapshot against an independent PBKDF2-HMAC-SHA256 implementation
	assert.Equal(t, "ba462694d0e07434a0a09414e407625b0c0718c09982a246d04dfa28834be17a", hex.EncodeToString(k1.Export()))
}

func TestDeriveVerifier_SeparateFromKey(t *testing.T) {
	v, err := DeriveVerifier([]byte("Tr0ub4dor&3"), fixedSalt)
	require.NoError(t, err)

	assert.Equal(t, "79bdace28b393d0644fc99811b6eb8cead250ed235866caddf3a5a5cc16f7ab1", hex.EncodeToString(v))

	k, err := DeriveKey([]byte("Tr0ub4dor&3"), fixedSalt)
	require.NoError(t, err)
	assert.NotEqual(t, k.Export(), v)
}

func TestDeriveKey_DifferentSaltsDiffer(t *testing.T) {
	lowerIterations(t)

	k1, err := DeriveKey([]byte("secret"), []byte("salt-number-one-1234"))
	require.NoError(t, err)
	k2, err := DeriveKey([]byte("secret"), []byte("salt-number-two-1234"))
	require.NoError(t, err)

	assert.False(t, k1.Equal(k2))
}

func TestDeriveKey_OpaqueSecrets(t *testing.T) {
	lowerIterations(t)

	for _, secret := range [][]byte{nil, {}, {0x00, 0xff, 0xfe}, []byte("пароль")} {
		_, err := DeriveKey(secret, fixedSalt)
		assert.NoError(t, err)
	}
}

func TestDeriveKey_InvalidSalt(t *testing.T) {
	_, err := DeriveKey([]byte("secret"), []byte("short"))
	assert.True(t, errors.Is(err, common.ErrInvalidInput))

	_, err = DeriveVerifier([]byte("secret"), nil)
	assert.True(t, errors.Is(err, common.ErrInvalidInput))

	_, err = DeriveDomainKey(Group("g1"), []byte("short"))
	assert.True(t, errors.Is(err, common.ErrInvalidInput))
}

func TestDeriveDomainKey(t *testing.T) {
	lowerIterations(t)

	g, err := DeriveDomainKey(Group("team-42"), fixedSalt)
	require.NoError(t, err)
	assert.Equal(t, Group("team-42"), g.Domain())
	assert.Equal(t, "8517c9a7b37880a23c86e128756856b1c684738f3bb7097bf50176b0ef66b230", hex.EncodeToString(g.Export()))

	c, err := DeriveDomainKey(ChildAccount("team-42"), fixedSalt)
	require.NoError(t, err)
	assert.NotEqual(t, g.Export(), c.Export(), "kinds must not collide for equal ids")

	_, err = DeriveDomainKey(Personal(), fixedSalt)
	assert.True(t, errors.Is(err, common.ErrKeyUnavailable))

	_, err = DeriveDomainKey(ShareLink("abc"), fixedSalt)
	assert.True(t, errors.Is(err, common.ErrKeyUnavailable))

	_, err = DeriveDomainKey(Group(""), fixedSalt)
	assert.True(t, errors.Is(err, common.ErrInvalidInput))
}

func TestDerivedKey_ExportWipe(t *testing.T) {
	k, err := NewDerivedKey(Group("g"), make([]byte, KeySize))
	require.NoError(t, err)

	exported := k.Export()
	exported[0] = 1
	assert.Equal(t, byte(0), k.Export()[0], "Export must return a copy")

	raw := []byte("0123456789abcdef0123456789abcdef")
	k, err = NewDerivedKey(Group("g"), raw)
	require.NoError(t, err)
	k.Wipe()
	assert.Equal(t, make([]byte, KeySize), k.Export())
	assert.Equal(t, "0123456789abcdef0123456789abcdef", string(raw), "input must be copied")

	_, err = NewDerivedKey(Group("g"), []byte("too short"))
	assert.True(t, errors.Is(err, common.ErrInvalidInput))
}

func TestNewShareKey_Fresh(t *testing.T) {
	k1, err := NewShareKey(SystemRandom{})
	require.NoError(t, err)
	k2, err := NewShareKey(SystemRandom{})
	require.NoError(t, err)

	assert.Equal(t, KindShareLink, k1.Domain().Kind)
	assert.False(t, k1.Equal(k2))
	assert.Equal(t, ShareLink("x1"), k1.WithDomain(ShareLink("x1")).Domain())
}
