package security

import (
	"encoding/hex"
	"errors"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSigner(t *testing.T) *Signer {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	return NewSignerFromKey(key)
}

func TestNormalizeAddress(t *testing.T) {
	addr, err := NormalizeAddress("  0xAbCdEf0123456789aBcDeF0123456789AbCdEf01 ")
	require.NoError(t, err)
	assert.Equal(t, "0xabcdef0123456789abcdef0123456789abcdef01", addr)

	for _, bad := range []string{"", "0x123", "abcdef0123456789abcdef0123456789abcdef01", "0xZZcdef0123456789abcdef0123456789abcdef01"} {
		_, err := NormalizeAddress(bad)
		assert.True(t, errors.Is(err, ErrInvalidAddress), bad)
	}
}

func TestSignAndVerify(t *testing.T) {
	signer := newTestSigner(t)
	msg := LoginMessage(signer.Address(), "0xdeadbeef")

	sig, err := signer.SignMessage(msg)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(sig, "0x"))
	assert.Len(t, sig, 2+65*2)

	recovered, err := RecoverAddress(msg, sig)
	require.NoError(t, err)
	assert.Equal(t, signer.Address(), strings.ToLower(recovered.Hex()))

	assert.NoError(t, VerifyPersonalSignature(signer.Address(), msg, sig))
}

func TestVerifyRejectsOtherSigner(t *testing.T) {
	alice := newTestSigner(t)
	bob := newTestSigner(t)
	msg := MilestoneProofMessage("0x00000000000000000000000000000000000000aa", 0, "QmYwAPJzv5CZsnA625s3Xf2nemtYgPpHdWEz79ojWnPbdG")

	sig, err := bob.SignMessage(msg)
	require.NoError(t, err)

	err = VerifyPersonalSignature(alice.Address(), msg, sig)
	assert.True(t, errors.Is(err, ErrSignatureMismatch))
}

func TestVerifyRejectsTamperedMessage(t *testing.T) {
	signer := newTestSigner(t)
	sig, err := signer.SignMessage("amount: 100")
	require.NoError(t, err)

	err = VerifyPersonalSignature(signer.Address(), "amount: 1000", sig)
	assert.Error(t, err)
}

func TestRecoverAddressMalformed(t *testing.T) {
	_, err := RecoverAddress("hello", "0x1234")
	assert.True(t, errors.Is(err, ErrInvalidSignature))

	_, err = RecoverAddress("hello", "not-hex")
	assert.True(t, errors.Is(err, ErrInvalidSignature))
}

func TestNewSignerParsesHexKey(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	hexKey := "0x" + strings.TrimPrefix(crypto.PubkeyToAddress(key.PublicKey).Hex(), "0x")
	_, err = NewSigner(hexKey)
	assert.Error(t, err, "an address is not a private key")

	encoded := crypto.FromECDSA(key)
	signer, err := NewSigner("0x" + hex.EncodeToString(encoded))
	require.NoError(t, err)
	assert.Equal(t, strings.ToLower(crypto.PubkeyToAddress(key.PublicKey).Hex()), signer.Address())
}
