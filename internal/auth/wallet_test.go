package auth

import (
	"crypto/ecdsa"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newWallet(t *testing.T) (*ecdsa.PrivateKey, string) {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	return key, crypto.PubkeyToAddress(key.PublicKey).Hex()
}

// personalSign mimics what browser wallets return for personal_sign.
func personalSign(t *testing.T, key *ecdsa.PrivateKey, message string) string {
	t.Helper()
	sig, err := crypto.Sign(accounts.TextHash([]byte(message)), key)
	require.NoError(t, err)
	sig[crypto.RecoveryIDOffset] += 27
	return hexutil.Encode(sig)
}

func TestNormalizeAddress(t *testing.T) {
	got, err := NormalizeAddress(" 0x52908400098527886e0f7030069857d2e4169ee7 ")
	require.NoError(t, err)
	assert.Equal(t, "0x52908400098527886E0F7030069857D2E4169EE7", got)

	for _, bad := range []string{"", "0x123", "not-an-address", "0xZZ908400098527886e0f7030069857d2e4169ee7"} {
		_, err := NormalizeAddress(bad)
		assert.ErrorIs(t, err, ErrInvalidAddress, "input %q", bad)
	}
}

func TestVerifySignature(t *testing.T) {
	key, addr := newWallet(t)
	_, otherAddr := newWallet(t)
	msg := "Connect wallet to authgate at 1700000000000"
	sig := personalSign(t, key, msg)

	assert.True(t, VerifySignature(addr, msg, sig))
	assert.True(t, VerifySignature(strings.ToLower(addr), msg, sig), "comparison is case-insensitive")

	assert.False(t, VerifySignature(otherAddr, msg, sig), "wrong signer")
	assert.False(t, VerifySignature(addr, msg+" ", sig), "different message")
	assert.False(t, VerifySignature(addr, msg, "0xdeadbeef"), "short signature")
	assert.False(t, VerifySignature(addr, msg, "not hex"), "undecodable signature")
	assert.False(t, VerifySignature("0x123", msg, sig), "bad address")

	raw, err := hexutil.Decode(sig)
	require.NoError(t, err)
	raw[crypto.RecoveryIDOffset] -= 27
	assert.True(t, VerifySignature(addr, msg, hexutil.Encode(raw)), "raw recovery id accepted")
}

func TestChallenges_SignatureBinding(t *testing.T) {
	key, addr := newWallet(t)
	clock := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	ch := Challenges{AppName: "authgate", TTL: 5 * time.Minute, Now: func() time.Time { return clock }}

	m1 := ch.Connect(addr)
	clock = clock.Add(time.Second)
	m2 := ch.Connect(addr)
	require.NotEqual(t, m1.Message, m2.Message)

	sig := personalSign(t, key, m1.Message)
	assert.True(t, VerifySignature(addr, m1.Message, sig))
	assert.False(t, VerifySignature(addr, m2.Message, sig))
}

func TestChallenges_Check(t *testing.T) {
	_, addr := newWallet(t)
	_, other := newWallet(t)
	clock := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	ch := Challenges{AppName: "authgate", TTL: 5 * time.Minute, Skew: time.Minute, Now: func() time.Time { return clock }}

	c := ch.Connect(addr)
	assert.Equal(t, clock.UnixMilli(), c.Timestamp)
	assert.Contains(t, c.Message, AbbreviateAddress(addr))
	require.NoError(t, ch.CheckConnect(addr, c.Message))

	assert.ErrorIs(t, ch.CheckConnect(other, c.Message), ErrInvalidChallenge, "bound to address")
	assert.ErrorIs(t, ch.CheckLogin(addr, c.Message), ErrInvalidChallenge, "bound to purpose")
	assert.ErrorIs(t, ch.CheckConnect(addr, "please sign anything"), ErrInvalidChallenge)
	assert.ErrorIs(t, ch.CheckConnect(addr, c.Message+"0"), ErrInvalidChallenge)

	login := ch.Login(addr)
	require.NoError(t, ch.CheckLogin(addr, login.Message))

	clock = clock.Add(6 * time.Minute)
	assert.ErrorIs(t, ch.CheckConnect(addr, c.Message), ErrInvalidChallenge, "stale")

	clock = clock.Add(-10 * time.Minute)
	assert.ErrorIs(t, ch.CheckConnect(addr, c.Message), ErrInvalidChallenge, "future")
}

func TestAbbreviateAddress(t *testing.T) {
	assert.Equal(t, "0x52908400...E4169EE7", AbbreviateAddress("0x52908400098527886E0F7030069857D2E4169EE7"))
	assert.Equal(t, "short", AbbreviateAddress("short"))
}
