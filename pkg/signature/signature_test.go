package signature

import (
	"bytes"
	"encoding/hex"
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chainsafe/gogo-bridge/pkg/bridge"
)

func TestEncode_PackedLayout(t *testing.T) {
	user := common.HexToAddress("0x00000000000000000000000000000000000000aa")
	got := Encode(user, uint256.NewInt(1000), uint256.NewInt(10), bridge.ToPrivate)

	require.Len(t, got, EncodedLength)
	assert.Equal(t, user.Bytes(), got[:20])

	amount := make([]byte, 32)
	amount[30], amount[31] = 0x03, 0xe8
	assert.Equal(t, amount, got[20:52])

	nonce := make([]byte, 32)
	nonce[31] = 10
	assert.Equal(t, nonce, got[52:84])
	assert.Equal(t, byte(1), got[84])

	got = Encode(user, uint256.NewInt(1000), uint256.NewInt(10), bridge.ToPublic)
	assert.Equal(t, byte(0), got[84])
}

func TestSigningData_IsKeccakOfEncoding(t *testing.T) {
	user := common.HexToAddress("0x1111111111111111111111111111111111111111")
	amount, nonce := uint256.NewInt(5), uint256.NewInt(7)

	want := crypto.Keccak256Hash(Encode(user, amount, nonce, bridge.ToPublic))
	assert.Equal(t, want, SigningData(user, amount, nonce, bridge.ToPublic))
	assert.NotEqual(t, want, SigningData(user, amount, nonce, bridge.ToPrivate))
}

func TestDigest_PersonalMessagePrefix(t *testing.T) {
	data := common.HexToHash("0x01")
	prefixed := append([]byte("\x19Ethereum Signed Message:\n32"), data.Bytes()...)
	assert.Equal(t, crypto.Keccak256Hash(prefixed), Digest(data))
}

func TestSignAndRecover_RoundTrip(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	oracle := crypto.PubkeyToAddress(key.PublicKey)

	req := &bridge.Request{
		UserAddress: common.HexToAddress("0x2222222222222222222222222222222222222222"),
		Amount:      uint256.NewInt(1000),
		Nonce:       uint256.NewInt(10),
		Direction:   bridge.ToPublic,
	}
	req.Signature, err = Sign(key, req.UserAddress, req.Amount, req.Nonce, req.Direction)
	require.NoError(t, err)
	require.Len(t, req.Signature, Length)
	assert.Contains(t, []byte{27, 28}, req.Signature[64])

	signer, err := NewVerifier(nil).Signer(req)
	require.NoError(t, err)
	assert.Equal(t, oracle, signer)
}

func TestRecover_AcceptsRawRecoveryID(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	digest := Digest(common.HexToHash("0xbeef"))
	sig, err := crypto.Sign(digest.Bytes(), key)
	require.NoError(t, err)

	signer, err := Secp256k1{}.Recover(digest, sig)
	require.NoError(t, err)
	assert.Equal(t, crypto.PubkeyToAddress(key.PublicKey), signer)
}

func TestRecover_TamperedFieldYieldsDifferentSigner(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	oracle := crypto.PubkeyToAddress(key.PublicKey)

	user := common.HexToAddress("0x3333333333333333333333333333333333333333")
	sig, err := Sign(key, user, uint256.NewInt(1000), uint256.NewInt(10), bridge.ToPublic)
	require.NoError(t, err)

	tampered := &bridge.Request{
		UserAddress: user,
		Amount:      uint256.NewInt(1001),
		Nonce:       uint256.NewInt(10),
		Direction:   bridge.ToPublic,
		Signature:   sig,
	}
	signer, err := NewVerifier(nil).Signer(tampered)
	if err == nil {
		assert.NotEqual(t, oracle, signer)
	}
}

func TestRecover_Malformed(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	digest := Digest(common.HexToHash("0x01"))
	good, err := crypto.Sign(digest.Bytes(), key)
	require.NoError(t, err)

	badV := bytes.Clone(good)
	badV[64] = 5

	// s replaced with secp256k1n - 1, which is above n/2
	highS := bytes.Clone(good)
	n, _ := hex.DecodeString("fffffffffffffffffffffffffffffffebaaedce6af48a03bbfd25e8cd0364140")
	copy(highS[32:64], n)

	zeroR := bytes.Clone(good)
	copy(zeroR[:32], make([]byte, 32))

	tests := []struct {
		name string
		sig  []byte
	}{
		{"empty", nil},
		{"short", good[:64]},
		{"long", append(bytes.Clone(good), 0)},
		{"bad v", badV},
		{"high s", highS},
		{"zero r", zeroR},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			addr, err := Secp256k1{}.Recover(digest, tt.sig)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrMalformedSignature))
			assert.Equal(t, common.Address{}, addr)
		})
	}
}
