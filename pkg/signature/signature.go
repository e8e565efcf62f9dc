// Package signature implements the canonical encoding of a bridge request and
// recovery of the oracle that signed it.
//
// The message the oracle signs is
//
//	keccak256(address(20) || uint256(32) || uint256(32) || bool(1))
//
// i.e. abi.encodePacked(userAddress, amount, nonce, direction), and the
// signature is an EIP-191 personal_sign over those 32 bytes, so that it can be
// produced with web3.eth.accounts.sign(formSigningData(...), key).
package signature

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"

	"github.com/chainsafe/gogo-bridge/pkg/bridge"
)

const (
	// EncodedLength is the size of the packed request encoding.
	EncodedLength = common.AddressLength + 32 + 32 + 1
	// Length is the size of an r||s||v signature.
	Length = crypto.SignatureLength
)

var (
	// ErrMalformedSignature is returned when no signer can be recovered.
	ErrMalformedSignature = errors.New("malformed signature")
	// ErrSignerMismatch is returned when the recovered signer is not trusted.
	ErrSignerMismatch = errors.New("recovered address is not a trusted signer")
)

// Encode returns abi.encodePacked(userAddress, amount, nonce, direction).
func Encode(userAddress common.Address, amount, nonce *uint256.Int, direction bridge.Direction) []byte {
	buf := make([]byte, 0, EncodedLength)
	buf = append(buf, userAddress.Bytes()...)
	a := valueOrZero(amount).Bytes32()
	buf = append(buf, a[:]...)
	n := valueOrZero(nonce).Bytes32()
	buf = append(buf, n[:]...)
	if direction {
		buf = append(buf, 1)
	} else {
		buf = append(buf, 0)
	}
	return buf
}

// SigningData returns the hash the oracle signs. It is what formSigningData exposes.
func SigningData(userAddress common.Address, amount, nonce *uint256.Int, direction bridge.Direction) common.Hash {
	return crypto.Keccak256Hash(Encode(userAddress, amount, nonce, direction))
}

// RequestSigningData is SigningData over the fields of req.
func RequestSigningData(req *bridge.Request) common.Hash {
	return SigningData(req.UserAddress, req.Amount, req.Nonce, req.Direction)
}

// Digest returns the EIP-191 personal message digest of the signing data,
// keccak256("\x19Ethereum Signed Message:\n32" || data).
func Digest(data common.Hash) common.Hash {
	return common.BytesToHash(accounts.TextHash(data.Bytes()))
}

// Recoverer recovers the address that produced sig over digest.
// Implementations must never return the zero address with a nil error.
type Recoverer interface {
	Recover(digest common.Hash, sig []byte) (common.Address, error)
}

// Secp256k1 recovers Ethereum-style recoverable secp256k1 signatures.
// It accepts v in {0, 1, 27, 28} and rejects high-s signatures.
type Secp256k1 struct{}

// Recover implements Recoverer.
func (Secp256k1) Recover(digest common.Hash, sig []byte) (common.Address, error) {
	if len(sig) != Length {
		return common.Address{}, fmt.Errorf("%w: expected %d bytes, got %d", ErrMalformedSignature, Length, len(sig))
	}

	normalized := make([]byte, Length)
	copy(normalized, sig)
	if normalized[64] >= 27 {
		normalized[64] -= 27
	}
	v := normalized[64]
	r := new(big.Int).SetBytes(normalized[:32])
	s := new(big.Int).SetBytes(normalized[32:64])
	if !crypto.ValidateSignatureValues(v, r, s, true) {
		return common.Address{}, fmt.Errorf("%w: invalid signature values", ErrMalformedSignature)
	}

	pub, err := crypto.SigToPub(digest.Bytes(), normalized)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: %v", ErrMalformedSignature, err)
	}

	addr := crypto.PubkeyToAddress(*pub)
	if addr == (common.Address{}) {
		return common.Address{}, ErrMalformedSignature
	}
	return addr, nil
}

// Verifier recovers the signer of a bridge request.
type Verifier struct {
	recoverer Recoverer
}

// NewVerifier creates a Verifier. A nil recoverer selects Secp256k1.
func NewVerifier(recoverer Recoverer) *Verifier {
	if recoverer == nil {
		recoverer = Secp256k1{}
	}
	return &Verifier{recoverer: recoverer}
}

// Signer returns the address that signed req.
func (v *Verifier) Signer(req *bridge.Request) (common.Address, error) {
	return v.recoverer.Recover(Digest(RequestSigningData(req)), req.Signature)
}

// Sign produces the oracle signature over the request fields, with v in {27, 28}.
func Sign(key *ecdsa.PrivateKey, userAddress common.Address, amount, nonce *uint256.Int, direction bridge.Direction) ([]byte, error) {
	digest := Digest(SigningData(userAddress, amount, nonce, direction))
	sig, err := crypto.Sign(digest.Bytes(), key)
	if err != nil {
		return nil, fmt.Errorf("sign request: %w", err)
	}
	sig[64] += 27
	return sig, nil
}

func valueOrZero(x *uint256.Int) *uint256.Int {
	if x == nil {
		return new(uint256.Int)
	}
	return x
}
