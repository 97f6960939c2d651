package evm

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// SignatureFromBytes splits a 65-byte r || s || v signature
func SignatureFromBytes(sig []byte) (Signature, error) {
	if len(sig) != SignatureLength {
		return Signature{}, newTypedDataError(ReasonInvalidSignature, "", "",
			fmt.Errorf("invalid EOA signature length: expected 65 bytes, got %d", len(sig)))
	}
	var s Signature
	copy(s.R[:], sig[:32])
	copy(s.S[:], sig[32:64])
	s.V = sig[64]
	return s, nil
}

// Bytes returns the 65-byte r || s || v form, v unchanged
func (s Signature) Bytes() []byte {
	out := make([]byte, 0, SignatureLength)
	out = append(out, s.R[:]...)
	out = append(out, s.S[:]...)
	return append(out, s.V)
}

// String returns the 0x-prefixed hex encoding of Bytes
func (s Signature) String() string {
	return hexutil.Encode(s.Bytes())
}

// RecoveryID normalizes v to the raw recovery id.
// Ethereum uses v = 27 or 28, but recovery expects v = 0 or 1.
func (s Signature) RecoveryID() (byte, error) {
	switch s.V {
	case 0, 1:
		return s.V, nil
	case 27, 28:
		return s.V - 27, nil
	}
	return 0, newTypedDataError(ReasonInvalidSignature, "", "", fmt.Errorf("invalid recovery id %d", s.V))
}

// RecoverSigner recovers the account that produced sig over digest
//
// r and s must lie in [1, n-1] and s must be in the lower half of the curve
// order (EIP-2), matching what on-chain ECDSA recovery accepts.
//
// Args:
//
//	digest: The 32-byte digest that was signed
//	sig: The signature, with v as 0/1 or 27/28
//
// Returns:
//
//	The recovered account address
//	ErrInvalidSignature if the signature values are out of range or recovery fails
func RecoverSigner(digest common.Hash, sig Signature) (common.Address, error) {
	recID, err := sig.RecoveryID()
	if err != nil {
		return common.Address{}, err
	}

	r := new(big.Int).SetBytes(sig.R[:])
	s := new(big.Int).SetBytes(sig.S[:])
	if !crypto.ValidateSignatureValues(recID, r, s, true) {
		return common.Address{}, newTypedDataError(ReasonInvalidSignature, "", "", fmt.Errorf("signature values out of range"))
	}

	// Create a copy with the normalized recovery id
	raw := sig.Bytes()
	raw[64] = recID

	pubKey, err := crypto.SigToPub(digest[:], raw)
	if err != nil {
		return common.Address{}, newTypedDataError(ReasonInvalidSignature, "", "", err)
	}
	return crypto.PubkeyToAddress(*pubKey), nil
}

// VerifySignature reports whether sig over digest recovers to expected.
// A malformed signature is reported as false.
func VerifySignature(digest common.Hash, sig Signature, expected common.Address) bool {
	recovered, err := RecoverSigner(digest, sig)
	if err != nil {
		return false
	}
	return recovered == expected
}

// VerifyEOASignature verifies an ECDSA signature from an externally owned account (EOA)
//
// This function uses secp256k1 public key recovery to verify that the signature
// was created by the expected address. It handles the Ethereum-specific v value
// adjustment (27/28 → 0/1 for recovery).
//
// Args:
//
//	hash: The 32-byte message hash that was signed
//	signature: The 65-byte ECDSA signature (r: 32 bytes, s: 32 bytes, v: 1 byte)
//	expectedAddress: The Ethereum address that should have signed the message
//
// Returns:
//
//	true if the signature is valid and recovers to the expected address
//	error if the signature is malformed or recovery fails
func VerifyEOASignature(
	hash []byte,
	signature []byte,
	expectedAddress common.Address,
) (bool, error) {
	if len(hash) != common.HashLength {
		return false, fmt.Errorf("invalid hash length: expected 32 bytes, got %d", len(hash))
	}

	sig, err := SignatureFromBytes(signature)
	if err != nil {
		return false, err
	}

	// Derive the Ethereum address from the recovered public key
	recoveredAddress, err := RecoverSigner(common.BytesToHash(hash), sig)
	if err != nil {
		return false, err
	}

	// Compare the recovered address with the expected address
	return recoveredAddress == expectedAddress, nil
}
