package evm

import (
	"bytes"
	"fmt"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// erc6492MagicBytes is the 32-byte magic value suffix for ERC-6492 signatures
var erc6492MagicBytes = common.FromHex(ERC6492MagicValue)

// erc6492Arguments is the (address factory, bytes factoryCalldata, bytes signature) tuple
var erc6492Arguments = func() abi.Arguments {
	addressTy, err := abi.NewType("address", "", nil)
	if err != nil {
		panic(err)
	}
	bytesTy, err := abi.NewType("bytes", "", nil)
	if err != nil {
		panic(err)
	}
	return abi.Arguments{
		{Type: addressTy}, // factory
		{Type: bytesTy},   // factoryCalldata
		{Type: bytesTy},   // innerSignature
	}
}()

// IsERC6492Signature checks if a signature has the ERC-6492 magic suffix
func IsERC6492Signature(sig []byte) bool {
	if len(sig) < 32 {
		return false
	}
	return bytes.Equal(sig[len(sig)-32:], erc6492MagicBytes)
}

// WrapERC6492Signature wraps a smart wallet signature with the deployment
// information of a not yet deployed wallet:
//
//	abi.encode((address factory, bytes factoryCalldata, bytes signature)) + magicBytes
func WrapERC6492Signature(factory common.Address, factoryCalldata []byte, innerSignature []byte) ([]byte, error) {
	packed, err := erc6492Arguments.Pack(factory, factoryCalldata, innerSignature)
	if err != nil {
		return nil, fmt.Errorf("failed to pack ERC-6492 signature: %w", err)
	}
	return append(packed, erc6492MagicBytes...), nil
}

// ParseERC6492Signature unwraps an ERC-6492 signature to extract its components
//
// If the signature is not ERC-6492 format, it returns the original signature
// as the InnerSignature with empty Factory and FactoryCalldata.
func ParseERC6492Signature(sig []byte) (*ERC6492SignatureData, error) {
	if !IsERC6492Signature(sig) {
		return &ERC6492SignatureData{
			InnerSignature: sig,
		}, nil
	}

	// Strip magic value
	unpacked, err := erc6492Arguments.Unpack(sig[:len(sig)-32])
	if err != nil {
		return nil, newTypedDataError(ReasonInvalidSignature, "", "", fmt.Errorf("malformed ERC-6492 signature: %w", err))
	}
	if len(unpacked) != 3 {
		return nil, newTypedDataError(ReasonInvalidSignature, "", "",
			fmt.Errorf("malformed ERC-6492 signature: expected 3 fields, got %d", len(unpacked)))
	}

	factory, ok := unpacked[0].(common.Address)
	if !ok {
		return nil, newTypedDataError(ReasonInvalidSignature, "", "", fmt.Errorf("malformed ERC-6492 signature: factory is not an address"))
	}
	factoryCalldata, ok := unpacked[1].([]byte)
	if !ok {
		return nil, newTypedDataError(ReasonInvalidSignature, "", "", fmt.Errorf("malformed ERC-6492 signature: factoryCalldata is not bytes"))
	}
	innerSignature, ok := unpacked[2].([]byte)
	if !ok {
		return nil, newTypedDataError(ReasonInvalidSignature, "", "", fmt.Errorf("malformed ERC-6492 signature: innerSignature is not bytes"))
	}

	return &ERC6492SignatureData{
		Factory:         factory,
		FactoryCalldata: factoryCalldata,
		InnerSignature:  innerSignature,
	}, nil
}
