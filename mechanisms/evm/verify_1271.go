package evm

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// eip1271ABI is the minimal ABI for EIP-1271's isValidSignature function
const eip1271ABI = `[{
	"inputs": [
		{"type": "bytes32", "name": "hash"},
		{"type": "bytes", "name": "signature"}
	],
	"name": "isValidSignature",
	"outputs": [{"type": "bytes4", "name": "magicValue"}],
	"stateMutability": "view",
	"type": "function"
}]`

// eip1271MagicValue is the bytes4 magic value returned by isValidSignature on success
// This is bytes4(keccak256("isValidSignature(bytes32,bytes)"))
var eip1271MagicValue = [4]byte{0x16, 0x26, 0xba, 0x7e}

// VerifyEIP1271Signature verifies a signature from a smart contract wallet using EIP-1271
//
// Calls isValidSignature(bytes32,bytes) on the wallet through the ledger
// reader and checks for the magic value 0x1626ba7e. This is how the exchange
// contract accepts orders whose maker is a contract.
//
// Args:
//
//	ctx: Context for cancellation and timeout control
//	reader: The ledger client that performs contract calls
//	wallet: The smart contract wallet address
//	digest: The 32-byte digest that was signed
//	signature: The signature bytes (format is wallet-specific)
//
// Returns:
//
//	true if the contract returns the EIP-1271 magic value
//	error if the contract call fails or returns an invalid response
func VerifyEIP1271Signature(
	ctx context.Context,
	reader LedgerReader,
	wallet common.Address,
	digest common.Hash,
	signature []byte,
) (bool, error) {
	result, err := reader.ReadContract(
		ctx,
		wallet.Hex(),
		[]byte(eip1271ABI),
		"isValidSignature",
		[32]byte(digest),
		signature,
	)
	if err != nil {
		return false, fmt.Errorf("isValidSignature call failed: %w", err)
	}

	// ReadContract returns interface{}, so we need to handle the actual type
	var resultBytes []byte
	switch v := result.(type) {
	case []byte:
		resultBytes = v
	case [4]byte:
		resultBytes = v[:]
	default:
		return false, errors.New("invalid return type from isValidSignature: expected bytes4")
	}

	if len(resultBytes) < 4 {
		return false, errors.New("invalid return value from isValidSignature: too short")
	}

	var returnedMagic [4]byte
	copy(returnedMagic[:], resultBytes[:4])
	return returnedMagic == eip1271MagicValue, nil
}
