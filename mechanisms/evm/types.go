package evm

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// TypedDataField represents a field in EIP-712 typed data
type TypedDataField struct {
	Name string `json:"name" yaml:"name"`
	Type string `json:"type" yaml:"type"`
}

// TypedDataDomain represents the EIP-712 domain separator values.
// All four fields are always part of the domain.
type TypedDataDomain struct {
	Name              string         `json:"name"`
	Version           string         `json:"version"`
	ChainID           *big.Int       `json:"chainId"`
	VerifyingContract common.Address `json:"verifyingContract"`
}

// Map returns the domain as a message conforming to the EIP712Domain type
func (d TypedDataDomain) Map() map[string]interface{} {
	chainID := d.ChainID
	if chainID == nil {
		chainID = new(big.Int)
	}
	return map[string]interface{}{
		"name":              d.Name,
		"version":           d.Version,
		"chainId":           chainID,
		"verifyingContract": d.VerifyingContract,
	}
}

// Signature is an ECDSA signature over a 32-byte digest.
// V may carry either the raw recovery id (0/1) or the Ethereum form (27/28).
type Signature struct {
	R [32]byte
	S [32]byte
	V byte
}

// LedgerReader defines the read-only ledger operations used for
// smart-contract signature verification
type LedgerReader interface {
	// ReadContract calls a view function on a smart contract
	ReadContract(ctx context.Context, address string, abi []byte, functionName string, args ...interface{}) (interface{}, error)

	// GetCode returns the bytecode at the given address
	// Returns empty slice if address is an EOA or doesn't exist
	GetCode(ctx context.Context, address string) ([]byte, error)
}

// DigestSigner defines the external key holder. Implementations sign a
// 32-byte digest with the private key of the given account and never expose
// the key itself.
type DigestSigner interface {
	// Sign signs digest with the key of account
	Sign(ctx context.Context, account common.Address, digest common.Hash) (Signature, error)
}

// ERC6492SignatureData represents the parsed components of an ERC-6492 signature
// ERC-6492 allows signatures from undeployed smart contract accounts by wrapping
// the signature with deployment information (factory address and calldata)
type ERC6492SignatureData struct {
	Factory         common.Address // CREATE2 factory address (zero address if not ERC-6492)
	FactoryCalldata []byte         // Calldata to deploy the wallet (empty if not ERC-6492)
	InnerSignature  []byte         // The actual signature (EIP-1271 or EOA)
}
