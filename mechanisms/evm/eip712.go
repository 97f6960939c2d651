package evm

import (
	"errors"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// domainRegistry holds only the fixed EIP712Domain type
var domainRegistry = func() *TypeRegistry {
	r := NewTypeRegistry()
	if err := r.Seal(); err != nil {
		panic(err)
	}
	return r
}()

// HashDomain computes the EIP-712 domain separator
//
// The separator is the struct hash of the domain values against the fixed
// EIP712Domain(string name,string version,uint256 chainId,address verifyingContract)
// type. It depends only on its four inputs, so callers targeting several
// chains or contracts compute one separator per deployment.
//
// Args:
//
//	domain: The EIP-712 domain values
//
// Returns:
//
//	32-byte domain separator
//	error if the chain id is missing
func HashDomain(domain TypedDataDomain) (common.Hash, error) {
	if domain.ChainID == nil {
		return common.Hash{}, newTypedDataError(ReasonFieldMismatch, DomainTypeName, "chainId", errors.New("missing value"))
	}
	return domainRegistry.HashStruct(DomainTypeName, domain.Map())
}

// TypedDataDigest assembles the final signing digest:
// keccak256("\x19\x01" || domainSeparator || structHash)
func TypedDataDigest(domainSeparator, structHash common.Hash) common.Hash {
	rawData := make([]byte, 0, 2+2*common.HashLength)
	rawData = append(rawData, DigestPrefixVersion, DigestPrefixStructured)
	rawData = append(rawData, domainSeparator[:]...)
	rawData = append(rawData, structHash[:]...)
	return crypto.Keccak256Hash(rawData)
}

// HashTypedData hashes EIP-712 typed data
//
// This function creates the EIP-712 hash that should be signed or verified.
// The hash is computed as: keccak256("\x19\x01" + domainSeparator + structHash)
//
// Args:
//
//	registry: The registry holding primaryType and its dependencies
//	domain: The EIP-712 domain separator parameters
//	primaryType: The name of the primary type being hashed
//	message: The message data to hash
//
// Returns:
//
//	32-byte hash suitable for signing or verification
//	error if hashing fails
func HashTypedData(
	registry *TypeRegistry,
	domain TypedDataDomain,
	primaryType string,
	message map[string]interface{},
) (common.Hash, error) {
	structHash, err := registry.HashStruct(primaryType, message)
	if err != nil {
		return common.Hash{}, err
	}

	domainSeparator, err := HashDomain(domain)
	if err != nil {
		return common.Hash{}, err
	}

	return TypedDataDigest(domainSeparator, structHash), nil
}
