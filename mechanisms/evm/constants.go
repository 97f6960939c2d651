package evm

import (
	"math/big"
)

const (
	// DomainTypeName is the fixed EIP-712 domain type
	DomainTypeName = "EIP712Domain"

	// Digest prefix bytes: "\x19\x01"
	DigestPrefixVersion    = 0x19
	DigestPrefixStructured = 0x01

	// Length of an Ethereum signature (r: 32 bytes, s: 32 bytes, v: 1 byte)
	SignatureLength = 65

	// Word size of the ABI encoding
	WordSize = 32

	// ERC-6492 magic value (last 32 bytes of wrapped signature)
	// This is bytes32(uint256(keccak256("erc6492.invalid.signature")) - 1)
	ERC6492MagicValue = "0x6492649264926492649264926492649264926492649264926492649264926492"

	// EIP-1271 magic value (returned by isValidSignature on success)
	EIP1271MagicValue = "0x1626ba7e"
)

// Error reasons
const (
	ReasonDuplicateType        = "duplicate_type"
	ReasonUnknownType          = "unknown_type"
	ReasonUnresolvedDependency = "unresolved_dependency"
	ReasonCyclicType           = "cyclic_type"
	ReasonInvalidSchema        = "invalid_schema"
	ReasonRegistrySealed       = "registry_sealed"
	ReasonFieldMismatch        = "field_mismatch"
	ReasonWidthMismatch        = "width_mismatch"
	ReasonInvalidValue         = "invalid_value"
	ReasonInvalidSignature     = "invalid_signature"
	ReasonUndeployedWallet     = "undeployed_smart_wallet"
)

var (
	// Network chain IDs
	ChainIDMainnet     = big.NewInt(1)
	ChainIDSepolia     = big.NewInt(11155111)
	ChainIDPolygon     = big.NewInt(137)
	ChainIDBase        = big.NewInt(8453)
	ChainIDBaseSepolia = big.NewInt(84532)
	ChainIDHardhat     = big.NewInt(31337)

	// NetworkChainIDs maps CAIP-2 network identifiers and their common aliases
	// to chain ids
	NetworkChainIDs = map[string]*big.Int{
		"eip155:1":        ChainIDMainnet,
		"eip155:11155111": ChainIDSepolia,
		"eip155:137":      ChainIDPolygon,
		"eip155:8453":     ChainIDBase,
		"eip155:84532":    ChainIDBaseSepolia,
		"eip155:31337":    ChainIDHardhat,
	}

	networkAliases = map[string]string{
		"mainnet":      "eip155:1",
		"ethereum":     "eip155:1",
		"sepolia":      "eip155:11155111",
		"polygon":      "eip155:137",
		"base":         "eip155:8453",
		"base-mainnet": "eip155:8453",
		"base-sepolia": "eip155:84532",
		"hardhat":      "eip155:31337",
		"localhost":    "eip155:31337",
	}

	// DomainFields is the fixed field list of the EIP712Domain type.
	// All four fields are always present in this system.
	DomainFields = []TypedDataField{
		{Name: "name", Type: "string"},
		{Name: "version", Type: "string"},
		{Name: "chainId", Type: "uint256"},
		{Name: "verifyingContract", Type: "address"},
	}
)
