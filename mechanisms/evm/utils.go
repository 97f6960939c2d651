package evm

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"
)

// GetEvmChainId returns the chain ID for a given network.
// Accepts CAIP-2 identifiers (eip155:<chainId>) and the aliases in networkAliases.
func GetEvmChainId(network string) (*big.Int, error) {
	networkStr := strings.ToLower(strings.TrimSpace(network))
	if alias, ok := networkAliases[networkStr]; ok {
		networkStr = alias
	}

	if chainID, ok := NetworkChainIDs[networkStr]; ok {
		return new(big.Int).Set(chainID), nil
	}

	// Try to parse from CAIP-2 format (eip155:chainId)
	if strings.HasPrefix(networkStr, "eip155:") {
		chainID, ok := new(big.Int).SetString(strings.TrimPrefix(networkStr, "eip155:"), 10)
		if ok && chainID.Sign() > 0 {
			return chainID, nil
		}
	}

	return nil, fmt.Errorf("unsupported network: %s", network)
}

// NewSalt generates a random non-zero 256-bit order salt
func NewSalt() (*big.Int, error) {
	buf := make([]byte, 32)
	for {
		if _, err := rand.Read(buf); err != nil {
			return nil, fmt.Errorf("failed to generate salt: %w", err)
		}
		salt := new(big.Int).SetBytes(buf)
		if salt.Sign() != 0 {
			return salt, nil
		}
	}
}

// IsValidAddress checks if a string is a valid Ethereum address
func IsValidAddress(address string) bool {
	// Remove 0x prefix if present
	addr := strings.TrimPrefix(address, "0x")

	// Check length (40 hex characters)
	if len(addr) != 40 {
		return false
	}

	// Check if all characters are valid hex
	_, err := hex.DecodeString(addr)
	return err == nil
}

// HexToBytes converts a hex string to bytes
func HexToBytes(hexStr string) ([]byte, error) {
	// Remove 0x prefix if present
	cleaned := strings.TrimPrefix(hexStr, "0x")
	return hex.DecodeString(cleaned)
}
