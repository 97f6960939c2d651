package evm

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	ordersigevm "github.com/exchangev2/ordersig/mechanisms/evm"
)

// ClientSigner holds ECDSA private keys and signs digests for their accounts.
// Connected to an RPC endpoint it also serves as the ledger client used for
// smart wallet signature checks.
type ClientSigner struct {
	*LedgerClient

	keys      map[common.Address]*ecdsa.PrivateKey
	addresses []common.Address
}

var (
	_ ordersigevm.DigestSigner = (*ClientSigner)(nil)
	_ ordersigevm.LedgerReader = (*ClientSigner)(nil)
)

// NewClientSignerFromPrivateKey creates a client signer from a hex-encoded private key.
//
// Args:
//
//	privateKeyHex: Hex-encoded private key (with or without "0x" prefix)
//
// Returns:
//
//	ClientSigner ready for use with the order client scheme
//	Error if private key is invalid
//
// Example:
//
//	signer, err := evm.NewClientSignerFromPrivateKey("0x1234...")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	orders := client.NewOrderScheme(signer, registry)
func NewClientSignerFromPrivateKey(privateKeyHex string) (*ClientSigner, error) {
	return NewClientSignerFromPrivateKeys(privateKeyHex)
}

// NewClientSignerFromPrivateKeys creates a client signer holding several
// keys. Addresses are reported in the order the keys are given.
func NewClientSignerFromPrivateKeys(privateKeysHex ...string) (*ClientSigner, error) {
	if len(privateKeysHex) == 0 {
		return nil, fmt.Errorf("at least one private key is required")
	}

	s := &ClientSigner{
		LedgerClient: NewLedgerClient(),
		keys:         make(map[common.Address]*ecdsa.PrivateKey, len(privateKeysHex)),
	}
	for i, keyHex := range privateKeysHex {
		// Strip 0x prefix if present
		keyHex = strings.TrimPrefix(strings.TrimSpace(keyHex), "0x")

		privateKey, err := crypto.HexToECDSA(keyHex)
		if err != nil {
			return nil, fmt.Errorf("invalid private key %d: %w", i, err)
		}

		// Derive Ethereum address from public key
		address := crypto.PubkeyToAddress(privateKey.PublicKey)
		if _, dup := s.keys[address]; dup {
			continue
		}
		s.keys[address] = privateKey
		s.addresses = append(s.addresses, address)
	}
	return s, nil
}

// Addresses returns the accounts of the signer
func (s *ClientSigner) Addresses() []common.Address {
	out := make([]common.Address, len(s.addresses))
	copy(out, s.addresses)
	return out
}

// Address returns the first account of the signer
func (s *ClientSigner) Address() common.Address {
	return s.addresses[0]
}

// Sign signs a 32-byte digest with the key of account.
//
// Args:
//
//	ctx: Context for cancellation
//	account: The account whose key signs
//	digest: The digest to sign, as produced by the typed-data engine
//
// Returns:
//
//	Signature with v = 27/28
//	Error if the account is unknown or signing fails
func (s *ClientSigner) Sign(ctx context.Context, account common.Address, digest common.Hash) (ordersigevm.Signature, error) {
	if err := ctx.Err(); err != nil {
		return ordersigevm.Signature{}, err
	}

	privateKey, ok := s.keys[account]
	if !ok {
		return ordersigevm.Signature{}, fmt.Errorf("no key for account %s", account.Hex())
	}

	// Sign the digest with ECDSA
	raw, err := crypto.Sign(digest[:], privateKey)
	if err != nil {
		return ordersigevm.Signature{}, fmt.Errorf("failed to sign: %w", err)
	}

	// Adjust v value for Ethereum (recovery ID 0/1 -> 27/28)
	raw[64] += 27

	return ordersigevm.SignatureFromBytes(raw)
}

// SignTypedData hashes message as primaryType against registry under domain
// and signs the digest with the key of account.
//
// Returns:
//
//	65-byte signature (r, s, v)
//	Error if hashing or signing fails
func (s *ClientSigner) SignTypedData(
	ctx context.Context,
	account common.Address,
	registry *ordersigevm.TypeRegistry,
	domain ordersigevm.TypedDataDomain,
	primaryType string,
	message map[string]interface{},
) ([]byte, error) {
	digest, err := ordersigevm.HashTypedData(registry, domain, primaryType, message)
	if err != nil {
		return nil, fmt.Errorf("failed to hash typed data: %w", err)
	}

	sig, err := s.Sign(ctx, account, digest)
	if err != nil {
		return nil, err
	}
	return sig.Bytes(), nil
}
