// Package types holds the typed-data documents exchanged with wallets and
// the HTTP API, in the eth_signTypedData_v4 layout.
package types

import (
	"errors"
	"fmt"
	"math/big"
	"sort"

	"github.com/ethereum/go-ethereum/common"

	"github.com/exchangev2/ordersig/mechanisms/evm"
)

// ErrInvalidDocument is returned when a typed-data document does not have
// the eth_signTypedData_v4 shape
var ErrInvalidDocument = errors.New("invalid typed data document")

// TypedData is a self-describing typed-data document: the record schemas,
// the primary type, the signing domain and the message
type TypedData struct {
	Types       map[string][]evm.TypedDataField `json:"types"`
	PrimaryType string                          `json:"primaryType"`
	Domain      evm.TypedDataDomain             `json:"domain"`
	Message     map[string]interface{}          `json:"message"`
}

// ParseTypedData decodes and validates a JSON typed-data document.
// Integers in the message are kept as json.Number so 256-bit values survive
// decoding. A supplied EIP712Domain type must list the four fixed domain
// fields in order.
func ParseTypedData(data []byte) (*TypedData, error) {
	if err := validateDocument(data); err != nil {
		return nil, err
	}

	raw, err := decodeRaw(data)
	if err != nil {
		return nil, err
	}

	domain, err := DomainFromMap(raw.Domain)
	if err != nil {
		return nil, err
	}

	if fields, ok := raw.Types[evm.DomainTypeName]; ok && !sameFields(fields, evm.DomainFields) {
		return nil, fmt.Errorf("%w: %s must be (string name,string version,uint256 chainId,address verifyingContract)",
			evm.ErrInvalidSchema, evm.DomainTypeName)
	}
	if raw.PrimaryType == evm.DomainTypeName {
		return nil, fmt.Errorf("%w: primary type cannot be %s", ErrInvalidDocument, evm.DomainTypeName)
	}
	if _, ok := raw.Types[raw.PrimaryType]; !ok {
		return nil, fmt.Errorf("%w: primary type %s is not declared", evm.ErrUnknownType, raw.PrimaryType)
	}

	return &TypedData{
		Types:       raw.Types,
		PrimaryType: raw.PrimaryType,
		Domain:      domain,
		Message:     raw.Message,
	}, nil
}

// NewTypedData exports a document for primaryType and its dependencies
// from reg, ready to hand to a wallet
func NewTypedData(
	reg *evm.TypeRegistry,
	domain evm.TypedDataDomain,
	primaryType string,
	message map[string]interface{},
) (*TypedData, error) {
	deps, err := reg.Dependencies(primaryType)
	if err != nil {
		return nil, err
	}

	types := make(map[string][]evm.TypedDataField, len(deps)+2)
	types[evm.DomainTypeName] = append([]evm.TypedDataField(nil), evm.DomainFields...)
	for _, name := range append([]string{primaryType}, deps...) {
		fields, err := reg.Resolve(name)
		if err != nil {
			return nil, err
		}
		types[name] = fields
	}

	return &TypedData{
		Types:       types,
		PrimaryType: primaryType,
		Domain:      domain,
		Message:     message,
	}, nil
}

// Registry builds a sealed registry from the document's types
func (td *TypedData) Registry(opts ...evm.RegistryOption) (*evm.TypeRegistry, error) {
	names := make([]string, 0, len(td.Types))
	for name := range td.Types {
		if name != evm.DomainTypeName {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	reg := evm.NewTypeRegistry(opts...)
	for _, name := range names {
		if err := reg.Register(name, td.Types[name]); err != nil {
			return nil, err
		}
	}
	if err := reg.Seal(); err != nil {
		return nil, err
	}
	return reg, nil
}

// DomainValue returns the domain as an EIP712Domain message
func (td *TypedData) DomainValue() map[string]interface{} {
	return td.Domain.Map()
}

// StructHash returns the struct hash of the message
func (td *TypedData) StructHash() (common.Hash, error) {
	reg, err := td.Registry()
	if err != nil {
		return common.Hash{}, err
	}
	return reg.HashStruct(td.PrimaryType, td.Message)
}

// Digest returns the digest a wallet signs for this document
func (td *TypedData) Digest() (common.Hash, error) {
	reg, err := td.Registry()
	if err != nil {
		return common.Hash{}, err
	}
	return evm.HashTypedData(reg, td.Domain, td.PrimaryType, td.Message)
}

// ChainID returns a copy of the domain chain id, zero when unset
func (td *TypedData) ChainID() *big.Int {
	if td.Domain.ChainID == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(td.Domain.ChainID)
}

func sameFields(a, b []evm.TypedDataField) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
