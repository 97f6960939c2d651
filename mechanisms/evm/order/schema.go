package order

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/exchangev2/ordersig/mechanisms/evm"
)

// Domain values of the exchange contract
const (
	DomainName    = "Exchange"
	DomainVersion = "2"
)

// Register adds the AssetType, Asset and Order schemas to reg
func Register(reg *evm.TypeRegistry) error {
	schemas := []struct {
		name   string
		fields []evm.TypedDataField
	}{
		{TypeAssetType, AssetTypeFields},
		{TypeAsset, AssetFields},
		{TypeOrder, OrderFields},
	}
	for _, s := range schemas {
		if err := reg.Register(s.name, s.fields); err != nil {
			return fmt.Errorf("failed to register order schemas: %w", err)
		}
	}
	return nil
}

// NewRegistry returns a sealed registry holding only the order schemas
func NewRegistry(opts ...evm.RegistryOption) (*evm.TypeRegistry, error) {
	reg := evm.NewTypeRegistry(opts...)
	if err := Register(reg); err != nil {
		return nil, err
	}
	if err := reg.Seal(); err != nil {
		return nil, err
	}
	return reg, nil
}

// Domain returns the signing domain of an exchange deployment
func Domain(chainID *big.Int, exchange common.Address) evm.TypedDataDomain {
	return evm.TypedDataDomain{
		Name:              DomainName,
		Version:           DomainVersion,
		ChainID:           chainID,
		VerifyingContract: exchange,
	}
}

// HashAssetType returns the struct hash of an AssetType
func HashAssetType(reg *evm.TypeRegistry, a AssetType) (common.Hash, error) {
	return reg.HashStruct(TypeAssetType, a.ToMap())
}

// HashAsset returns the struct hash of an Asset
func HashAsset(reg *evm.TypeRegistry, a Asset) (common.Hash, error) {
	return reg.HashStruct(TypeAsset, a.ToMap())
}

// HashOrder returns the struct hash of an Order
func HashOrder(reg *evm.TypeRegistry, o Order) (common.Hash, error) {
	return reg.HashStruct(TypeOrder, o.ToMap())
}

// Digest returns the digest the maker signs for o under domain
func Digest(reg *evm.TypeRegistry, domain evm.TypedDataDomain, o Order) (common.Hash, error) {
	return evm.HashTypedData(reg, domain, TypeOrder, o.ToMap())
}
