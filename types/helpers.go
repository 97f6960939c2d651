package types

import (
	"encoding/json"
	"math/big"

	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"

	"github.com/exchangev2/ordersig/mechanisms/evm"
)

// ToAPITypes converts the document to go-ethereum's representation, as used
// by clef and external wallets
func (td *TypedData) ToAPITypes() apitypes.TypedData {
	types := make(apitypes.Types, len(td.Types))
	for name, fields := range td.Types {
		converted := make([]apitypes.Type, len(fields))
		for i, f := range fields {
			converted[i] = apitypes.Type{Name: f.Name, Type: f.Type}
		}
		types[name] = converted
	}
	// documents may leave the fixed domain type implicit
	domainType := make([]apitypes.Type, len(evm.DomainFields))
	for i, f := range evm.DomainFields {
		domainType[i] = apitypes.Type{Name: f.Name, Type: f.Type}
	}
	types[evm.DomainTypeName] = domainType

	return apitypes.TypedData{
		Types:       types,
		PrimaryType: td.PrimaryType,
		Domain: apitypes.TypedDataDomain{
			Name:              td.Domain.Name,
			Version:           td.Domain.Version,
			ChainId:           (*math.HexOrDecimal256)(td.ChainID()),
			VerifyingContract: td.Domain.VerifyingContract.Hex(),
		},
		Message: plainMessage(td.Message),
	}
}

// plainMessage replaces json.Number and *big.Int values with decimal
// strings, which apitypes accepts for every integer width
func plainMessage(m map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = plainValue(v)
	}
	return out
}

func plainValue(v interface{}) interface{} {
	switch val := v.(type) {
	case json.Number:
		return val.String()
	case *big.Int:
		return val.String()
	case map[string]interface{}:
		return plainMessage(val)
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, e := range val {
			out[i] = plainValue(e)
		}
		return out
	}
	return v
}
