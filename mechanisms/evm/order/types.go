package order

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/big"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/exchangev2/ordersig/mechanisms/evm"
)

// AssetType identifies what is traded: the asset class and class specific
// data such as the token contract address
type AssetType struct {
	AssetClass [4]byte
	Data       []byte
}

// Asset is an amount of one asset type
type Asset struct {
	AssetType AssetType
	Value     *big.Int
}

// Order is a maker's signed offer to exchange MakeAsset for TakeAsset.
// A zero Taker accepts any counterparty. Start and End bound the validity
// window in unix seconds, 0 meaning unbounded. DataType and Data are opaque
// to hashing.
type Order struct {
	Maker     common.Address
	MakeAsset Asset
	Taker     common.Address
	TakeAsset Asset
	Salt      *big.Int
	Start     *big.Int
	End       *big.Int
	DataType  [4]byte
	Data      []byte
}

// SignedOrder is an order together with the maker's signature
type SignedOrder struct {
	Order     Order         `json:"order"`
	Signature hexutil.Bytes `json:"signature"`
}

func orZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v
}

func orEmpty(b []byte) []byte {
	if b == nil {
		return []byte{}
	}
	return b
}

// ToMap returns the AssetType as a typed-data message
func (a AssetType) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"assetClass": a.AssetClass,
		"data":       orEmpty(a.Data),
	}
}

// ToMap returns the Asset as a typed-data message
func (a Asset) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"assetType": a.AssetType,
		"value":     orZero(a.Value),
	}
}

// ToMap returns the Order as a typed-data message
func (o Order) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"maker":     o.Maker,
		"makeAsset": o.MakeAsset,
		"taker":     o.Taker,
		"takeAsset": o.TakeAsset,
		"salt":      orZero(o.Salt),
		"start":     orZero(o.Start),
		"end":       orZero(o.End),
		"dataType":  o.DataType,
		"data":      orEmpty(o.Data),
	}
}

// fieldReader pulls declared fields out of a decoded message and rejects
// missing and undeclared keys
type fieldReader struct {
	typeName string
	values   map[string]interface{}
}

func newFieldReader(typeName string, v interface{}, fields []evm.TypedDataField) (*fieldReader, error) {
	values, ok := toMessage(v).(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("%w: %s expects an object, got %T", evm.ErrInvalidValue, typeName, v)
	}
	declared := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		declared[f.Name] = struct{}{}
		if _, ok := values[f.Name]; !ok {
			return nil, fmt.Errorf("%w: %s.%s is missing", evm.ErrFieldMismatch, typeName, f.Name)
		}
	}
	var extra []string
	for key := range values {
		if _, ok := declared[key]; !ok {
			extra = append(extra, key)
		}
	}
	if len(extra) > 0 {
		sort.Strings(extra)
		return nil, fmt.Errorf("%w: %s.%s is not declared", evm.ErrFieldMismatch, typeName, extra[0])
	}
	return &fieldReader{typeName: typeName, values: values}, nil
}

func (r *fieldReader) address(name string) (common.Address, error) {
	addr, err := evm.ToAddress(r.values[name])
	if err != nil {
		return common.Address{}, fmt.Errorf("%s.%s: %w", r.typeName, name, err)
	}
	return addr, nil
}

func (r *fieldReader) bytes(name string) ([]byte, error) {
	b, err := evm.ToBytes(r.values[name])
	if err != nil {
		return nil, fmt.Errorf("%s.%s: %w", r.typeName, name, err)
	}
	return b, nil
}

func (r *fieldReader) bytes4(name string) ([4]byte, error) {
	var out [4]byte
	b, err := r.bytes(name)
	if err != nil {
		return out, err
	}
	if len(b) != len(out) {
		return out, fmt.Errorf("%w: %s.%s expects 4 bytes, got %d", evm.ErrWidthMismatch, r.typeName, name, len(b))
	}
	copy(out[:], b)
	return out, nil
}

func (r *fieldReader) uint256(name string) (*big.Int, error) {
	v, err := evm.ToBigInt(r.values[name])
	if err != nil {
		return nil, fmt.Errorf("%s.%s: %w", r.typeName, name, err)
	}
	if v.Sign() < 0 || v.BitLen() > 256 {
		return nil, fmt.Errorf("%w: %s.%s out of range for uint256", evm.ErrWidthMismatch, r.typeName, name)
	}
	return new(big.Int).Set(v), nil
}

// AssetTypeFromMap decodes an AssetType message
func AssetTypeFromMap(v interface{}) (AssetType, error) {
	r, err := newFieldReader(TypeAssetType, v, AssetTypeFields)
	if err != nil {
		return AssetType{}, err
	}
	class, err := r.bytes4("assetClass")
	if err != nil {
		return AssetType{}, err
	}
	data, err := r.bytes("data")
	if err != nil {
		return AssetType{}, err
	}
	return AssetType{AssetClass: class, Data: data}, nil
}

// AssetFromMap decodes an Asset message
func AssetFromMap(v interface{}) (Asset, error) {
	r, err := newFieldReader(TypeAsset, v, AssetFields)
	if err != nil {
		return Asset{}, err
	}
	assetType, err := AssetTypeFromMap(r.values["assetType"])
	if err != nil {
		return Asset{}, err
	}
	value, err := r.uint256("value")
	if err != nil {
		return Asset{}, err
	}
	return Asset{AssetType: assetType, Value: value}, nil
}

// OrderFromMap decodes an Order message as produced by JSON decoding or ToMap.
// Missing and undeclared fields are rejected.
func OrderFromMap(v interface{}) (*Order, error) {
	r, err := newFieldReader(TypeOrder, v, OrderFields)
	if err != nil {
		return nil, err
	}

	var o Order
	if o.Maker, err = r.address("maker"); err != nil {
		return nil, err
	}
	if o.MakeAsset, err = AssetFromMap(r.values["makeAsset"]); err != nil {
		return nil, err
	}
	if o.Taker, err = r.address("taker"); err != nil {
		return nil, err
	}
	if o.TakeAsset, err = AssetFromMap(r.values["takeAsset"]); err != nil {
		return nil, err
	}
	if o.Salt, err = r.uint256("salt"); err != nil {
		return nil, err
	}
	if o.Start, err = r.uint256("start"); err != nil {
		return nil, err
	}
	if o.End, err = r.uint256("end"); err != nil {
		return nil, err
	}
	if o.DataType, err = r.bytes4("dataType"); err != nil {
		return nil, err
	}
	if o.Data, err = r.bytes("data"); err != nil {
		return nil, err
	}
	return &o, nil
}

// toMessage unwraps values produced by ToMap
func toMessage(v interface{}) interface{} {
	if m, ok := v.(evm.Mappable); ok {
		return m.ToMap()
	}
	return v
}

// JSONMap returns the order with hex encoded bytes and decimal integers
func (o Order) JSONMap() map[string]interface{} {
	asset := func(a Asset) map[string]interface{} {
		return map[string]interface{}{
			"assetType": map[string]interface{}{
				"assetClass": hexutil.Encode(a.AssetType.AssetClass[:]),
				"data":       hexutil.Encode(orEmpty(a.AssetType.Data)),
			},
			"value": orZero(a.Value).String(),
		}
	}
	return map[string]interface{}{
		"maker":     o.Maker.Hex(),
		"makeAsset": asset(o.MakeAsset),
		"taker":     o.Taker.Hex(),
		"takeAsset": asset(o.TakeAsset),
		"salt":      orZero(o.Salt).String(),
		"start":     orZero(o.Start).String(),
		"end":       orZero(o.End).String(),
		"dataType":  hexutil.Encode(o.DataType[:]),
		"data":      hexutil.Encode(orEmpty(o.Data)),
	}
}

// MarshalJSON encodes the order as its JSONMap
func (o Order) MarshalJSON() ([]byte, error) {
	return json.Marshal(o.JSONMap())
}

// UnmarshalJSON decodes an order message. Integers may be JSON numbers,
// decimal strings or 0x-prefixed hex strings.
func (o *Order) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var msg map[string]interface{}
	if err := dec.Decode(&msg); err != nil {
		return err
	}
	parsed, err := OrderFromMap(msg)
	if err != nil {
		return err
	}
	*o = *parsed
	return nil
}
