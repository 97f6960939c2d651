package evm

import (
	"encoding/json"
	"errors"
	"fmt"
	gomath "math"
	"math/big"
	"reflect"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
)

// Mappable is implemented by typed values that can present themselves as an
// EIP-712 message
type Mappable interface {
	ToMap() map[string]interface{}
}

// EncodeData returns the encoding of value against the record type name:
// the type hash followed by one 32-byte word per declared field, in
// declaration order. String and bytes fields are replaced by their hash,
// record fields by their struct hash and arrays by the hash of their
// concatenated element encodings.
func (r *TypeRegistry) EncodeData(name string, value map[string]interface{}) ([]byte, error) {
	unlock := r.rlock()
	defer unlock()

	return r.encodeData(name, value)
}

// HashStruct returns keccak256(EncodeData(name, value))
func (r *TypeRegistry) HashStruct(name string, value map[string]interface{}) (common.Hash, error) {
	encoded, err := r.EncodeData(name, value)
	if err != nil {
		return common.Hash{}, err
	}
	return crypto.Keccak256Hash(encoded), nil
}

func (r *TypeRegistry) encodeData(name string, value map[string]interface{}) ([]byte, error) {
	fields, ok := r.schemas[name]
	if !ok {
		return nil, newTypedDataError(ReasonUnknownType, name, "", nil)
	}

	// The schema is closed: the value must carry exactly the declared fields
	if extra := undeclaredKeys(fields, value); len(extra) > 0 {
		return nil, newTypedDataError(ReasonFieldMismatch, name, extra[0], errors.New("field is not declared"))
	}

	typeHash, err := r.typeHash(name)
	if err != nil {
		return nil, err
	}

	buf := make([]byte, 0, WordSize*(len(fields)+1))
	buf = append(buf, typeHash[:]...)
	for _, field := range fields {
		v, ok := value[field.Name]
		if !ok {
			return nil, newTypedDataError(ReasonFieldMismatch, name, field.Name, errors.New("missing value"))
		}
		word, err := r.encodeValue(name, field.Name, field.Type, v)
		if err != nil {
			return nil, err
		}
		buf = append(buf, word...)
	}
	return buf, nil
}

func undeclaredKeys(fields []TypedDataField, value map[string]interface{}) []string {
	if len(value) == 0 {
		return nil
	}
	declared := make(map[string]struct{}, len(fields))
	for _, field := range fields {
		declared[field.Name] = struct{}{}
	}
	var extra []string
	for key := range value {
		if _, ok := declared[key]; !ok {
			extra = append(extra, key)
		}
	}
	sort.Strings(extra)
	return extra
}

// encodeValue returns the 32-byte word of a single field value
func (r *TypeRegistry) encodeValue(owner, field, typ string, v interface{}) ([]byte, error) {
	switch {
	case isArrayType(typ):
		elemType, length, err := splitArrayType(typ)
		if err != nil {
			return nil, newTypedDataError(ReasonInvalidSchema, owner, field, err)
		}
		items, err := toSlice(v)
		if err != nil {
			return nil, locate(err, owner, field)
		}
		if length >= 0 && len(items) != length {
			return nil, newTypedDataError(ReasonWidthMismatch, owner, field,
				fmt.Errorf("%s expects %d elements, got %d", typ, length, len(items)))
		}
		buf := make([]byte, 0, WordSize*len(items))
		for i, item := range items {
			word, err := r.encodeValue(owner, fmt.Sprintf("%s[%d]", field, i), elemType, item)
			if err != nil {
				return nil, err
			}
			buf = append(buf, word...)
		}
		return crypto.Keccak256(buf), nil

	case typ == "string":
		s, ok := v.(string)
		if !ok {
			return nil, newTypedDataError(ReasonInvalidValue, owner, field, fmt.Errorf("expected string, got %T", v))
		}
		return crypto.Keccak256([]byte(s)), nil

	case typ == "bytes":
		b, err := ToBytes(v)
		if err != nil {
			return nil, locate(err, owner, field)
		}
		return crypto.Keccak256(b), nil

	case IsPrimitiveType(typ):
		word, err := encodeAtomic(typ, v)
		if err != nil {
			return nil, locate(err, owner, field)
		}
		return word, nil
	}

	if _, ok := r.schemas[typ]; !ok {
		return nil, newTypedDataError(ReasonUnresolvedDependency, owner, field, fmt.Errorf("type %s is not registered", typ))
	}
	nested, err := toMessage(v)
	if err != nil {
		return nil, locate(err, owner, field)
	}
	encoded, err := r.encodeData(typ, nested)
	if err != nil {
		return nil, err
	}
	return crypto.Keccak256(encoded), nil
}

// encodeAtomic encodes address, bool, bytesN, uintN and intN values
func encodeAtomic(typ string, v interface{}) ([]byte, error) {
	switch typ {
	case "address":
		addr, err := ToAddress(v)
		if err != nil {
			return nil, err
		}
		return common.LeftPadBytes(addr.Bytes(), WordSize), nil

	case "bool":
		b, err := toBool(v)
		if err != nil {
			return nil, err
		}
		word := make([]byte, WordSize)
		if b {
			word[WordSize-1] = 1
		}
		return word, nil
	}

	if n, ok := sizeSuffix(typ, "bytes"); ok {
		b, err := ToBytes(v)
		if err != nil {
			return nil, err
		}
		if len(b) != n {
			return nil, &TypedDataError{Reason: ReasonWidthMismatch, Err: fmt.Errorf("%s expects %d bytes, got %d", typ, n, len(b))}
		}
		return common.RightPadBytes(b, WordSize), nil
	}

	if n, ok := sizeSuffix(typ, "uint"); ok {
		b, err := ToBigInt(v)
		if err != nil {
			return nil, err
		}
		if b.Sign() < 0 || b.BitLen() > n {
			return nil, &TypedDataError{Reason: ReasonWidthMismatch, Err: fmt.Errorf("%s out of range for %s", b, typ)}
		}
		u, _ := uint256.FromBig(b)
		word := u.Bytes32()
		return word[:], nil
	}

	if n, ok := sizeSuffix(typ, "int"); ok {
		b, err := ToBigInt(v)
		if err != nil {
			return nil, err
		}
		magnitude := b
		if b.Sign() < 0 {
			magnitude = new(big.Int).Add(b, big.NewInt(1))
		}
		if magnitude.BitLen() > n-1 {
			return nil, &TypedDataError{Reason: ReasonWidthMismatch, Err: fmt.Errorf("%s out of range for %s", b, typ)}
		}
		return math.U256Bytes(new(big.Int).Set(b)), nil
	}

	return nil, &TypedDataError{Reason: ReasonInvalidSchema, Err: fmt.Errorf("unsupported type %s", typ)}
}

// locate fills the type and field of a TypedDataError raised by a value
// conversion
func locate(err error, owner, field string) error {
	var tde *TypedDataError
	if errors.As(err, &tde) && tde.TypeName == "" {
		tde.TypeName = owner
		tde.Field = field
	}
	return err
}

func invalidValue(format string, args ...interface{}) error {
	return &TypedDataError{Reason: ReasonInvalidValue, Err: fmt.Errorf(format, args...)}
}

// ToAddress converts an address-typed value
func ToAddress(v interface{}) (common.Address, error) {
	switch val := v.(type) {
	case common.Address:
		return val, nil
	case *common.Address:
		if val == nil {
			return common.Address{}, invalidValue("nil address")
		}
		return *val, nil
	case [20]byte:
		return common.Address(val), nil
	case string:
		if !common.IsHexAddress(val) {
			return common.Address{}, invalidValue("invalid address %q", val)
		}
		return common.HexToAddress(val), nil
	case []byte:
		if len(val) != common.AddressLength {
			return common.Address{}, &TypedDataError{Reason: ReasonWidthMismatch, Err: fmt.Errorf("address expects 20 bytes, got %d", len(val))}
		}
		return common.BytesToAddress(val), nil
	case hexutil.Bytes:
		return ToAddress([]byte(val))
	}
	return common.Address{}, invalidValue("cannot use %T as address", v)
}

// ToBytes converts a bytes or bytesN typed value. Strings must be 0x-prefixed hex.
func ToBytes(v interface{}) ([]byte, error) {
	switch val := v.(type) {
	case []byte:
		return val, nil
	case hexutil.Bytes:
		return val, nil
	case common.Hash:
		return val.Bytes(), nil
	case string:
		if val == "" {
			return []byte{}, nil
		}
		b, err := hexutil.Decode(val)
		if err != nil {
			return nil, invalidValue("invalid hex bytes %q: %v", val, err)
		}
		return b, nil
	case nil:
		return nil, invalidValue("nil bytes")
	}

	// fixed size byte arrays such as [4]byte
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Array && rv.Type().Elem().Kind() == reflect.Uint8 {
		b := make([]byte, rv.Len())
		reflect.Copy(reflect.ValueOf(b), rv)
		return b, nil
	}
	return nil, invalidValue("cannot use %T as bytes", v)
}

// ToBigInt converts an integer typed value. Strings may be decimal or
// 0x-prefixed hex.
func ToBigInt(v interface{}) (*big.Int, error) {
	switch val := v.(type) {
	case *big.Int:
		if val == nil {
			return nil, invalidValue("nil integer")
		}
		return val, nil
	case *uint256.Int:
		if val == nil {
			return nil, invalidValue("nil integer")
		}
		return val.ToBig(), nil
	case *math.HexOrDecimal256:
		if val == nil {
			return nil, invalidValue("nil integer")
		}
		return (*big.Int)(val), nil
	case json.Number:
		b, ok := new(big.Int).SetString(val.String(), 10)
		if !ok {
			return nil, invalidValue("invalid integer %q", val.String())
		}
		return b, nil
	case string:
		return parseIntegerString(val)
	case float64:
		if val != gomath.Trunc(val) || gomath.Abs(val) > 1<<53 {
			return nil, invalidValue("%v is not an exact integer", val)
		}
		return big.NewInt(int64(val)), nil
	case int:
		return big.NewInt(int64(val)), nil
	case int8:
		return big.NewInt(int64(val)), nil
	case int16:
		return big.NewInt(int64(val)), nil
	case int32:
		return big.NewInt(int64(val)), nil
	case int64:
		return big.NewInt(val), nil
	case uint:
		return new(big.Int).SetUint64(uint64(val)), nil
	case uint8:
		return new(big.Int).SetUint64(uint64(val)), nil
	case uint16:
		return new(big.Int).SetUint64(uint64(val)), nil
	case uint32:
		return new(big.Int).SetUint64(uint64(val)), nil
	case uint64:
		return new(big.Int).SetUint64(val), nil
	}
	return nil, invalidValue("cannot use %T as integer", v)
}

func parseIntegerString(s string) (*big.Int, error) {
	negative := strings.HasPrefix(s, "-")
	digits := strings.TrimPrefix(s, "-")
	base := 10
	if strings.HasPrefix(digits, "0x") || strings.HasPrefix(digits, "0X") {
		digits = digits[2:]
		base = 16
	}
	if digits == "" {
		return nil, invalidValue("invalid integer %q", s)
	}
	b, ok := new(big.Int).SetString(digits, base)
	if !ok {
		return nil, invalidValue("invalid integer %q", s)
	}
	if negative {
		b.Neg(b)
	}
	return b, nil
}

func toBool(v interface{}) (bool, error) {
	switch val := v.(type) {
	case bool:
		return val, nil
	case string:
		switch val {
		case "true":
			return true, nil
		case "false":
			return false, nil
		}
	}
	return false, invalidValue("cannot use %v (%T) as bool", v, v)
}

func toSlice(v interface{}) ([]interface{}, error) {
	if items, ok := v.([]interface{}); ok {
		return items, nil
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, invalidValue("cannot use %T as array", v)
	}
	items := make([]interface{}, rv.Len())
	for i := range items {
		items[i] = rv.Index(i).Interface()
	}
	return items, nil
}

func toMessage(v interface{}) (map[string]interface{}, error) {
	switch val := v.(type) {
	case map[string]interface{}:
		return val, nil
	case Mappable:
		return val.ToMap(), nil
	}
	return nil, invalidValue("cannot use %T as struct", v)
}
