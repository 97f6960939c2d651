package order

import (
	"encoding/json"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/exchangev2/ordersig/mechanisms/evm"
)

var (
	maker = common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266")
	taker = common.HexToAddress("0x70997970C51812dc3A010C7d01b50e0d17dc79C8")
	weth  = common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2")
)

func testOrder() Order {
	return Order{
		Maker: maker,
		MakeAsset: Asset{
			AssetType: AssetType{AssetClass: AssetClassETH, Data: []byte{}},
			Value:     big.NewInt(1),
		},
		Taker: taker,
		TakeAsset: Asset{
			AssetType: AssetType{AssetClass: AssetClassERC20, Data: common.LeftPadBytes(weth.Bytes(), 32)},
			Value:     big.NewInt(2),
		},
		Salt:     big.NewInt(1),
		Start:    big.NewInt(0),
		End:      big.NewInt(0),
		DataType: AssetClassID("whatever"),
		Data:     []byte{0x00},
	}
}

func testRegistry(t *testing.T) *evm.TypeRegistry {
	t.Helper()
	reg, err := NewRegistry()
	require.NoError(t, err)
	return reg
}

func TestAssetClassIDs(t *testing.T) {
	tests := []struct {
		name string
		id   [4]byte
		want string
	}{
		{"ETH", AssetClassETH, "0xaaaebeba"},
		{"ERC20", AssetClassERC20, "0x8ae85d84"},
		{"ERC721", AssetClassERC721, "0x73ad2146"},
		{"ERC1155", AssetClassERC1155, "0x973bb640"},
		{"V1", DataTypeV1, "0x4c234266"},
		{"V2", DataTypeV2, "0x23d235ef"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, hexutil.Encode(tt.id[:]), tt.name)
		assert.Equal(t, crypto.Keccak256([]byte(tt.name))[:4], tt.id[:], tt.name)
	}
}

func TestRegister(t *testing.T) {
	reg := evm.NewTypeRegistry()
	require.NoError(t, Register(reg))

	enc, err := reg.EncodeType(TypeOrder)
	require.NoError(t, err)
	assert.Equal(t,
		"Order(address maker,Asset makeAsset,address taker,Asset takeAsset,uint256 salt,uint256 start,uint256 end,bytes4 dataType,bytes data)"+
			"Asset(AssetType assetType,uint256 value)AssetType(bytes4 assetClass,bytes data)",
		enc)

	// registering twice fails on the first duplicate
	assert.ErrorIs(t, Register(reg), evm.ErrDuplicateType)
}

func oracle(o Order, domain evm.TypedDataDomain) apitypes.TypedData {
	fields := func(fs []evm.TypedDataField) []apitypes.Type {
		out := make([]apitypes.Type, len(fs))
		for i, f := range fs {
			out[i] = apitypes.Type{Name: f.Name, Type: f.Type}
		}
		return out
	}
	return apitypes.TypedData{
		Types: apitypes.Types{
			evm.DomainTypeName: fields(evm.DomainFields),
			TypeAssetType:      fields(AssetTypeFields),
			TypeAsset:          fields(AssetFields),
			TypeOrder:          fields(OrderFields),
		},
		PrimaryType: TypeOrder,
		Domain: apitypes.TypedDataDomain{
			Name:              domain.Name,
			Version:           domain.Version,
			ChainId:           (*math.HexOrDecimal256)(domain.ChainID),
			VerifyingContract: domain.VerifyingContract.Hex(),
		},
		Message: o.JSONMap(),
	}
}

func TestHashes_MatchReference(t *testing.T) {
	reg := testRegistry(t)
	o := testOrder()
	domain := Domain(big.NewInt(1), common.HexToAddress("0x0000000000000000000000000000000000000001"))
	ref := oracle(o, domain)

	orderHash, err := HashOrder(reg, o)
	require.NoError(t, err)
	want, err := ref.HashStruct(TypeOrder, ref.Message)
	require.NoError(t, err)
	assert.Equal(t, common.BytesToHash(want), orderHash)

	assetHash, err := HashAsset(reg, o.TakeAsset)
	require.NoError(t, err)
	want, err = ref.HashStruct(TypeAsset, ref.Message["takeAsset"].(map[string]interface{}))
	require.NoError(t, err)
	assert.Equal(t, common.BytesToHash(want), assetHash)

	digest, err := Digest(reg, domain, o)
	require.NoError(t, err)
	wantDigest, _, err := apitypes.TypedDataAndHash(ref)
	require.NoError(t, err)
	assert.Equal(t, common.BytesToHash(wantDigest), digest)
}

func TestHashAssetType_Literal(t *testing.T) {
	reg := testRegistry(t)
	got, err := HashAssetType(reg, AssetType{AssetClass: [4]byte{0xaa, 0xaa, 0xaa, 0xaa}})
	require.NoError(t, err)

	typeHash := crypto.Keccak256([]byte("AssetType(bytes4 assetClass,bytes data)"))
	want := crypto.Keccak256Hash(typeHash, common.RightPadBytes([]byte{0xaa, 0xaa, 0xaa, 0xaa}, 32), crypto.Keccak256(nil))
	assert.Equal(t, want, got)
}

func TestHashOrder_NilIntegersAreZero(t *testing.T) {
	reg := testRegistry(t)
	o := testOrder()
	explicit, err := HashOrder(reg, o)
	require.NoError(t, err)

	o.Start = nil
	o.End = nil
	implicit, err := HashOrder(reg, o)
	require.NoError(t, err)
	assert.Equal(t, explicit, implicit)
}

func TestHashOrder_SaltBitFlips(t *testing.T) {
	reg := testRegistry(t)
	o := testOrder()
	o.Salt = new(big.Int).SetBytes(common.FromHex("0x9c1f0b3ad2e7a44d19c7e2d8a1b3f4e5d6c7b8a9f0e1d2c3b4a5968778695a4b"))
	base, err := HashOrder(reg, o)
	require.NoError(t, err)

	for bit := 0; bit < 256; bit++ {
		flipped := o
		flipped.Salt = new(big.Int).Set(o.Salt)
		flipped.Salt.SetBit(flipped.Salt, bit, flipped.Salt.Bit(bit)^1)
		h, err := HashOrder(reg, flipped)
		require.NoError(t, err)
		assert.NotEqual(t, base, h, "bit %d", bit)
	}
}

func TestOrderFromMap(t *testing.T) {
	o := testOrder()

	t.Run("round trips ToMap", func(t *testing.T) {
		parsed, err := OrderFromMap(o.ToMap())
		require.NoError(t, err)
		assert.Equal(t, o.JSONMap(), parsed.JSONMap())
	})

	t.Run("round trips JSONMap", func(t *testing.T) {
		parsed, err := OrderFromMap(o.JSONMap())
		require.NoError(t, err)
		assert.Equal(t, o.JSONMap(), parsed.JSONMap())
	})

	t.Run("missing field", func(t *testing.T) {
		msg := o.JSONMap()
		delete(msg, "end")
		_, err := OrderFromMap(msg)
		assert.ErrorIs(t, err, evm.ErrFieldMismatch)
	})

	t.Run("undeclared field", func(t *testing.T) {
		msg := o.JSONMap()
		msg["makeAsset"].(map[string]interface{})["fee"] = "1"
		_, err := OrderFromMap(msg)
		assert.ErrorIs(t, err, evm.ErrFieldMismatch)
	})

	t.Run("five byte asset class", func(t *testing.T) {
		msg := o.JSONMap()
		msg["takeAsset"].(map[string]interface{})["assetType"].(map[string]interface{})["assetClass"] = "0xaaaaaaaaaa"
		_, err := OrderFromMap(msg)
		assert.ErrorIs(t, err, evm.ErrWidthMismatch)
	})

	t.Run("negative value", func(t *testing.T) {
		msg := o.JSONMap()
		msg["salt"] = "-1"
		_, err := OrderFromMap(msg)
		assert.ErrorIs(t, err, evm.ErrWidthMismatch)
	})

	t.Run("not an object", func(t *testing.T) {
		_, err := OrderFromMap("order")
		assert.ErrorIs(t, err, evm.ErrInvalidValue)
	})
}

func TestOrder_JSON(t *testing.T) {
	o := testOrder()
	o.Salt, _ = new(big.Int).SetString("115792089237316195423570985008687907853269984665640564039457584007913129639935", 10)

	data, err := json.Marshal(o)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"dataType":"0x`)
	assert.Contains(t, string(data), `"salt":"115792089237316195423570985008687907853269984665640564039457584007913129639935"`)

	var decoded Order
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, o.JSONMap(), decoded.JSONMap())
	assert.Equal(t, 0, o.Salt.Cmp(decoded.Salt))

	// integers may also be plain JSON numbers
	var fromNumbers Order
	raw := `{"maker":"` + maker.Hex() + `","makeAsset":{"assetType":{"assetClass":"0xaaaebeba","data":"0x"},"value":1},` +
		`"taker":"` + taker.Hex() + `","takeAsset":{"assetType":{"assetClass":"0xaaaebeba","data":"0x"},"value":2},` +
		`"salt":12345678901234567890123,"start":0,"end":0,"dataType":"0x4c234266","data":"0x"}`
	require.NoError(t, json.Unmarshal([]byte(raw), &fromNumbers))
	assert.Equal(t, "12345678901234567890123", fromNumbers.Salt.String())
	assert.Equal(t, DataTypeV1, fromNumbers.DataType)

	signed := SignedOrder{Order: o, Signature: []byte{1, 2, 3}}
	data, err = json.Marshal(signed)
	require.NoError(t, err)
	var decodedSigned SignedOrder
	require.NoError(t, json.Unmarshal(data, &decodedSigned))
	assert.Equal(t, signed.Order.JSONMap(), decodedSigned.Order.JSONMap())
	assert.Equal(t, signed.Signature, decodedSigned.Signature)
}
