package order

import (
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/exchangev2/ordersig/mechanisms/evm"
)

// Type names of the order schemas
const (
	TypeAssetType = "AssetType"
	TypeAsset     = "Asset"
	TypeOrder     = "Order"
)

var (
	// AssetTypeFields is AssetType(bytes4 assetClass,bytes data)
	AssetTypeFields = []evm.TypedDataField{
		{Name: "assetClass", Type: "bytes4"},
		{Name: "data", Type: "bytes"},
	}

	// AssetFields is Asset(AssetType assetType,uint256 value)
	AssetFields = []evm.TypedDataField{
		{Name: "assetType", Type: TypeAssetType},
		{Name: "value", Type: "uint256"},
	}

	// OrderFields lists the order fields in the order the exchange contract hashes them
	OrderFields = []evm.TypedDataField{
		{Name: "maker", Type: "address"},
		{Name: "makeAsset", Type: TypeAsset},
		{Name: "taker", Type: "address"},
		{Name: "takeAsset", Type: TypeAsset},
		{Name: "salt", Type: "uint256"},
		{Name: "start", Type: "uint256"},
		{Name: "end", Type: "uint256"},
		{Name: "dataType", Type: "bytes4"},
		{Name: "data", Type: "bytes"},
	}
)

// Asset classes and order data types known to the exchange contract
var (
	AssetClassETH     = AssetClassID("ETH")
	AssetClassERC20   = AssetClassID("ERC20")
	AssetClassERC721  = AssetClassID("ERC721")
	AssetClassERC1155 = AssetClassID("ERC1155")

	DataTypeV1 = AssetClassID("V1")
	DataTypeV2 = AssetClassID("V2")
)

// AssetClassID returns bytes4(keccak256(name)), the identifier the exchange
// contract uses for asset classes and order data types
func AssetClassID(name string) [4]byte {
	var id [4]byte
	copy(id[:], crypto.Keccak256([]byte(name)))
	return id
}
