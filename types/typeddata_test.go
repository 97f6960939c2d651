package types

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/exchangev2/ordersig/mechanisms/evm"
)

const mailDocument = `{
	"types": {
		"EIP712Domain": [
			{"name": "name", "type": "string"},
			{"name": "version", "type": "string"},
			{"name": "chainId", "type": "uint256"},
			{"name": "verifyingContract", "type": "address"}
		],
		"Person": [
			{"name": "name", "type": "string"},
			{"name": "wallet", "type": "address"}
		],
		"Mail": [
			{"name": "from", "type": "Person"},
			{"name": "to", "type": "Person"},
			{"name": "contents", "type": "string"}
		]
	},
	"primaryType": "Mail",
	"domain": {
		"name": "Ether Mail",
		"version": "1",
		"chainId": 1,
		"verifyingContract": "0xCcCCccccCCCCcCCCCCCcCcCccCcCCCcCcccccccC"
	},
	"message": {
		"from": {"name": "Cow", "wallet": "0xCD2a3d9F938E13CD947Ec05AbC7FE734Df8DD826"},
		"to": {"name": "Bob", "wallet": "0xbBbBBBBbbBBBbbbBbbBbbbbBBbBbbbbBbBbbBBbB"},
		"contents": "Hello, Bob!"
	}
}`

func TestParseTypedData_Mail(t *testing.T) {
	td, err := ParseTypedData([]byte(mailDocument))
	require.NoError(t, err)

	assert.Equal(t, "Mail", td.PrimaryType)
	assert.Equal(t, "Ether Mail", td.Domain.Name)
	assert.Equal(t, int64(1), td.ChainID().Int64())
	assert.Equal(t, common.HexToAddress("0xCcCCccccCCCCcCCCCCCcCcCccCcCCCcCcccccccC"), td.Domain.VerifyingContract)

	structHash, err := td.StructHash()
	require.NoError(t, err)
	assert.Equal(t, "0xc52c0ee5d84264471806290a3f2c4cecfc5490626bf912d01f240d7a274b371e", structHash.Hex())

	digest, err := td.Digest()
	require.NoError(t, err)
	assert.Equal(t, "0xbe609aee343fb3c4b28e1df9e632fca64fcfaede20f02e86244efddf30957bd2", digest.Hex())

	reg, err := td.Registry()
	require.NoError(t, err)
	assert.True(t, reg.Sealed())
	assert.ElementsMatch(t, []string{evm.DomainTypeName, "Mail", "Person"}, reg.Names())
}

func TestParseTypedData_LargeIntegers(t *testing.T) {
	doc := `{
		"types": {"Payment": [{"name": "amount", "type": "uint256"}, {"name": "delta", "type": "int256"}]},
		"primaryType": "Payment",
		"domain": {"name": "Exchange", "version": "2", "chainId": "0x7a69", "verifyingContract": "0x5FbDB2315678afecb367f032d93F642f64180aa3"},
		"message": {
			"amount": 115792089237316195423570985008687907853269984665640564039457584007913129639935,
			"delta": -1000000000000000000000000000000
		}
	}`
	td, err := ParseTypedData([]byte(doc))
	require.NoError(t, err)
	assert.Equal(t, int64(31337), td.ChainID().Int64())
	assert.Equal(t, json.Number("115792089237316195423570985008687907853269984665640564039457584007913129639935"), td.Message["amount"])

	digest, err := td.Digest()
	require.NoError(t, err)

	want, _, err := apitypes.TypedDataAndHash(td.ToAPITypes())
	require.NoError(t, err)
	assert.Equal(t, common.BytesToHash(want), digest)
}

func TestParseTypedData_Errors(t *testing.T) {
	mutate := func(f func(doc map[string]interface{})) string {
		var doc map[string]interface{}
		if err := json.Unmarshal([]byte(mailDocument), &doc); err != nil {
			panic(err)
		}
		f(doc)
		out, err := json.Marshal(doc)
		if err != nil {
			panic(err)
		}
		return string(out)
	}

	tests := []struct {
		name    string
		doc     string
		wantErr error
	}{
		{
			name:    "not json",
			doc:     "{",
			wantErr: ErrInvalidDocument,
		},
		{
			name:    "missing primary type",
			doc:     mutate(func(d map[string]interface{}) { delete(d, "primaryType") }),
			wantErr: ErrInvalidDocument,
		},
		{
			name: "verifying contract is not an address",
			doc: mutate(func(d map[string]interface{}) {
				d["domain"].(map[string]interface{})["verifyingContract"] = "0x1234"
			}),
			wantErr: ErrInvalidDocument,
		},
		{
			name: "field without type",
			doc: mutate(func(d map[string]interface{}) {
				d["types"].(map[string]interface{})["Person"] = []interface{}{map[string]interface{}{"name": "name"}}
			}),
			wantErr: ErrInvalidDocument,
		},
		{
			name:    "primary type not declared",
			doc:     mutate(func(d map[string]interface{}) { d["primaryType"] = "Parcel" }),
			wantErr: evm.ErrUnknownType,
		},
		{
			name:    "primary type is the domain",
			doc:     mutate(func(d map[string]interface{}) { d["primaryType"] = "EIP712Domain" }),
			wantErr: ErrInvalidDocument,
		},
		{
			name: "domain type without chain id",
			doc: mutate(func(d map[string]interface{}) {
				d["types"].(map[string]interface{})["EIP712Domain"] = []interface{}{
					map[string]interface{}{"name": "name", "type": "string"},
					map[string]interface{}{"name": "version", "type": "string"},
					map[string]interface{}{"name": "verifyingContract", "type": "address"},
				}
			}),
			wantErr: evm.ErrInvalidSchema,
		},
		{
			name:    "domain without name",
			doc:     mutate(func(d map[string]interface{}) { delete(d["domain"].(map[string]interface{}), "name") }),
			wantErr: ErrInvalidDocument,
		},
		{
			name:    "domain with salt",
			doc:     mutate(func(d map[string]interface{}) { d["domain"].(map[string]interface{})["salt"] = "0x01" }),
			wantErr: ErrInvalidDocument,
		},
		{
			name:    "numeric domain version",
			doc:     mutate(func(d map[string]interface{}) { d["domain"].(map[string]interface{})["version"] = 1 }),
			wantErr: ErrInvalidDocument,
		},
		{
			name: "negative chain id",
			doc: mutate(func(d map[string]interface{}) {
				d["domain"].(map[string]interface{})["chainId"] = "-1"
			}),
			wantErr: evm.ErrWidthMismatch,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseTypedData([]byte(tt.doc))
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestTypedData_DigestErrors(t *testing.T) {
	doc := strings.Replace(mailDocument, `"contents": "Hello, Bob!"`, `"contents": "Hello, Bob!", "cc": "Alice"`, 1)
	td, err := ParseTypedData([]byte(doc))
	require.NoError(t, err)

	_, err = td.Digest()
	assert.ErrorIs(t, err, evm.ErrFieldMismatch)

	cyclic := strings.Replace(mailDocument, `{"name": "wallet", "type": "address"}`, `{"name": "wallet", "type": "Mail"}`, 1)
	td, err = ParseTypedData([]byte(cyclic))
	require.NoError(t, err)
	_, err = td.Registry()
	assert.ErrorIs(t, err, evm.ErrCyclicType)
}

func TestNewTypedData_RoundTrip(t *testing.T) {
	parsed, err := ParseTypedData([]byte(mailDocument))
	require.NoError(t, err)
	reg, err := parsed.Registry()
	require.NoError(t, err)

	exported, err := NewTypedData(reg, parsed.Domain, "Mail", parsed.Message)
	require.NoError(t, err)
	assert.Equal(t, parsed.Types, exported.Types)
	assert.Equal(t, parsed.DomainValue(), exported.DomainValue())

	data, err := json.Marshal(exported)
	require.NoError(t, err)
	reparsed, err := ParseTypedData(data)
	require.NoError(t, err)

	want, err := parsed.Digest()
	require.NoError(t, err)
	got, err := reparsed.Digest()
	require.NoError(t, err)
	assert.Equal(t, want, got)

	_, err = NewTypedData(reg, parsed.Domain, "Parcel", parsed.Message)
	assert.ErrorIs(t, err, evm.ErrUnknownType)
}

func TestToAPITypes(t *testing.T) {
	td, err := ParseTypedData([]byte(mailDocument))
	require.NoError(t, err)

	api := td.ToAPITypes()
	assert.Equal(t, "Mail", api.PrimaryType)
	assert.Len(t, api.Types["EIP712Domain"], 4)

	want, _, err := apitypes.TypedDataAndHash(api)
	require.NoError(t, err)
	digest, err := td.Digest()
	require.NoError(t, err)
	assert.Equal(t, common.BytesToHash(want), digest)
}

func TestDomainFromMap(t *testing.T) {
	valid := func() map[string]interface{} {
		return map[string]interface{}{
			"name":              "Exchange",
			"version":           "2",
			"chainId":           json.Number("1"),
			"verifyingContract": "0x0000000000000000000000000000000000000001",
		}
	}

	domain, err := DomainFromMap(valid())
	require.NoError(t, err)
	assert.Equal(t, "Exchange", domain.Name)
	assert.Equal(t, "2", domain.Version)
	assert.Equal(t, int64(1), domain.ChainID.Int64())

	tests := []struct {
		name      string
		modify    func(m map[string]interface{})
		wantErr   error
		wantField string
	}{
		{"missing name", func(m map[string]interface{}) { delete(m, "name") }, evm.ErrFieldMismatch, "name"},
		{"missing version", func(m map[string]interface{}) { delete(m, "version") }, evm.ErrFieldMismatch, "version"},
		{"missing chain id", func(m map[string]interface{}) { delete(m, "chainId") }, evm.ErrFieldMismatch, "chainId"},
		{"numeric version", func(m map[string]interface{}) { m["version"] = json.Number("2") }, evm.ErrInvalidValue, "version"},
		{"numeric name", func(m map[string]interface{}) { m["name"] = json.Number("7") }, evm.ErrInvalidValue, "name"},
		{"undeclared salt", func(m map[string]interface{}) { m["salt"] = "0x01" }, evm.ErrFieldMismatch, "salt"},
		{"chain id not an integer", func(m map[string]interface{}) { m["chainId"] = "one" }, evm.ErrInvalidValue, "chainId"},
		{"chain id wider than uint256", func(m map[string]interface{}) { m["chainId"] = "0x1" + strings.Repeat("0", 64) }, evm.ErrWidthMismatch, "chainId"},
		{"contract not an address", func(m map[string]interface{}) { m["verifyingContract"] = "0x1234" }, evm.ErrInvalidValue, "verifyingContract"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := valid()
			tt.modify(m)
			_, err := DomainFromMap(m)
			require.ErrorIs(t, err, tt.wantErr)

			var tde *evm.TypedDataError
			require.ErrorAs(t, err, &tde)
			assert.Equal(t, evm.DomainTypeName, tde.TypeName)
			assert.Equal(t, tt.wantField, tde.Field)
		})
	}
}

func TestToAPITypes_ImplicitDomainType(t *testing.T) {
	doc := `{
		"types": {"Ping": [{"name": "seq", "type": "uint64"}]},
		"primaryType": "Ping",
		"domain": {"name": "Exchange", "version": "2", "chainId": 1, "verifyingContract": "0x0000000000000000000000000000000000000001"},
		"message": {"seq": 7}
	}`
	td, err := ParseTypedData([]byte(doc))
	require.NoError(t, err)

	api := td.ToAPITypes()
	require.Len(t, api.Types[evm.DomainTypeName], 4)
	assert.Equal(t, "chainId", api.Types[evm.DomainTypeName][2].Name)

	want, _, err := apitypes.TypedDataAndHash(api)
	require.NoError(t, err)
	digest, err := td.Digest()
	require.NoError(t, err)
	assert.Equal(t, common.BytesToHash(want), digest)
}
