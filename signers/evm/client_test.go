package evm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ordersigevm "github.com/exchangev2/ordersig/mechanisms/evm"
)

// Well-known development keys
const (
	testKey0 = "0xac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"
	testKey1 = "59c6995e998f97a5a0044966f0945389dc9e86dae88c7a8412f4603b6b78690d"
)

var (
	testAddr0 = common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266")
	testAddr1 = common.HexToAddress("0x70997970C51812dc3A010C7d01b50e0d17dc79C8")
)

func TestNewClientSignerFromPrivateKeys(t *testing.T) {
	tests := []struct {
		name    string
		keys    []string
		want    []common.Address
		wantErr bool
	}{
		{
			name: "single key with prefix",
			keys: []string{testKey0},
			want: []common.Address{testAddr0},
		},
		{
			name: "two keys keep their order",
			keys: []string{testKey1, testKey0},
			want: []common.Address{testAddr1, testAddr0},
		},
		{
			name: "duplicate keys collapse",
			keys: []string{testKey0, testKey0},
			want: []common.Address{testAddr0},
		},
		{
			name:    "invalid key",
			keys:    []string{"0x1234"},
			wantErr: true,
		},
		{
			name:    "no keys",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			signer, err := NewClientSignerFromPrivateKeys(tt.keys...)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, signer.Addresses())
			assert.Equal(t, tt.want[0], signer.Address())
		})
	}
}

func TestClientSigner_Sign(t *testing.T) {
	signer, err := NewClientSignerFromPrivateKeys(testKey0, testKey1)
	require.NoError(t, err)
	digest := crypto.Keccak256Hash([]byte("order"))

	for _, account := range []common.Address{testAddr0, testAddr1} {
		sig, err := signer.Sign(context.Background(), account, digest)
		require.NoError(t, err)
		assert.Contains(t, []byte{27, 28}, sig.V)

		recovered, err := ordersigevm.RecoverSigner(digest, sig)
		require.NoError(t, err)
		assert.Equal(t, account, recovered)
	}

	_, err = signer.Sign(context.Background(), common.HexToAddress("0x01"), digest)
	assert.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = signer.Sign(ctx, testAddr0, digest)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestClientSigner_SignTypedData(t *testing.T) {
	signer, err := NewClientSignerFromPrivateKey(testKey0)
	require.NoError(t, err)

	reg := ordersigevm.NewTypeRegistry()
	require.NoError(t, reg.Register("Ping", []ordersigevm.TypedDataField{{Name: "n", Type: "uint256"}}))
	require.NoError(t, reg.Seal())

	domain := ordersigevm.TypedDataDomain{
		Name:              "Exchange",
		Version:           "2",
		ChainID:           ordersigevm.ChainIDHardhat,
		VerifyingContract: common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3"),
	}
	message := map[string]interface{}{"n": 7}

	raw, err := signer.SignTypedData(context.Background(), testAddr0, reg, domain, "Ping", message)
	require.NoError(t, err)
	require.Len(t, raw, ordersigevm.SignatureLength)

	digest, err := ordersigevm.HashTypedData(reg, domain, "Ping", message)
	require.NoError(t, err)
	valid, err := ordersigevm.VerifyEOASignature(digest[:], raw, testAddr0)
	require.NoError(t, err)
	assert.True(t, valid)
}

func TestClientSigner_LedgerWithoutRPC(t *testing.T) {
	signer, err := NewClientSignerFromPrivateKey(testKey0)
	require.NoError(t, err)

	_, err = signer.GetCode(context.Background(), testAddr0.Hex())
	assert.Error(t, err)
	_, err = signer.ReadContract(context.Background(), testAddr0.Hex(), nil, "isValidSignature")
	assert.Error(t, err)
	_, err = signer.ChainID(context.Background())
	assert.Error(t, err)
}

// newRPCServer answers JSON-RPC calls with fixed results per method
func newRPCServer(t *testing.T, results map[string]string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ID     json.RawMessage `json:"id"`
			Method string          `json:"method"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		result, ok := results[req.Method]
		if !ok {
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"jsonrpc": "2.0",
				"id":      req.ID,
				"error":   map[string]interface{}{"code": -32601, "message": "method not found"},
			})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"result":  result,
		})
	}))
}

func TestClientSigner_LedgerReader(t *testing.T) {
	server := newRPCServer(t, map[string]string{
		"eth_chainId": "0x7a69",
		"eth_getCode": "0x6080",
		// abi encoded bytes4 magic value
		"eth_call": "0x1626ba7e00000000000000000000000000000000000000000000000000000000",
	})
	defer server.Close()

	signer, err := NewClientSignerFromPrivateKey(testKey0)
	require.NoError(t, err)
	require.NoError(t, signer.Connect(server.URL))
	defer signer.Close()

	ctx := context.Background()

	chainID, err := signer.ChainID(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(31337), chainID.Int64())

	code, err := signer.GetCode(ctx, testAddr1.Hex())
	require.NoError(t, err)
	assert.Equal(t, []byte{0x60, 0x80}, code)

	wallet := common.HexToAddress("0x1234567890123456789012345678901234567890")
	digest := crypto.Keccak256Hash([]byte("order"))
	valid, err := ordersigevm.VerifyEIP1271Signature(ctx, signer, wallet, digest, []byte("wallet signature"))
	require.NoError(t, err)
	assert.True(t, valid)

	valid, _, err = ordersigevm.VerifyUniversalSignature(ctx, signer, wallet, digest, []byte("wallet signature"), false)
	require.NoError(t, err)
	assert.True(t, valid)
}
