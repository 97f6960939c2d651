package evm

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"

	ordersigevm "github.com/exchangev2/ordersig/mechanisms/evm"
)

// LedgerClient reads contract state over JSON-RPC. It needs no keys and
// backs the smart wallet checks of the order validator.
type LedgerClient struct {
	mu        sync.RWMutex
	ethClient *ethclient.Client
	abiCache  map[string]abi.ABI
}

var _ ordersigevm.LedgerReader = (*LedgerClient)(nil)

// NewLedgerClient returns an unconnected ledger client
func NewLedgerClient() *LedgerClient {
	return &LedgerClient{abiCache: make(map[string]abi.ABI)}
}

// DialLedger returns a ledger client connected to rpcURL
func DialLedger(rpcURL string) (*LedgerClient, error) {
	l := NewLedgerClient()
	if err := l.Connect(rpcURL); err != nil {
		return nil, err
	}
	return l, nil
}

// Connect connects the client to an RPC endpoint
func (l *LedgerClient) Connect(rpcURL string) error {
	client, err := ethclient.Dial(rpcURL)
	if err != nil {
		return fmt.Errorf("failed to connect to RPC: %w", err)
	}
	l.mu.Lock()
	l.ethClient = client
	l.mu.Unlock()
	return nil
}

// Close releases the RPC connection
func (l *LedgerClient) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.ethClient != nil {
		l.ethClient.Close()
		l.ethClient = nil
	}
}

func (l *LedgerClient) client() (*ethclient.Client, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.ethClient == nil {
		return nil, fmt.Errorf("RPC client not configured")
	}
	return l.ethClient, nil
}

func (l *LedgerClient) parseABI(abiJSON []byte) (abi.ABI, error) {
	key := string(abiJSON)

	l.mu.RLock()
	parsed, ok := l.abiCache[key]
	l.mu.RUnlock()
	if ok {
		return parsed, nil
	}

	parsed, err := abi.JSON(strings.NewReader(key))
	if err != nil {
		return abi.ABI{}, fmt.Errorf("failed to parse ABI: %w", err)
	}

	l.mu.Lock()
	l.abiCache[key] = parsed
	l.mu.Unlock()
	return parsed, nil
}

// ReadContract reads data from a smart contract
func (l *LedgerClient) ReadContract(
	ctx context.Context,
	contractAddress string,
	abiJSON []byte,
	functionName string,
	args ...interface{},
) (interface{}, error) {
	ethClient, err := l.client()
	if err != nil {
		return nil, err
	}

	// Parse ABI
	parsedABI, err := l.parseABI(abiJSON)
	if err != nil {
		return nil, err
	}

	// Pack data
	data, err := parsedABI.Pack(functionName, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to pack data: %w", err)
	}

	// Call contract
	to := common.HexToAddress(contractAddress)
	msg := ethereum.CallMsg{
		To:   &to,
		Data: data,
	}

	resultBytes, err := ethClient.CallContract(ctx, msg, nil)
	if err != nil {
		return nil, err
	}

	unpacked, err := parsedABI.Unpack(functionName, resultBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack result: %w", err)
	}

	if len(unpacked) == 0 {
		return nil, nil
	}
	if len(unpacked) == 1 {
		return unpacked[0], nil
	}
	return unpacked, nil
}

// GetCode returns the bytecode at address, empty for an EOA
func (l *LedgerClient) GetCode(ctx context.Context, address string) ([]byte, error) {
	ethClient, err := l.client()
	if err != nil {
		return nil, err
	}
	return ethClient.CodeAt(ctx, common.HexToAddress(address), nil)
}

// ChainID returns the chain id reported by the RPC endpoint
func (l *LedgerClient) ChainID(ctx context.Context) (*big.Int, error) {
	ethClient, err := l.client()
	if err != nil {
		return nil, err
	}
	return ethClient.ChainID(ctx)
}
