package validator

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	ordersig "github.com/exchangev2/ordersig"
	"github.com/exchangev2/ordersig/mechanisms/evm"
	"github.com/exchangev2/ordersig/mechanisms/evm/order"
)

// OrderSchemeConfig holds configuration for the order validator
type OrderSchemeConfig struct {
	// AllowUndeployedWallets accepts ERC-6492 signatures from smart wallets
	// that will be deployed together with the first match
	AllowUndeployedWallets bool

	// Now overrides the clock used for the validity window
	Now func() time.Time
}

// OrderScheme validates signed exchange orders off-chain, applying the same
// checks the exchange contract applies before matching
type OrderScheme struct {
	registry *evm.TypeRegistry
	ledger   evm.LedgerReader
	config   OrderSchemeConfig
	logger   *zap.Logger
}

// Result describes a valid order
type Result struct {
	OrderHash common.Hash    `json:"orderHash"`
	Digest    common.Hash    `json:"digest"`
	Signer    common.Address `json:"signer"`
}

// NewOrderScheme creates a new OrderScheme
// Args:
//
//	registry: Registry holding the order schemas
//	ledger: Ledger client for smart wallet signatures, nil for EOA only
//	config: Optional configuration (nil uses defaults)
//	logger: Optional logger (nil discards)
//
// Returns:
//
//	Configured OrderScheme instance
func NewOrderScheme(registry *evm.TypeRegistry, ledger evm.LedgerReader, config *OrderSchemeConfig, logger *zap.Logger) *OrderScheme {
	cfg := OrderSchemeConfig{}
	if config != nil {
		cfg = *config
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OrderScheme{
		registry: registry,
		ledger:   ledger,
		config:   cfg,
		logger:   logger,
	}
}

// Validate checks a signed order against the deployment in domain
//
// The checks, in order: the salt is non-zero, the current time lies inside
// the (start, end) window where 0 leaves a side open, and the signature over
// the order digest belongs to the maker. Contract makers are checked with
// EIP-1271 through the ledger client.
//
// Returns:
//
//	Result with the order hash and digest if the order is valid
//	*ordersig.VerifyError describing the first failed check otherwise
func (v *OrderScheme) Validate(
	ctx context.Context,
	domain evm.TypedDataDomain,
	signed order.SignedOrder,
) (*Result, error) {
	o := signed.Order
	maker := o.Maker.Hex()
	chainID := domain.ChainID

	if o.Salt == nil || o.Salt.Sign() == 0 {
		// salt 0 orders are only valid when sent by the maker itself
		return nil, ordersig.NewVerifyError(ordersig.ReasonInvalidSalt, maker, chainID, nil)
	}

	now := big.NewInt(v.config.Now().Unix())
	if o.Start != nil && o.Start.Sign() != 0 && o.Start.Cmp(now) >= 0 {
		return nil, ordersig.NewVerifyError(ordersig.ReasonOrderNotStarted, maker, chainID,
			fmt.Errorf("order starts at %s", o.Start))
	}
	if o.End != nil && o.End.Sign() != 0 && o.End.Cmp(now) <= 0 {
		return nil, ordersig.NewVerifyError(ordersig.ReasonOrderExpired, maker, chainID,
			fmt.Errorf("order ended at %s", o.End))
	}

	orderHash, err := order.HashOrder(v.registry, o)
	if err != nil {
		return nil, ordersig.NewVerifyError(ordersig.ReasonInvalidOrder, maker, chainID, err)
	}
	digest, err := order.Digest(v.registry, domain, o)
	if err != nil {
		return nil, ordersig.NewVerifyError(ordersig.ReasonDigestFailed, maker, chainID, err)
	}

	if len(signed.Signature) == 0 {
		return nil, ordersig.NewVerifyError(ordersig.ReasonMissingSignature, maker, chainID, nil)
	}

	valid, _, err := evm.VerifyUniversalSignature(
		ctx,
		v.ledger,
		o.Maker,
		digest,
		signed.Signature,
		v.config.AllowUndeployedWallets,
	)
	if err != nil {
		reason := ordersig.ReasonLedgerUnavailable
		switch {
		case errors.Is(err, evm.ErrUndeployedWallet):
			reason = ordersig.ReasonUndeployedWallet
		case errors.Is(err, evm.ErrInvalidSignature):
			reason = ordersig.ReasonInvalidSignature
		}
		v.logger.Info("order signature rejected",
			zap.String("maker", maker),
			zap.String("orderHash", orderHash.Hex()),
			zap.String("reason", reason),
			zap.Error(err),
		)
		return nil, ordersig.NewVerifyError(reason, maker, chainID, err)
	}

	if !valid {
		v.logger.Info("order signer mismatch", zap.String("maker", maker), zap.String("orderHash", orderHash.Hex()))
		return nil, ordersig.NewVerifyError(ordersig.ReasonSignerMismatch, maker, chainID, nil)
	}

	return &Result{
		OrderHash: orderHash,
		Digest:    digest,
		Signer:    o.Maker,
	}, nil
}
