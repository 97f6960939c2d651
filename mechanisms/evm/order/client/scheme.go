package client

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/exchangev2/ordersig/mechanisms/evm"
	"github.com/exchangev2/ordersig/mechanisms/evm/order"
)

// OrderScheme creates and signs exchange orders on behalf of a maker
type OrderScheme struct {
	signer   evm.DigestSigner
	registry *evm.TypeRegistry
	now      func() time.Time
}

// NewOrderScheme creates a new OrderScheme
func NewOrderScheme(signer evm.DigestSigner, registry *evm.TypeRegistry) *OrderScheme {
	return &OrderScheme{
		signer:   signer,
		registry: registry,
		now:      time.Now,
	}
}

// NewOrder creates an unsigned order open to any taker with a random salt.
// A zero validFor leaves the order without expiry.
func (c *OrderScheme) NewOrder(maker common.Address, makeAsset, takeAsset order.Asset, validFor time.Duration) (order.Order, error) {
	salt, err := evm.NewSalt()
	if err != nil {
		return order.Order{}, err
	}

	end := new(big.Int)
	if validFor > 0 {
		end.SetInt64(c.now().Add(validFor).Unix())
	}

	return order.Order{
		Maker:     maker,
		MakeAsset: makeAsset,
		TakeAsset: takeAsset,
		Salt:      salt,
		Start:     new(big.Int),
		End:       end,
		DataType:  order.DataTypeV1,
		Data:      []byte{},
	}, nil
}

// SignOrder signs o for the exchange deployment in domain with the maker's key
func (c *OrderScheme) SignOrder(
	ctx context.Context,
	domain evm.TypedDataDomain,
	o order.Order,
) (*order.SignedOrder, error) {
	if o.Salt == nil || o.Salt.Sign() == 0 {
		return nil, errors.New("order salt must be non-zero to be signed")
	}

	digest, err := order.Digest(c.registry, domain, o)
	if err != nil {
		return nil, fmt.Errorf("failed to compute order digest: %w", err)
	}

	sig, err := c.signer.Sign(ctx, o.Maker, digest)
	if err != nil {
		return nil, fmt.Errorf("failed to sign order: %w", err)
	}

	// Wallets and the exchange contract expect v = 27/28
	recID, err := sig.RecoveryID()
	if err != nil {
		return nil, err
	}
	sig.V = recID + 27

	return &order.SignedOrder{
		Order:     o,
		Signature: sig.Bytes(),
	}, nil
}
