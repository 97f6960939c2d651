package ordersig

import (
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/exchangev2/ordersig/mechanisms/evm"
)

// Engine computes typed-data digests and verifies signatures against a
// sealed type registry. It holds no per-request state: the domain is passed
// to every call, so one engine serves any number of chains and contracts.
type Engine struct {
	registry *evm.TypeRegistry
	logger   *zap.Logger
}

// Option configures an Engine
type Option func(*Engine)

// WithLogger sets the engine logger
func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// NewEngine seals registry and returns an engine over it.
// Sealing fails when a referenced type is missing or the types are cyclic.
func NewEngine(registry *evm.TypeRegistry, opts ...Option) (*Engine, error) {
	e := &Engine{
		registry: registry,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}

	if err := registry.Seal(); err != nil {
		return nil, err
	}
	e.logger.Debug("typed data engine ready", zap.Strings("types", registry.Names()))
	return e, nil
}

// Registry returns the sealed registry
func (e *Engine) Registry() *evm.TypeRegistry {
	return e.registry
}

// DomainSeparator computes the domain separator of one deployment
func (e *Engine) DomainSeparator(domain evm.TypedDataDomain) (common.Hash, error) {
	return evm.HashDomain(domain)
}

// StructHash computes the struct hash of message as primaryType
func (e *Engine) StructHash(primaryType string, message map[string]interface{}) (common.Hash, error) {
	return e.registry.HashStruct(primaryType, message)
}

// ComputeDigest returns the digest to sign for message under domain
func (e *Engine) ComputeDigest(domain evm.TypedDataDomain, primaryType string, message map[string]interface{}) (common.Hash, error) {
	digest, err := evm.HashTypedData(e.registry, domain, primaryType, message)
	if err != nil {
		e.logger.Debug("digest computation failed", zap.String("primaryType", primaryType), zap.Error(err))
		return common.Hash{}, err
	}
	return digest, nil
}

// Recover returns the account that produced sig over digest
func (e *Engine) Recover(digest common.Hash, sig evm.Signature) (common.Address, error) {
	return evm.RecoverSigner(digest, sig)
}

// VerifySignature reports whether sig over digest was produced by expected.
// A malformed signature is a verification failure, not an error.
func (e *Engine) VerifySignature(digest common.Hash, sig evm.Signature, expected common.Address) bool {
	recovered, err := evm.RecoverSigner(digest, sig)
	if err != nil {
		e.logger.Info("signature rejected", zap.String("digest", digest.Hex()), zap.Error(err))
		return false
	}
	if recovered != expected {
		e.logger.Info("signer mismatch",
			zap.String("digest", digest.Hex()),
			zap.String("expected", expected.Hex()),
			zap.String("recovered", recovered.Hex()),
		)
		return false
	}
	return true
}
