package evm

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"
)

// TypeRegistry holds the named record schemas used for EIP-712 hashing.
//
// Schemas may reference each other before they are registered; references
// are resolved when a type is hashed or when the registry is sealed. Seal
// validates the whole reference graph, precomputes every type hash and makes
// the registry read-only. A sealed registry can be shared by concurrent
// callers without locking.
type TypeRegistry struct {
	mu      sync.RWMutex
	sealed  atomic.Bool
	schemas map[string][]TypedDataField

	// filled by Seal
	encoded map[string]string
	hashes  map[string]common.Hash

	logger *zap.Logger
}

// RegistryOption configures a TypeRegistry
type RegistryOption func(*TypeRegistry)

// WithRegistryLogger sets the logger used for registration events
func WithRegistryLogger(logger *zap.Logger) RegistryOption {
	return func(r *TypeRegistry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewTypeRegistry creates a registry holding only the fixed EIP712Domain type
func NewTypeRegistry(opts ...RegistryOption) *TypeRegistry {
	r := &TypeRegistry{
		schemas: make(map[string][]TypedDataField),
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.schemas[DomainTypeName] = append([]TypedDataField(nil), DomainFields...)
	return r
}

// Register adds a record schema. Field order is significant: it is the
// order of the canonical type string and of the encoding.
func (r *TypeRegistry) Register(name string, fields []TypedDataField) error {
	if err := validateSchema(name, fields); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sealed.Load() {
		return newTypedDataError(ReasonRegistrySealed, name, "", nil)
	}
	if _, exists := r.schemas[name]; exists {
		return newTypedDataError(ReasonDuplicateType, name, "", nil)
	}
	r.schemas[name] = append([]TypedDataField(nil), fields...)

	r.logger.Debug("registered type", zap.String("type", name), zap.Int("fields", len(fields)))
	return nil
}

func validateSchema(name string, fields []TypedDataField) error {
	if !identifierRegex.MatchString(name) {
		return newTypedDataError(ReasonInvalidSchema, name, "", fmt.Errorf("invalid type name %q", name))
	}
	if IsPrimitiveType(name) {
		return newTypedDataError(ReasonInvalidSchema, name, "", fmt.Errorf("%s is a primitive type", name))
	}
	seen := make(map[string]struct{}, len(fields))
	for _, field := range fields {
		if !identifierRegex.MatchString(field.Name) {
			return newTypedDataError(ReasonInvalidSchema, name, field.Name, fmt.Errorf("invalid field name %q", field.Name))
		}
		if !fieldTypeRegex.MatchString(field.Type) {
			return newTypedDataError(ReasonInvalidSchema, name, field.Name, fmt.Errorf("invalid field type %q", field.Type))
		}
		if _, dup := seen[field.Name]; dup {
			return newTypedDataError(ReasonInvalidSchema, name, field.Name, fmt.Errorf("field declared twice"))
		}
		seen[field.Name] = struct{}{}
	}
	return nil
}

// rlock takes the read lock until the registry is sealed
func (r *TypeRegistry) rlock() func() {
	if r.sealed.Load() {
		return func() {}
	}
	r.mu.RLock()
	return r.mu.RUnlock
}

// Resolve returns the field list of a registered type
func (r *TypeRegistry) Resolve(name string) ([]TypedDataField, error) {
	unlock := r.rlock()
	defer unlock()

	fields, ok := r.schemas[name]
	if !ok {
		return nil, newTypedDataError(ReasonUnknownType, name, "", nil)
	}
	return append([]TypedDataField(nil), fields...), nil
}

// Has reports whether name is a registered type
func (r *TypeRegistry) Has(name string) bool {
	unlock := r.rlock()
	defer unlock()

	_, ok := r.schemas[name]
	return ok
}

// Names returns the registered type names in lexicographic order
func (r *TypeRegistry) Names() []string {
	unlock := r.rlock()
	defer unlock()

	names := make([]string, 0, len(r.schemas))
	for name := range r.schemas {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Sealed reports whether Seal has completed
func (r *TypeRegistry) Sealed() bool {
	return r.sealed.Load()
}

// Seal resolves every reference, rejects cyclic types and caches the type
// hash of every registered type. Sealing twice is a no-op.
func (r *TypeRegistry) Seal() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sealed.Load() {
		return nil
	}

	names := make([]string, 0, len(r.schemas))
	for name := range r.schemas {
		names = append(names, name)
	}
	sort.Strings(names)

	encoded := make(map[string]string, len(names))
	hashes := make(map[string]common.Hash, len(names))
	for _, name := range names {
		if err := r.checkAcyclic(name); err != nil {
			return err
		}
		enc, err := r.encodeType(name)
		if err != nil {
			return err
		}
		encoded[name] = enc
		hashes[name] = crypto.Keccak256Hash([]byte(enc))
	}

	r.encoded = encoded
	r.hashes = hashes
	r.sealed.Store(true)

	r.logger.Debug("sealed type registry", zap.Strings("types", names))
	return nil
}

// Dependencies returns the distinct record types transitively referenced by
// name, excluding name itself, sorted by type name
func (r *TypeRegistry) Dependencies(name string) ([]string, error) {
	unlock := r.rlock()
	defer unlock()

	return r.dependencies(name)
}

// EncodeType returns the canonical type string of name: its primary
// encoding followed by the primary encodings of its dependencies in
// lexicographic order, e.g.
// "Asset(AssetType assetType,uint256 value)AssetType(bytes4 assetClass,bytes data)"
func (r *TypeRegistry) EncodeType(name string) (string, error) {
	unlock := r.rlock()
	defer unlock()

	return r.encodedType(name)
}

// TypeHash returns keccak256(EncodeType(name))
func (r *TypeRegistry) TypeHash(name string) (common.Hash, error) {
	unlock := r.rlock()
	defer unlock()

	return r.typeHash(name)
}

// encodedType expects the lock to be held or the registry to be sealed
func (r *TypeRegistry) encodedType(name string) (string, error) {
	if r.sealed.Load() {
		if enc, ok := r.encoded[name]; ok {
			return enc, nil
		}
		return "", newTypedDataError(ReasonUnknownType, name, "", nil)
	}
	if err := r.checkAcyclic(name); err != nil {
		return "", err
	}
	return r.encodeType(name)
}

// typeHash expects the lock to be held or the registry to be sealed
func (r *TypeRegistry) typeHash(name string) (common.Hash, error) {
	if r.sealed.Load() {
		if h, ok := r.hashes[name]; ok {
			return h, nil
		}
		return common.Hash{}, newTypedDataError(ReasonUnknownType, name, "", nil)
	}
	enc, err := r.encodedType(name)
	if err != nil {
		return common.Hash{}, err
	}
	return crypto.Keccak256Hash([]byte(enc)), nil
}

// encodeType expects the lock to be held
func (r *TypeRegistry) encodeType(name string) (string, error) {
	deps, err := r.dependencies(name)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	r.writePrimary(&b, name)
	for _, dep := range deps {
		r.writePrimary(&b, dep)
	}
	return b.String(), nil
}

func (r *TypeRegistry) writePrimary(b *strings.Builder, name string) {
	b.WriteString(name)
	b.WriteByte('(')
	for i, field := range r.schemas[name] {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(field.Type)
		b.WriteByte(' ')
		b.WriteString(field.Name)
	}
	b.WriteByte(')')
}

// dependencies expects the lock to be held
func (r *TypeRegistry) dependencies(root string) ([]string, error) {
	if _, ok := r.schemas[root]; !ok {
		return nil, newTypedDataError(ReasonUnknownType, root, "", nil)
	}

	seen := map[string]bool{root: true}
	var deps []string
	var walk func(name string) error
	walk = func(name string) error {
		for _, field := range r.schemas[name] {
			base := baseType(field.Type)
			if IsPrimitiveType(base) || seen[base] {
				continue
			}
			if _, ok := r.schemas[base]; !ok {
				return newTypedDataError(ReasonUnresolvedDependency, name, field.Name,
					fmt.Errorf("type %s is not registered", base))
			}
			seen[base] = true
			deps = append(deps, base)
			if err := walk(base); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(root); err != nil {
		return nil, err
	}

	sort.Strings(deps)
	return deps, nil
}

// checkAcyclic walks the reference graph from root depth-first and fails on
// the first back edge. Expects the lock to be held.
func (r *TypeRegistry) checkAcyclic(root string) error {
	const (
		visiting = 1
		done     = 2
	)
	state := make(map[string]int)
	var path []string

	var visit func(name string) error
	visit = func(name string) error {
		fields, ok := r.schemas[name]
		if !ok {
			return newTypedDataError(ReasonUnknownType, name, "", nil)
		}
		state[name] = visiting
		path = append(path, name)
		for _, field := range fields {
			base := baseType(field.Type)
			if IsPrimitiveType(base) {
				continue
			}
			if _, ok := r.schemas[base]; !ok {
				return newTypedDataError(ReasonUnresolvedDependency, name, field.Name,
					fmt.Errorf("type %s is not registered", base))
			}
			switch state[base] {
			case visiting:
				return newTypedDataError(ReasonCyclicType, name, field.Name,
					fmt.Errorf("cycle %s -> %s", strings.Join(path, " -> "), base))
			case done:
				continue
			}
			if err := visit(base); err != nil {
				return err
			}
		}
		path = path[:len(path)-1]
		state[name] = done
		return nil
	}
	return visit(root)
}
