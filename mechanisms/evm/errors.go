package evm

import (
	"fmt"
	"strings"
)

// TypedDataError describes a failure to register, resolve, encode or verify
// typed data. The Reason is one of the Reason* constants; TypeName and Field
// locate the failure in the schema when known.
type TypedDataError struct {
	Reason   string
	TypeName string
	Field    string
	Err      error
}

// Sentinel errors, usable with errors.Is
var (
	ErrDuplicateType        = &TypedDataError{Reason: ReasonDuplicateType}
	ErrUnknownType          = &TypedDataError{Reason: ReasonUnknownType}
	ErrUnresolvedDependency = &TypedDataError{Reason: ReasonUnresolvedDependency}
	ErrCyclicType           = &TypedDataError{Reason: ReasonCyclicType}
	ErrInvalidSchema        = &TypedDataError{Reason: ReasonInvalidSchema}
	ErrRegistrySealed       = &TypedDataError{Reason: ReasonRegistrySealed}
	ErrFieldMismatch        = &TypedDataError{Reason: ReasonFieldMismatch}
	ErrWidthMismatch        = &TypedDataError{Reason: ReasonWidthMismatch}
	ErrInvalidValue         = &TypedDataError{Reason: ReasonInvalidValue}
	ErrInvalidSignature     = &TypedDataError{Reason: ReasonInvalidSignature}
	ErrUndeployedWallet     = &TypedDataError{Reason: ReasonUndeployedWallet}
)

func newTypedDataError(reason, typeName, field string, err error) *TypedDataError {
	return &TypedDataError{Reason: reason, TypeName: typeName, Field: field, Err: err}
}

func (e *TypedDataError) Error() string {
	var b strings.Builder
	b.WriteString(e.Reason)
	if e.TypeName != "" {
		b.WriteString(" ")
		b.WriteString(e.TypeName)
		if e.Field != "" {
			b.WriteString(".")
			b.WriteString(e.Field)
		}
	} else if e.Field != "" {
		b.WriteString(" ")
		b.WriteString(e.Field)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *TypedDataError) Unwrap() error {
	return e.Err
}

// Is matches any TypedDataError carrying the same reason
func (e *TypedDataError) Is(target error) bool {
	t, ok := target.(*TypedDataError)
	if !ok {
		return false
	}
	return e.Reason == t.Reason
}
