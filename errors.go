package ordersig

import (
	"fmt"
	"math/big"
)

// VerifyError is returned when a signed order fails validation.
// Reason is one of the Reason* constants.
type VerifyError struct {
	Reason  string
	Signer  string
	ChainID *big.Int
	Err     error
}

// NewVerifyError creates a VerifyError
func NewVerifyError(reason string, signer string, chainID *big.Int, err error) *VerifyError {
	return &VerifyError{
		Reason:  reason,
		Signer:  signer,
		ChainID: chainID,
		Err:     err,
	}
}

func (e *VerifyError) Error() string {
	msg := fmt.Sprintf("verification failed: %s", e.Reason)
	if e.Signer != "" {
		msg += fmt.Sprintf(" (signer: %s", e.Signer)
		if e.ChainID != nil {
			msg += fmt.Sprintf(", chain: %s", e.ChainID)
		}
		msg += ")"
	} else if e.ChainID != nil {
		msg += fmt.Sprintf(" (chain: %s)", e.ChainID)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *VerifyError) Unwrap() error {
	return e.Err
}
