package ordersig

// Version constants
const (
	// Version is the library version
	Version = "1.0.0"
)

// Verification failure reasons reported in VerifyError
const (
	ReasonInvalidOrder      = "invalid_order"
	ReasonInvalidSalt       = "invalid_salt"
	ReasonOrderNotStarted   = "order_not_started"
	ReasonOrderExpired      = "order_expired"
	ReasonDigestFailed      = "digest_failed"
	ReasonMissingSignature  = "missing_signature"
	ReasonInvalidSignature  = "invalid_signature"
	ReasonSignerMismatch    = "signer_mismatch"
	ReasonUndeployedWallet  = "undeployed_smart_wallet"
	ReasonLedgerUnavailable = "ledger_unavailable"
)
