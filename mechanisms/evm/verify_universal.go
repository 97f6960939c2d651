package evm

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
)

// VerifyUniversalSignature verifies signatures from EOA, EIP-1271, and ERC-6492 sources
//
// The verification flow:
// 1. Parse ERC-6492 wrapper if present to extract inner signature
// 2. If inner signature is exactly 65 bytes AND no factory: EOA path (no ledger call)
// 3. Without a ledger reader only the EOA path is available
// 4. Otherwise: check if contract is deployed (GetCode)
// 5. If undeployed + has deployment info + allowUndeployed: accept
// 6. If undeployed without deployment info: fallback to EOA verification
// 7. If deployed: use EIP-1271 verification
//
// Args:
//
//	ctx: Context for cancellation and timeout control
//	reader: The ledger client, may be nil
//	signer: The address that should have signed
//	digest: The 32-byte digest that was signed
//	signature: The signature bytes (may be wrapped in ERC-6492 format)
//	allowUndeployed: Whether to accept ERC-6492 signatures from undeployed wallets
//
// Returns:
//
//	valid: true if the signature is valid
//	sigData: Parsed ERC-6492 data (if applicable)
//	error: Any error that occurred during verification
func VerifyUniversalSignature(
	ctx context.Context,
	reader LedgerReader,
	signer common.Address,
	digest common.Hash,
	signature []byte,
	allowUndeployed bool,
) (bool, *ERC6492SignatureData, error) {
	sigData, err := ParseERC6492Signature(signature)
	if err != nil {
		return false, nil, err
	}

	hasFactory := sigData.Factory != (common.Address{})
	if (len(sigData.InnerSignature) == SignatureLength && !hasFactory) || reader == nil {
		valid, err := VerifyEOASignature(digest[:], sigData.InnerSignature, signer)
		return valid, sigData, err
	}

	code, err := reader.GetCode(ctx, signer.Hex())
	if err != nil {
		return false, nil, err
	}

	if len(code) == 0 {
		if hasFactory && len(sigData.FactoryCalldata) > 0 {
			if !allowUndeployed {
				return false, nil, newTypedDataError(ReasonUndeployedWallet, "", "", nil)
			}
			// Deployment happens on-chain together with the first use
			return true, sigData, nil
		}

		// No deployment info - try EOA verification as fallback
		valid, err := VerifyEOASignature(digest[:], sigData.InnerSignature, signer)
		return valid, sigData, err
	}

	valid, err := VerifyEIP1271Signature(ctx, reader, signer, digest, sigData.InnerSignature)
	return valid, sigData, err
}
