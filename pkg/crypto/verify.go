package crypto

import (
	"crypto/ed25519"

	"github.com/pkg/errors"

	"github.com/fortiblox/x1-staking/pkg/types"
)

// VerifySignature checks one ed25519 signature.
func VerifySignature(pubkey types.Pubkey, message []byte, signature types.Signature) bool {
	return ed25519.Verify(pubkey[:], message, signature[:])
}

// VerifyTransaction checks every signature on tx against the serialized
// message. The first NumRequiredSignatures account keys are the signers, in
// signature order.
func VerifyTransaction(tx *types.Transaction) error {
	if tx == nil {
		return ErrMissingTransaction
	}

	numSignatures := len(tx.Signatures)
	if numSignatures == 0 {
		return ErrNoSignatures
	}
	numRequired := int(tx.Message.Header.NumRequiredSignatures)
	if numSignatures != numRequired {
		return errors.Wrapf(ErrSignatureCountMismatch, "expected %d signatures, got %d", numRequired, numSignatures)
	}
	if len(tx.Message.AccountKeys) < numSignatures {
		return errors.Wrap(ErrInvalidSignerIndex, "not enough account keys for signatures")
	}

	message := tx.Message.Serialize()
	for i := 0; i < numSignatures; i++ {
		pubkey := tx.Message.AccountKeys[i]
		if !VerifySignature(pubkey, message, tx.Signatures[i]) {
			return &TransactionVerificationError{
				SignatureIndex: i,
				SignerPubkey:   pubkey.String(),
				Err:            ErrVerificationFailed,
			}
		}
	}
	return nil
}
