// Package crypto holds the signing side of the ledger: ed25519 keypairs in
// the Solana CLI file format and transaction signature verification.
package crypto

import (
	"github.com/pkg/errors"
)

// Signature and key sizes for Ed25519.
const (
	PublicKeySize  = 32
	SignatureSize  = 64
	PrivateKeySize = 64
)

var (
	ErrInvalidPrivateKey      = errors.New("crypto: invalid private key")
	ErrVerificationFailed     = errors.New("crypto: signature verification failed")
	ErrNoSignatures           = errors.New("crypto: transaction has no signatures")
	ErrSignatureCountMismatch = errors.New("crypto: signature count mismatch")
	ErrMissingTransaction     = errors.New("crypto: missing transaction")
	ErrInvalidSignerIndex     = errors.New("crypto: invalid signer index")
)

// TransactionVerificationError names the signer whose signature failed.
type TransactionVerificationError struct {
	SignatureIndex int
	SignerPubkey   string
	Err            error
}

func (e *TransactionVerificationError) Error() string {
	return errors.Wrapf(e.Err, "crypto: signer %s (signature index %d)", e.SignerPubkey, e.SignatureIndex).Error()
}

func (e *TransactionVerificationError) Unwrap() error {
	return e.Err
}
