package crypto

import (
	"crypto/ed25519"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/gagliardetto/solana-go"
	"github.com/pkg/errors"

	"github.com/fortiblox/x1-staking/pkg/types"
)

// Keypair is an ed25519 signing key. It satisfies types.Signer.
type Keypair struct {
	private ed25519.PrivateKey
}

// NewKeypair generates a random keypair.
func NewKeypair() (*Keypair, error) {
	pk, err := solana.NewRandomPrivateKey()
	if err != nil {
		return nil, errors.Wrap(err, "crypto: generate keypair")
	}
	return KeypairFromBytes(pk)
}

// KeypairFromBytes wraps a 64-byte secret key (seed followed by public key).
func KeypairFromBytes(b []byte) (*Keypair, error) {
	if len(b) != PrivateKeySize {
		return nil, errors.Wrapf(ErrInvalidPrivateKey, "expected %d bytes, got %d", PrivateKeySize, len(b))
	}
	private := make(ed25519.PrivateKey, PrivateKeySize)
	copy(private, b)
	derived := ed25519.NewKeyFromSeed(private.Seed())
	if !derived.Equal(private) {
		return nil, errors.Wrap(ErrInvalidPrivateKey, "public half does not match seed")
	}
	return &Keypair{private: private}, nil
}

// KeypairFromSeed derives a keypair from a 32-byte seed.
func KeypairFromSeed(seed []byte) (*Keypair, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, errors.Wrapf(ErrInvalidPrivateKey, "seed must be %d bytes", ed25519.SeedSize)
	}
	return &Keypair{private: ed25519.NewKeyFromSeed(seed)}, nil
}

// LoadKeypair reads a keypair file written by solana-keygen or SaveKeypair:
// a JSON array of the 64 secret key bytes.
func LoadKeypair(path string) (*Keypair, error) {
	pk, err := solana.PrivateKeyFromSolanaKeygenFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "crypto: load keypair %s", path)
	}
	return KeypairFromBytes(pk)
}

// SaveKeypair writes kp in the solana-keygen file format with owner-only
// permissions.
func SaveKeypair(path string, kp *Keypair) error {
	raw := make([]int, len(kp.private))
	for i, b := range kp.private {
		raw[i] = int(b)
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return errors.Wrap(err, "crypto: create key directory")
	}
	return errors.Wrapf(os.WriteFile(path, data, 0o600), "crypto: write keypair %s", path)
}

// PublicKey returns the keypair's address.
func (kp *Keypair) PublicKey() types.Pubkey {
	var pk types.Pubkey
	copy(pk[:], kp.private.Public().(ed25519.PublicKey))
	return pk
}

// Sign signs message.
func (kp *Keypair) Sign(message []byte) types.Signature {
	var sig types.Signature
	copy(sig[:], ed25519.Sign(kp.private, message))
	return sig
}

// Bytes returns a copy of the 64-byte secret key.
func (kp *Keypair) Bytes() []byte {
	return append([]byte(nil), kp.private...)
}
