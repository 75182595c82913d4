package crypto

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/fortiblox/x1-staking/pkg/types"
)

func TestKeypair_SaveLoad(t *testing.T) {
	kp, err := NewKeypair()
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "keys", "id.json")
	require.NoError(t, SaveKeypair(path, kp))

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	loaded, err := LoadKeypair(path)
	require.NoError(t, err)
	require.Equal(t, kp.PublicKey(), loaded.PublicKey())

	// solana-go reads the same file and agrees on the address.
	pk, err := solana.PrivateKeyFromSolanaKeygenFile(path)
	require.NoError(t, err)
	require.Equal(t, kp.PublicKey().Bytes(), pk.PublicKey().Bytes())
}

func TestKeypairFromBytes_Rejects(t *testing.T) {
	_, err := KeypairFromBytes(make([]byte, 10))
	require.ErrorIs(t, err, ErrInvalidPrivateKey)

	kp, err := KeypairFromSeed(make([]byte, 32))
	require.NoError(t, err)
	raw := kp.Bytes()
	raw[63] ^= 1
	_, err = KeypairFromBytes(raw)
	require.ErrorIs(t, err, ErrInvalidPrivateKey)
}

func TestVerifyTransaction(t *testing.T) {
	payer, err := KeypairFromSeed(make([]byte, 32))
	require.NoError(t, err)
	other, err := NewKeypair()
	require.NoError(t, err)

	ix := types.Instruction{
		ProgramID: types.SystemProgramID,
		Accounts: []types.AccountMeta{
			types.NewAccountMeta(payer.PublicKey(), true, true),
			types.NewAccountMeta(other.PublicKey(), true, false),
		},
	}
	tx, err := types.NewTransaction([]types.Instruction{ix}, types.Hash{1}, payer, other)
	require.NoError(t, err)
	require.NoError(t, VerifyTransaction(tx))

	tx.Signatures[1][0] ^= 0xff
	err = VerifyTransaction(tx)
	var verr *TransactionVerificationError
	require.True(t, errors.As(err, &verr))
	require.Equal(t, 1, verr.SignatureIndex)
	require.ErrorIs(t, err, ErrVerificationFailed)

	tx.Signatures = tx.Signatures[:1]
	require.ErrorIs(t, VerifyTransaction(tx), ErrSignatureCountMismatch)

	require.ErrorIs(t, VerifyTransaction(nil), ErrMissingTransaction)
}
