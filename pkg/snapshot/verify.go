package snapshot

import (
	"github.com/pkg/errors"

	"github.com/fortiblox/x1-staking/pkg/accounts"
	"github.com/fortiblox/x1-staking/pkg/types"
)

// VerifyResult contains the result of snapshot verification.
type VerifyResult struct {
	Manifest             *Manifest
	AccountsHashValid    bool
	LamportsValid        bool
	AccountsCount        uint64
	LamportsTotal        uint64
	ComputedAccountsHash types.Hash
}

// VerifySnapshot checks the archive at path without importing it.
func VerifySnapshot(path string) error {
	result, err := VerifySnapshotWithResult(path)
	if err != nil {
		return err
	}
	if !result.AccountsHashValid {
		return errors.Wrapf(ErrHashMismatch, "accounts hash: manifest %s, computed %s",
			result.Manifest.AccountsHash, result.ComputedAccountsHash)
	}
	if !result.LamportsValid {
		return errors.Wrapf(ErrInvalidManifest, "lamports: manifest %d, computed %d",
			result.Manifest.LamportsTotal, result.LamportsTotal)
	}
	return nil
}

// VerifySnapshotWithResult returns the detailed verification of the archive
// at path. A checksum mismatch or malformed archive is an error.
func VerifySnapshotWithResult(path string) (*VerifyResult, error) {
	archive, err := ReadArchiveFile(path)
	if err != nil {
		return nil, err
	}
	return verifyArchive(archive)
}

func verifyArchive(archive *Archive) (*VerifyResult, error) {
	result := &VerifyResult{
		Manifest:      archive.Manifest,
		AccountsCount: uint64(len(archive.Accounts)),
	}
	for _, ref := range archive.Accounts {
		result.LamportsTotal += uint64(ref.Account.Lamports)
	}
	result.ComputedAccountsHash = accounts.ComputeAccountsHash(archive.Accounts)
	result.AccountsHashValid = result.ComputedAccountsHash == archive.Manifest.AccountsHash
	result.LamportsValid = result.LamportsTotal == archive.Manifest.LamportsTotal
	return result, nil
}
