package snapshot

import (
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/fortiblox/x1-staking/pkg/accounts"
	"github.com/fortiblox/x1-staking/pkg/types"
)

// LoadResult contains the result of loading a snapshot.
type LoadResult struct {
	Manifest       *Manifest
	AccountsLoaded uint64
	LamportsTotal  uint64
	// AccountsHash is recomputed from the ledger after the import.
	AccountsHash types.Hash
}

// LoadProgress is reported after every committed batch.
type LoadProgress struct {
	AccountsProcessed uint64
	AccountsTotal     uint64
}

type ProgressCallback func(progress LoadProgress)

type LoadConfig struct {
	// BatchSize is the number of accounts written per SetAccounts call.
	BatchSize        int
	ProgressCallback ProgressCallback
}

func DefaultLoadConfig() LoadConfig {
	return LoadConfig{BatchSize: 1000}
}

// SnapshotLoader imports archives into an empty ledger.
type SnapshotLoader struct {
	log    *logrus.Entry
	config LoadConfig
	db     accounts.AccountsDB
}

func NewSnapshotLoader(log *logrus.Entry, db accounts.AccountsDB, config LoadConfig) *SnapshotLoader {
	if config.BatchSize <= 0 {
		config.BatchSize = DefaultLoadConfig().BatchSize
	}
	return &SnapshotLoader{
		log:    log.WithField("type", "snapshot/loader"),
		config: config,
		db:     db,
	}
}

// LoadSnapshot imports the archive at path into db with the default config.
func LoadSnapshot(log *logrus.Entry, path string, db accounts.AccountsDB) (*LoadResult, error) {
	return NewSnapshotLoader(log, db, DefaultLoadConfig()).Load(path)
}

// Load verifies the archive at path and writes its accounts into the ledger.
// Nothing is written unless the checksum and accounts hash both match.
func (l *SnapshotLoader) Load(path string) (*LoadResult, error) {
	if count := l.db.GetAccountsCount(); count > 0 {
		return nil, errors.Wrapf(ErrLedgerNotEmpty, "%d accounts present", count)
	}

	archive, err := ReadArchiveFile(path)
	if err != nil {
		return nil, err
	}
	result, err := verifyArchive(archive)
	if err != nil {
		return nil, err
	}
	if !result.AccountsHashValid {
		return nil, errors.Wrapf(ErrHashMismatch, "manifest %s, computed %s",
			archive.Manifest.AccountsHash, result.ComputedAccountsHash)
	}
	if !result.LamportsValid {
		return nil, errors.Wrapf(ErrInvalidManifest, "manifest lists %d lamports, archive holds %d",
			archive.Manifest.LamportsTotal, result.LamportsTotal)
	}

	total := uint64(len(archive.Accounts))
	var loaded uint64
	for start := 0; start < len(archive.Accounts); start += l.config.BatchSize {
		end := start + l.config.BatchSize
		if end > len(archive.Accounts) {
			end = len(archive.Accounts)
		}
		if err := l.db.SetAccounts(archive.Accounts[start:end]); err != nil {
			return nil, errors.Wrapf(err, "failed to write accounts %d-%d", start, end)
		}
		loaded += uint64(end - start)
		if l.config.ProgressCallback != nil {
			l.config.ProgressCallback(LoadProgress{AccountsProcessed: loaded, AccountsTotal: total})
		}
	}

	hash, err := accounts.HashLedger(l.db)
	if err != nil {
		return nil, errors.Wrap(err, "failed to hash ledger")
	}
	if hash != archive.Manifest.AccountsHash {
		return nil, errors.Wrapf(ErrHashMismatch, "ledger hash %s after import", hash)
	}

	l.log.WithFields(logrus.Fields{
		"path":          path,
		"accounts":      loaded,
		"lamports":      result.LamportsTotal,
		"accounts_hash": hash,
	}).Info("imported snapshot")

	return &LoadResult{
		Manifest:       archive.Manifest,
		AccountsLoaded: loaded,
		LamportsTotal:  result.LamportsTotal,
		AccountsHash:   hash,
	}, nil
}
