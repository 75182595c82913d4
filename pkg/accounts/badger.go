package accounts

import (
	"sync/atomic"

	"github.com/dgraph-io/badger/v4"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/fortiblox/x1-staking/pkg/types"
)

const (
	// accountKeyPrefix is the prefix for account keys in BadgerDB.
	accountKeyPrefix = "account:"
)

// BadgerDB is a persistent implementation of AccountsDB using BadgerDB.
type BadgerDB struct {
	db    *badger.DB
	count atomic.Uint64
	log   *logrus.Entry
}

// NewBadgerDB opens (or creates) a ledger at path. Badger's internal logging
// is routed through log at warning level and above.
func NewBadgerDB(path string, log *logrus.Entry) (*BadgerDB, error) {
	if log == nil {
		log = logrus.StandardLogger().WithField("type", "accounts/badger")
	}

	opts := badger.DefaultOptions(path)
	opts.Logger = badgerLogger{log}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open badger db")
	}

	bdb := &BadgerDB{
		db:  db,
		log: log,
	}

	count, err := bdb.countAccounts()
	if err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to count accounts")
	}
	bdb.count.Store(count)

	log.WithFields(logrus.Fields{
		"path":     path,
		"accounts": count,
	}).Info("opened ledger")

	return bdb, nil
}

// NewInMemoryBadgerDB opens a badger instance that never touches disk.
func NewInMemoryBadgerDB(log *logrus.Entry) (*BadgerDB, error) {
	if log == nil {
		log = logrus.StandardLogger().WithField("type", "accounts/badger")
	}

	opts := badger.DefaultOptions("").WithInMemory(true)
	opts.Logger = badgerLogger{log}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open in-memory badger db")
	}
	return &BadgerDB{db: db, log: log}, nil
}

// makeAccountKey creates the key for an account.
func makeAccountKey(pubkey types.Pubkey) []byte {
	key := make([]byte, len(accountKeyPrefix)+32)
	copy(key, accountKeyPrefix)
	copy(key[len(accountKeyPrefix):], pubkey[:])
	return key
}

// GetAccount retrieves an account by pubkey.
// Returns nil, nil if account does not exist.
func (db *BadgerDB) GetAccount(pubkey types.Pubkey) (*types.Account, error) {
	key := makeAccountKey(pubkey)
	var account *types.Account

	err := db.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}

		return item.Value(func(val []byte) error {
			var deserErr error
			account, deserErr = DeserializeAccount(val)
			return deserErr
		})
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to get account")
	}

	return account, nil
}

// SetAccount stores an account.
func (db *BadgerDB) SetAccount(pubkey types.Pubkey, account *types.Account) error {
	return db.SetAccounts([]AccountRef{{Pubkey: pubkey, Account: account}})
}

// SetAccounts writes the batch in a single badger transaction. The account
// count is only adjusted once the transaction commits.
func (db *BadgerDB) SetAccounts(refs []AccountRef) error {
	var added, removed uint64

	err := db.db.Update(func(txn *badger.Txn) error {
		for _, ref := range refs {
			key := makeAccountKey(ref.Pubkey)

			_, err := txn.Get(key)
			exists := err == nil
			if err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
				return err
			}

			if ref.Account == nil {
				if !exists {
					continue
				}
				if err := txn.Delete(key); err != nil {
					return err
				}
				removed++
				continue
			}

			data, err := SerializeAccount(ref.Account)
			if err != nil {
				return errors.Wrapf(err, "failed to serialize account %s", ref.Pubkey)
			}
			if err := txn.Set(key, data); err != nil {
				return err
			}
			if !exists {
				added++
			}
		}
		return nil
	})
	if err != nil {
		return errors.Wrap(err, "failed to set accounts")
	}

	db.count.Add(added)
	db.count.Add(-removed)
	return nil
}

// DeleteAccount removes an account.
func (db *BadgerDB) DeleteAccount(pubkey types.Pubkey) error {
	return db.SetAccounts([]AccountRef{{Pubkey: pubkey}})
}

// HasAccount returns true if the account exists.
func (db *BadgerDB) HasAccount(pubkey types.Pubkey) bool {
	key := makeAccountKey(pubkey)
	var exists bool

	db.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(key)
		exists = err == nil
		return nil
	})

	return exists
}

// ForEach iterates accounts in key order, which is pubkey order.
func (db *BadgerDB) ForEach(fn func(pubkey types.Pubkey, account *types.Account) error) error {
	return db.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(accountKeyPrefix)

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()

			var pubkey types.Pubkey
			copy(pubkey[:], item.Key()[len(accountKeyPrefix):])

			val, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			account, err := DeserializeAccount(val)
			if err != nil {
				return errors.Wrapf(err, "account %s", pubkey)
			}
			if err := fn(pubkey, account); err != nil {
				return err
			}
		}
		return nil
	})
}

// GetAccountsCount returns the total number of accounts.
func (db *BadgerDB) GetAccountsCount() uint64 {
	return db.count.Load()
}

// Close closes the database.
func (db *BadgerDB) Close() error {
	return db.db.Close()
}

// countAccounts counts all accounts in the database.
func (db *BadgerDB) countAccounts() (uint64, error) {
	var count uint64

	err := db.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(accountKeyPrefix)

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			count++
		}
		return nil
	})

	return count, err
}

// badgerLogger adapts logrus to badger.Logger, dropping badger's chatty
// info and debug output.
type badgerLogger struct {
	log *logrus.Entry
}

func (l badgerLogger) Errorf(format string, args ...interface{}) {
	l.log.Errorf(format, args...)
}

func (l badgerLogger) Warningf(format string, args ...interface{}) {
	l.log.Warnf(format, args...)
}

func (l badgerLogger) Infof(string, ...interface{}) {}

func (l badgerLogger) Debugf(string, ...interface{}) {}

var _ AccountsDB = (*BadgerDB)(nil)
