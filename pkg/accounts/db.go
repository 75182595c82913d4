// Package accounts provides ledger account storage for x1-staking.
package accounts

import (
	"github.com/fortiblox/x1-staking/pkg/types"
)

// AccountRef pairs an account with its address.
type AccountRef struct {
	Pubkey  types.Pubkey
	Account *types.Account
}

// AccountsDB defines the interface for account storage.
type AccountsDB interface {
	// GetAccount retrieves an account by pubkey.
	// Returns nil, nil if account does not exist.
	GetAccount(pubkey types.Pubkey) (*types.Account, error)

	// SetAccount stores an account.
	SetAccount(pubkey types.Pubkey, account *types.Account) error

	// SetAccounts stores every account in one atomic write. An entry with a
	// nil Account deletes that address.
	SetAccounts(refs []AccountRef) error

	// DeleteAccount removes an account.
	DeleteAccount(pubkey types.Pubkey) error

	// HasAccount returns true if the account exists.
	HasAccount(pubkey types.Pubkey) bool

	// ForEach calls fn for every stored account. Iteration stops at the
	// first error, which is returned.
	ForEach(fn func(pubkey types.Pubkey, account *types.Account) error) error

	// GetAccountsCount returns the total number of accounts.
	GetAccountsCount() uint64

	// Close closes the database.
	Close() error
}
