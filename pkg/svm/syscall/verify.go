package syscall

import (
	"bytes"

	"github.com/pkg/errors"

	"github.com/fortiblox/x1-staking/pkg/types"
)

// Account rule violations
var (
	ErrReadOnlyModified        = errors.New("read-only account was modified")
	ErrExternalDataModified    = errors.New("instruction modified data of an account it does not own")
	ErrExternalLamportSpend    = errors.New("instruction spent from the balance of an account it does not own")
	ErrIllegalOwnerChange      = errors.New("instruction illegally modified the owner of an account")
	ErrExecutableModified      = errors.New("instruction changed executable flag")
	ErrUnbalancedInstruction   = errors.New("sum of account balances before and after instruction do not match")
	ErrAccountDataSizeExceeded = errors.New("account data size exceeds maximum")
)

type accountState struct {
	lamports   types.Lamports
	data       []byte
	owner      types.Pubkey
	executable bool
}

// snapshot records account state at the start of an invocation.
type snapshot map[types.Pubkey]accountState

func takeSnapshot(accounts []*AccountInfo) snapshot {
	s := make(snapshot, len(accounts))
	for _, acc := range accounts {
		s[acc.Pubkey] = stateOf(acc)
	}
	return s
}

func stateOf(acc *AccountInfo) accountState {
	data := make([]byte, len(acc.Data))
	copy(data, acc.Data)
	return accountState{
		lamports:   acc.Lamports,
		data:       data,
		owner:      acc.Owner,
		executable: acc.Executable,
	}
}

// absorb folds the effect of a nested invocation into the caller's
// snapshot. Lamports move by the callee's delta so the caller's own transfers
// still have to balance; data and owner take the callee's result.
func (s snapshot) absorb(calleePre snapshot, accounts []*AccountInfo) {
	seen := make(map[types.Pubkey]bool, len(accounts))
	for _, acc := range accounts {
		if seen[acc.Pubkey] {
			continue
		}
		seen[acc.Pubkey] = true

		state, ok := s[acc.Pubkey]
		if !ok {
			continue
		}
		before := calleePre[acc.Pubkey]
		state.lamports = state.lamports + acc.Lamports - before.lamports
		if !bytes.Equal(before.data, acc.Data) {
			state.data = append([]byte(nil), acc.Data...)
		}
		if before.owner != acc.Owner {
			state.owner = acc.Owner
		}
		s[acc.Pubkey] = state
	}
}

// verifyAccountChanges enforces the ownership rules of the ledger on the
// result of one program invocation:
//   - read-only accounts are unchanged
//   - only the owner may change data or debit lamports
//   - only the owner may reassign an account, and only while its data is zeroed
//   - lamports are neither created nor destroyed (when balanced is set)
func verifyAccountChanges(programID types.Pubkey, pre snapshot, accounts []*AccountInfo, balanced bool) error {
	var before, after uint64
	seen := make(map[types.Pubkey]bool, len(accounts))

	for _, acc := range accounts {
		if seen[acc.Pubkey] {
			continue
		}
		seen[acc.Pubkey] = true

		old := pre[acc.Pubkey]
		before += uint64(old.lamports)
		after += uint64(acc.Lamports)

		dataChanged := !bytes.Equal(old.data, acc.Data)
		changed := dataChanged || old.lamports != acc.Lamports || old.owner != acc.Owner || old.executable != acc.Executable

		if !acc.IsWritable {
			if changed {
				return errors.Wrap(ErrReadOnlyModified, acc.Pubkey.String())
			}
			continue
		}
		if old.executable != acc.Executable {
			return errors.Wrap(ErrExecutableModified, acc.Pubkey.String())
		}
		if len(acc.Data) > MaxAccountDataSize {
			return errors.Wrap(ErrAccountDataSizeExceeded, acc.Pubkey.String())
		}
		if old.owner != acc.Owner {
			if old.owner != programID || !isZeroed(acc.Data) {
				return errors.Wrap(ErrIllegalOwnerChange, acc.Pubkey.String())
			}
		}
		if dataChanged && old.owner != programID {
			return errors.Wrap(ErrExternalDataModified, acc.Pubkey.String())
		}
		if acc.Lamports < old.lamports && old.owner != programID {
			return errors.Wrap(ErrExternalLamportSpend, acc.Pubkey.String())
		}
	}

	if balanced && before != after {
		return ErrUnbalancedInstruction
	}
	return nil
}

func isZeroed(data []byte) bool {
	for _, b := range data {
		if b != 0 {
			return false
		}
	}
	return true
}
