package staking

import (
	"github.com/pkg/errors"

	"github.com/fortiblox/x1-staking/pkg/svm/programs/system"
	"github.com/fortiblox/x1-staking/pkg/svm/syscall"
	"github.com/fortiblox/x1-staking/pkg/types"
)

// createRecord brings a derived record address into existence, owned by the
// staking program, holding space zeroed bytes and the persistence deposit,
// which payer funds. The address signs for itself with seeds.
//
// An address that already holds lamports cannot go through CreateAccount, so
// it is topped up, allocated and assigned instead.
func createRecord(ctx *syscall.ExecutionContext, payer, record *syscall.AccountInfo, space uint64, seeds [][]byte) error {
	required := ctx.Rent.MinimumBalance(space)

	if record.Lamports == 0 {
		ix := system.CreateAccount(payer.Pubkey, record.Pubkey, uint64(required), space, ctx.ProgramID)
		return systemError(ctx.InvokeSigned(ix, seeds))
	}

	if record.Lamports < required {
		topUp := uint64(required - record.Lamports)
		if err := systemError(ctx.Invoke(system.Transfer(payer.Pubkey, record.Pubkey, topUp))); err != nil {
			return err
		}
	}
	if err := systemError(ctx.InvokeSigned(system.Allocate(record.Pubkey, space), seeds)); err != nil {
		return err
	}
	if err := systemError(ctx.InvokeSigned(system.Assign(record.Pubkey, ctx.ProgramID), seeds)); err != nil {
		return err
	}

	return requireExempt(ctx.Rent, record)
}

func systemError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, system.ErrInsufficientFunds):
		return errors.Wrap(ErrInsufficientFunds, err.Error())
	case errors.Is(err, system.ErrAccountNotRentExempt):
		return errors.Wrap(ErrRentNotExempt, err.Error())
	case errors.Is(err, system.ErrAccountAlreadyExists):
		return errors.Wrap(ErrAlreadyInitialized, err.Error())
	default:
		return err
	}
}

// requireExempt checks that a record keeps its persistence deposit.
func requireExempt(rent types.Rent, acc *syscall.AccountInfo) error {
	if !rent.IsExempt(acc.Lamports, uint64(len(acc.Data))) {
		return errors.Wrap(ErrRentNotExempt, acc.Pubkey.String())
	}
	return nil
}
