package system

import (
	"github.com/pkg/errors"

	"github.com/fortiblox/x1-staking/pkg/svm/syscall"
	"github.com/fortiblox/x1-staking/pkg/types"
)

// handleCreateAccount handles the CreateAccount instruction.
// Account layout:
//
//	[0] funding account (signer, writable)
//	[1] new account (signer, writable)
func handleCreateAccount(ctx *syscall.ExecutionContext, inst *CreateAccountInstruction) error {
	if ctx.AccountCount() < 2 {
		return errors.Wrap(ErrInvalidInstructionData, "CreateAccount requires 2 accounts")
	}

	fundingAcc, err := signerWritable(ctx, 0, "funding account")
	if err != nil {
		return err
	}
	newAcc, err := signerWritable(ctx, 1, "new account")
	if err != nil {
		return err
	}

	if newAcc.Lamports > 0 || len(newAcc.Data) > 0 || newAcc.Owner != types.SystemProgramID {
		return errors.Wrap(ErrAccountAlreadyExists, newAcc.Pubkey.String())
	}
	if inst.Space > syscall.MaxAccountDataSize {
		return ErrAccountDataTooLarge
	}

	minimum := ctx.Rent.MinimumBalance(inst.Space)
	if types.Lamports(inst.Lamports) < minimum {
		return errors.Wrapf(ErrAccountNotRentExempt, "need %d lamports", minimum)
	}
	if uint64(fundingAcc.Lamports) < inst.Lamports {
		return errors.Wrapf(ErrInsufficientFunds, "need %d lamports, have %d", inst.Lamports, fundingAcc.Lamports)
	}

	fundingAcc.Lamports -= types.Lamports(inst.Lamports)
	newAcc.Lamports += types.Lamports(inst.Lamports)
	newAcc.Data = make([]byte, inst.Space)
	newAcc.Owner = inst.Owner

	return nil
}

// handleAssign handles the Assign instruction.
// Account layout:
//
//	[0] account to assign (signer, writable)
func handleAssign(ctx *syscall.ExecutionContext, inst *AssignInstruction) error {
	if ctx.AccountCount() < 1 {
		return errors.Wrap(ErrInvalidInstructionData, "Assign requires 1 account")
	}

	acc, err := signerWritable(ctx, 0, "account to assign")
	if err != nil {
		return err
	}
	if acc.Owner != types.SystemProgramID {
		return errors.Wrap(ErrInvalidAccountOwner, "account must be owned by System Program")
	}

	acc.Owner = inst.Owner
	return nil
}

// handleTransfer handles the Transfer instruction.
// Account layout:
//
//	[0] source account (signer, writable)
//	[1] destination account (writable)
func handleTransfer(ctx *syscall.ExecutionContext, inst *TransferInstruction) error {
	if ctx.AccountCount() < 2 {
		return errors.Wrap(ErrInvalidInstructionData, "Transfer requires 2 accounts")
	}

	sourceAcc, err := signerWritable(ctx, 0, "source account")
	if err != nil {
		return err
	}
	if len(sourceAcc.Data) > 0 {
		return errors.Wrap(ErrInvalidAccountOwner, "source account must not carry data")
	}

	destAcc, err := ctx.GetAccountByIndex(1)
	if err != nil {
		return err
	}
	if !destAcc.IsWritable {
		return errors.Wrap(ErrAccountNotWritable, "destination account")
	}

	if uint64(sourceAcc.Lamports) < inst.Lamports {
		return errors.Wrapf(ErrInsufficientFunds, "need %d lamports, have %d", inst.Lamports, sourceAcc.Lamports)
	}

	sourceAcc.Lamports -= types.Lamports(inst.Lamports)
	destAcc.Lamports += types.Lamports(inst.Lamports)
	return nil
}

// handleAllocate handles the Allocate instruction.
// Account layout:
//
//	[0] account to allocate (signer, writable)
func handleAllocate(ctx *syscall.ExecutionContext, inst *AllocateInstruction) error {
	if ctx.AccountCount() < 1 {
		return errors.Wrap(ErrInvalidInstructionData, "Allocate requires 1 account")
	}

	acc, err := signerWritable(ctx, 0, "account to allocate")
	if err != nil {
		return err
	}
	if len(acc.Data) > 0 || acc.Owner != types.SystemProgramID {
		return errors.Wrap(ErrAccountAlreadyExists, acc.Pubkey.String())
	}
	if inst.Space > syscall.MaxAccountDataSize {
		return ErrAccountDataTooLarge
	}

	acc.Data = make([]byte, inst.Space)
	return nil
}

func signerWritable(ctx *syscall.ExecutionContext, index int, name string) (*syscall.AccountInfo, error) {
	acc, err := ctx.GetAccountByIndex(index)
	if err != nil {
		return nil, err
	}
	if !acc.IsSigner {
		return nil, errors.Wrap(ErrAccountNotSigner, name)
	}
	if !acc.IsWritable {
		return nil, errors.Wrap(ErrAccountNotWritable, name)
	}
	return acc, nil
}
