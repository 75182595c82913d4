package token

import (
	"github.com/pkg/errors"

	"github.com/fortiblox/x1-staking/pkg/svm/syscall"
	"github.com/fortiblox/x1-staking/pkg/types"
)

// handleInitializeMint handles the InitializeMint instruction.
// Account layout:
//
//	[0] mint (writable)
func handleInitializeMint(ctx *syscall.ExecutionContext, inst *InitializeMintInstruction) error {
	if ctx.AccountCount() < 1 {
		return errors.Wrapf(ErrInvalidNumberOfAccounts, "InitializeMint requires 1 account, got %d", ctx.AccountCount())
	}

	mintAcc, err := tokenOwned(ctx, 0, "mint", true)
	if err != nil {
		return err
	}
	if len(mintAcc.Data) != MintSize {
		return errors.Wrapf(ErrInvalidAccountData, "mint account must be %d bytes", MintSize)
	}

	existing, err := DeserializeMint(mintAcc.Data)
	if err != nil {
		return err
	}
	if existing.IsInitialized {
		return ErrAlreadyInitialized
	}
	if !ctx.Rent.IsExempt(mintAcc.Lamports, MintSize) {
		return ErrNotRentExempt
	}

	mint := NewMint(inst.Decimals, inst.MintAuthority, inst.FreezeAuthority)
	copy(mintAcc.Data, mint.Serialize())
	return nil
}

// handleInitializeAccount handles the InitializeAccount instruction.
// Account layout:
//
//	[0] account (writable)
//	[1] mint
//	[2] owner
func handleInitializeAccount(ctx *syscall.ExecutionContext) error {
	if ctx.AccountCount() < 3 {
		return errors.Wrapf(ErrInvalidNumberOfAccounts, "InitializeAccount requires 3 accounts, got %d", ctx.AccountCount())
	}

	tokenAcc, err := tokenOwned(ctx, 0, "token account", true)
	if err != nil {
		return err
	}
	mintAcc, err := ctx.GetAccountByIndex(1)
	if err != nil {
		return err
	}
	ownerAcc, err := ctx.GetAccountByIndex(2)
	if err != nil {
		return err
	}

	if len(tokenAcc.Data) != TokenAccountSize {
		return errors.Wrapf(ErrInvalidAccountData, "token account must be %d bytes", TokenAccountSize)
	}
	existing, err := DeserializeTokenAccount(tokenAcc.Data)
	if err != nil {
		return err
	}
	if existing.IsInitialized() {
		return ErrAlreadyInitialized
	}
	if !ctx.Rent.IsExempt(tokenAcc.Lamports, TokenAccountSize) {
		return ErrNotRentExempt
	}

	if _, err := ParseMint(mintAcc.Account); err != nil {
		return errors.Wrap(ErrInvalidMint, err.Error())
	}

	account := NewTokenAccount(mintAcc.Pubkey, ownerAcc.Pubkey)
	copy(tokenAcc.Data, account.Serialize())
	return nil
}

// handleTransfer handles the Transfer instruction.
// Account layout:
//
//	[0] source (writable)
//	[1] destination (writable)
//	[2] authority (signer) - the source owner or its delegate
func handleTransfer(ctx *syscall.ExecutionContext, inst *AmountInstruction) error {
	if ctx.AccountCount() < 3 {
		return errors.Wrapf(ErrInvalidNumberOfAccounts, "Transfer requires 3 accounts, got %d", ctx.AccountCount())
	}

	sourceAcc, err := tokenOwned(ctx, 0, "source", true)
	if err != nil {
		return err
	}
	destAcc, err := tokenOwned(ctx, 1, "destination", true)
	if err != nil {
		return err
	}
	authorityAcc, err := ctx.GetAccountByIndex(2)
	if err != nil {
		return err
	}
	if !authorityAcc.IsSigner {
		return errors.Wrap(ErrAccountNotSigner, "authority")
	}

	source, err := DeserializeTokenAccount(sourceAcc.Data)
	if err != nil {
		return errors.Wrap(err, "source")
	}
	dest, err := DeserializeTokenAccount(destAcc.Data)
	if err != nil {
		return errors.Wrap(err, "destination")
	}

	if !source.IsInitialized() {
		return errors.Wrap(ErrNotInitialized, "source")
	}
	if !dest.IsInitialized() {
		return errors.Wrap(ErrNotInitialized, "destination")
	}
	if source.Mint != dest.Mint {
		return ErrMintMismatch
	}

	if source.Owner != authorityAcc.Pubkey {
		return ErrOwnerMismatch
	}
	if inst.Amount > source.Amount {
		return errors.Wrapf(ErrInsufficientFunds, "need %d, have %d", inst.Amount, source.Amount)
	}

	// A self-transfer only has to pass the checks above.
	if sourceAcc.Pubkey == destAcc.Pubkey {
		return nil
	}

	if dest.Amount > ^uint64(0)-inst.Amount {
		return ErrOverflow
	}

	source.Amount -= inst.Amount
	dest.Amount += inst.Amount

	copy(sourceAcc.Data, source.Serialize())
	copy(destAcc.Data, dest.Serialize())
	return nil
}

// handleMintTo handles the MintTo instruction.
// Account layout:
//
//	[0] mint (writable)
//	[1] destination (writable)
//	[2] mint_authority (signer)
func handleMintTo(ctx *syscall.ExecutionContext, inst *AmountInstruction) error {
	if ctx.AccountCount() < 3 {
		return errors.Wrapf(ErrInvalidNumberOfAccounts, "MintTo requires 3 accounts, got %d", ctx.AccountCount())
	}

	mintAcc, err := tokenOwned(ctx, 0, "mint", true)
	if err != nil {
		return err
	}
	destAcc, err := tokenOwned(ctx, 1, "destination", true)
	if err != nil {
		return err
	}
	authorityAcc, err := ctx.GetAccountByIndex(2)
	if err != nil {
		return err
	}
	if !authorityAcc.IsSigner {
		return errors.Wrap(ErrAccountNotSigner, "mint authority")
	}

	mint, err := DeserializeMint(mintAcc.Data)
	if err != nil {
		return errors.Wrap(err, "mint")
	}
	dest, err := DeserializeTokenAccount(destAcc.Data)
	if err != nil {
		return errors.Wrap(err, "destination")
	}

	if !mint.IsInitialized {
		return errors.Wrap(ErrNotInitialized, "mint")
	}
	if !dest.IsInitialized() {
		return errors.Wrap(ErrNotInitialized, "destination")
	}
	if dest.Mint != mintAcc.Pubkey {
		return ErrMintMismatch
	}

	if !mint.MintAuthority.IsSome {
		return ErrFixedSupply
	}
	if mint.MintAuthority.Value != authorityAcc.Pubkey {
		return ErrAuthorityMismatch
	}

	if mint.Supply > ^uint64(0)-inst.Amount || dest.Amount > ^uint64(0)-inst.Amount {
		return ErrOverflow
	}

	mint.Supply += inst.Amount
	dest.Amount += inst.Amount

	copy(mintAcc.Data, mint.Serialize())
	copy(destAcc.Data, dest.Serialize())
	return nil
}

func tokenOwned(ctx *syscall.ExecutionContext, index int, name string, writable bool) (*syscall.AccountInfo, error) {
	acc, err := ctx.GetAccountByIndex(index)
	if err != nil {
		return nil, err
	}
	if writable && !acc.IsWritable {
		return nil, errors.Wrap(ErrAccountNotWritable, name)
	}
	if acc.Owner != types.TokenProgramID {
		return nil, errors.Wrap(ErrInvalidAccountOwner, name)
	}
	return acc, nil
}
