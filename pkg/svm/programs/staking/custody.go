package staking

import (
	"github.com/pkg/errors"

	"github.com/fortiblox/x1-staking/pkg/svm/programs/token"
	"github.com/fortiblox/x1-staking/pkg/svm/syscall"
	"github.com/fortiblox/x1-staking/pkg/types"
)

// transferSigned moves tokens with a signer the instruction already carries.
func transferSigned(ctx *syscall.ExecutionContext, source, destination, authority types.Pubkey, amount uint64) error {
	return custodyError(ctx.Invoke(token.Transfer(source, destination, authority, amount)))
}

// transferFromVault moves tokens out of the vault. The vault's token owner is
// the pool address, which signs with its derivation seeds.
func transferFromVault(ctx *syscall.ExecutionContext, vault, destination, pool types.Pubkey, seeds [][]byte, amount uint64) error {
	return custodyError(ctx.InvokeSigned(token.Transfer(vault, destination, pool, amount), seeds))
}

func custodyError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, token.ErrInsufficientFunds):
		return errors.Wrap(ErrInsufficientFunds, err.Error())
	case errors.Is(err, token.ErrOwnerMismatch):
		return errors.Wrap(ErrOwnerMismatch, err.Error())
	case errors.Is(err, token.ErrMintMismatch):
		return errors.Wrap(ErrMintMismatch, err.Error())
	default:
		return err
	}
}
