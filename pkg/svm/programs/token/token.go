// Package token implements the subset of the SPL Token Program the staking
// protocol relies on for custody: mints, token accounts, transfers and
// minting.
//
// Program ID: TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA
package token

import (
	"github.com/pkg/errors"

	"github.com/fortiblox/x1-staking/pkg/svm/syscall"
	"github.com/fortiblox/x1-staking/pkg/types"
)

// Compute cost of every Token Program instruction.
const computeUnits = 2_000

// TokenProgram implements the SPL Token Program.
type TokenProgram struct {
	// ProgramID is the Token Program's public key
	ProgramID types.Pubkey
}

// New creates a new TokenProgram instance.
func New() *TokenProgram {
	return &TokenProgram{
		ProgramID: types.TokenProgramID,
	}
}

// Execute executes a Token Program instruction.
// The instruction format is:
//   - First byte: instruction discriminator
//   - Remaining bytes: instruction-specific data
func (p *TokenProgram) Execute(ctx *syscall.ExecutionContext) error {
	if err := ctx.ConsumeComputeUnits(computeUnits); err != nil {
		return err
	}

	data := ctx.InstructionData
	if len(data) < 1 {
		return errors.Wrap(ErrInvalidInstructionData, "instruction data too short")
	}
	discriminator, args := data[0], data[1:]

	switch discriminator {
	case InstructionInitializeMint:
		var inst InitializeMintInstruction
		if err := inst.Decode(args); err != nil {
			return err
		}
		return handleInitializeMint(ctx, &inst)

	case InstructionInitializeAccount:
		return handleInitializeAccount(ctx)

	case InstructionTransfer:
		var inst AmountInstruction
		if err := inst.Decode(args); err != nil {
			return err
		}
		return handleTransfer(ctx, &inst)

	case InstructionMintTo:
		var inst AmountInstruction
		if err := inst.Decode(args); err != nil {
			return err
		}
		return handleMintTo(ctx, &inst)

	default:
		return errors.Wrapf(ErrInvalidInstruction, "unknown instruction %d", discriminator)
	}
}
