// Package system implements the System Program: account creation, space
// allocation, ownership assignment and lamport transfers. Every account is
// owned by the System Program until assigned to another program.
package system

import (
	"github.com/pkg/errors"

	"github.com/fortiblox/x1-staking/pkg/svm/syscall"
	"github.com/fortiblox/x1-staking/pkg/types"
)

// Compute cost of every System Program instruction.
const computeUnits = 150

// SystemProgram implements the System Program.
type SystemProgram struct {
	// ProgramID is the System Program's public key
	ProgramID types.Pubkey
}

// New creates a new SystemProgram instance.
func New() *SystemProgram {
	return &SystemProgram{
		ProgramID: types.SystemProgramID,
	}
}

// Execute executes a System Program instruction.
// The instruction format is:
//   - First 4 bytes: instruction discriminator (little-endian uint32)
//   - Remaining bytes: instruction-specific data
func (p *SystemProgram) Execute(ctx *syscall.ExecutionContext) error {
	if err := ctx.ConsumeComputeUnits(computeUnits); err != nil {
		return err
	}

	discriminator, data, err := parseInstruction(ctx.InstructionData)
	if err != nil {
		return err
	}

	switch discriminator {
	case InstructionCreateAccount:
		var inst CreateAccountInstruction
		if err := inst.Decode(data); err != nil {
			return err
		}
		return handleCreateAccount(ctx, &inst)

	case InstructionAssign:
		var inst AssignInstruction
		if err := inst.Decode(data); err != nil {
			return err
		}
		return handleAssign(ctx, &inst)

	case InstructionTransfer:
		var inst TransferInstruction
		if err := inst.Decode(data); err != nil {
			return err
		}
		return handleTransfer(ctx, &inst)

	case InstructionAllocate:
		var inst AllocateInstruction
		if err := inst.Decode(data); err != nil {
			return err
		}
		return handleAllocate(ctx, &inst)

	default:
		return errors.Wrapf(ErrInvalidInstructionData, "unknown instruction %d", discriminator)
	}
}
