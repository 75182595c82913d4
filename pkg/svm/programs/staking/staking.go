// Package staking implements the staking program: per-mint pools that hold
// deposited tokens in a vault controlled by the pool's derived address, and
// per-user positions that accrue a flat reward per staked token per second.
package staking

import (
	"github.com/pkg/errors"

	"github.com/fortiblox/x1-staking/pkg/svm/syscall"
	"github.com/fortiblox/x1-staking/pkg/types"
)

// Compute cost of every staking instruction, excluding nested invocations.
const computeUnits = 5_000

// StakingProgram implements the staking program.
type StakingProgram struct {
	ProgramID types.Pubkey
}

// New creates a StakingProgram deployed at programID.
func New(programID types.Pubkey) *StakingProgram {
	return &StakingProgram{ProgramID: programID}
}

// Instruction is a decoded staking instruction.
type Instruction struct {
	Discriminator uint8
	RewardRate    uint64 // InitializePool
	Amount        uint64 // Stake, Unstake, FundRewards
}

// Name returns the instruction's name.
func (inst *Instruction) Name() string {
	switch inst.Discriminator {
	case InstructionInitializePool:
		return "InitializePool"
	case InstructionStake:
		return "Stake"
	case InstructionUnstake:
		return "Unstake"
	case InstructionClaimRewards:
		return "ClaimRewards"
	case InstructionFundRewards:
		return "FundRewards"
	default:
		return "Unknown"
	}
}

// ParseInstruction decodes staking instruction data.
func ParseInstruction(data []byte) (*Instruction, error) {
	if len(data) < 1 {
		return nil, errors.Wrap(ErrInvalidInstruction, "empty instruction data")
	}
	inst := &Instruction{Discriminator: data[0]}
	args := data[1:]

	switch inst.Discriminator {
	case InstructionInitializePool:
		var a InitializePoolArgs
		if err := decodeArgs(args, &a); err != nil {
			return nil, err
		}
		inst.RewardRate = a.RewardRate

	case InstructionStake, InstructionUnstake, InstructionFundRewards:
		var a AmountArgs
		if err := decodeArgs(args, &a); err != nil {
			return nil, err
		}
		inst.Amount = a.Amount

	case InstructionClaimRewards:
		if len(args) != 0 {
			return nil, errors.Wrapf(ErrInvalidInstruction, "ClaimRewards takes no arguments, got %d bytes", len(args))
		}

	default:
		return nil, errors.Wrapf(ErrInvalidInstruction, "unknown instruction %d", inst.Discriminator)
	}
	return inst, nil
}

// Execute executes a staking instruction.
func (p *StakingProgram) Execute(ctx *syscall.ExecutionContext) error {
	if err := ctx.ConsumeComputeUnits(computeUnits); err != nil {
		return err
	}

	inst, err := ParseInstruction(ctx.InstructionData)
	if err != nil {
		return err
	}
	if err := ctx.Logf("Instruction: %s", inst.Name()); err != nil {
		return err
	}

	switch inst.Discriminator {
	case InstructionInitializePool:
		return handleInitializePool(ctx, inst.RewardRate)
	case InstructionStake:
		return handleStake(ctx, inst.Amount)
	case InstructionUnstake:
		return handleUnstake(ctx, inst.Amount)
	case InstructionClaimRewards:
		return handleClaimRewards(ctx)
	default:
		return handleFundRewards(ctx, inst.Amount)
	}
}
