// Package compute_budget implements the Compute Budget Program. Its
// instructions carry no accounts and change no state: the runtime reads them
// from the message before execution to size the transaction's compute
// budget, and executing them afterwards only re-validates the data.
package compute_budget

import (
	"github.com/pkg/errors"

	"github.com/fortiblox/x1-staking/pkg/svm/syscall"
	"github.com/fortiblox/x1-staking/pkg/types"
)

// ProgramID is the Compute Budget Program's address.
var ProgramID = types.MustPubkeyFromBase58("ComputeBudget111111111111111111111111111111")

const computeUnits = 150

// ComputeBudgetProgram implements the Compute Budget Program.
type ComputeBudgetProgram struct{}

func New() *ComputeBudgetProgram {
	return &ComputeBudgetProgram{}
}

// Execute validates a budget instruction. The parameters it carries were
// already applied when the transaction was loaded.
func (p *ComputeBudgetProgram) Execute(ctx *syscall.ExecutionContext) error {
	if err := ctx.ConsumeComputeUnits(computeUnits); err != nil {
		return err
	}
	if _, err := decodeInstruction(ctx.InstructionData); err != nil {
		return err
	}
	return nil
}

// Budget is the set of compute parameters requested by a transaction.
type Budget struct {
	ComputeUnitLimit types.ComputeUnits
	// ComputeUnitPrice is in micro-lamports per compute unit.
	ComputeUnitPrice uint64
	HeapFrameSize    uint32

	limitSet, priceSet, heapSet bool
}

// LimitRequested reports whether the transaction set its own limit.
func (b *Budget) LimitRequested() bool {
	return b.limitSet
}

// FromInstructions collects the budget requested by the Compute Budget
// instructions among ixs. Transactions without a limit get defaultLimit.
// Every parameter may be set at most once.
func FromInstructions(ixs []types.Instruction, defaultLimit types.ComputeUnits) (*Budget, error) {
	budget := &Budget{
		ComputeUnitLimit: defaultLimit,
		HeapFrameSize:    DefaultHeapFrameSize,
	}

	for i, ix := range ixs {
		if ix.ProgramID != ProgramID {
			continue
		}
		inst, err := decodeInstruction(ix.Data)
		if err != nil {
			return nil, errors.Wrapf(err, "instruction %d", i)
		}

		switch inst.kind {
		case InstructionSetComputeUnitLimit:
			if budget.limitSet {
				return nil, errors.Wrap(ErrDuplicateInstruction, "SetComputeUnitLimit")
			}
			if types.ComputeUnits(inst.value) > types.MaxComputeUnitsPerTransaction {
				return nil, errors.Wrapf(ErrComputeUnitLimitTooHigh, "%d > %d", inst.value, types.MaxComputeUnitsPerTransaction)
			}
			budget.limitSet = true
			budget.ComputeUnitLimit = types.ComputeUnits(inst.value)

		case InstructionSetComputeUnitPrice:
			if budget.priceSet {
				return nil, errors.Wrap(ErrDuplicateInstruction, "SetComputeUnitPrice")
			}
			budget.priceSet = true
			budget.ComputeUnitPrice = inst.value

		case InstructionRequestHeapFrame:
			if budget.heapSet {
				return nil, errors.Wrap(ErrDuplicateInstruction, "RequestHeapFrame")
			}
			size := uint32(inst.value)
			if size%HeapFrameAlignment != 0 || size < DefaultHeapFrameSize || size > MaxHeapFrameSize {
				return nil, errors.Wrapf(ErrInvalidHeapFrameSize, "%d bytes", size)
			}
			budget.heapSet = true
			budget.HeapFrameSize = size
		}
	}
	return budget, nil
}
