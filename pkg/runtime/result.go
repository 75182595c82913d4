package runtime

import (
	"fmt"
	"time"

	"github.com/fortiblox/x1-staking/pkg/svm/programs/staking"
	"github.com/fortiblox/x1-staking/pkg/types"
)

// InstructionError attributes a transaction failure to one instruction.
type InstructionError struct {
	Index     int
	ProgramID types.Pubkey
	Err       error
}

func (e *InstructionError) Error() string {
	return fmt.Sprintf("instruction %d (%s): %v", e.Index, e.ProgramID, e.Err)
}

func (e *InstructionError) Unwrap() error {
	return e.Err
}

// InstructionResult records one executed top-level instruction.
type InstructionResult struct {
	ProgramID   types.Pubkey
	ProgramName string
	Data        []byte
	Err         error
}

// Result is the outcome of one transaction. A non-nil Err means nothing was
// committed.
type Result struct {
	Signature            types.Signature
	Err                  error
	Logs                 []string
	ComputeUnitsConsumed uint64
	Instructions         []InstructionResult
	UnixTimestamp        int64
	Duration             time.Duration

	// ComputeUnitLimit is the budget the transaction ran with, either the
	// runtime default or its own SetComputeUnitLimit request.
	ComputeUnitLimit types.ComputeUnits
	// ComputeUnitPrice is the requested priority price in micro-lamports.
	ComputeUnitPrice uint64
}

// Success reports whether the transaction committed.
func (r *Result) Success() bool {
	return r.Err == nil
}

// StakingCode returns the staking program error code of a failed
// transaction, if the failure came from that program.
func (r *Result) StakingCode() (staking.Code, bool) {
	if r.Err == nil {
		return 0, false
	}
	return staking.CodeOf(r.Err)
}

// FailedInstruction returns the index of the failing instruction, or -1.
func (r *Result) FailedInstruction() int {
	for i, ix := range r.Instructions {
		if ix.Err != nil {
			return i
		}
	}
	return -1
}
