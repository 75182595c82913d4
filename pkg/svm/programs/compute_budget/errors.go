package compute_budget

import "github.com/pkg/errors"

var (
	ErrInvalidInstructionData = errors.New("invalid compute budget instruction data")

	// ErrInvalidHeapFrameSize indicates a heap frame that is not a multiple
	// of 1024 bytes or exceeds 256KB.
	ErrInvalidHeapFrameSize = errors.New("invalid heap frame size")

	ErrComputeUnitLimitTooHigh = errors.New("compute unit limit too high")

	// ErrDuplicateInstruction indicates a transaction set the same budget
	// parameter twice.
	ErrDuplicateInstruction = errors.New("duplicate compute budget instruction")

	ErrUnknownInstruction = errors.New("unknown compute budget instruction")
)
