package compute_budget

import (
	"encoding/binary"

	"github.com/pkg/errors"

	"github.com/fortiblox/x1-staking/pkg/types"
)

// Instruction discriminators (first byte of instruction data).
const (
	InstructionRequestHeapFrame    uint8 = 1
	InstructionSetComputeUnitLimit uint8 = 2
	InstructionSetComputeUnitPrice uint8 = 3
)

const (
	MaxHeapFrameSize     uint32 = 256 * 1024
	DefaultHeapFrameSize uint32 = 32 * 1024
	HeapFrameAlignment   uint32 = 1024
)

// instruction is one decoded compute budget instruction.
type instruction struct {
	kind  uint8
	value uint64
}

func decodeInstruction(data []byte) (instruction, error) {
	if len(data) < 1 {
		return instruction{}, errors.Wrap(ErrInvalidInstructionData, "empty instruction")
	}
	kind, args := data[0], data[1:]

	switch kind {
	case InstructionRequestHeapFrame, InstructionSetComputeUnitLimit:
		if len(args) != 4 {
			return instruction{}, errors.Wrapf(ErrInvalidInstructionData, "instruction %d takes 4 bytes, got %d", kind, len(args))
		}
		return instruction{kind: kind, value: uint64(binary.LittleEndian.Uint32(args))}, nil

	case InstructionSetComputeUnitPrice:
		if len(args) != 8 {
			return instruction{}, errors.Wrapf(ErrInvalidInstructionData, "instruction %d takes 8 bytes, got %d", kind, len(args))
		}
		return instruction{kind: kind, value: binary.LittleEndian.Uint64(args)}, nil

	default:
		return instruction{}, errors.Wrapf(ErrUnknownInstruction, "%d", kind)
	}
}

func newInstruction(kind uint8, args []byte) types.Instruction {
	return types.Instruction{
		ProgramID: ProgramID,
		Data:      append([]byte{kind}, args...),
	}
}

// SetComputeUnitLimit caps the compute units the transaction may consume.
func SetComputeUnitLimit(units uint32) types.Instruction {
	args := make([]byte, 4)
	binary.LittleEndian.PutUint32(args, units)
	return newInstruction(InstructionSetComputeUnitLimit, args)
}

// SetComputeUnitPrice sets the priority price in micro-lamports per unit.
func SetComputeUnitPrice(microLamports uint64) types.Instruction {
	args := make([]byte, 8)
	binary.LittleEndian.PutUint64(args, microLamports)
	return newInstruction(InstructionSetComputeUnitPrice, args)
}

func RequestHeapFrame(bytes uint32) types.Instruction {
	args := make([]byte, 4)
	binary.LittleEndian.PutUint32(args, bytes)
	return newInstruction(InstructionRequestHeapFrame, args)
}
