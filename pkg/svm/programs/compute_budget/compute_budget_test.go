package compute_budget

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fortiblox/x1-staking/pkg/types"
)

func TestFromInstructions_Defaults(t *testing.T) {
	other := types.Instruction{ProgramID: types.SystemProgramID, Data: []byte{2, 0, 0, 0}}
	budget, err := FromInstructions([]types.Instruction{other}, 200_000)
	require.NoError(t, err)
	require.False(t, budget.LimitRequested())
	require.EqualValues(t, 200_000, budget.ComputeUnitLimit)
	require.Zero(t, budget.ComputeUnitPrice)
	require.Equal(t, DefaultHeapFrameSize, budget.HeapFrameSize)
}

func TestFromInstructions_Requests(t *testing.T) {
	budget, err := FromInstructions([]types.Instruction{
		SetComputeUnitLimit(50_000),
		SetComputeUnitPrice(1_000),
		RequestHeapFrame(64 * 1024),
	}, 200_000)
	require.NoError(t, err)
	require.True(t, budget.LimitRequested())
	require.EqualValues(t, 50_000, budget.ComputeUnitLimit)
	require.EqualValues(t, 1_000, budget.ComputeUnitPrice)
	require.EqualValues(t, 64*1024, budget.HeapFrameSize)
}

func TestFromInstructions_Errors(t *testing.T) {
	for _, tc := range []struct {
		name string
		ixs  []types.Instruction
		err  error
	}{
		{"duplicate limit", []types.Instruction{SetComputeUnitLimit(1), SetComputeUnitLimit(2)}, ErrDuplicateInstruction},
		{"duplicate price", []types.Instruction{SetComputeUnitPrice(1), SetComputeUnitPrice(1)}, ErrDuplicateInstruction},
		{"limit too high", []types.Instruction{SetComputeUnitLimit(1_400_001)}, ErrComputeUnitLimitTooHigh},
		{"unaligned heap", []types.Instruction{RequestHeapFrame(33 * 1000)}, ErrInvalidHeapFrameSize},
		{"heap too large", []types.Instruction{RequestHeapFrame(MaxHeapFrameSize + HeapFrameAlignment)}, ErrInvalidHeapFrameSize},
		{"short data", []types.Instruction{{ProgramID: ProgramID, Data: []byte{InstructionSetComputeUnitLimit, 1}}}, ErrInvalidInstructionData},
		{"empty data", []types.Instruction{{ProgramID: ProgramID}}, ErrInvalidInstructionData},
		{"unknown", []types.Instruction{{ProgramID: ProgramID, Data: []byte{9}}}, ErrUnknownInstruction},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := FromInstructions(tc.ixs, 200_000)
			require.ErrorIs(t, err, tc.err)
		})
	}
}

func TestInstructionEncoding(t *testing.T) {
	ix := SetComputeUnitLimit(0x01020304)
	require.Equal(t, ProgramID, ix.ProgramID)
	require.Empty(t, ix.Accounts)
	require.Equal(t, []byte{2, 4, 3, 2, 1}, ix.Data)

	ix = SetComputeUnitPrice(1)
	require.Equal(t, []byte{3, 1, 0, 0, 0, 0, 0, 0, 0}, ix.Data)
}
