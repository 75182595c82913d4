package system

import (
	"crypto/sha256"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fortiblox/x1-staking/pkg/svm/syscall"
	"github.com/fortiblox/x1-staking/pkg/types"
)

type executor struct {
	program *SystemProgram
}

func (e executor) ExecuteProgram(ctx *syscall.ExecutionContext) error {
	return e.program.Execute(ctx)
}

func testPubkey(seed string) types.Pubkey {
	return types.Pubkey(sha256.Sum256([]byte(seed)))
}

func run(t *testing.T, ix types.Instruction, accounts ...*types.Account) error {
	t.Helper()
	infos := make([]*syscall.AccountInfo, len(ix.Accounts))
	for i, meta := range ix.Accounts {
		infos[i] = &syscall.AccountInfo{
			Pubkey:     meta.Pubkey,
			IsSigner:   meta.IsSigner,
			IsWritable: meta.IsWritable,
			Account:    accounts[i],
		}
	}
	cfg := syscall.Config{
		ComputeUnits: 10_000,
		Rent:         types.DefaultRent(),
		Executor:     executor{New()},
	}
	return syscall.NewExecutionContext(cfg, types.SystemProgramID, infos, ix.Data).Process()
}

func wallet(lamports types.Lamports) *types.Account {
	return types.NewAccount(lamports, types.SystemProgramID)
}

func TestCreateAccount(t *testing.T) {
	rent := types.DefaultRent()
	owner := testPubkey("owner")
	funder := wallet(10_000_000)
	created := wallet(0)

	ix := CreateAccount(testPubkey("funder"), testPubkey("new"), uint64(rent.MinimumBalance(64)), 64, owner)
	require.NoError(t, run(t, ix, funder, created))

	require.Equal(t, owner, created.Owner)
	require.Len(t, created.Data, 64)
	require.Equal(t, rent.MinimumBalance(64), created.Lamports)
	require.Equal(t, types.Lamports(10_000_000)-rent.MinimumBalance(64), funder.Lamports)
}

func TestCreateAccount_Errors(t *testing.T) {
	rent := types.DefaultRent()
	owner := testPubkey("owner")

	t.Run("already exists", func(t *testing.T) {
		ix := CreateAccount(testPubkey("funder"), testPubkey("new"), uint64(rent.MinimumBalance(0)), 0, owner)
		err := run(t, ix, wallet(10_000_000), wallet(1))
		require.ErrorIs(t, err, ErrAccountAlreadyExists)
	})

	t.Run("not rent exempt", func(t *testing.T) {
		ix := CreateAccount(testPubkey("funder"), testPubkey("new"), 1, 64, owner)
		err := run(t, ix, wallet(10_000_000), wallet(0))
		require.ErrorIs(t, err, ErrAccountNotRentExempt)
	})

	t.Run("insufficient funds", func(t *testing.T) {
		ix := CreateAccount(testPubkey("funder"), testPubkey("new"), uint64(rent.MinimumBalance(64)), 64, owner)
		err := run(t, ix, wallet(1), wallet(0))
		require.ErrorIs(t, err, ErrInsufficientFunds)
	})

	t.Run("missing signer", func(t *testing.T) {
		ix := CreateAccount(testPubkey("funder"), testPubkey("new"), uint64(rent.MinimumBalance(0)), 0, owner)
		ix.Accounts[1].IsSigner = false
		err := run(t, ix, wallet(10_000_000), wallet(0))
		require.ErrorIs(t, err, ErrAccountNotSigner)
	})
}

func TestTransfer(t *testing.T) {
	from, to := wallet(100), wallet(5)
	require.NoError(t, run(t, Transfer(testPubkey("from"), testPubkey("to"), 60), from, to))
	require.Equal(t, types.Lamports(40), from.Lamports)
	require.Equal(t, types.Lamports(65), to.Lamports)

	err := run(t, Transfer(testPubkey("from"), testPubkey("to"), 41), from, to)
	require.ErrorIs(t, err, ErrInsufficientFunds)
}

func TestAllocateAndAssign(t *testing.T) {
	owner := testPubkey("owner")
	acc := wallet(1_000_000)

	require.NoError(t, run(t, Allocate(testPubkey("acc"), 16), acc))
	require.Len(t, acc.Data, 16)

	require.NoError(t, run(t, Assign(testPubkey("acc"), owner), acc))
	require.Equal(t, owner, acc.Owner)

	err := run(t, Assign(testPubkey("acc"), testPubkey("other")), acc)
	require.ErrorIs(t, err, ErrInvalidAccountOwner)
}

func TestExecute_UnknownInstruction(t *testing.T) {
	ix := types.Instruction{ProgramID: types.SystemProgramID, Data: []byte{99, 0, 0, 0}}
	require.ErrorIs(t, run(t, ix), ErrInvalidInstructionData)
}
