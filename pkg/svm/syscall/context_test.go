package syscall

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fortiblox/x1-staking/pkg/types"
)

type programFunc func(ctx *ExecutionContext) error

type fakeExecutor map[types.Pubkey]programFunc

func (e fakeExecutor) ExecuteProgram(ctx *ExecutionContext) error {
	fn, ok := e[ctx.ProgramID]
	if !ok {
		return ErrAccountNotFound
	}
	return fn(ctx)
}

var (
	callerProgram = testPubkey("caller")
	calleeProgram = testPubkey("callee")
)

func info(pubkey types.Pubkey, signer, writable bool, account *types.Account) *AccountInfo {
	return &AccountInfo{Pubkey: pubkey, IsSigner: signer, IsWritable: writable, Account: account}
}

func programInfo(programID types.Pubkey) *AccountInfo {
	return info(programID, false, false, &types.Account{Lamports: 1, Executable: true})
}

func newTestContext(exec fakeExecutor, accounts ...*AccountInfo) *ExecutionContext {
	cfg := Config{
		ComputeUnits:  200_000,
		UnixTimestamp: 1000,
		Rent:          types.DefaultRent(),
		Executor:      exec,
	}
	return NewExecutionContext(cfg, callerProgram, accounts, nil)
}

func TestProcess_OwnerMayWrite(t *testing.T) {
	owned := info(testPubkey("owned"), false, true, &types.Account{Lamports: 10, Data: make([]byte, 4), Owner: callerProgram})

	exec := fakeExecutor{callerProgram: func(ctx *ExecutionContext) error {
		acc, err := ctx.GetAccountByIndex(0)
		require.NoError(t, err)
		acc.Data[0] = 7
		return ctx.Logf("wrote %d", acc.Data[0])
	}}

	ctx := newTestContext(exec, owned)
	require.NoError(t, ctx.Process())
	require.Equal(t, byte(7), owned.Data[0])
	require.Contains(t, ctx.GetLogs(), "Program log: wrote 7")
	require.Greater(t, ctx.GetComputeUnitsConsumed(), uint64(0))
}

func TestProcess_AccountRules(t *testing.T) {
	tests := []struct {
		name    string
		account *AccountInfo
		mutate  func(acc *AccountInfo)
		wantErr error
	}{
		{
			name:    "foreign data",
			account: info(testPubkey("a"), false, true, &types.Account{Data: make([]byte, 4), Owner: calleeProgram}),
			mutate:  func(acc *AccountInfo) { acc.Data[0] = 1 },
			wantErr: ErrExternalDataModified,
		},
		{
			name:    "read-only",
			account: info(testPubkey("b"), false, false, &types.Account{Data: make([]byte, 4), Owner: callerProgram}),
			mutate:  func(acc *AccountInfo) { acc.Data[0] = 1 },
			wantErr: ErrReadOnlyModified,
		},
		{
			name:    "minted lamports",
			account: info(testPubkey("c"), false, true, &types.Account{Lamports: 5, Owner: callerProgram}),
			mutate:  func(acc *AccountInfo) { acc.Lamports += 5 },
			wantErr: ErrUnbalancedInstruction,
		},
		{
			name:    "foreign owner change",
			account: info(testPubkey("d"), false, true, &types.Account{Owner: calleeProgram}),
			mutate:  func(acc *AccountInfo) { acc.Owner = callerProgram },
			wantErr: ErrIllegalOwnerChange,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exec := fakeExecutor{callerProgram: func(ctx *ExecutionContext) error {
				tt.mutate(ctx.Accounts[0])
				return nil
			}}
			err := newTestContext(exec, tt.account).Process()
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestInvokeSigned_GrantsPDASigner(t *testing.T) {
	seeds := [][]byte{[]byte("vault")}
	pda, bump, err := FindProgramAddress(seeds, callerProgram)
	require.NoError(t, err)

	target := info(pda, false, true, &types.Account{Data: make([]byte, 1), Owner: calleeProgram})

	exec := fakeExecutor{
		callerProgram: func(ctx *ExecutionContext) error {
			ix := types.Instruction{
				ProgramID: calleeProgram,
				Accounts:  []types.AccountMeta{types.NewAccountMeta(pda, true, true)},
			}
			return ctx.InvokeSigned(ix, [][]byte{[]byte("vault"), {bump}})
		},
		calleeProgram: func(ctx *ExecutionContext) error {
			acc := ctx.Accounts[0]
			if !acc.IsSigner {
				return ErrAccountNotSigner
			}
			acc.Data[0] = 9
			return nil
		},
	}

	ctx := newTestContext(exec, target, programInfo(calleeProgram))
	require.NoError(t, ctx.Process())
	require.Equal(t, byte(9), target.Data[0])
	require.Equal(t, 0, ctx.Depth)
	require.Contains(t, ctx.GetLogs(), "Program "+calleeProgram.String()+" invoke [2]")
}

func TestInvokeSigned_RejectsUnprovenSigner(t *testing.T) {
	pda, _, err := FindProgramAddress([][]byte{[]byte("vault")}, callerProgram)
	require.NoError(t, err)

	exec := fakeExecutor{
		callerProgram: func(ctx *ExecutionContext) error {
			ix := types.Instruction{
				ProgramID: calleeProgram,
				Accounts:  []types.AccountMeta{types.NewAccountMeta(pda, true, true)},
			}
			// Seeds of a different address prove nothing about pda.
			return ctx.InvokeSigned(ix, [][]byte{[]byte("other"), {255}})
		},
		calleeProgram: func(ctx *ExecutionContext) error { return nil },
	}

	ctx := newTestContext(exec, info(pda, false, true, &types.Account{}), programInfo(calleeProgram))
	require.Error(t, ctx.Process())
}

func TestInvokeSigned_PrivilegeEscalation(t *testing.T) {
	readonly := testPubkey("readonly")

	exec := fakeExecutor{
		callerProgram: func(ctx *ExecutionContext) error {
			ix := types.Instruction{
				ProgramID: calleeProgram,
				Accounts:  []types.AccountMeta{types.NewAccountMeta(readonly, false, true)},
			}
			return ctx.Invoke(ix)
		},
		calleeProgram: func(ctx *ExecutionContext) error { return nil },
	}

	ctx := newTestContext(exec, info(readonly, false, false, &types.Account{}), programInfo(calleeProgram))
	require.ErrorIs(t, ctx.Process(), ErrCPIWritablePrivilege)
}

func TestInvokeSigned_CalleeWritesForeignAccount(t *testing.T) {
	// The callee owns the account; after it returns, the caller must not be
	// blamed for the change.
	tokenAcc := info(testPubkey("token"), false, true, &types.Account{Data: make([]byte, 8), Owner: calleeProgram})

	exec := fakeExecutor{
		callerProgram: func(ctx *ExecutionContext) error {
			ix := types.Instruction{
				ProgramID: calleeProgram,
				Accounts:  []types.AccountMeta{types.NewAccountMeta(tokenAcc.Pubkey, false, true)},
			}
			return ctx.Invoke(ix)
		},
		calleeProgram: func(ctx *ExecutionContext) error {
			ctx.Accounts[0].Data[3] = 1
			return nil
		},
	}

	ctx := newTestContext(exec, tokenAcc, programInfo(calleeProgram))
	require.NoError(t, ctx.Process())
	require.Equal(t, byte(1), tokenAcc.Data[3])
}

func TestInvokeSigned_CallerWriteBeforeInvoke(t *testing.T) {
	foreign := info(testPubkey("foreign"), false, true, &types.Account{Data: make([]byte, 8), Owner: calleeProgram})

	exec := fakeExecutor{
		callerProgram: func(ctx *ExecutionContext) error {
			ctx.Accounts[0].Data[0] = 9
			ix := types.Instruction{
				ProgramID: calleeProgram,
				Accounts:  []types.AccountMeta{types.NewAccountMeta(foreign.Pubkey, false, true)},
			}
			return ctx.Invoke(ix)
		},
		calleeProgram: func(ctx *ExecutionContext) error {
			ctx.Accounts[0].Data[1] = 1
			return nil
		},
	}

	ctx := newTestContext(exec, foreign, programInfo(calleeProgram))
	require.ErrorIs(t, ctx.Process(), ErrExternalDataModified)
}

func TestInvokeSigned_CallerTransferSpansInvoke(t *testing.T) {
	from := info(testPubkey("from"), false, true, &types.Account{Lamports: 10, Owner: callerProgram})
	to := info(testPubkey("to"), false, true, &types.Account{Owner: callerProgram})

	exec := fakeExecutor{
		callerProgram: func(ctx *ExecutionContext) error {
			ctx.Accounts[0].Lamports -= 5
			ix := types.Instruction{
				ProgramID: calleeProgram,
				Accounts:  []types.AccountMeta{types.NewAccountMeta(from.Pubkey, false, false)},
			}
			if err := ctx.Invoke(ix); err != nil {
				return err
			}
			ctx.Accounts[1].Lamports += 5
			return nil
		},
		calleeProgram: func(ctx *ExecutionContext) error { return nil },
	}

	ctx := newTestContext(exec, from, to, programInfo(calleeProgram))
	require.NoError(t, ctx.Process())
	require.Equal(t, types.Lamports(5), to.Lamports)
}

func TestInvokeSigned_Reentrancy(t *testing.T) {
	exec := fakeExecutor{
		callerProgram: func(ctx *ExecutionContext) error {
			return ctx.Invoke(types.Instruction{ProgramID: callerProgram})
		},
	}
	ctx := newTestContext(exec, programInfo(callerProgram))
	require.ErrorIs(t, ctx.Process(), ErrCPIReentrancy)
}

func TestInvokeSigned_ProgramNotProvided(t *testing.T) {
	exec := fakeExecutor{
		callerProgram: func(ctx *ExecutionContext) error {
			return ctx.Invoke(types.Instruction{ProgramID: calleeProgram})
		},
	}
	ctx := newTestContext(exec)
	require.ErrorIs(t, ctx.Process(), ErrCPIProgramNotProvided)
}

func TestConsumeComputeUnits(t *testing.T) {
	ctx := newTestContext(fakeExecutor{})
	require.NoError(t, ctx.ConsumeComputeUnits(100))
	require.Equal(t, uint64(199_900), ctx.GetComputeUnitsRemaining())
	require.ErrorIs(t, ctx.ConsumeComputeUnits(1_000_000), ErrComputeExhausted)
	require.Equal(t, uint64(0), ctx.GetComputeUnitsRemaining())
}

func TestLogf_ChargesComputeUnits(t *testing.T) {
	ctx := NewExecutionContext(Config{ComputeUnits: CULog + 50}, callerProgram, nil, nil)
	require.NoError(t, ctx.Logf("first"))
	require.ErrorIs(t, ctx.Logf("second"), ErrComputeExhausted)
	require.Equal(t, []string{"Program log: first"}, ctx.GetLogs())
	require.Equal(t, uint64(0), ctx.GetComputeUnitsRemaining())
}
