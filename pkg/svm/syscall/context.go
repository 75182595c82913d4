// Package syscall provides the execution context native programs run in:
// the accounts view, compute meter, program logs, clock and rent, and
// cross-program invocation with program-derived signers.
package syscall

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/fortiblox/x1-staking/pkg/types"
)

// Context errors
var (
	ErrAccountNotFound     = errors.New("account not found")
	ErrAccountNotWritable  = errors.New("account is not writable")
	ErrAccountNotSigner    = errors.New("account is not a signer")
	ErrInsufficientFunds   = errors.New("insufficient funds")
	ErrComputeExhausted    = errors.New("compute units exhausted")
	ErrMaxLogsExceeded     = errors.New("maximum log entries exceeded")
	ErrInvalidAccountIndex = errors.New("invalid account index")
	ErrNoProgramExecutor   = errors.New("no program executor registered")
)

// Limits for execution
const (
	MaxLogMessages      = 64
	MaxLogMessageLength = 10000
	MaxAccountDataSize  = 10 * 1024 * 1024 // 10MB
)

// Compute costs
const (
	CUCreatePDA uint64 = 1500
	CUInvoke    uint64 = 1000
	CULog       uint64 = 100
)

// AccountInfo is a program's view of one instruction account. The embedded
// Account is shared between every view of the same address within a
// transaction, so writes made by a callee are visible to its caller.
type AccountInfo struct {
	Pubkey     types.Pubkey
	IsSigner   bool
	IsWritable bool
	*types.Account
}

// ProgramExecutor dispatches an execution context to the program named by
// ctx.ProgramID.
type ProgramExecutor interface {
	ExecuteProgram(ctx *ExecutionContext) error
}

// Config carries the per-transaction environment.
type Config struct {
	ComputeUnits  uint64
	UnixTimestamp int64
	Rent          types.Rent
	Executor      ProgramExecutor
}

// ExecutionContext holds the state of one instruction while it executes,
// including any nested invocations.
type ExecutionContext struct {
	// Program being executed
	ProgramID types.Pubkey

	// Accounts available to the instruction
	Accounts []*AccountInfo

	// Instruction data
	InstructionData []byte

	// Clock and rent sysvars
	UnixTimestamp int64
	Rent          types.Rent

	// Depth of CPI calls
	Depth int

	// Stack of callers for CPI
	CallerStack []types.Pubkey

	computeUnits    uint64
	maxComputeUnits uint64

	logs []string

	executor ProgramExecutor

	// pre-execution snapshots, one per active invocation
	frames []snapshot
}

// NewExecutionContext creates a new execution context for a top-level
// instruction.
func NewExecutionContext(cfg Config, programID types.Pubkey, accounts []*AccountInfo, instructionData []byte) *ExecutionContext {
	return &ExecutionContext{
		ProgramID:       programID,
		Accounts:        accounts,
		InstructionData: instructionData,
		UnixTimestamp:   cfg.UnixTimestamp,
		Rent:            cfg.Rent,
		CallerStack:     make([]types.Pubkey, 0, 4),
		computeUnits:    cfg.ComputeUnits,
		maxComputeUnits: cfg.ComputeUnits,
		logs:            make([]string, 0, 8),
		executor:        cfg.Executor,
	}
}

// ConsumeComputeUnits deducts compute units.
func (ctx *ExecutionContext) ConsumeComputeUnits(units uint64) error {
	if units > ctx.computeUnits {
		ctx.computeUnits = 0
		return ErrComputeExhausted
	}
	ctx.computeUnits -= units
	return nil
}

// GetComputeUnitsRemaining returns remaining compute units.
func (ctx *ExecutionContext) GetComputeUnitsRemaining() uint64 {
	return ctx.computeUnits
}

// GetComputeUnitsConsumed returns consumed compute units.
func (ctx *ExecutionContext) GetComputeUnitsConsumed() uint64 {
	return ctx.maxComputeUnits - ctx.computeUnits
}

// AddLog appends a program log line.
func (ctx *ExecutionContext) AddLog(message string) error {
	if len(ctx.logs) >= MaxLogMessages {
		return ErrMaxLogsExceeded
	}
	if len(message) > MaxLogMessageLength {
		message = message[:MaxLogMessageLength]
	}
	ctx.logs = append(ctx.logs, message)
	return nil
}

// Logf formats a "Program log:" line and charges for it. Only running out of
// compute fails; lines past the log limit are dropped.
func (ctx *ExecutionContext) Logf(format string, args ...interface{}) error {
	if err := ctx.ConsumeComputeUnits(CULog); err != nil {
		return err
	}
	_ = ctx.AddLog("Program log: " + fmt.Sprintf(format, args...))
	return nil
}

// GetLogs returns all log messages.
func (ctx *ExecutionContext) GetLogs() []string {
	logs := make([]string, len(ctx.logs))
	copy(logs, ctx.logs)
	return logs
}

// GetAccount returns an account by pubkey.
func (ctx *ExecutionContext) GetAccount(pubkey types.Pubkey) (*AccountInfo, error) {
	for _, acc := range ctx.Accounts {
		if acc.Pubkey == pubkey {
			return acc, nil
		}
	}
	return nil, errors.Wrap(ErrAccountNotFound, pubkey.String())
}

// GetAccountByIndex returns an account by index.
func (ctx *ExecutionContext) GetAccountByIndex(index int) (*AccountInfo, error) {
	if index < 0 || index >= len(ctx.Accounts) {
		return nil, errors.Wrapf(ErrInvalidAccountIndex, "%d", index)
	}
	return ctx.Accounts[index], nil
}

// AccountCount returns the number of accounts.
func (ctx *ExecutionContext) AccountCount() int {
	return len(ctx.Accounts)
}

// PushCaller pushes a caller onto the CPI stack.
func (ctx *ExecutionContext) PushCaller(programID types.Pubkey) {
	ctx.CallerStack = append(ctx.CallerStack, programID)
	ctx.Depth++
}

// PopCaller pops a caller from the CPI stack.
func (ctx *ExecutionContext) PopCaller() (types.Pubkey, bool) {
	if len(ctx.CallerStack) == 0 {
		return types.ZeroPubkey, false
	}
	caller := ctx.CallerStack[len(ctx.CallerStack)-1]
	ctx.CallerStack = ctx.CallerStack[:len(ctx.CallerStack)-1]
	ctx.Depth--
	return caller, true
}

// IsTopLevel returns true if this is the top-level execution (not a CPI call).
func (ctx *ExecutionContext) IsTopLevel() bool {
	return ctx.Depth == 0
}

// Process runs the top-level instruction and enforces the account ownership
// rules on its result.
func (ctx *ExecutionContext) Process() error {
	_ = ctx.AddLog(fmt.Sprintf("Program %s invoke [1]", ctx.ProgramID))
	err := ctx.invoke(ctx.ProgramID, ctx.Accounts, ctx.InstructionData)
	if err != nil {
		_ = ctx.AddLog(fmt.Sprintf("Program %s failed: %v", ctx.ProgramID, err))
		return err
	}
	_ = ctx.AddLog(fmt.Sprintf("Program %s success", ctx.ProgramID))
	return nil
}

// invoke switches the context to programID, runs it, verifies its account
// changes and restores the caller's view.
func (ctx *ExecutionContext) invoke(programID types.Pubkey, accounts []*AccountInfo, data []byte) error {
	if ctx.executor == nil {
		return ErrNoProgramExecutor
	}

	// The caller's own writes are judged before the callee can overwrite them.
	if len(ctx.frames) > 0 {
		if err := verifyAccountChanges(ctx.ProgramID, ctx.frames[len(ctx.frames)-1], ctx.Accounts, false); err != nil {
			return err
		}
	}

	pre := takeSnapshot(accounts)
	ctx.frames = append(ctx.frames, pre)

	oldProgramID := ctx.ProgramID
	oldAccounts := ctx.Accounts
	oldData := ctx.InstructionData

	ctx.ProgramID = programID
	ctx.Accounts = accounts
	ctx.InstructionData = data

	err := ctx.executor.ExecuteProgram(ctx)
	if err == nil {
		err = verifyAccountChanges(programID, pre, accounts, true)
	}

	ctx.ProgramID = oldProgramID
	ctx.Accounts = oldAccounts
	ctx.InstructionData = oldData
	ctx.frames = ctx.frames[:len(ctx.frames)-1]

	if err == nil && len(ctx.frames) > 0 {
		ctx.frames[len(ctx.frames)-1].absorb(pre, accounts)
	}

	return err
}
