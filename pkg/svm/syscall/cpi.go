package syscall

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/fortiblox/x1-staking/pkg/types"
)

// MaxCPIDepth is the maximum nested invocation depth below the top level.
const MaxCPIDepth = 4

// CPI errors
var (
	ErrCPIDepthExceeded        = errors.New("CPI depth exceeded")
	ErrCPIProgramNotProvided   = errors.New("program account not provided")
	ErrCPIProgramNotExecutable = errors.New("program account is not executable")
	ErrCPIAccountNotFound      = errors.New("account not found in caller's accounts")
	ErrCPIWritablePrivilege    = errors.New("writable privilege escalation")
	ErrCPISignerPrivilege      = errors.New("signer privilege escalation")
	ErrCPIInvalidSignerSeeds   = errors.New("invalid signer seeds")
	ErrCPIReentrancy           = errors.New("program reentrancy not allowed")
)

// Invoke calls another program with the caller's privileges.
func (ctx *ExecutionContext) Invoke(instruction types.Instruction) error {
	return ctx.InvokeSigned(instruction)
}

// InvokeSigned calls another program. Each entry of signerSeeds is the full
// seed list (bump included) of an address derived from the calling program;
// that address is granted signer privilege for the nested call only.
func (ctx *ExecutionContext) InvokeSigned(instruction types.Instruction, signerSeeds ...[][]byte) error {
	if ctx.Depth >= MaxCPIDepth {
		return ErrCPIDepthExceeded
	}
	if err := ctx.ConsumeComputeUnits(CUInvoke); err != nil {
		return err
	}

	if instruction.ProgramID == ctx.ProgramID {
		return ErrCPIReentrancy
	}
	for _, caller := range ctx.CallerStack {
		if caller == instruction.ProgramID {
			return ErrCPIReentrancy
		}
	}

	program, err := ctx.GetAccount(instruction.ProgramID)
	if err != nil {
		return errors.Wrap(ErrCPIProgramNotProvided, instruction.ProgramID.String())
	}
	if !program.Executable {
		return errors.Wrap(ErrCPIProgramNotExecutable, instruction.ProgramID.String())
	}

	pdaSigners, err := ctx.verifyPDASigners(signerSeeds)
	if err != nil {
		return err
	}

	calleeAccounts, err := ctx.resolveCalleeAccounts(instruction, pdaSigners)
	if err != nil {
		return err
	}

	ctx.PushCaller(ctx.ProgramID)
	defer ctx.PopCaller()

	_ = ctx.AddLog(fmt.Sprintf("Program %s invoke [%d]", instruction.ProgramID, ctx.Depth+1))
	err = ctx.invoke(instruction.ProgramID, calleeAccounts, instruction.Data)
	if err != nil {
		_ = ctx.AddLog(fmt.Sprintf("Program %s failed: %v", instruction.ProgramID, err))
		return err
	}
	_ = ctx.AddLog(fmt.Sprintf("Program %s success", instruction.ProgramID))
	return nil
}

// verifyPDASigners derives every signer address from the calling program.
func (ctx *ExecutionContext) verifyPDASigners(signerSeeds [][][]byte) (map[types.Pubkey]bool, error) {
	pdaSigners := make(map[types.Pubkey]bool, len(signerSeeds))

	for _, seeds := range signerSeeds {
		if err := ctx.ConsumeComputeUnits(CUCreatePDA); err != nil {
			return nil, err
		}
		pda, err := CreateProgramAddress(seeds, ctx.ProgramID)
		if err != nil {
			return nil, errors.Wrap(ErrCPIInvalidSignerSeeds, err.Error())
		}
		pdaSigners[pda] = true
	}

	return pdaSigners, nil
}

// resolveCalleeAccounts builds the callee's account views. A callee may hold
// the same or fewer privileges than the caller, plus signer privilege for
// proven derived addresses.
func (ctx *ExecutionContext) resolveCalleeAccounts(instruction types.Instruction, pdaSigners map[types.Pubkey]bool) ([]*AccountInfo, error) {
	calleeAccounts := make([]*AccountInfo, len(instruction.Accounts))

	for i, meta := range instruction.Accounts {
		callerAcc, err := ctx.GetAccount(meta.Pubkey)
		if err != nil {
			return nil, errors.Wrap(ErrCPIAccountNotFound, meta.Pubkey.String())
		}

		if meta.IsWritable && !callerAcc.IsWritable {
			return nil, errors.Wrapf(ErrCPIWritablePrivilege, "account %s", meta.Pubkey)
		}
		if meta.IsSigner && !callerAcc.IsSigner && !pdaSigners[meta.Pubkey] {
			return nil, errors.Wrapf(ErrCPISignerPrivilege, "account %s", meta.Pubkey)
		}

		calleeAccounts[i] = &AccountInfo{
			Pubkey:     meta.Pubkey,
			IsSigner:   meta.IsSigner,
			IsWritable: meta.IsWritable,
			Account:    callerAcc.Account,
		}
	}

	return calleeAccounts, nil
}
