package token

import (
	"encoding/binary"

	"github.com/pkg/errors"

	"github.com/fortiblox/x1-staking/pkg/types"
)

// Token Program instruction discriminators (first byte of instruction data)
const (
	InstructionInitializeMint    uint8 = 0
	InstructionInitializeAccount uint8 = 1
	InstructionTransfer          uint8 = 3
	InstructionMintTo            uint8 = 7
)

// InitializeMintInstruction initializes a new mint.
type InitializeMintInstruction struct {
	Decimals        uint8
	MintAuthority   types.Pubkey
	FreezeAuthority *types.Pubkey
}

// Decode decodes an InitializeMint instruction from bytes.
// Layout: decimals (1) + mint_authority (32) + freeze option tag (1) + freeze_authority (32)
func (inst *InitializeMintInstruction) Decode(data []byte) error {
	if len(data) < 34 {
		return errors.Wrapf(ErrInvalidInstructionData, "InitializeMint requires at least 34 bytes, got %d", len(data))
	}

	inst.Decimals = data[0]
	copy(inst.MintAuthority[:], data[1:33])

	if data[33] == 1 {
		if len(data) < 66 {
			return errors.Wrap(ErrInvalidInstructionData, "InitializeMint with freeze authority requires 66 bytes")
		}
		var freeze types.Pubkey
		copy(freeze[:], data[34:66])
		inst.FreezeAuthority = &freeze
	}
	return nil
}

// Encode encodes an InitializeMint instruction to bytes.
func (inst *InitializeMintInstruction) Encode() []byte {
	data := make([]byte, 1+66)
	data[0] = InstructionInitializeMint
	data[1] = inst.Decimals
	copy(data[2:34], inst.MintAuthority[:])
	if inst.FreezeAuthority != nil {
		data[34] = 1
		copy(data[35:67], inst.FreezeAuthority[:])
	}
	return data
}

// AmountInstruction carries the single u64 argument of Transfer and MintTo.
type AmountInstruction struct {
	Amount uint64
}

// Decode decodes the amount argument.
func (inst *AmountInstruction) Decode(data []byte) error {
	if len(data) < 8 {
		return errors.Wrapf(ErrInvalidInstructionData, "requires 8 bytes, got %d", len(data))
	}
	inst.Amount = binary.LittleEndian.Uint64(data[0:8])
	return nil
}

func encodeAmount(discriminator uint8, amount uint64) []byte {
	data := make([]byte, 9)
	data[0] = discriminator
	binary.LittleEndian.PutUint64(data[1:], amount)
	return data
}

// InitializeMint builds an InitializeMint instruction. The mint account must
// already be allocated with MintSize bytes and owned by the Token Program.
func InitializeMint(mint types.Pubkey, decimals uint8, mintAuthority types.Pubkey, freezeAuthority *types.Pubkey) types.Instruction {
	inst := InitializeMintInstruction{Decimals: decimals, MintAuthority: mintAuthority, FreezeAuthority: freezeAuthority}
	return types.Instruction{
		ProgramID: types.TokenProgramID,
		Accounts:  []types.AccountMeta{types.NewAccountMeta(mint, false, true)},
		Data:      inst.Encode(),
	}
}

// InitializeAccount builds an InitializeAccount instruction.
func InitializeAccount(account, mint, owner types.Pubkey) types.Instruction {
	return types.Instruction{
		ProgramID: types.TokenProgramID,
		Accounts: []types.AccountMeta{
			types.NewAccountMeta(account, false, true),
			types.NewAccountMeta(mint, false, false),
			types.NewAccountMeta(owner, false, false),
		},
		Data: []byte{InstructionInitializeAccount},
	}
}

// Transfer builds a Transfer instruction signed by authority.
func Transfer(source, destination, authority types.Pubkey, amount uint64) types.Instruction {
	return types.Instruction{
		ProgramID: types.TokenProgramID,
		Accounts: []types.AccountMeta{
			types.NewAccountMeta(source, false, true),
			types.NewAccountMeta(destination, false, true),
			types.NewAccountMeta(authority, true, false),
		},
		Data: encodeAmount(InstructionTransfer, amount),
	}
}

// MintTo builds a MintTo instruction signed by the mint authority.
func MintTo(mint, destination, authority types.Pubkey, amount uint64) types.Instruction {
	return types.Instruction{
		ProgramID: types.TokenProgramID,
		Accounts: []types.AccountMeta{
			types.NewAccountMeta(mint, false, true),
			types.NewAccountMeta(destination, false, true),
			types.NewAccountMeta(authority, true, false),
		},
		Data: encodeAmount(InstructionMintTo, amount),
	}
}
