package client

import (
	"github.com/gagliardetto/solana-go"
	"github.com/pkg/errors"

	"github.com/fortiblox/x1-staking/pkg/types"
)

// ToLedgerInstruction converts a solana-go instruction into the ledger's
// instruction type.
func ToLedgerInstruction(ix solana.Instruction) (types.Instruction, error) {
	data, err := ix.Data()
	if err != nil {
		return types.Instruction{}, errors.Wrap(err, "failed to encode instruction data")
	}
	metas := ix.Accounts()
	accounts := make([]types.AccountMeta, len(metas))
	for i, meta := range metas {
		if meta == nil {
			return types.Instruction{}, errors.Errorf("account %d is nil", i)
		}
		accounts[i] = types.NewAccountMeta(types.Pubkey(meta.PublicKey), meta.IsSigner, meta.IsWritable)
	}
	return types.Instruction{
		ProgramID: types.Pubkey(ix.ProgramID()),
		Accounts:  accounts,
		Data:      data,
	}, nil
}

// FromLedgerInstruction wraps a ledger instruction as a solana-go one.
func FromLedgerInstruction(ix types.Instruction) solana.Instruction {
	accounts := make([]*solana.AccountMeta, len(ix.Accounts))
	for i, meta := range ix.Accounts {
		accounts[i] = &solana.AccountMeta{
			PublicKey:  solana.PublicKey(meta.Pubkey),
			IsSigner:   meta.IsSigner,
			IsWritable: meta.IsWritable,
		}
	}
	return &solana.GenericInstruction{
		ProgID:        solana.PublicKey(ix.ProgramID),
		AccountValues: accounts,
		DataBytes:     ix.Data,
	}
}
