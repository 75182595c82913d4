package staking

import (
	"github.com/near/borsh-go"
	"github.com/pkg/errors"

	"github.com/fortiblox/x1-staking/pkg/types"
)

// Instruction discriminators (first byte of instruction data).
const (
	InstructionInitializePool uint8 = iota
	InstructionStake
	InstructionUnstake
	InstructionClaimRewards
	InstructionFundRewards
)

// InitializePoolArgs are the arguments of InitializePool.
type InitializePoolArgs struct {
	RewardRate uint64
}

// AmountArgs are the arguments of Stake, Unstake and FundRewards.
type AmountArgs struct {
	Amount uint64
}

// Every argument struct is a single u64.
const argsSize = 8

func decodeArgs(data []byte, args interface{}) error {
	if len(data) != argsSize {
		return errors.Wrapf(ErrInvalidInstruction, "arguments are %d bytes, want %d", len(data), argsSize)
	}
	if err := borsh.Deserialize(args, data); err != nil {
		return errors.Wrap(ErrInvalidInstruction, err.Error())
	}
	return nil
}

func encodeInitializePool(rewardRate uint64) ([]byte, error) {
	return borsh.Serialize(struct {
		Discriminator uint8
		RewardRate    uint64
	}{InstructionInitializePool, rewardRate})
}

func encodeAmount(discriminator uint8, amount uint64) ([]byte, error) {
	return borsh.Serialize(struct {
		Discriminator uint8
		Amount        uint64
	}{discriminator, amount})
}

// InitializePool builds an InitializePool instruction. The vault must be a
// token account of mint already owned by the pool address.
func InitializePool(programID, admin, vault, mint types.Pubkey, rewardRate uint64) (types.Instruction, error) {
	pool, _, err := DerivePool(programID, mint)
	if err != nil {
		return types.Instruction{}, err
	}
	data, err := encodeInitializePool(rewardRate)
	if err != nil {
		return types.Instruction{}, err
	}
	return types.Instruction{
		ProgramID: programID,
		Accounts: []types.AccountMeta{
			types.NewAccountMeta(pool, false, true),
			types.NewAccountMeta(admin, true, true),
			types.NewAccountMeta(vault, false, false),
			types.NewAccountMeta(mint, false, false),
			types.NewAccountMeta(types.SystemProgramID, false, false),
			types.NewAccountMeta(types.TokenProgramID, false, false),
		},
		Data: data,
	}, nil
}

// Stake builds a Stake instruction moving amount from userToken into the vault.
func Stake(programID, user, userToken, vault, mint types.Pubkey, amount uint64) (types.Instruction, error) {
	pool, userStake, err := positionAddresses(programID, mint, user)
	if err != nil {
		return types.Instruction{}, err
	}
	data, err := encodeAmount(InstructionStake, amount)
	if err != nil {
		return types.Instruction{}, err
	}
	return types.Instruction{
		ProgramID: programID,
		Accounts: []types.AccountMeta{
			types.NewAccountMeta(pool, false, true),
			types.NewAccountMeta(vault, false, true),
			types.NewAccountMeta(user, true, true),
			types.NewAccountMeta(userToken, false, true),
			types.NewAccountMeta(userStake, false, true),
			types.NewAccountMeta(mint, false, false),
			types.NewAccountMeta(types.TokenProgramID, false, false),
			types.NewAccountMeta(types.SystemProgramID, false, false),
		},
		Data: data,
	}, nil
}

// Unstake builds an Unstake instruction returning amount to userToken.
func Unstake(programID, user, userToken, vault, mint types.Pubkey, amount uint64) (types.Instruction, error) {
	data, err := encodeAmount(InstructionUnstake, amount)
	if err != nil {
		return types.Instruction{}, err
	}
	return withdrawal(programID, user, userToken, vault, mint, data)
}

// ClaimRewards builds a ClaimRewards instruction paying into userToken.
func ClaimRewards(programID, user, userToken, vault, mint types.Pubkey) (types.Instruction, error) {
	return withdrawal(programID, user, userToken, vault, mint, []byte{InstructionClaimRewards})
}

// FundRewards builds a FundRewards instruction topping up the reward reserve.
func FundRewards(programID, funder, funderToken, vault, mint types.Pubkey, amount uint64) (types.Instruction, error) {
	pool, _, err := DerivePool(programID, mint)
	if err != nil {
		return types.Instruction{}, err
	}
	data, err := encodeAmount(InstructionFundRewards, amount)
	if err != nil {
		return types.Instruction{}, err
	}
	return types.Instruction{
		ProgramID: programID,
		Accounts: []types.AccountMeta{
			types.NewAccountMeta(pool, false, false),
			types.NewAccountMeta(vault, false, true),
			types.NewAccountMeta(funder, true, false),
			types.NewAccountMeta(funderToken, false, true),
			types.NewAccountMeta(types.TokenProgramID, false, false),
		},
		Data: data,
	}, nil
}

func withdrawal(programID, user, userToken, vault, mint types.Pubkey, data []byte) (types.Instruction, error) {
	pool, userStake, err := positionAddresses(programID, mint, user)
	if err != nil {
		return types.Instruction{}, err
	}
	return types.Instruction{
		ProgramID: programID,
		Accounts: []types.AccountMeta{
			types.NewAccountMeta(pool, false, true),
			types.NewAccountMeta(vault, false, true),
			types.NewAccountMeta(user, true, false),
			types.NewAccountMeta(userToken, false, true),
			types.NewAccountMeta(userStake, false, true),
			types.NewAccountMeta(types.TokenProgramID, false, false),
		},
		Data: data,
	}, nil
}

func positionAddresses(programID, mint, user types.Pubkey) (pool, userStake types.Pubkey, err error) {
	pool, _, err = DerivePool(programID, mint)
	if err != nil {
		return pool, userStake, err
	}
	userStake, _, err = DeriveUserStake(programID, pool, user)
	return pool, userStake, err
}
