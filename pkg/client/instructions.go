package client

import (
	"github.com/gagliardetto/solana-go"
	"github.com/near/borsh-go"
	"github.com/pkg/errors"

	"github.com/fortiblox/x1-staking/pkg/svm/programs/staking"
)

type InitializePoolInstructionConfig struct {
	Admin      solana.PublicKey
	Vault      solana.PublicKey
	Mint       solana.PublicKey
	RewardRate uint64
}

func (c *InitializePoolInstructionConfig) Validate() error {
	if c.Admin.IsZero() {
		return errors.New("admin public key is required")
	}
	if c.Vault.IsZero() {
		return errors.New("vault public key is required")
	}
	if c.Mint.IsZero() {
		return errors.New("mint public key is required")
	}
	return nil
}

func BuildInitializePoolInstruction(programID solana.PublicKey, config InitializePoolInstructionConfig) (solana.Instruction, error) {
	if err := config.Validate(); err != nil {
		return nil, errors.Wrap(err, "failed to validate config")
	}

	data, err := borsh.Serialize(struct {
		Discriminator uint8
		RewardRate    uint64
	}{
		Discriminator: staking.InstructionInitializePool,
		RewardRate:    config.RewardRate,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to serialize args")
	}

	pool, _, err := DerivePoolPDA(programID, config.Mint)
	if err != nil {
		return nil, errors.Wrap(err, "failed to derive pool PDA")
	}

	accounts := []*solana.AccountMeta{
		{PublicKey: pool, IsSigner: false, IsWritable: true},
		{PublicKey: config.Admin, IsSigner: true, IsWritable: true},
		{PublicKey: config.Vault, IsSigner: false, IsWritable: false},
		{PublicKey: config.Mint, IsSigner: false, IsWritable: false},
		{PublicKey: solana.SystemProgramID, IsSigner: false, IsWritable: false},
		{PublicKey: solana.TokenProgramID, IsSigner: false, IsWritable: false},
	}

	return &solana.GenericInstruction{
		ProgID:        programID,
		AccountValues: accounts,
		DataBytes:     data,
	}, nil
}

// PositionInstructionConfig configures Stake, Unstake and ClaimRewards.
// Amount is ignored by ClaimRewards.
type PositionInstructionConfig struct {
	User      solana.PublicKey
	UserToken solana.PublicKey
	Vault     solana.PublicKey
	Mint      solana.PublicKey
	Amount    uint64
}

func (c *PositionInstructionConfig) Validate() error {
	if c.User.IsZero() {
		return errors.New("user public key is required")
	}
	if c.UserToken.IsZero() {
		return errors.New("user token account is required")
	}
	if c.Vault.IsZero() {
		return errors.New("vault public key is required")
	}
	if c.Mint.IsZero() {
		return errors.New("mint public key is required")
	}
	return nil
}

func (c *PositionInstructionConfig) addresses(programID solana.PublicKey) (pool, userStake solana.PublicKey, err error) {
	pool, _, err = DerivePoolPDA(programID, c.Mint)
	if err != nil {
		return pool, userStake, errors.Wrap(err, "failed to derive pool PDA")
	}
	userStake, _, err = DeriveUserStakePDA(programID, pool, c.User)
	if err != nil {
		return pool, userStake, errors.Wrap(err, "failed to derive user stake PDA")
	}
	return pool, userStake, nil
}

func BuildStakeInstruction(programID solana.PublicKey, config PositionInstructionConfig) (solana.Instruction, error) {
	if err := config.Validate(); err != nil {
		return nil, errors.Wrap(err, "failed to validate config")
	}
	if config.Amount == 0 {
		return nil, errors.New("amount is required")
	}

	data, err := serializeAmount(staking.InstructionStake, config.Amount)
	if err != nil {
		return nil, err
	}
	pool, userStake, err := config.addresses(programID)
	if err != nil {
		return nil, err
	}

	accounts := []*solana.AccountMeta{
		{PublicKey: pool, IsSigner: false, IsWritable: true},
		{PublicKey: config.Vault, IsSigner: false, IsWritable: true},
		{PublicKey: config.User, IsSigner: true, IsWritable: true},
		{PublicKey: config.UserToken, IsSigner: false, IsWritable: true},
		{PublicKey: userStake, IsSigner: false, IsWritable: true},
		{PublicKey: config.Mint, IsSigner: false, IsWritable: false},
		{PublicKey: solana.TokenProgramID, IsSigner: false, IsWritable: false},
		{PublicKey: solana.SystemProgramID, IsSigner: false, IsWritable: false},
	}

	return &solana.GenericInstruction{
		ProgID:        programID,
		AccountValues: accounts,
		DataBytes:     data,
	}, nil
}

func BuildUnstakeInstruction(programID solana.PublicKey, config PositionInstructionConfig) (solana.Instruction, error) {
	if err := config.Validate(); err != nil {
		return nil, errors.Wrap(err, "failed to validate config")
	}
	if config.Amount == 0 {
		return nil, errors.New("amount is required")
	}

	data, err := serializeAmount(staking.InstructionUnstake, config.Amount)
	if err != nil {
		return nil, err
	}
	return buildWithdrawal(programID, config, data)
}

func BuildClaimRewardsInstruction(programID solana.PublicKey, config PositionInstructionConfig) (solana.Instruction, error) {
	if err := config.Validate(); err != nil {
		return nil, errors.Wrap(err, "failed to validate config")
	}
	return buildWithdrawal(programID, config, []byte{staking.InstructionClaimRewards})
}

func buildWithdrawal(programID solana.PublicKey, config PositionInstructionConfig, data []byte) (solana.Instruction, error) {
	pool, userStake, err := config.addresses(programID)
	if err != nil {
		return nil, err
	}

	accounts := []*solana.AccountMeta{
		{PublicKey: pool, IsSigner: false, IsWritable: true},
		{PublicKey: config.Vault, IsSigner: false, IsWritable: true},
		{PublicKey: config.User, IsSigner: true, IsWritable: false},
		{PublicKey: config.UserToken, IsSigner: false, IsWritable: true},
		{PublicKey: userStake, IsSigner: false, IsWritable: true},
		{PublicKey: solana.TokenProgramID, IsSigner: false, IsWritable: false},
	}

	return &solana.GenericInstruction{
		ProgID:        programID,
		AccountValues: accounts,
		DataBytes:     data,
	}, nil
}

type FundRewardsInstructionConfig struct {
	Funder      solana.PublicKey
	FunderToken solana.PublicKey
	Vault       solana.PublicKey
	Mint        solana.PublicKey
	Amount      uint64
}

func (c *FundRewardsInstructionConfig) Validate() error {
	if c.Funder.IsZero() {
		return errors.New("funder public key is required")
	}
	if c.FunderToken.IsZero() {
		return errors.New("funder token account is required")
	}
	if c.Vault.IsZero() {
		return errors.New("vault public key is required")
	}
	if c.Mint.IsZero() {
		return errors.New("mint public key is required")
	}
	if c.Amount == 0 {
		return errors.New("amount is required")
	}
	return nil
}

func BuildFundRewardsInstruction(programID solana.PublicKey, config FundRewardsInstructionConfig) (solana.Instruction, error) {
	if err := config.Validate(); err != nil {
		return nil, errors.Wrap(err, "failed to validate config")
	}

	data, err := serializeAmount(staking.InstructionFundRewards, config.Amount)
	if err != nil {
		return nil, err
	}
	pool, _, err := DerivePoolPDA(programID, config.Mint)
	if err != nil {
		return nil, errors.Wrap(err, "failed to derive pool PDA")
	}

	accounts := []*solana.AccountMeta{
		{PublicKey: pool, IsSigner: false, IsWritable: false},
		{PublicKey: config.Vault, IsSigner: false, IsWritable: true},
		{PublicKey: config.Funder, IsSigner: true, IsWritable: false},
		{PublicKey: config.FunderToken, IsSigner: false, IsWritable: true},
		{PublicKey: solana.TokenProgramID, IsSigner: false, IsWritable: false},
	}

	return &solana.GenericInstruction{
		ProgID:        programID,
		AccountValues: accounts,
		DataBytes:     data,
	}, nil
}

func serializeAmount(discriminator uint8, amount uint64) ([]byte, error) {
	data, err := borsh.Serialize(struct {
		Discriminator uint8
		Amount        uint64
	}{
		Discriminator: discriminator,
		Amount:        amount,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to serialize args")
	}
	return data, nil
}
