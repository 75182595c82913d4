// Package client builds staking transactions with solana-go instruction
// types, signs them and submits them to a ledger.
package client

import (
	"context"
	"encoding/binary"
	"sync/atomic"

	"github.com/gagliardetto/solana-go"
	computebudget "github.com/gagliardetto/solana-go/programs/compute-budget"
	solanasystem "github.com/gagliardetto/solana-go/programs/system"
	"github.com/jonboulle/clockwork"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/fortiblox/x1-staking/pkg/runtime"
	"github.com/fortiblox/x1-staking/pkg/svm/programs/staking"
	"github.com/fortiblox/x1-staking/pkg/svm/programs/token"
	"github.com/fortiblox/x1-staking/pkg/types"
)

var (
	ErrAccountNotFound   = errors.New("account not found")
	ErrWrongAccountOwner = errors.New("account has an unexpected owner")
)

// Ledger is what the client needs from the runtime.
type Ledger interface {
	Execute(ctx context.Context, tx *types.Transaction) (*runtime.Result, error)
	GetAccount(pubkey types.Pubkey) (*types.Account, error)
	Rent() types.Rent
}

type Client struct {
	log       *logrus.Entry
	ledger    Ledger
	programID solana.PublicKey
	clock     clockwork.Clock
	nonce     atomic.Uint64

	computeUnitLimit atomic.Uint32
}

func New(log *logrus.Entry, ledger Ledger, programID types.Pubkey, clock clockwork.Clock) *Client {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Client{
		log:       log.WithField("type", "client"),
		ledger:    ledger,
		programID: solana.PublicKey(programID),
		clock:     clock,
	}
}

func (c *Client) ProgramID() types.Pubkey {
	return types.Pubkey(c.programID)
}

// recentBlockhash is unique per call so identical instructions submitted
// twice are distinct transactions.
func (c *Client) recentBlockhash() types.Hash {
	var buf [16]byte
	binary.LittleEndian.PutUint64(buf[:8], uint64(c.clock.Now().UnixNano()))
	binary.LittleEndian.PutUint64(buf[8:], c.nonce.Add(1))
	return types.SHA256Multi(c.programID[:], buf[:])
}

// SetComputeUnitLimit makes every later transaction request units of
// compute. Zero restores the ledger default.
func (c *Client) SetComputeUnitLimit(units uint32) {
	c.computeUnitLimit.Store(units)
}

// Submit signs ixs with signers, the first of which pays, and executes them
// as one transaction. A failed transaction returns its result together with
// an error wrapping Result.Err.
func (c *Client) Submit(ctx context.Context, ixs []solana.Instruction, signers ...types.Signer) (*runtime.Result, error) {
	if units := c.computeUnitLimit.Load(); units > 0 {
		limit := computebudget.NewSetComputeUnitLimitInstructionBuilder().SetUnits(units).Build()
		ixs = append([]solana.Instruction{limit}, ixs...)
	}

	converted := make([]types.Instruction, len(ixs))
	for i, ix := range ixs {
		var err error
		if converted[i], err = ToLedgerInstruction(ix); err != nil {
			return nil, errors.Wrapf(err, "instruction %d", i)
		}
	}

	tx, err := types.NewTransaction(converted, c.recentBlockhash(), signers...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to sign transaction")
	}
	res, err := c.ledger.Execute(ctx, tx)
	if err != nil {
		return nil, err
	}

	log := c.log.WithFields(logrus.Fields{
		"signature":     res.Signature,
		"compute_units": res.ComputeUnitsConsumed,
	})
	if res.Err != nil {
		log.WithError(res.Err).Debug("transaction failed")
		return res, errors.Wrapf(res.Err, "transaction %s failed", res.Signature)
	}
	log.Debug("transaction committed")
	return res, nil
}

// CreateMint allocates and initializes a mint with no freeze authority.
func (c *Client) CreateMint(ctx context.Context, payer, mint types.Signer, authority types.Pubkey, decimals uint8) (*runtime.Result, error) {
	lamports := uint64(c.ledger.Rent().MinimumBalance(token.MintSize))
	create := solanasystem.NewCreateAccountInstruction(
		lamports,
		token.MintSize,
		solana.TokenProgramID,
		solana.PublicKey(payer.PublicKey()),
		solana.PublicKey(mint.PublicKey()),
	).Build()
	initialize := FromLedgerInstruction(token.InitializeMint(mint.PublicKey(), decimals, authority, nil))
	return c.Submit(ctx, []solana.Instruction{create, initialize}, payer, mint)
}

// CreateTokenAccount allocates and initializes a token account of mint held
// by owner.
func (c *Client) CreateTokenAccount(ctx context.Context, payer, account types.Signer, mint, owner types.Pubkey) (*runtime.Result, error) {
	lamports := uint64(c.ledger.Rent().MinimumBalance(token.TokenAccountSize))
	create := solanasystem.NewCreateAccountInstruction(
		lamports,
		token.TokenAccountSize,
		solana.TokenProgramID,
		solana.PublicKey(payer.PublicKey()),
		solana.PublicKey(account.PublicKey()),
	).Build()
	initialize := FromLedgerInstruction(token.InitializeAccount(account.PublicKey(), mint, owner))
	return c.Submit(ctx, []solana.Instruction{create, initialize}, payer, account)
}

// MintTo mints amount of mint into destination.
func (c *Client) MintTo(ctx context.Context, authority types.Signer, mint, destination types.Pubkey, amount uint64) (*runtime.Result, error) {
	ix := FromLedgerInstruction(token.MintTo(mint, destination, authority.PublicKey(), amount))
	return c.Submit(ctx, []solana.Instruction{ix}, authority)
}

// Transfer moves lamports between system accounts.
func (c *Client) Transfer(ctx context.Context, from types.Signer, to types.Pubkey, lamports uint64) (*runtime.Result, error) {
	ix := solanasystem.NewTransferInstruction(
		lamports,
		solana.PublicKey(from.PublicKey()),
		solana.PublicKey(to),
	).Build()
	return c.Submit(ctx, []solana.Instruction{ix}, from)
}

// InitializePool creates the pool of mint with vault as its custody account.
func (c *Client) InitializePool(ctx context.Context, admin types.Signer, vault, mint types.Pubkey, rewardRate uint64) (*runtime.Result, error) {
	ix, err := BuildInitializePoolInstruction(c.programID, InitializePoolInstructionConfig{
		Admin:      solana.PublicKey(admin.PublicKey()),
		Vault:      solana.PublicKey(vault),
		Mint:       solana.PublicKey(mint),
		RewardRate: rewardRate,
	})
	if err != nil {
		return nil, err
	}
	return c.Submit(ctx, []solana.Instruction{ix}, admin)
}

// Stake deposits amount from userToken into the pool of mint.
func (c *Client) Stake(ctx context.Context, user types.Signer, userToken, mint types.Pubkey, amount uint64) (*runtime.Result, error) {
	config, err := c.positionConfig(user, userToken, mint, amount)
	if err != nil {
		return nil, err
	}
	ix, err := BuildStakeInstruction(c.programID, config)
	if err != nil {
		return nil, err
	}
	return c.Submit(ctx, []solana.Instruction{ix}, user)
}

// Unstake withdraws amount of principal into userToken.
func (c *Client) Unstake(ctx context.Context, user types.Signer, userToken, mint types.Pubkey, amount uint64) (*runtime.Result, error) {
	config, err := c.positionConfig(user, userToken, mint, amount)
	if err != nil {
		return nil, err
	}
	ix, err := BuildUnstakeInstruction(c.programID, config)
	if err != nil {
		return nil, err
	}
	return c.Submit(ctx, []solana.Instruction{ix}, user)
}

// ClaimRewards pays every accrued reward into userToken.
func (c *Client) ClaimRewards(ctx context.Context, user types.Signer, userToken, mint types.Pubkey) (*runtime.Result, error) {
	config, err := c.positionConfig(user, userToken, mint, 0)
	if err != nil {
		return nil, err
	}
	ix, err := BuildClaimRewardsInstruction(c.programID, config)
	if err != nil {
		return nil, err
	}
	return c.Submit(ctx, []solana.Instruction{ix}, user)
}

// FundRewards moves amount from funderToken into the pool's reward reserve.
func (c *Client) FundRewards(ctx context.Context, funder types.Signer, funderToken, mint types.Pubkey, amount uint64) (*runtime.Result, error) {
	pool, err := c.GetPool(mint)
	if err != nil {
		return nil, err
	}
	ix, err := BuildFundRewardsInstruction(c.programID, FundRewardsInstructionConfig{
		Funder:      solana.PublicKey(funder.PublicKey()),
		FunderToken: solana.PublicKey(funderToken),
		Vault:       solana.PublicKey(pool.Vault),
		Mint:        solana.PublicKey(mint),
		Amount:      amount,
	})
	if err != nil {
		return nil, err
	}
	return c.Submit(ctx, []solana.Instruction{ix}, funder)
}

func (c *Client) positionConfig(user types.Signer, userToken, mint types.Pubkey, amount uint64) (PositionInstructionConfig, error) {
	pool, err := c.GetPool(mint)
	if err != nil {
		return PositionInstructionConfig{}, err
	}
	return PositionInstructionConfig{
		User:      solana.PublicKey(user.PublicKey()),
		UserToken: solana.PublicKey(userToken),
		Vault:     solana.PublicKey(pool.Vault),
		Mint:      solana.PublicKey(mint),
		Amount:    amount,
	}, nil
}

// PoolAddress returns the pool address of mint.
func (c *Client) PoolAddress(mint types.Pubkey) (types.Pubkey, error) {
	pool, _, err := DerivePoolPDA(c.programID, solana.PublicKey(mint))
	return types.Pubkey(pool), err
}

// UserStakeAddress returns the stake record address of user in the pool of
// mint.
func (c *Client) UserStakeAddress(mint, user types.Pubkey) (types.Pubkey, error) {
	pool, _, err := DerivePoolPDA(c.programID, solana.PublicKey(mint))
	if err != nil {
		return types.Pubkey{}, err
	}
	userStake, _, err := DeriveUserStakePDA(c.programID, pool, solana.PublicKey(user))
	return types.Pubkey(userStake), err
}

// GetPool reads the pool of mint.
func (c *Client) GetPool(mint types.Pubkey) (*staking.Pool, error) {
	address, err := c.PoolAddress(mint)
	if err != nil {
		return nil, err
	}
	data, err := c.programData(address)
	if err != nil {
		return nil, err
	}
	return staking.DecodePool(data)
}

// GetUserStake reads the position of user in the pool of mint.
func (c *Client) GetUserStake(mint, user types.Pubkey) (*staking.UserStake, error) {
	address, err := c.UserStakeAddress(mint, user)
	if err != nil {
		return nil, err
	}
	data, err := c.programData(address)
	if err != nil {
		return nil, err
	}
	return staking.DecodeUserStake(data)
}

// GetTokenAccount reads a token account.
func (c *Client) GetTokenAccount(address types.Pubkey) (*token.TokenAccount, error) {
	acc, err := c.getAccount(address)
	if err != nil {
		return nil, err
	}
	return token.ParseTokenAccount(acc)
}

// GetBalance returns the lamports held at address; a missing account holds
// none.
func (c *Client) GetBalance(address types.Pubkey) (types.Lamports, error) {
	acc, err := c.ledger.GetAccount(address)
	if err != nil || acc == nil {
		return 0, err
	}
	return acc.Lamports, nil
}

func (c *Client) programData(address types.Pubkey) ([]byte, error) {
	acc, err := c.getAccount(address)
	if err != nil {
		return nil, err
	}
	if acc.Owner != c.ProgramID() {
		return nil, errors.Wrapf(ErrWrongAccountOwner, "%s is owned by %s", address, acc.Owner)
	}
	return acc.Data, nil
}

func (c *Client) getAccount(address types.Pubkey) (*types.Account, error) {
	acc, err := c.ledger.GetAccount(address)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get account %s", address)
	}
	if acc == nil {
		return nil, errors.Wrap(ErrAccountNotFound, address.String())
	}
	return acc, nil
}
