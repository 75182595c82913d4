package staking

import (
	"github.com/pkg/errors"

	"github.com/fortiblox/x1-staking/pkg/svm/programs/token"
	"github.com/fortiblox/x1-staking/pkg/svm/syscall"
	"github.com/fortiblox/x1-staking/pkg/types"
)

// handleInitializePool handles the InitializePool instruction.
// Account layout:
//
//	[0] pool (writable)
//	[1] administrator (signer, writable)
//	[2] vault
//	[3] mint
//	[4] system program
//	[5] token program
func handleInitializePool(ctx *syscall.ExecutionContext, rewardRate uint64) error {
	accs, err := instructionAccounts(ctx, 6)
	if err != nil {
		return err
	}
	poolAcc, admin, vaultAcc, mintAcc := accs[0], accs[1], accs[2], accs[3]

	if err := requirePrograms(accs[4:], types.SystemProgramID, types.TokenProgramID); err != nil {
		return err
	}
	if err := requireSigner(admin, "administrator"); err != nil {
		return err
	}
	if err := requireWritable(poolAcc, admin); err != nil {
		return err
	}

	poolKey, bump, err := DerivePool(ctx.ProgramID, mintAcc.Pubkey)
	if err != nil {
		return err
	}
	if poolAcc.Pubkey != poolKey {
		return errors.Wrapf(ErrAddressMismatch, "pool %s, expected %s", poolAcc.Pubkey, poolKey)
	}
	if !isUninitialized(ctx.ProgramID, poolAcc) {
		return errors.Wrap(ErrAlreadyInitialized, poolKey.String())
	}

	if _, err := token.ParseMint(mintAcc.Account); err != nil {
		return errors.Wrapf(ErrInvalidAccountData, "mint %s: %v", mintAcc.Pubkey, err)
	}
	vault, err := token.ParseTokenAccount(vaultAcc.Account)
	if err != nil {
		return errors.Wrap(ErrInvalidVault, err.Error())
	}
	if vault.Owner != poolKey {
		return errors.Wrap(ErrInvalidVault, "vault is not owned by the pool")
	}
	if vault.Mint != mintAcc.Pubkey {
		return errors.Wrap(ErrInvalidVault, "vault holds a different mint")
	}

	if err := createRecord(ctx, admin, poolAcc, PoolSize, poolSeeds(mintAcc.Pubkey, bump)); err != nil {
		return err
	}
	pool := &Pool{
		Administrator: admin.Pubkey,
		RewardRate:    rewardRate,
		Vault:         vaultAcc.Pubkey,
		AuthorityBump: bump,
	}
	if err := storeRecord(poolAcc, pool); err != nil {
		return err
	}

	return ctx.Logf("pool %s initialized for mint %s, reward rate %d", poolKey, mintAcc.Pubkey, rewardRate)
}

// handleStake handles the Stake instruction.
// Account layout:
//
//	[0] pool (writable)
//	[1] vault (writable)
//	[2] user (signer, writable)
//	[3] user token account (writable)
//	[4] user stake (writable)
//	[5] mint
//	[6] token program
//	[7] system program
func handleStake(ctx *syscall.ExecutionContext, amount uint64) error {
	accs, err := instructionAccounts(ctx, 8)
	if err != nil {
		return err
	}
	poolAcc, vaultAcc, user, userToken, userStakeAcc, mintAcc := accs[0], accs[1], accs[2], accs[3], accs[4], accs[5]

	if err := requirePrograms(accs[6:], types.TokenProgramID, types.SystemProgramID); err != nil {
		return err
	}
	if amount == 0 {
		return ErrInvalidAmount
	}
	if err := requireSigner(user, "user"); err != nil {
		return err
	}
	if err := requireWritable(poolAcc, vaultAcc, user, userToken, userStakeAcc); err != nil {
		return err
	}

	pool, err := loadPool(ctx, poolAcc, vaultAcc)
	if err != nil {
		return err
	}
	if mintAcc.Pubkey != pool.mint {
		return errors.Wrapf(ErrMintMismatch, "mint %s, pool holds %s", mintAcc.Pubkey, pool.mint)
	}
	if err := checkUserToken(userToken, user.Pubkey, pool.mint); err != nil {
		return err
	}
	bump, err := checkUserStakeAddress(ctx, poolAcc.Pubkey, user.Pubkey, userStakeAcc)
	if err != nil {
		return err
	}

	now := ctx.UnixTimestamp
	position := &UserStake{Owner: user.Pubkey, LastAccrualTime: now}
	fresh := isUninitialized(ctx.ProgramID, userStakeAcc)
	if !fresh {
		if position, err = loadPosition(ctx, userStakeAcc, user.Pubkey); err != nil {
			return err
		}
		if err := position.accrue(pool.state.RewardRate, now); err != nil {
			return err
		}
	}

	staked, err := Amount(position.Amount).Add(Amount(amount))
	if err != nil {
		return err
	}
	total, err := Amount(pool.state.TotalStaked).Add(Amount(amount))
	if err != nil {
		return err
	}

	if err := transferSigned(ctx, userToken.Pubkey, vaultAcc.Pubkey, user.Pubkey, amount); err != nil {
		return err
	}
	if fresh {
		if err := createRecord(ctx, user, userStakeAcc, UserStakeSize, userStakeSeeds(poolAcc.Pubkey, user.Pubkey, bump)); err != nil {
			return err
		}
	}

	position.Owner = user.Pubkey
	position.Amount = uint64(staked)
	pool.state.TotalStaked = uint64(total)
	if err := storeRecord(userStakeAcc, position); err != nil {
		return err
	}
	if err := storeRecord(poolAcc, pool.state); err != nil {
		return err
	}

	return ctx.Logf("staked %d, position %d, pool total %d", amount, position.Amount, pool.state.TotalStaked)
}

// handleUnstake handles the Unstake instruction.
// Account layout:
//
//	[0] pool (writable)
//	[1] vault (writable)
//	[2] user (signer)
//	[3] user token account (writable)
//	[4] user stake (writable)
//	[5] token program
func handleUnstake(ctx *syscall.ExecutionContext, amount uint64) error {
	accs, err := instructionAccounts(ctx, 6)
	if err != nil {
		return err
	}
	poolAcc, vaultAcc, user, userToken, userStakeAcc := accs[0], accs[1], accs[2], accs[3], accs[4]

	if err := requirePrograms(accs[5:], types.TokenProgramID); err != nil {
		return err
	}
	if amount == 0 {
		return ErrInvalidAmount
	}
	if err := requireSigner(user, "user"); err != nil {
		return err
	}
	if err := requireWritable(poolAcc, vaultAcc, userToken, userStakeAcc); err != nil {
		return err
	}

	pool, err := loadPool(ctx, poolAcc, vaultAcc)
	if err != nil {
		return err
	}
	if err := checkUserToken(userToken, user.Pubkey, pool.mint); err != nil {
		return err
	}
	if _, err := checkUserStakeAddress(ctx, poolAcc.Pubkey, user.Pubkey, userStakeAcc); err != nil {
		return err
	}

	if isUninitialized(ctx.ProgramID, userStakeAcc) {
		return errors.Wrap(ErrInsufficientPrincipal, "no stake in this pool")
	}
	position, err := loadPosition(ctx, userStakeAcc, user.Pubkey)
	if err != nil {
		return err
	}
	if amount > position.Amount {
		return errors.Wrapf(ErrInsufficientPrincipal, "requested %d, staked %d", amount, position.Amount)
	}

	// Rewards up to now are earned on the principal before it shrinks.
	if err := position.accrue(pool.state.RewardRate, ctx.UnixTimestamp); err != nil {
		return err
	}
	remaining, err := Amount(position.Amount).Sub(Amount(amount))
	if err != nil {
		return err
	}
	total, err := Amount(pool.state.TotalStaked).Sub(Amount(amount))
	if err != nil {
		return err
	}
	position.Amount = uint64(remaining)
	pool.state.TotalStaked = uint64(total)

	if err := storeRecord(userStakeAcc, position); err != nil {
		return err
	}
	if err := storeRecord(poolAcc, pool.state); err != nil {
		return err
	}
	if err := transferFromVault(ctx, vaultAcc.Pubkey, userToken.Pubkey, poolAcc.Pubkey, pool.seeds, amount); err != nil {
		return err
	}

	return ctx.Logf("unstaked %d, position %d, pending rewards %d", amount, position.Amount, position.PendingRewards)
}

// handleClaimRewards handles the ClaimRewards instruction. It takes the same
// accounts as Unstake.
func handleClaimRewards(ctx *syscall.ExecutionContext) error {
	accs, err := instructionAccounts(ctx, 6)
	if err != nil {
		return err
	}
	poolAcc, vaultAcc, user, userToken, userStakeAcc := accs[0], accs[1], accs[2], accs[3], accs[4]

	if err := requirePrograms(accs[5:], types.TokenProgramID); err != nil {
		return err
	}
	if err := requireSigner(user, "user"); err != nil {
		return err
	}
	if err := requireWritable(vaultAcc, userToken, userStakeAcc); err != nil {
		return err
	}

	pool, err := loadPool(ctx, poolAcc, vaultAcc)
	if err != nil {
		return err
	}
	if err := checkUserToken(userToken, user.Pubkey, pool.mint); err != nil {
		return err
	}
	if _, err := checkUserStakeAddress(ctx, poolAcc.Pubkey, user.Pubkey, userStakeAcc); err != nil {
		return err
	}

	if isUninitialized(ctx.ProgramID, userStakeAcc) {
		return errors.Wrap(ErrNothingToClaim, "no stake in this pool")
	}
	position, err := loadPosition(ctx, userStakeAcc, user.Pubkey)
	if err != nil {
		return err
	}
	if err := position.accrue(pool.state.RewardRate, ctx.UnixTimestamp); err != nil {
		return err
	}

	owed := position.PendingRewards
	if owed == 0 {
		return ErrNothingToClaim
	}
	reserve := pool.rewardReserve()
	if owed > reserve {
		return errors.Wrapf(ErrInsufficientRewardReserve, "owed %d, reserve %d", owed, reserve)
	}

	position.PendingRewards = 0
	if err := storeRecord(userStakeAcc, position); err != nil {
		return err
	}
	if err := transferFromVault(ctx, vaultAcc.Pubkey, userToken.Pubkey, poolAcc.Pubkey, pool.seeds, owed); err != nil {
		return err
	}

	return ctx.Logf("claimed %d", owed)
}

// handleFundRewards handles the FundRewards instruction.
// Account layout:
//
//	[0] pool
//	[1] vault (writable)
//	[2] funder (signer)
//	[3] funder token account (writable)
//	[4] token program
func handleFundRewards(ctx *syscall.ExecutionContext, amount uint64) error {
	accs, err := instructionAccounts(ctx, 5)
	if err != nil {
		return err
	}
	poolAcc, vaultAcc, funder, funderToken := accs[0], accs[1], accs[2], accs[3]

	if err := requirePrograms(accs[4:], types.TokenProgramID); err != nil {
		return err
	}
	if amount == 0 {
		return ErrInvalidAmount
	}
	if err := requireSigner(funder, "funder"); err != nil {
		return err
	}
	if err := requireWritable(vaultAcc, funderToken); err != nil {
		return err
	}

	pool, err := loadPool(ctx, poolAcc, vaultAcc)
	if err != nil {
		return err
	}
	source, err := token.ParseTokenAccount(funderToken.Account)
	if err != nil {
		return errors.Wrapf(ErrInvalidAccountData, "funder token account: %v", err)
	}
	if source.Mint != pool.mint {
		return errors.Wrapf(ErrMintMismatch, "funder token account holds %s", source.Mint)
	}

	if err := transferSigned(ctx, funderToken.Pubkey, vaultAcc.Pubkey, funder.Pubkey, amount); err != nil {
		return err
	}

	return ctx.Logf("funded %d, reserve %d", amount, pool.rewardReserve()+amount)
}

// poolView is a validated pool together with its vault.
type poolView struct {
	state *Pool
	vault *token.TokenAccount
	mint  types.Pubkey
	seeds [][]byte
}

// rewardReserve is the part of the vault not backing staked principal.
func (v *poolView) rewardReserve() uint64 {
	reserve, err := Amount(v.vault.Amount).Sub(Amount(v.state.TotalStaked))
	if err != nil {
		return 0
	}
	return uint64(reserve)
}

// loadPool decodes the pool, checks that vaultAcc is its vault and proves the
// pool address from the vault's mint and the stored bump.
func loadPool(ctx *syscall.ExecutionContext, poolAcc, vaultAcc *syscall.AccountInfo) (*poolView, error) {
	state := &Pool{}
	if err := loadRecord(ctx.ProgramID, poolAcc, state.Deserialize); err != nil {
		return nil, err
	}
	if vaultAcc.Pubkey != state.Vault {
		return nil, errors.Wrapf(ErrInvalidVault, "vault %s, pool uses %s", vaultAcc.Pubkey, state.Vault)
	}
	vault, err := token.ParseTokenAccount(vaultAcc.Account)
	if err != nil {
		return nil, errors.Wrap(ErrInvalidVault, err.Error())
	}
	if vault.Owner != poolAcc.Pubkey {
		return nil, errors.Wrap(ErrInvalidVault, "vault is not owned by the pool")
	}

	seeds := poolSeeds(vault.Mint, state.AuthorityBump)
	addr, err := syscall.CreateProgramAddress(seeds, ctx.ProgramID)
	if err != nil || addr != poolAcc.Pubkey {
		return nil, errors.Wrapf(ErrAddressMismatch, "pool %s is not derived from mint %s", poolAcc.Pubkey, vault.Mint)
	}

	return &poolView{state: state, vault: vault, mint: vault.Mint, seeds: seeds}, nil
}

func loadPosition(ctx *syscall.ExecutionContext, acc *syscall.AccountInfo, user types.Pubkey) (*UserStake, error) {
	position := &UserStake{}
	if err := loadRecord(ctx.ProgramID, acc, position.Deserialize); err != nil {
		return nil, err
	}
	if position.Owner != user {
		return nil, errors.Wrapf(ErrOwnerMismatch, "stake belongs to %s", position.Owner)
	}
	return position, nil
}

func checkUserStakeAddress(ctx *syscall.ExecutionContext, pool, user types.Pubkey, acc *syscall.AccountInfo) (uint8, error) {
	addr, bump, err := DeriveUserStake(ctx.ProgramID, pool, user)
	if err != nil {
		return 0, err
	}
	if acc.Pubkey != addr {
		return 0, errors.Wrapf(ErrAddressMismatch, "user stake %s, expected %s", acc.Pubkey, addr)
	}
	return bump, nil
}

func checkUserToken(acc *syscall.AccountInfo, user, mint types.Pubkey) error {
	ta, err := token.ParseTokenAccount(acc.Account)
	if err != nil {
		return errors.Wrapf(ErrInvalidAccountData, "token account %s: %v", acc.Pubkey, err)
	}
	if ta.Owner != user {
		return errors.Wrapf(ErrOwnerMismatch, "token account %s belongs to %s", acc.Pubkey, ta.Owner)
	}
	if ta.Mint != mint {
		return errors.Wrapf(ErrMintMismatch, "token account %s holds %s", acc.Pubkey, ta.Mint)
	}
	return nil
}

func instructionAccounts(ctx *syscall.ExecutionContext, n int) ([]*syscall.AccountInfo, error) {
	if ctx.AccountCount() < n {
		return nil, errors.Wrapf(ErrInvalidInstruction, "need %d accounts, got %d", n, ctx.AccountCount())
	}
	return ctx.Accounts[:n], nil
}

func requirePrograms(accs []*syscall.AccountInfo, ids ...types.Pubkey) error {
	for i, id := range ids {
		if accs[i].Pubkey != id {
			return errors.Wrapf(ErrInvalidInstruction, "expected program %s, got %s", id, accs[i].Pubkey)
		}
	}
	return nil
}

func requireSigner(acc *syscall.AccountInfo, name string) error {
	if !acc.IsSigner {
		return errors.Wrapf(ErrMissingSignature, "%s %s", name, acc.Pubkey)
	}
	return nil
}

func requireWritable(accs ...*syscall.AccountInfo) error {
	for _, acc := range accs {
		if !acc.IsWritable {
			return errors.Wrapf(ErrInvalidInstruction, "%s must be writable", acc.Pubkey)
		}
	}
	return nil
}
