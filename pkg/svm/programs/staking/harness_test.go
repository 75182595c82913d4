package staking

import (
	"crypto/sha256"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/fortiblox/x1-staking/pkg/svm/programs/system"
	"github.com/fortiblox/x1-staking/pkg/svm/programs/token"
	"github.com/fortiblox/x1-staking/pkg/svm/syscall"
	"github.com/fortiblox/x1-staking/pkg/types"
)

var testProgramID = types.DefaultStakingProgramID

func testPubkey(seed string) types.Pubkey {
	return types.Pubkey(sha256.Sum256([]byte(seed)))
}

// ledger runs instructions against an in-memory account set. A failed
// instruction leaves the set untouched.
type ledger struct {
	t        *testing.T
	accounts map[types.Pubkey]*types.Account
	now      int64
	logs     []string

	// budget overrides the compute units given to each instruction when set.
	budget   uint64
	consumed uint64
}

func newLedger(t *testing.T) *ledger {
	l := &ledger{t: t, accounts: make(map[types.Pubkey]*types.Account), now: 1}
	for _, id := range []types.Pubkey{types.SystemProgramID, types.TokenProgramID, testProgramID} {
		l.accounts[id] = &types.Account{Lamports: 1, Executable: true}
	}
	return l
}

func (l *ledger) ExecuteProgram(ctx *syscall.ExecutionContext) error {
	switch ctx.ProgramID {
	case types.SystemProgramID:
		return system.New().Execute(ctx)
	case types.TokenProgramID:
		return token.New().Execute(ctx)
	case testProgramID:
		return New(testProgramID).Execute(ctx)
	}
	return errors.Errorf("no program at %s", ctx.ProgramID)
}

func (l *ledger) exec(ix types.Instruction) error {
	working := make(map[types.Pubkey]*types.Account)
	infos := make([]*syscall.AccountInfo, len(ix.Accounts))
	for i, meta := range ix.Accounts {
		acc, ok := working[meta.Pubkey]
		if !ok {
			if stored, found := l.accounts[meta.Pubkey]; found {
				acc = stored.Clone()
			} else {
				acc = types.NewAccount(0, types.SystemProgramID)
			}
			working[meta.Pubkey] = acc
		}
		infos[i] = &syscall.AccountInfo{Pubkey: meta.Pubkey, IsSigner: meta.IsSigner, IsWritable: meta.IsWritable, Account: acc}
	}

	budget := uint64(types.DefaultComputeUnitsPerTransaction)
	if l.budget > 0 {
		budget = l.budget
	}
	cfg := syscall.Config{
		ComputeUnits:  budget,
		UnixTimestamp: l.now,
		Rent:          types.DefaultRent(),
		Executor:      l,
	}
	ctx := syscall.NewExecutionContext(cfg, ix.ProgramID, infos, ix.Data)
	err := ctx.Process()
	l.logs = ctx.GetLogs()
	l.consumed = ctx.GetComputeUnitsConsumed()
	if err != nil {
		return err
	}

	for pk, acc := range working {
		if acc.IsEmpty() && acc.Owner == types.SystemProgramID {
			delete(l.accounts, pk)
			continue
		}
		l.accounts[pk] = acc
	}
	return nil
}

func (l *ledger) mustExec(ix types.Instruction, err error) {
	l.t.Helper()
	require.NoError(l.t, err)
	require.NoError(l.t, l.exec(ix), "logs: %v", l.logs)
}

func (l *ledger) airdrop(pk types.Pubkey, lamports types.Lamports) {
	acc, ok := l.accounts[pk]
	if !ok {
		acc = types.NewAccount(0, types.SystemProgramID)
		l.accounts[pk] = acc
	}
	acc.Lamports += lamports
}

func (l *ledger) createMint(payer, mint, authority types.Pubkey) {
	rent := types.DefaultRent()
	l.mustExec(system.CreateAccount(payer, mint, uint64(rent.MinimumBalance(token.MintSize)), token.MintSize, types.TokenProgramID), nil)
	l.mustExec(token.InitializeMint(mint, 0, authority, nil), nil)
}

func (l *ledger) createTokenAccount(payer, account, mint, owner types.Pubkey) {
	rent := types.DefaultRent()
	l.mustExec(system.CreateAccount(payer, account, uint64(rent.MinimumBalance(token.TokenAccountSize)), token.TokenAccountSize, types.TokenProgramID), nil)
	l.mustExec(token.InitializeAccount(account, mint, owner), nil)
}

func (l *ledger) tokenBalance(pk types.Pubkey) uint64 {
	l.t.Helper()
	ta, err := token.ParseTokenAccount(l.accounts[pk])
	require.NoError(l.t, err)
	return ta.Amount
}

func (l *ledger) pool(pk types.Pubkey) *Pool {
	l.t.Helper()
	acc := l.accounts[pk]
	require.NotNil(l.t, acc)
	require.Equal(l.t, testProgramID, acc.Owner)
	pool, err := DecodePool(acc.Data)
	require.NoError(l.t, err)
	return pool
}

func (l *ledger) position(pk types.Pubkey) *UserStake {
	l.t.Helper()
	acc := l.accounts[pk]
	require.NotNil(l.t, acc)
	require.Equal(l.t, testProgramID, acc.Owner)
	position, err := DecodeUserStake(acc.Data)
	require.NoError(l.t, err)
	return position
}

func (l *ledger) snapshot() map[types.Pubkey]*types.Account {
	out := make(map[types.Pubkey]*types.Account, len(l.accounts))
	for pk, acc := range l.accounts {
		out[pk] = acc.Clone()
	}
	return out
}

// staker is a wallet with a funded token account for the pool's mint.
type staker struct {
	wallet, tokens, position types.Pubkey
}

// fixture is an initialized pool with one funded staker.
type fixture struct {
	*ledger
	admin, mintAuthority types.Pubkey
	mint, vault, poolKey types.Pubkey
	adminTokens          types.Pubkey
	user                 staker
}

const startingTokens = 1_000_000

func newFixture(t *testing.T, rewardRate uint64) *fixture {
	f := &fixture{
		ledger:        newLedger(t),
		admin:         testPubkey("admin"),
		mintAuthority: testPubkey("mint-authority"),
		mint:          testPubkey("mint"),
		vault:         testPubkey("vault"),
		adminTokens:   testPubkey("admin-tokens"),
	}
	f.airdrop(f.admin, 1_000_000_000)
	f.airdrop(f.mintAuthority, 1)

	var err error
	f.poolKey, _, err = DerivePool(testProgramID, f.mint)
	require.NoError(t, err)

	f.createMint(f.admin, f.mint, f.mintAuthority)
	f.createTokenAccount(f.admin, f.vault, f.mint, f.poolKey)
	f.createTokenAccount(f.admin, f.adminTokens, f.mint, f.admin)
	f.mustExec(token.MintTo(f.mint, f.adminTokens, f.mintAuthority, startingTokens), nil)

	f.user = f.newStaker("user")
	f.mustExec(InitializePool(testProgramID, f.admin, f.vault, f.mint, rewardRate))
	return f
}

func (f *fixture) newStaker(name string) staker {
	s := staker{wallet: testPubkey(name), tokens: testPubkey(name + "-tokens")}
	f.airdrop(s.wallet, 1_000_000_000)
	f.createTokenAccount(f.admin, s.tokens, f.mint, s.wallet)
	f.mustExec(token.MintTo(f.mint, s.tokens, f.mintAuthority, startingTokens), nil)

	var err error
	s.position, _, err = DeriveUserStake(testProgramID, f.poolKey, s.wallet)
	require.NoError(f.t, err)
	return s
}

func (f *fixture) stake(s staker, amount uint64) error {
	ix, err := Stake(testProgramID, s.wallet, s.tokens, f.vault, f.mint, amount)
	require.NoError(f.t, err)
	return f.exec(ix)
}

func (f *fixture) unstake(s staker, amount uint64) error {
	ix, err := Unstake(testProgramID, s.wallet, s.tokens, f.vault, f.mint, amount)
	require.NoError(f.t, err)
	return f.exec(ix)
}

func (f *fixture) claim(s staker) error {
	ix, err := ClaimRewards(testProgramID, s.wallet, s.tokens, f.vault, f.mint)
	require.NoError(f.t, err)
	return f.exec(ix)
}

func (f *fixture) fund(amount uint64) error {
	ix, err := FundRewards(testProgramID, f.admin, f.adminTokens, f.vault, f.mint, amount)
	require.NoError(f.t, err)
	return f.exec(ix)
}
