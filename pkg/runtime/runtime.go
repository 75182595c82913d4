// Package runtime executes signed transactions against the account ledger.
//
// A transaction is verified, its accounts are loaded from the AccountsDB into
// one shared working set, and its instructions run in order through the
// program registry. Writable accounts are committed in a single batch only
// when every instruction succeeds.
package runtime

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/fortiblox/x1-staking/pkg/accounts"
	"github.com/fortiblox/x1-staking/pkg/crypto"
	"github.com/fortiblox/x1-staking/pkg/svm/programs/compute_budget"
	"github.com/fortiblox/x1-staking/pkg/svm/syscall"
	"github.com/fortiblox/x1-staking/pkg/types"
)

// Transaction errors
var (
	ErrNoInstructions       = errors.New("transaction has no instructions")
	ErrInvalidMessage       = errors.New("invalid transaction message")
	ErrDuplicateAccountKey  = errors.New("account key appears more than once")
	ErrAlreadyProcessed     = errors.New("transaction already processed")
	ErrProgramNotExecutable = errors.New("program is not executable")
	ErrComputeLimitTooHigh  = errors.New("compute unit limit above maximum")
	ErrLamportOverflow      = errors.New("lamport balance overflow")
)

// Recorder observes executed transactions.
type Recorder interface {
	ObserveTransaction(result *Result)
}

// Options configures a Runtime. Zero fields take defaults.
type Options struct {
	ComputeUnitsLimit         types.ComputeUnits
	Rent                      types.Rent
	Clock                     clockwork.Clock
	Recorder                  Recorder
	Log                       *logrus.Entry
	SkipSignatureVerification bool
}

// DefaultOptions returns the options used when none are configured.
func DefaultOptions() Options {
	return Options{
		ComputeUnitsLimit: types.DefaultComputeUnitsPerTransaction,
		Rent:              types.DefaultRent(),
		Clock:             clockwork.NewRealClock(),
		Log:               logrus.NewEntry(logrus.StandardLogger()),
	}
}

// Runtime serializes transaction execution over one AccountsDB.
type Runtime struct {
	mu        sync.Mutex
	db        accounts.AccountsDB
	registry  *ProgramRegistry
	opts      Options
	log       *logrus.Entry
	processed map[types.Signature]struct{}
}

// New creates a runtime and deploys an executable account for every
// registered program that does not have one yet.
func New(db accounts.AccountsDB, registry *ProgramRegistry, opts Options) (*Runtime, error) {
	defaults := DefaultOptions()
	if opts.ComputeUnitsLimit == 0 {
		opts.ComputeUnitsLimit = defaults.ComputeUnitsLimit
	}
	if opts.ComputeUnitsLimit > types.MaxComputeUnitsPerTransaction {
		return nil, errors.Wrapf(ErrComputeLimitTooHigh, "%d > %d", opts.ComputeUnitsLimit, types.MaxComputeUnitsPerTransaction)
	}
	if opts.Rent.LamportsPerByteYear == 0 {
		opts.Rent = defaults.Rent
	}
	if opts.Clock == nil {
		opts.Clock = defaults.Clock
	}
	if opts.Log == nil {
		opts.Log = defaults.Log
	}

	r := &Runtime{
		db:        db,
		registry:  registry,
		opts:      opts,
		log:       opts.Log.WithField("type", "runtime"),
		processed: make(map[types.Signature]struct{}),
	}
	if err := r.deployPrograms(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Runtime) deployPrograms() error {
	for _, id := range r.registry.ListPrograms() {
		acc, err := r.db.GetAccount(id)
		if err != nil {
			return errors.Wrapf(err, "load program account %s", id)
		}
		if acc != nil {
			if !acc.Executable {
				return errors.Wrapf(ErrProgramNotExecutable, "address %s is in use", id)
			}
			continue
		}
		program := &types.Account{Lamports: 1, Owner: types.NativeLoaderID, Executable: true}
		if err := r.db.SetAccount(id, program); err != nil {
			return errors.Wrapf(err, "deploy program %s", id)
		}
		r.log.WithField("program", r.registry.GetProgramName(id)).Debugf("deployed %s", id)
	}
	return nil
}

// Registry returns the program registry.
func (r *Runtime) Registry() *ProgramRegistry {
	return r.registry
}

// Rent returns the rent parameters programs are run with.
func (r *Runtime) Rent() types.Rent {
	return r.opts.Rent
}

// Clock returns the runtime clock.
func (r *Runtime) Clock() clockwork.Clock {
	return r.opts.Clock
}

// GetAccount returns the committed state of pubkey, or nil.
func (r *Runtime) GetAccount(pubkey types.Pubkey) (*types.Account, error) {
	return r.db.GetAccount(pubkey)
}

// Airdrop credits lamports to pubkey outside of any transaction. It is the
// local ledger's faucet.
func (r *Runtime) Airdrop(pubkey types.Pubkey, lamports types.Lamports) (types.Lamports, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	acc, err := r.db.GetAccount(pubkey)
	if err != nil {
		return 0, errors.Wrapf(err, "load account %s", pubkey)
	}
	if acc == nil {
		acc = types.NewAccount(0, types.SystemProgramID)
	}
	if acc.Lamports+lamports < acc.Lamports {
		return 0, ErrLamportOverflow
	}
	acc.Lamports += lamports
	if err := r.db.SetAccount(pubkey, acc); err != nil {
		return 0, errors.Wrapf(err, "store account %s", pubkey)
	}

	r.log.WithFields(logrus.Fields{
		"account":  pubkey,
		"lamports": lamports,
		"balance":  acc.Lamports,
	}).Info("airdrop")
	return acc.Lamports, nil
}

// Execute runs tx. Transaction failures are reported in Result.Err with
// nothing committed; the returned error is reserved for storage failures.
// Cancellation of ctx is honoured between instructions.
func (r *Runtime) Execute(ctx context.Context, tx *types.Transaction) (*Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	start := r.opts.Clock.Now()
	result := &Result{UnixTimestamp: start.Unix()}
	if tx != nil {
		result.Signature = tx.ID()
	}

	err := r.execute(ctx, tx, result)
	result.Duration = r.opts.Clock.Since(start)
	if err != nil {
		r.log.WithError(err).WithField("signature", result.Signature).Error("failure committing transaction")
		return nil, err
	}

	if result.Success() {
		r.processed[result.Signature] = struct{}{}
	}
	r.report(result)
	return result, nil
}

func (r *Runtime) execute(ctx context.Context, tx *types.Transaction, result *Result) error {
	if err := r.sanitize(tx); err != nil {
		result.Err = err
		return nil
	}
	msg := &tx.Message

	loaded, err := r.loadAccounts(msg)
	if err != nil {
		return err
	}

	ixs := make([]types.Instruction, len(msg.Instructions))
	for i := range msg.Instructions {
		ix, err := msg.Instruction(i)
		if err != nil {
			result.Err = &InstructionError{Index: i, Err: errors.Wrap(ErrInvalidMessage, err.Error())}
			return nil
		}
		ixs[i] = ix
	}
	budget, err := compute_budget.FromInstructions(ixs, r.opts.ComputeUnitsLimit)
	if err != nil {
		result.Err = errors.Wrap(err, "invalid compute budget")
		return nil
	}
	result.ComputeUnitLimit = budget.ComputeUnitLimit
	result.ComputeUnitPrice = budget.ComputeUnitPrice

	remaining := uint64(budget.ComputeUnitLimit)
	for i, ix := range ixs {
		if err := ctx.Err(); err != nil {
			result.Err = errors.Wrap(err, "execution interrupted")
			return nil
		}

		ixResult, used := r.executeInstruction(ix, loaded, remaining, result)
		result.Instructions = append(result.Instructions, ixResult)
		result.ComputeUnitsConsumed += used
		remaining -= used
		if ixResult.Err != nil {
			result.Err = &InstructionError{Index: i, ProgramID: ix.ProgramID, Err: ixResult.Err}
			return nil
		}
	}

	return r.commit(msg, loaded)
}

func (r *Runtime) executeInstruction(ix types.Instruction, loaded map[types.Pubkey]*types.Account, budget uint64, result *Result) (InstructionResult, uint64) {
	ixResult := InstructionResult{
		ProgramID:   ix.ProgramID,
		ProgramName: r.registry.GetProgramName(ix.ProgramID),
		Data:        ix.Data,
	}
	if program := loaded[ix.ProgramID]; !program.Executable {
		ixResult.Err = errors.Wrap(ErrProgramNotExecutable, ix.ProgramID.String())
		return ixResult, 0
	}

	infos := make([]*syscall.AccountInfo, len(ix.Accounts))
	for j, meta := range ix.Accounts {
		infos[j] = &syscall.AccountInfo{
			Pubkey:     meta.Pubkey,
			IsSigner:   meta.IsSigner,
			IsWritable: meta.IsWritable,
			Account:    loaded[meta.Pubkey],
		}
	}

	cfg := syscall.Config{
		ComputeUnits:  budget,
		UnixTimestamp: result.UnixTimestamp,
		Rent:          r.opts.Rent,
		Executor:      r.registry,
	}
	ectx := syscall.NewExecutionContext(cfg, ix.ProgramID, infos, ix.Data)
	ixResult.Err = ectx.Process()
	result.Logs = append(result.Logs, ectx.GetLogs()...)
	return ixResult, ectx.GetComputeUnitsConsumed()
}

// sanitize rejects malformed, unsigned and replayed transactions before any
// account is loaded.
func (r *Runtime) sanitize(tx *types.Transaction) error {
	if tx == nil {
		return crypto.ErrMissingTransaction
	}
	msg := &tx.Message
	if len(msg.Instructions) == 0 {
		return ErrNoInstructions
	}
	numSigned := int(msg.Header.NumRequiredSignatures)
	if numSigned == 0 || numSigned > len(msg.AccountKeys) ||
		int(msg.Header.NumReadonlySignedAccounts) >= numSigned ||
		numSigned+int(msg.Header.NumReadonlyUnsignedAccounts) > len(msg.AccountKeys) {
		return errors.Wrap(ErrInvalidMessage, "inconsistent header")
	}

	seen := make(map[types.Pubkey]struct{}, len(msg.AccountKeys))
	for _, key := range msg.AccountKeys {
		if _, dup := seen[key]; dup {
			return errors.Wrap(ErrDuplicateAccountKey, key.String())
		}
		seen[key] = struct{}{}
	}

	if !r.opts.SkipSignatureVerification {
		if err := crypto.VerifyTransaction(tx); err != nil {
			return err
		}
	}
	if _, ok := r.processed[tx.ID()]; ok {
		return errors.Wrap(ErrAlreadyProcessed, tx.ID().String())
	}
	return nil
}

func (r *Runtime) loadAccounts(msg *types.Message) (map[types.Pubkey]*types.Account, error) {
	loaded := make(map[types.Pubkey]*types.Account, len(msg.AccountKeys))
	for _, key := range msg.AccountKeys {
		acc, err := r.db.GetAccount(key)
		if err != nil {
			return nil, errors.Wrapf(err, "load account %s", key)
		}
		if acc == nil {
			acc = types.NewAccount(0, types.SystemProgramID)
		}
		loaded[key] = acc
	}
	return loaded, nil
}

// commit writes every writable account in one batch. Accounts left with no
// lamports and no data under the system program are removed.
func (r *Runtime) commit(msg *types.Message, loaded map[types.Pubkey]*types.Account) error {
	refs := make([]accounts.AccountRef, 0, len(msg.AccountKeys))
	for i, key := range msg.AccountKeys {
		if !msg.IsWritable(i) {
			continue
		}
		acc := loaded[key]
		if acc.IsEmpty() && acc.Owner == types.SystemProgramID {
			acc = nil
		}
		refs = append(refs, accounts.AccountRef{Pubkey: key, Account: acc})
	}
	return errors.Wrap(r.db.SetAccounts(refs), "commit accounts")
}

func (r *Runtime) report(result *Result) {
	log := r.log.WithFields(logrus.Fields{
		"signature":     result.Signature,
		"compute_units": result.ComputeUnitsConsumed,
		"duration":      result.Duration.Round(time.Microsecond),
	})
	for _, line := range result.Logs {
		log.Debug(line)
	}
	if result.Err != nil {
		log.WithError(result.Err).Info("transaction failed")
	} else {
		log.Debug("transaction committed")
	}

	if r.opts.Recorder != nil {
		r.opts.Recorder.ObserveTransaction(result)
	}
}
