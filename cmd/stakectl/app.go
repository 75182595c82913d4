package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/fortiblox/x1-staking/pkg/accounts"
	"github.com/fortiblox/x1-staking/pkg/client"
	"github.com/fortiblox/x1-staking/pkg/config"
	"github.com/fortiblox/x1-staking/pkg/crypto"
	"github.com/fortiblox/x1-staking/pkg/runtime"
	"github.com/fortiblox/x1-staking/pkg/svm/programs/staking"
	"github.com/fortiblox/x1-staking/pkg/types"
)

const keyFileExt = ".json"

// app carries the settings shared by every subcommand.
type app struct {
	v          *viper.Viper
	configPath string

	// txComputeUnits is requested by every submitted transaction when set.
	txComputeUnits uint32

	cfg *config.Config
	log *logrus.Entry
}

func newApp() *app {
	return &app{v: config.NewViper()}
}

func (a *app) bindFlags(cmd *cobra.Command) {
	flags := cmd.PersistentFlags()
	flags.StringVarP(&a.configPath, "config", "c", "", "Path to the config file (default ./stakectl.yaml)")
	flags.String("ledger-dir", "", "Ledger directory")
	flags.Bool("in-memory", false, "Run against a throwaway in-memory ledger")
	flags.String("keys-dir", "", "Directory holding named keypairs")
	flags.String("program-id", "", "Staking program address")
	flags.String("log-level", "", "Log level: debug, info, warn, error")
	flags.Uint32Var(&a.txComputeUnits, "compute-unit-limit", 0, "Compute units requested by submitted transactions")

	for key, name := range map[string]string{
		config.KeyLedgerDir:      "ledger-dir",
		config.KeyLedgerInMemory: "in-memory",
		config.KeyKeysDir:        "keys-dir",
		config.KeyProgramID:      "program-id",
		config.KeyLogLevel:       "log-level",
	} {
		if err := a.v.BindPFlag(key, flags.Lookup(name)); err != nil {
			panic(err)
		}
	}
}

func (a *app) load() error {
	cfg, err := config.Load(a.v, a.configPath)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.log = logrus.NewEntry(cfg.Logger())
	return nil
}

// session is an open ledger with the runtime and client over it.
type session struct {
	db      accounts.AccountsDB
	runtime *runtime.Runtime
	client  *client.Client
}

func (a *app) openSession(recorder runtime.Recorder) (*session, error) {
	db, err := a.cfg.OpenLedger(a.log)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open ledger")
	}

	rt, err := runtime.New(db, runtime.NewDefaultRegistry(a.cfg.StakingProgramID()), runtime.Options{
		ComputeUnitsLimit: a.cfg.ComputeLimit(),
		Rent:              a.cfg.RentParams(),
		Recorder:          recorder,
		Log:               a.log,
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	c := client.New(a.log, rt, a.cfg.StakingProgramID(), rt.Clock())
	c.SetComputeUnitLimit(a.txComputeUnits)
	return &session{db: db, runtime: rt, client: c}, nil
}

func (s *session) Close() error {
	return s.db.Close()
}

// withSession runs fn against a freshly opened ledger and closes it after.
func (a *app) withSession(fn func(s *session) error) error {
	s, err := a.openSession(nil)
	if err != nil {
		return err
	}
	defer s.Close()
	return fn(s)
}

func (a *app) keyPath(name string) string {
	return filepath.Join(a.cfg.Keys.Dir, name+keyFileExt)
}

func (a *app) loadKey(name string) (*crypto.Keypair, error) {
	if name == "" {
		return nil, errors.New("no keypair name given")
	}
	return crypto.LoadKeypair(a.keyPath(name))
}

// saveKey writes kp under name, refusing to replace an existing key unless
// force is set.
func (a *app) saveKey(name string, kp *crypto.Keypair, force bool) error {
	path := a.keyPath(name)
	if !force {
		if _, err := os.Stat(path); err == nil {
			return errors.Errorf("keypair %q already exists at %s", name, path)
		}
	}
	return crypto.SaveKeypair(path, kp)
}

// resolveAddress accepts either the name of a stored keypair or a base58
// address.
func (a *app) resolveAddress(s string) (types.Pubkey, error) {
	if _, err := os.Stat(a.keyPath(s)); err == nil {
		kp, err := crypto.LoadKeypair(a.keyPath(s))
		if err != nil {
			return types.Pubkey{}, err
		}
		return kp.PublicKey(), nil
	}
	pubkey, err := types.PubkeyFromBase58(s)
	if err != nil {
		return types.Pubkey{}, errors.Errorf("%q is neither a stored keypair nor a valid address", s)
	}
	return pubkey, nil
}

// printResult reports a submitted transaction. A failed transaction has its
// program logs printed before the error is returned.
func printResult(w io.Writer, res *runtime.Result, err error) error {
	if res == nil {
		return err
	}
	if err != nil {
		for _, line := range res.Logs {
			fmt.Fprintf(w, "  %s\n", line)
		}
		if code, ok := res.StakingCode(); ok {
			return errors.Wrapf(err, "staking error %d (%s)", uint32(code), code)
		}
		return err
	}
	fmt.Fprintf(w, "Signature: %s\n", res.Signature)
	fmt.Fprintf(w, "Compute units: %d\n", res.ComputeUnitsConsumed)
	return nil
}

func printPool(w io.Writer, address types.Pubkey, pool *staking.Pool, vault uint64) {
	reserve := uint64(0)
	if vault > pool.TotalStaked {
		reserve = vault - pool.TotalStaked
	}
	fmt.Fprintf(w, "Pool:           %s\n", address)
	fmt.Fprintf(w, "Administrator:  %s\n", pool.Administrator)
	fmt.Fprintf(w, "Vault:          %s\n", pool.Vault)
	fmt.Fprintf(w, "Reward rate:    %d\n", pool.RewardRate)
	fmt.Fprintf(w, "Total staked:   %d\n", pool.TotalStaked)
	fmt.Fprintf(w, "Reward reserve: %d\n", reserve)
}

func printUserStake(w io.Writer, address types.Pubkey, position *staking.UserStake) {
	fmt.Fprintf(w, "Position:        %s\n", address)
	fmt.Fprintf(w, "Owner:           %s\n", position.Owner)
	fmt.Fprintf(w, "Amount:          %d\n", position.Amount)
	fmt.Fprintf(w, "Pending rewards: %d\n", position.PendingRewards)
	fmt.Fprintf(w, "Last accrual:    %d\n", position.LastAccrualTime)
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
