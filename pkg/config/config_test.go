package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/fortiblox/x1-staking/pkg/types"
)

func TestLoad_Defaults(t *testing.T) {
	config, err := Load(NewViper(), "")
	require.NoError(t, err)
	require.Equal(t, filepath.Join(DefaultDataDir, "ledger"), config.Ledger.Dir)
	require.False(t, config.Ledger.InMemory)
	require.Equal(t, types.DefaultStakingProgramID, config.StakingProgramID())
	require.Equal(t, types.DefaultComputeUnitsPerTransaction, config.ComputeLimit())
	require.Equal(t, types.DefaultRent(), config.RentParams())
	require.Equal(t, ":9090", config.Metrics.Addr)
	require.Equal(t, ":8899", config.RPC.Addr)
	require.Equal(t, logrus.InfoLevel, config.Logger().GetLevel())
}

func TestLoad_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
ledger:
  in_memory: true
runtime:
  compute_limit: 50000
rent:
  lamports_per_byte_year: 10
  exemption_threshold: 1.5
log:
  level: debug
rpc:
  addr: 127.0.0.1:1234
`), 0o600))

	t.Setenv("STAKECTL_METRICS_ADDR", "127.0.0.1:9999")
	t.Setenv("STAKECTL_RUNTIME_COMPUTE_LIMIT", "60000")

	config, err := Load(NewViper(), path)
	require.NoError(t, err)
	require.True(t, config.Ledger.InMemory)
	require.Equal(t, types.ComputeUnits(60000), config.ComputeLimit())
	require.Equal(t, types.Rent{LamportsPerByteYear: 10, ExemptionThreshold: 1.5}, config.RentParams())
	require.Equal(t, "127.0.0.1:1234", config.RPC.Addr)
	require.Equal(t, "127.0.0.1:9999", config.Metrics.Addr)
	require.Equal(t, logrus.DebugLevel, config.Logger().GetLevel())
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(NewViper(), filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			Ledger:    LedgerConfig{Dir: "ledger"},
			ProgramID: types.DefaultStakingProgramID.String(),
			Runtime:   RuntimeConfig{ComputeLimit: 1000},
			Rent:      RentConfig{LamportsPerByteYear: 1, ExemptionThreshold: 2},
			Log:       LogConfig{Level: "warn"},
		}
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		err    string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "program id", mutate: func(c *Config) { c.ProgramID = "not-base58!" }, err: "program_id"},
		{name: "zero compute", mutate: func(c *Config) { c.Runtime.ComputeLimit = 0 }, err: "must be positive"},
		{
			name:   "compute above max",
			mutate: func(c *Config) { c.Runtime.ComputeLimit = uint64(types.MaxComputeUnitsPerTransaction) + 1 },
			err:    "exceeds",
		},
		{name: "negative threshold", mutate: func(c *Config) { c.Rent.ExemptionThreshold = -1 }, err: "must not be negative"},
		{name: "log level", mutate: func(c *Config) { c.Log.Level = "loud" }, err: "log.level"},
		{name: "ledger dir", mutate: func(c *Config) { c.Ledger.Dir = "" }, err: "ledger.dir is required"},
		{name: "in memory needs no dir", mutate: func(c *Config) { c.Ledger = LedgerConfig{InMemory: true} }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := valid()
			tt.mutate(&config)
			err := config.Validate()
			if tt.err == "" {
				require.NoError(t, err)
				return
			}
			require.ErrorContains(t, err, tt.err)
		})
	}
}

func TestOpenLedger(t *testing.T) {
	log := logrus.NewEntry(logrus.New())

	config := Config{Ledger: LedgerConfig{InMemory: true}}
	db, err := config.OpenLedger(log)
	require.NoError(t, err)
	require.NoError(t, db.SetAccount(types.SystemProgramID, types.NewAccount(1, types.NativeLoaderID)))
	require.True(t, db.HasAccount(types.SystemProgramID))
	require.NoError(t, db.Close())

	config = Config{Ledger: LedgerConfig{Dir: filepath.Join(t.TempDir(), "nested", "ledger")}}
	db, err = config.OpenLedger(log)
	require.NoError(t, err)
	require.Zero(t, db.GetAccountsCount())
	require.NoError(t, db.Close())
}
