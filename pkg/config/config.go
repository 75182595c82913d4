// Package config loads stakectl settings from a config file, STAKECTL_
// environment variables and command line flags.
package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/fortiblox/x1-staking/pkg/accounts"
	"github.com/fortiblox/x1-staking/pkg/types"
)

const (
	EnvPrefix      = "STAKECTL"
	ConfigName     = "stakectl"
	ConfigType     = "yaml"
	DefaultDataDir = ".stakectl"
)

// Keys understood by Load.
const (
	KeyLedgerDir           = "ledger.dir"
	KeyLedgerInMemory      = "ledger.in_memory"
	KeyProgramID           = "program_id"
	KeyComputeLimit        = "runtime.compute_limit"
	KeyLamportsPerByteYear = "rent.lamports_per_byte_year"
	KeyExemptionThreshold  = "rent.exemption_threshold"
	KeyLogLevel            = "log.level"
	KeyMetricsAddr         = "metrics.addr"
	KeyRPCAddr             = "rpc.addr"
	KeyKeysDir             = "keys.dir"
)

type LedgerConfig struct {
	Dir      string `mapstructure:"dir"`
	InMemory bool   `mapstructure:"in_memory"`
}

type RuntimeConfig struct {
	ComputeLimit uint64 `mapstructure:"compute_limit"`
}

type RentConfig struct {
	LamportsPerByteYear uint64  `mapstructure:"lamports_per_byte_year"`
	ExemptionThreshold  float64 `mapstructure:"exemption_threshold"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type AddrConfig struct {
	Addr string `mapstructure:"addr"`
}

type KeysConfig struct {
	Dir string `mapstructure:"dir"`
}

// Config is the full stakectl configuration.
type Config struct {
	Ledger    LedgerConfig  `mapstructure:"ledger"`
	ProgramID string        `mapstructure:"program_id"`
	Runtime   RuntimeConfig `mapstructure:"runtime"`
	Rent      RentConfig    `mapstructure:"rent"`
	Log       LogConfig     `mapstructure:"log"`
	Metrics   AddrConfig    `mapstructure:"metrics"`
	RPC       AddrConfig    `mapstructure:"rpc"`
	Keys      KeysConfig    `mapstructure:"keys"`
}

// SetDefaults registers the default of every key on v. Registering every key
// is what lets AutomaticEnv overrides reach Unmarshal.
func SetDefaults(v *viper.Viper) {
	rent := types.DefaultRent()

	v.SetDefault(KeyLedgerDir, filepath.Join(DefaultDataDir, "ledger"))
	v.SetDefault(KeyLedgerInMemory, false)
	v.SetDefault(KeyProgramID, types.DefaultStakingProgramID.String())
	v.SetDefault(KeyComputeLimit, uint64(types.DefaultComputeUnitsPerTransaction))
	v.SetDefault(KeyLamportsPerByteYear, rent.LamportsPerByteYear)
	v.SetDefault(KeyExemptionThreshold, rent.ExemptionThreshold)
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyMetricsAddr, ":9090")
	v.SetDefault(KeyRPCAddr, ":8899")
	v.SetDefault(KeyKeysDir, filepath.Join(DefaultDataDir, "keys"))
}

// NewViper returns a viper instance with defaults and environment binding
// configured. ledger.dir is read from STAKECTL_LEDGER_DIR.
func NewViper() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads path, or stakectl.yaml from the working directory when path is
// empty, and decodes the merged settings of v. A missing default file is not
// an error; a missing explicit file is.
func Load(v *viper.Viper, path string) (*Config, error) {
	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, errors.Wrap(err, "failed to check config file")
		}
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(ConfigName)
		v.SetConfigType(ConfigType)
		v.AddConfigPath(".")
	}

	err := v.ReadInConfig()
	_, isConfigNotFound := err.(viper.ConfigFileNotFoundError)
	if err != nil && !isConfigNotFound {
		return nil, errors.Wrap(err, "failed to load config")
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal config")
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

func (c *Config) Validate() error {
	if _, err := types.PubkeyFromBase58(c.ProgramID); err != nil {
		return errors.Wrapf(err, "invalid %s", KeyProgramID)
	}
	if c.Runtime.ComputeLimit == 0 {
		return errors.Errorf("%s must be positive", KeyComputeLimit)
	}
	if c.Runtime.ComputeLimit > uint64(types.MaxComputeUnitsPerTransaction) {
		return errors.Errorf("%s exceeds %d", KeyComputeLimit, types.MaxComputeUnitsPerTransaction)
	}
	if c.Rent.ExemptionThreshold < 0 {
		return errors.Errorf("%s must not be negative", KeyExemptionThreshold)
	}
	if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
		return errors.Wrapf(err, "invalid %s", KeyLogLevel)
	}
	if !c.Ledger.InMemory && c.Ledger.Dir == "" {
		return errors.Errorf("%s is required unless %s is set", KeyLedgerDir, KeyLedgerInMemory)
	}
	return nil
}

// StakingProgramID returns the parsed program_id.
func (c *Config) StakingProgramID() types.Pubkey {
	id, _ := types.PubkeyFromBase58(c.ProgramID)
	return id
}

func (c *Config) RentParams() types.Rent {
	return types.Rent{
		LamportsPerByteYear: c.Rent.LamportsPerByteYear,
		ExemptionThreshold:  c.Rent.ExemptionThreshold,
	}
}

func (c *Config) ComputeLimit() types.ComputeUnits {
	return types.ComputeUnits(c.Runtime.ComputeLimit)
}

// Logger returns a logrus logger at the configured level.
func (c *Config) Logger() *logrus.Logger {
	logger := logrus.New()
	level, err := logrus.ParseLevel(c.Log.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
	return logger
}

// OpenLedger opens the configured account store.
func (c *Config) OpenLedger(log *logrus.Entry) (accounts.AccountsDB, error) {
	var (
		db  *accounts.BadgerDB
		err error
	)
	if c.Ledger.InMemory {
		db, err = accounts.NewInMemoryBadgerDB(log)
	} else {
		if err := os.MkdirAll(c.Ledger.Dir, 0o755); err != nil {
			return nil, errors.Wrap(err, "failed to create ledger directory")
		}
		db, err = accounts.NewBadgerDB(c.Ledger.Dir, log)
	}
	if err != nil {
		return nil, err
	}
	return db, nil
}
