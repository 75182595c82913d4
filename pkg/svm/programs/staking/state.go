package staking

import (
	"bytes"
	"crypto/sha256"

	bin "github.com/gagliardetto/binary"
	"github.com/pkg/errors"

	"github.com/fortiblox/x1-staking/pkg/svm/syscall"
	"github.com/fortiblox/x1-staking/pkg/types"
)

// Record sizes, discriminator included.
const (
	PoolSize      = 8 + 32 + 8 + 32 + 8 + 1
	UserStakeSize = 8 + 32 + 8 + 8 + 8
)

var (
	PoolDiscriminator      = accountDiscriminator("Pool")
	UserStakeDiscriminator = accountDiscriminator("UserStake")
)

func accountDiscriminator(name string) [8]byte {
	var d [8]byte
	sum := sha256.Sum256([]byte("account:" + name))
	copy(d[:], sum[:8])
	return d
}

// Pool is the per-mint staking pool record.
type Pool struct {
	Administrator types.Pubkey
	RewardRate    uint64 // reward units per staked token per second
	Vault         types.Pubkey
	TotalStaked   uint64
	AuthorityBump uint8
}

// UserStake is one user's position in a pool.
type UserStake struct {
	Owner           types.Pubkey
	Amount          uint64
	PendingRewards  uint64
	LastAccrualTime int64
}

func (p *Pool) Serialize() ([]byte, error) {
	return encodeRecord(PoolDiscriminator, *p, PoolSize)
}

func (p *Pool) Deserialize(data []byte) error {
	return decodeRecord(data, PoolDiscriminator, p, PoolSize)
}

func (u *UserStake) Serialize() ([]byte, error) {
	return encodeRecord(UserStakeDiscriminator, *u, UserStakeSize)
}

func (u *UserStake) Deserialize(data []byte) error {
	return decodeRecord(data, UserStakeDiscriminator, u, UserStakeSize)
}

func encodeRecord(discriminator [8]byte, v interface{}, size int) ([]byte, error) {
	buf := bytes.NewBuffer(make([]byte, 0, size))
	enc := bin.NewBorshEncoder(buf)
	if err := enc.Encode(discriminator); err != nil {
		return nil, err
	}
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	if buf.Len() != size {
		return nil, errors.Wrapf(ErrInvalidAccountData, "encoded %d bytes, want %d", buf.Len(), size)
	}
	return buf.Bytes(), nil
}

func decodeRecord(data []byte, discriminator [8]byte, v interface{}, size int) error {
	if len(data) != size {
		return errors.Wrapf(ErrInvalidAccountData, "record is %d bytes, want %d", len(data), size)
	}
	dec := bin.NewBorshDecoder(data)
	var got [8]byte
	if err := dec.Decode(&got); err != nil {
		return errors.Wrap(ErrInvalidAccountData, err.Error())
	}
	if got != discriminator {
		return errors.Wrap(ErrInvalidAccountData, "discriminator mismatch")
	}
	if err := dec.Decode(v); err != nil {
		return errors.Wrap(ErrInvalidAccountData, err.Error())
	}
	return nil
}

// DecodePool decodes a pool record from raw account data.
func DecodePool(data []byte) (*Pool, error) {
	pool := &Pool{}
	if err := pool.Deserialize(data); err != nil {
		return nil, err
	}
	return pool, nil
}

// DecodeUserStake decodes a stake record from raw account data.
func DecodeUserStake(data []byte) (*UserStake, error) {
	stake := &UserStake{}
	if err := stake.Deserialize(data); err != nil {
		return nil, err
	}
	return stake, nil
}

// isUninitialized reports whether a record address has not been created yet.
// Lamports alone do not count: anyone can pre-fund an address.
func isUninitialized(programID types.Pubkey, acc *syscall.AccountInfo) bool {
	return len(acc.Data) == 0 && acc.Owner != programID
}

func loadRecord(programID types.Pubkey, acc *syscall.AccountInfo, decode func([]byte) error) error {
	if isUninitialized(programID, acc) {
		return errors.Wrap(ErrNotInitialized, acc.Pubkey.String())
	}
	if acc.Owner != programID {
		return errors.Wrapf(ErrInvalidAccountData, "%s is not owned by the staking program", acc.Pubkey)
	}
	return decode(acc.Data)
}

type record interface {
	Serialize() ([]byte, error)
}

func storeRecord(acc *syscall.AccountInfo, rec record) error {
	data, err := rec.Serialize()
	if err != nil {
		return err
	}
	if len(acc.Data) != len(data) {
		return errors.Wrapf(ErrInvalidAccountData, "%s holds %d bytes, want %d", acc.Pubkey, len(acc.Data), len(data))
	}
	copy(acc.Data, data)
	return nil
}
