package staking

import (
	"github.com/fortiblox/x1-staking/pkg/svm/syscall"
	"github.com/fortiblox/x1-staking/pkg/types"
)

// Seed labels of the program's derived addresses.
const (
	PoolSeed      = "staking_pool"
	UserStakeSeed = "user_stake"
)

// DerivePool returns the pool address for mint and its bump. The pool
// address also owns the pool's vault, so the same derivation signs vault
// transfers.
func DerivePool(programID, mint types.Pubkey) (types.Pubkey, uint8, error) {
	return syscall.FindProgramAddress([][]byte{[]byte(PoolSeed), mint[:]}, programID)
}

// DeriveUserStake returns the stake record address of user in pool.
func DeriveUserStake(programID, pool, user types.Pubkey) (types.Pubkey, uint8, error) {
	return syscall.FindProgramAddress([][]byte{[]byte(UserStakeSeed), pool[:], user[:]}, programID)
}

func poolSeeds(mint types.Pubkey, bump uint8) [][]byte {
	return [][]byte{[]byte(PoolSeed), mint[:], {bump}}
}

func userStakeSeeds(pool, user types.Pubkey, bump uint8) [][]byte {
	return [][]byte{[]byte(UserStakeSeed), pool[:], user[:], {bump}}
}
