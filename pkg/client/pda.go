package client

import (
	"github.com/gagliardetto/solana-go"

	"github.com/fortiblox/x1-staking/pkg/svm/programs/staking"
)

// DerivePoolPDA derives the pool address of mint.
// Seeds: ["staking_pool", mint]
func DerivePoolPDA(programID, mint solana.PublicKey) (solana.PublicKey, uint8, error) {
	seeds := [][]byte{
		[]byte(staking.PoolSeed),
		mint[:],
	}
	return solana.FindProgramAddress(seeds, programID)
}

// DeriveUserStakePDA derives the stake record address of user in pool.
// Seeds: ["user_stake", pool, user]
func DeriveUserStakePDA(programID, pool, user solana.PublicKey) (solana.PublicKey, uint8, error) {
	seeds := [][]byte{
		[]byte(staking.UserStakeSeed),
		pool[:],
		user[:],
	}
	return solana.FindProgramAddress(seeds, programID)
}
