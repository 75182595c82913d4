package staking

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPool_Layout(t *testing.T) {
	pool := &Pool{
		Administrator: testPubkey("admin"),
		RewardRate:    2,
		Vault:         testPubkey("vault"),
		TotalStaked:   1234,
		AuthorityBump: 254,
	}
	data, err := pool.Serialize()
	require.NoError(t, err)
	require.Len(t, data, PoolSize)

	require.Equal(t, PoolDiscriminator[:], data[:8])
	require.Equal(t, pool.Administrator[:], data[8:40])
	require.Equal(t, uint64(2), binary.LittleEndian.Uint64(data[40:48]))
	require.Equal(t, pool.Vault[:], data[48:80])
	require.Equal(t, uint64(1234), binary.LittleEndian.Uint64(data[80:88]))
	require.Equal(t, byte(254), data[88])

	decoded, err := DecodePool(data)
	require.NoError(t, err)
	require.Equal(t, pool, decoded)
}

func TestUserStake_Layout(t *testing.T) {
	position := &UserStake{
		Owner:           testPubkey("user"),
		Amount:          60,
		PendingRewards:  20_000,
		LastAccrualTime: 1100,
	}
	data, err := position.Serialize()
	require.NoError(t, err)
	require.Len(t, data, UserStakeSize)

	require.Equal(t, UserStakeDiscriminator[:], data[:8])
	require.Equal(t, uint64(60), binary.LittleEndian.Uint64(data[40:48]))
	require.Equal(t, uint64(20_000), binary.LittleEndian.Uint64(data[48:56]))
	require.Equal(t, uint64(1100), binary.LittleEndian.Uint64(data[56:64]))

	decoded, err := DecodeUserStake(data)
	require.NoError(t, err)
	require.Equal(t, position, decoded)
}

func TestDecode_Rejects(t *testing.T) {
	data, err := (&Pool{RewardRate: 1}).Serialize()
	require.NoError(t, err)

	_, err = DecodePool(data[:PoolSize-1])
	require.ErrorIs(t, err, ErrInvalidAccountData)

	corrupt := append([]byte(nil), data...)
	corrupt[0] ^= 0xff
	_, err = DecodePool(corrupt)
	require.ErrorIs(t, err, ErrInvalidAccountData)

	_, err = DecodeUserStake(make([]byte, UserStakeSize))
	require.ErrorIs(t, err, ErrInvalidAccountData)
}

func TestDiscriminatorsDiffer(t *testing.T) {
	require.NotEqual(t, PoolDiscriminator, UserStakeDiscriminator)
}
