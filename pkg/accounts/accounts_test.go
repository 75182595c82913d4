package accounts

import (
	"bytes"
	"crypto/sha256"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fortiblox/x1-staking/pkg/types"
)

func testPubkey(seed string) types.Pubkey {
	return types.Pubkey(sha256.Sum256([]byte(seed)))
}

func testAccount(lamports types.Lamports, data []byte, owner types.Pubkey) *types.Account {
	return &types.Account{
		Lamports: lamports,
		Data:     data,
		Owner:    owner,
	}
}

// forEachDB runs fn against every AccountsDB implementation.
func forEachDB(t *testing.T, fn func(t *testing.T, db AccountsDB)) {
	t.Run("memory", func(t *testing.T) {
		db := NewMemoryDB()
		defer db.Close()
		fn(t, db)
	})
	t.Run("badger", func(t *testing.T) {
		db, err := NewBadgerDB(t.TempDir(), nil)
		require.NoError(t, err)
		defer db.Close()
		fn(t, db)
	})
}

func TestAccountsDB_SetAndGet(t *testing.T) {
	forEachDB(t, func(t *testing.T, db AccountsDB) {
		pubkey := testPubkey("test_account")
		account := testAccount(1_000_000_000, []byte("test_data"), types.SystemProgramID)

		require.NoError(t, db.SetAccount(pubkey, account))

		got, err := db.GetAccount(pubkey)
		require.NoError(t, err)
		require.NotNil(t, got)
		require.Equal(t, account.Lamports, got.Lamports)
		require.Equal(t, account.Data, got.Data)
		require.Equal(t, account.Owner, got.Owner)
		require.True(t, db.HasAccount(pubkey))
		require.EqualValues(t, 1, db.GetAccountsCount())
	})
}

func TestAccountsDB_GetMissing(t *testing.T) {
	forEachDB(t, func(t *testing.T, db AccountsDB) {
		got, err := db.GetAccount(testPubkey("nonexistent"))
		require.NoError(t, err)
		require.Nil(t, got)
		require.False(t, db.HasAccount(testPubkey("nonexistent")))
	})
}

func TestAccountsDB_Delete(t *testing.T) {
	forEachDB(t, func(t *testing.T, db AccountsDB) {
		pubkey := testPubkey("to_delete")
		require.NoError(t, db.SetAccount(pubkey, testAccount(1, nil, types.SystemProgramID)))
		require.NoError(t, db.DeleteAccount(pubkey))
		require.False(t, db.HasAccount(pubkey))
		require.EqualValues(t, 0, db.GetAccountsCount())

		// Deleting twice is a no-op.
		require.NoError(t, db.DeleteAccount(pubkey))
		require.EqualValues(t, 0, db.GetAccountsCount())
	})
}

func TestAccountsDB_SetAccountsBatch(t *testing.T) {
	forEachDB(t, func(t *testing.T, db AccountsDB) {
		a, b, c := testPubkey("a"), testPubkey("b"), testPubkey("c")
		require.NoError(t, db.SetAccount(c, testAccount(3, nil, types.SystemProgramID)))

		err := db.SetAccounts([]AccountRef{
			{Pubkey: a, Account: testAccount(1, []byte{1}, types.SystemProgramID)},
			{Pubkey: b, Account: testAccount(2, []byte{2}, types.SystemProgramID)},
			{Pubkey: c},
		})
		require.NoError(t, err)

		require.EqualValues(t, 2, db.GetAccountsCount())
		require.False(t, db.HasAccount(c))

		got, err := db.GetAccount(b)
		require.NoError(t, err)
		require.Equal(t, types.Lamports(2), got.Lamports)
	})
}

func TestAccountsDB_ForEachSorted(t *testing.T) {
	forEachDB(t, func(t *testing.T, db AccountsDB) {
		for i := 0; i < 20; i++ {
			require.NoError(t, db.SetAccount(testPubkey(string(rune('a'+i))), testAccount(types.Lamports(i), nil, types.SystemProgramID)))
		}

		var seen []types.Pubkey
		require.NoError(t, db.ForEach(func(pubkey types.Pubkey, _ *types.Account) error {
			seen = append(seen, pubkey)
			return nil
		}))
		require.Len(t, seen, 20)
		for i := 1; i < len(seen); i++ {
			require.Negative(t, bytes.Compare(seen[i-1][:], seen[i][:]))
		}
	})
}

func TestAccountsDB_Isolation(t *testing.T) {
	forEachDB(t, func(t *testing.T, db AccountsDB) {
		pubkey := testPubkey("isolation")
		data := []byte{1, 2, 3}
		require.NoError(t, db.SetAccount(pubkey, testAccount(10, data, types.SystemProgramID)))

		data[0] = 99
		got, err := db.GetAccount(pubkey)
		require.NoError(t, err)
		require.Equal(t, byte(1), got.Data[0])

		got.Data[1] = 99
		again, err := db.GetAccount(pubkey)
		require.NoError(t, err)
		require.Equal(t, byte(2), again.Data[1])
	})
}

func TestBadgerDB_Reopen(t *testing.T) {
	dir := t.TempDir()

	db, err := NewBadgerDB(dir, nil)
	require.NoError(t, err)
	require.NoError(t, db.SetAccount(testPubkey("persist"), testAccount(42, []byte("x"), types.TokenProgramID)))
	require.NoError(t, db.Close())

	db, err = NewBadgerDB(dir, nil)
	require.NoError(t, err)
	defer db.Close()

	require.EqualValues(t, 1, db.GetAccountsCount())
	got, err := db.GetAccount(testPubkey("persist"))
	require.NoError(t, err)
	require.Equal(t, types.Lamports(42), got.Lamports)
	require.Equal(t, types.TokenProgramID, got.Owner)
}

func TestMemoryDB_Concurrent(t *testing.T) {
	db := NewMemoryDB()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			pk := testPubkey(string(rune(i)))
			_ = db.SetAccount(pk, testAccount(types.Lamports(i), nil, types.SystemProgramID))
			_, _ = db.GetAccount(pk)
		}(i)
	}
	wg.Wait()

	require.EqualValues(t, 50, db.GetAccountsCount())
}

func TestSerializeAccount_RoundTrip(t *testing.T) {
	account := &types.Account{
		Lamports:   123456789,
		Data:       []byte("staking"),
		Owner:      testPubkey("owner"),
		Executable: true,
	}

	encoded, err := SerializeAccount(account)
	require.NoError(t, err)
	require.Len(t, encoded, serializationMinSize+len(account.Data))

	decoded, err := DeserializeAccount(encoded)
	require.NoError(t, err)
	require.Equal(t, account, decoded)

	_, err = DeserializeAccount(encoded[:len(encoded)-1])
	require.ErrorIs(t, err, ErrInvalidAccountData)
}

func TestComputeAccountsHash(t *testing.T) {
	require.Equal(t, types.ZeroHash, ComputeAccountsHash(nil))

	a := AccountRef{Pubkey: testPubkey("a"), Account: testAccount(1, nil, types.SystemProgramID)}
	b := AccountRef{Pubkey: testPubkey("b"), Account: testAccount(2, nil, types.SystemProgramID)}

	single := ComputeAccountsHash([]AccountRef{a})
	require.Equal(t, a.Account.Hash(a.Pubkey), single)

	require.Equal(t, ComputeAccountsHash([]AccountRef{a, b}), ComputeAccountsHash([]AccountRef{b, a}))

	changed := AccountRef{Pubkey: b.Pubkey, Account: testAccount(3, nil, types.SystemProgramID)}
	require.NotEqual(t, ComputeAccountsHash([]AccountRef{a, b}), ComputeAccountsHash([]AccountRef{a, changed}))
}

func TestComputeMerkleRoot_Levels(t *testing.T) {
	var leaves []types.Hash
	for i := 0; i < 17; i++ {
		leaves = append(leaves, sha256.Sum256([]byte{byte(i)}))
	}

	require.Equal(t, hashChildren(leaves[:16]), computeMerkleRoot(leaves[:16]))

	level := computeNextLevel(leaves)
	require.Len(t, level, 2)
	require.Equal(t, leaves[16], level[1])
	require.Equal(t, hashChildren(level), computeMerkleRoot(leaves))
}

func TestHashLedger(t *testing.T) {
	forEachDB(t, func(t *testing.T, db AccountsDB) {
		refs := []AccountRef{
			{Pubkey: testPubkey("x"), Account: testAccount(5, []byte{1}, types.SystemProgramID)},
			{Pubkey: testPubkey("y"), Account: testAccount(6, nil, types.TokenProgramID)},
		}
		require.NoError(t, db.SetAccounts(refs))

		hash, err := HashLedger(db)
		require.NoError(t, err)
		require.Equal(t, ComputeAccountsHash(refs), hash)
	})
}
