package snapshot

import (
	"archive/tar"
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/klauspost/compress/zstd"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/fortiblox/x1-staking/pkg/accounts"
	"github.com/fortiblox/x1-staking/pkg/types"
)

func testPubkey(seed string) types.Pubkey {
	return types.Pubkey(types.SHA256Multi([]byte(seed)))
}

func testLedger(t *testing.T) *accounts.MemoryDB {
	db := accounts.NewMemoryDB()
	require.NoError(t, db.SetAccount(testPubkey("alice"), types.NewAccount(5_000, types.SystemProgramID)))
	require.NoError(t, db.SetAccount(testPubkey("pool"), &types.Account{
		Lamports: 1_500_000,
		Data:     []byte{1, 2, 3, 4, 5, 6, 7, 8, 9},
		Owner:    types.DefaultStakingProgramID,
	}))
	require.NoError(t, db.SetAccount(types.TokenProgramID, &types.Account{
		Lamports:   1,
		Owner:      types.NativeLoaderID,
		Executable: true,
	}))
	return db
}

func testLog() *logrus.Entry {
	return logrus.NewEntry(logrus.New())
}

// writeArchive assembles an archive from raw entries.
func writeArchive(t *testing.T, entries map[string][]byte, order ...string) []byte {
	var buf bytes.Buffer
	encoder, err := zstd.NewWriter(&buf)
	require.NoError(t, err)
	tw := tar.NewWriter(encoder)
	for _, name := range order {
		data := entries[name]
		require.NoError(t, tw.WriteHeader(&tar.Header{Name: name, Mode: 0o644, Size: int64(len(data)), Typeflag: tar.TypeReg}))
		_, err := tw.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, tw.Close())
	require.NoError(t, encoder.Close())
	return buf.Bytes()
}

func TestExport_RoundTrip(t *testing.T) {
	db := testLedger(t)
	clock := clockwork.NewFakeClockAt(time.Unix(1_700_000_000, 0))

	var buf bytes.Buffer
	manifest, err := Export(db, &buf, ExportOptions{Clock: clock, ProgramID: types.DefaultStakingProgramID})
	require.NoError(t, err)
	require.Equal(t, Version, manifest.Version)
	require.Equal(t, int64(1_700_000_000), manifest.CreatedAt)
	require.Equal(t, uint64(3), manifest.AccountsCount)
	require.Equal(t, uint64(1_505_001), manifest.LamportsTotal)
	require.Equal(t, types.DefaultStakingProgramID.String(), manifest.ProgramID)

	hash, err := accounts.HashLedger(db)
	require.NoError(t, err)
	require.Equal(t, hash, manifest.AccountsHash)

	archive, err := ReadArchive(&buf)
	require.NoError(t, err)
	require.Equal(t, manifest, archive.Manifest)
	require.Len(t, archive.Accounts, 3)
	for _, ref := range archive.Accounts {
		want, err := db.GetAccount(ref.Pubkey)
		require.NoError(t, err)
		require.Equal(t, want.Lamports, ref.Account.Lamports)
		require.Equal(t, want.Owner, ref.Account.Owner)
		require.Equal(t, want.Executable, ref.Account.Executable)
		require.Equal(t, len(want.Data), len(ref.Account.Data))
	}
}

func TestExport_EmptyLedger(t *testing.T) {
	var buf bytes.Buffer
	manifest, err := Export(accounts.NewMemoryDB(), &buf, ExportOptions{})
	require.NoError(t, err)
	require.Zero(t, manifest.AccountsCount)
	require.Equal(t, types.ZeroHash, manifest.AccountsHash)

	archive, err := ReadArchive(&buf)
	require.NoError(t, err)
	require.Empty(t, archive.Accounts)
}

func TestLoad(t *testing.T) {
	source := testLedger(t)
	path := filepath.Join(t.TempDir(), "snapshots", "ledger.tar.zst")
	manifest, err := ExportFile(source, path, ExportOptions{})
	require.NoError(t, err)
	require.NoError(t, VerifySnapshot(path))

	var progress []LoadProgress
	target := accounts.NewMemoryDB()
	loader := NewSnapshotLoader(testLog(), target, LoadConfig{
		BatchSize:        2,
		ProgressCallback: func(p LoadProgress) { progress = append(progress, p) },
	})
	result, err := loader.Load(path)
	require.NoError(t, err)
	require.Equal(t, uint64(3), result.AccountsLoaded)
	require.Equal(t, manifest.AccountsHash, result.AccountsHash)
	require.Equal(t, []LoadProgress{{2, 3}, {3, 3}}, progress)

	want, err := accounts.HashLedger(source)
	require.NoError(t, err)
	got, err := accounts.HashLedger(target)
	require.NoError(t, err)
	require.Equal(t, want, got)

	_, err = LoadSnapshot(testLog(), path, target)
	require.True(t, errors.Is(err, ErrLedgerNotEmpty))
}

func TestLoad_IntoBadger(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.tar.zst")
	_, err := ExportFile(testLedger(t), path, ExportOptions{})
	require.NoError(t, err)

	db, err := accounts.NewBadgerDB(filepath.Join(t.TempDir(), "badger"), testLog())
	require.NoError(t, err)
	defer db.Close()

	result, err := LoadSnapshot(testLog(), path, db)
	require.NoError(t, err)
	require.Equal(t, uint64(3), result.AccountsLoaded)
	require.True(t, db.HasAccount(testPubkey("pool")))
}

func TestReadArchive_Corrupted(t *testing.T) {
	var buf bytes.Buffer
	manifest, err := Export(testLedger(t), &buf, ExportOptions{})
	require.NoError(t, err)
	archive, err := ReadArchive(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)

	var payload bytes.Buffer
	for _, ref := range archive.Accounts {
		require.NoError(t, encodeRecord(&payload, ref))
	}
	good, err := json.Marshal(manifest)
	require.NoError(t, err)

	tampered := append([]byte(nil), payload.Bytes()...)
	tampered[40]++

	wrongHash := *manifest
	wrongHash.AccountsHash = types.SHA256Multi([]byte("other"))
	wrongHashData, err := json.Marshal(&wrongHash)
	require.NoError(t, err)

	tests := []struct {
		name    string
		entries map[string][]byte
		order   []string
		err     error
	}{
		{
			name:    "checksum",
			entries: map[string][]byte{manifestEntry: good, accountsEntry: tampered},
			order:   []string{manifestEntry, accountsEntry},
			err:     ErrChecksumMismatch,
		},
		{
			name:    "missing manifest",
			entries: map[string][]byte{accountsEntry: payload.Bytes()},
			order:   []string{accountsEntry},
			err:     ErrInvalidArchive,
		},
		{
			name:    "missing accounts",
			entries: map[string][]byte{manifestEntry: good},
			order:   []string{manifestEntry},
			err:     ErrInvalidArchive,
		},
		{
			name:    "unexpected entry",
			entries: map[string][]byte{manifestEntry: good, "extra": {1}},
			order:   []string{manifestEntry, "extra"},
			err:     ErrInvalidArchive,
		},
		{
			name:    "bad manifest",
			entries: map[string][]byte{manifestEntry: []byte("{"), accountsEntry: payload.Bytes()},
			order:   []string{manifestEntry, accountsEntry},
			err:     ErrInvalidManifest,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadArchive(bytes.NewReader(writeArchive(t, tt.entries, tt.order...)))
			require.True(t, errors.Is(err, tt.err), "got %v", err)
		})
	}

	// A consistent checksum over the wrong accounts hash decodes but fails
	// verification and is never imported.
	path := filepath.Join(t.TempDir(), "wrong-hash.tar.zst")
	data := writeArchive(t, map[string][]byte{manifestEntry: wrongHashData, accountsEntry: payload.Bytes()},
		manifestEntry, accountsEntry)
	require.NoError(t, os.WriteFile(path, data, 0o600))

	result, err := VerifySnapshotWithResult(path)
	require.NoError(t, err)
	require.False(t, result.AccountsHashValid)
	require.True(t, errors.Is(VerifySnapshot(path), ErrHashMismatch))

	target := accounts.NewMemoryDB()
	_, err = LoadSnapshot(testLog(), path, target)
	require.True(t, errors.Is(err, ErrHashMismatch))
	require.Zero(t, target.GetAccountsCount())
}

func TestDecodeRecords_OutOfOrder(t *testing.T) {
	var payload bytes.Buffer
	a, b := testPubkey("a"), testPubkey("b")
	if bytes.Compare(a[:], b[:]) < 0 {
		a, b = b, a
	}
	require.NoError(t, encodeRecord(&payload, accounts.AccountRef{Pubkey: a, Account: types.NewAccount(1, types.SystemProgramID)}))
	require.NoError(t, encodeRecord(&payload, accounts.AccountRef{Pubkey: b, Account: types.NewAccount(1, types.SystemProgramID)}))

	_, err := decodeRecords(payload.Bytes())
	require.True(t, errors.Is(err, ErrInvalidArchive))

	_, err = decodeRecords(payload.Bytes()[:10])
	require.True(t, errors.Is(err, ErrInvalidArchive))
}
