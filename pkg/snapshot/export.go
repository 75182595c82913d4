package snapshot

import (
	"archive/tar"
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/jonboulle/clockwork"
	"github.com/klauspost/compress/zstd"
	"github.com/pkg/errors"

	"github.com/fortiblox/x1-staking/pkg/accounts"
	"github.com/fortiblox/x1-staking/pkg/types"
)

// ExportOptions configures Export.
type ExportOptions struct {
	Clock clockwork.Clock
	// ProgramID is recorded in the manifest when set.
	ProgramID types.Pubkey
	// Level defaults to zstd.SpeedDefault.
	Level zstd.EncoderLevel
}

// Export writes every account of db to w as a tar.zst archive and returns the
// manifest it wrote.
func Export(db accounts.AccountsDB, w io.Writer, opts ExportOptions) (*Manifest, error) {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Level == 0 {
		opts.Level = zstd.SpeedDefault
	}

	var refs []accounts.AccountRef
	err := db.ForEach(func(pubkey types.Pubkey, account *types.Account) error {
		refs = append(refs, accounts.AccountRef{Pubkey: pubkey, Account: account})
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to read ledger")
	}
	sort.Slice(refs, func(i, j int) bool {
		return bytes.Compare(refs[i].Pubkey[:], refs[j].Pubkey[:]) < 0
	})

	manifest := &Manifest{
		Version:       Version,
		CreatedAt:     opts.Clock.Now().Unix(),
		AccountsCount: uint64(len(refs)),
		AccountsHash:  accounts.ComputeAccountsHash(refs),
	}
	if !opts.ProgramID.IsZero() {
		manifest.ProgramID = opts.ProgramID.String()
	}

	var payload bytes.Buffer
	for _, ref := range refs {
		if err := encodeRecord(&payload, ref); err != nil {
			return nil, err
		}
		manifest.LamportsTotal += uint64(ref.Account.Lamports)
	}
	manifest.Checksum = checksum(payload.Bytes())

	manifestData, err := json.Marshal(manifest)
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode manifest")
	}

	encoder, err := zstd.NewWriter(w, zstd.WithEncoderLevel(opts.Level))
	if err != nil {
		return nil, errors.Wrap(err, "failed to create zstd encoder")
	}
	tw := tar.NewWriter(encoder)

	modTime := opts.Clock.Now()
	for _, entry := range []struct {
		name string
		data []byte
	}{
		{manifestEntry, manifestData},
		{accountsEntry, payload.Bytes()},
	} {
		header := &tar.Header{
			Name:     entry.name,
			Mode:     0o644,
			Size:     int64(len(entry.data)),
			ModTime:  modTime,
			Typeflag: tar.TypeReg,
		}
		if err := tw.WriteHeader(header); err != nil {
			encoder.Close()
			return nil, errors.Wrapf(err, "failed to write %s header", entry.name)
		}
		if _, err := tw.Write(entry.data); err != nil {
			encoder.Close()
			return nil, errors.Wrapf(err, "failed to write %s", entry.name)
		}
	}

	if err := tw.Close(); err != nil {
		encoder.Close()
		return nil, errors.Wrap(err, "failed to finish tar stream")
	}
	if err := encoder.Close(); err != nil {
		return nil, errors.Wrap(err, "failed to finish zstd stream")
	}
	return manifest, nil
}

// ExportFile writes the archive to path. The file only appears once it is
// complete.
func ExportFile(db accounts.AccountsDB, path string, opts ExportOptions) (*Manifest, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.Wrap(err, "failed to create snapshot directory")
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".snapshot-*")
	if err != nil {
		return nil, errors.Wrap(err, "failed to create snapshot file")
	}
	defer os.Remove(tmp.Name())

	manifest, err := Export(db, tmp, opts)
	if err != nil {
		tmp.Close()
		return nil, err
	}
	if err := tmp.Close(); err != nil {
		return nil, errors.Wrap(err, "failed to close snapshot file")
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return nil, errors.Wrap(err, "failed to move snapshot into place")
	}
	return manifest, nil
}
