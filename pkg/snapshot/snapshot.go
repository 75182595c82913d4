// Package snapshot exports the whole account set of a ledger into a
// tar.zst archive and imports it back.
//
// An archive holds two entries: "manifest", a JSON document, and "accounts",
// the concatenated account records sorted by address. Each record is the
// 32-byte address, a little-endian u32 length and the accounts.SerializeAccount
// encoding. The manifest carries a blake2b-256 checksum of the accounts entry
// and the accounts hash of the set it describes.
package snapshot

import (
	"archive/tar"
	"bytes"
	"encoding/binary"
	"encoding/json"
	"io"
	"os"

	"github.com/klauspost/compress/zstd"
	"github.com/pkg/errors"
	"golang.org/x/crypto/blake2b"

	"github.com/fortiblox/x1-staking/pkg/accounts"
	"github.com/fortiblox/x1-staking/pkg/types"
)

var (
	// ErrInvalidManifest is returned when the manifest is malformed.
	ErrInvalidManifest = errors.New("invalid manifest")
	// ErrInvalidArchive is returned when the archive is malformed.
	ErrInvalidArchive = errors.New("invalid archive")
	// ErrChecksumMismatch is returned when the accounts entry does not match
	// the manifest checksum.
	ErrChecksumMismatch = errors.New("checksum mismatch")
	// ErrHashMismatch is returned when the accounts hash does not match.
	ErrHashMismatch = errors.New("hash mismatch")
	// ErrLedgerNotEmpty is returned when importing into a ledger that
	// already holds accounts.
	ErrLedgerNotEmpty = errors.New("ledger is not empty")
)

const (
	// Version is the archive format version written by Export.
	Version uint32 = 1

	manifestEntry = "manifest"
	accountsEntry = "accounts"

	recordHeaderSize = 32 + 4
)

// Manifest describes the contents of an archive.
type Manifest struct {
	Version       uint32     `json:"version"`
	CreatedAt     int64      `json:"created_at"`
	ProgramID     string     `json:"program_id,omitempty"`
	AccountsCount uint64     `json:"accounts_count"`
	LamportsTotal uint64     `json:"lamports_total"`
	AccountsHash  types.Hash `json:"accounts_hash"`
	Checksum      types.Hash `json:"checksum"`
}

func (m *Manifest) validate() error {
	if m.Version != Version {
		return errors.Wrapf(ErrInvalidManifest, "unsupported version %d", m.Version)
	}
	if m.Checksum.IsZero() {
		return errors.Wrap(ErrInvalidManifest, "missing checksum")
	}
	return nil
}

// checksum returns the blake2b-256 digest of payload.
func checksum(payload []byte) types.Hash {
	return types.Hash(blake2b.Sum256(payload))
}

func encodeRecord(buf *bytes.Buffer, ref accounts.AccountRef) error {
	data, err := accounts.SerializeAccount(ref.Account)
	if err != nil {
		return errors.Wrapf(err, "failed to serialize %s", ref.Pubkey)
	}
	var header [recordHeaderSize]byte
	copy(header[:32], ref.Pubkey[:])
	binary.LittleEndian.PutUint32(header[32:], uint32(len(data)))
	buf.Write(header[:])
	buf.Write(data)
	return nil
}

// decodeRecords splits an accounts entry into its records. Addresses must be
// strictly increasing.
func decodeRecords(payload []byte) ([]accounts.AccountRef, error) {
	var (
		refs []accounts.AccountRef
		prev *types.Pubkey
	)
	for offset := 0; offset < len(payload); {
		if len(payload)-offset < recordHeaderSize {
			return nil, errors.Wrapf(ErrInvalidArchive, "truncated record header at offset %d", offset)
		}
		var pubkey types.Pubkey
		copy(pubkey[:], payload[offset:offset+32])
		size := int(binary.LittleEndian.Uint32(payload[offset+32:]))
		offset += recordHeaderSize

		if len(payload)-offset < size {
			return nil, errors.Wrapf(ErrInvalidArchive, "truncated record %s", pubkey)
		}
		account, err := accounts.DeserializeAccount(payload[offset : offset+size])
		if err != nil {
			return nil, errors.Wrapf(err, "record %s", pubkey)
		}
		offset += size

		if prev != nil && bytes.Compare(prev[:], pubkey[:]) >= 0 {
			return nil, errors.Wrapf(ErrInvalidArchive, "record %s is out of order", pubkey)
		}
		prev = &pubkey
		refs = append(refs, accounts.AccountRef{Pubkey: pubkey, Account: account})
	}
	return refs, nil
}

// Archive is a decoded snapshot whose checksum has been checked.
type Archive struct {
	Manifest *Manifest
	Accounts []accounts.AccountRef
}

// ReadArchive decodes an archive from r. The checksum is verified; the
// accounts hash is not.
func ReadArchive(r io.Reader) (*Archive, error) {
	decoder, err := zstd.NewReader(r)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create zstd decoder")
	}
	defer decoder.Close()

	var (
		manifest *Manifest
		payload  []byte
		seen     bool
	)
	tr := tar.NewReader(decoder)
	for {
		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrap(ErrInvalidArchive, err.Error())
		}

		switch header.Name {
		case manifestEntry:
			manifest = &Manifest{}
			if err := json.NewDecoder(tr).Decode(manifest); err != nil {
				return nil, errors.Wrap(ErrInvalidManifest, err.Error())
			}
		case accountsEntry:
			if payload, err = io.ReadAll(tr); err != nil {
				return nil, errors.Wrap(ErrInvalidArchive, err.Error())
			}
			seen = true
		default:
			return nil, errors.Wrapf(ErrInvalidArchive, "unexpected entry %q", header.Name)
		}
	}

	if manifest == nil {
		return nil, errors.Wrap(ErrInvalidArchive, "manifest not found")
	}
	if !seen {
		return nil, errors.Wrap(ErrInvalidArchive, "accounts not found")
	}
	if err := manifest.validate(); err != nil {
		return nil, err
	}
	if sum := checksum(payload); sum != manifest.Checksum {
		return nil, errors.Wrapf(ErrChecksumMismatch, "manifest %s, computed %s", manifest.Checksum, sum)
	}

	refs, err := decodeRecords(payload)
	if err != nil {
		return nil, err
	}
	if uint64(len(refs)) != manifest.AccountsCount {
		return nil, errors.Wrapf(ErrInvalidManifest, "manifest lists %d accounts, archive holds %d",
			manifest.AccountsCount, len(refs))
	}
	return &Archive{Manifest: manifest, Accounts: refs}, nil
}

// ReadArchiveFile decodes the archive at path.
func ReadArchiveFile(path string) (*Archive, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open archive")
	}
	defer file.Close()
	return ReadArchive(file)
}
