package token

import (
	"encoding/binary"

	"github.com/pkg/errors"

	"github.com/fortiblox/x1-staking/pkg/types"
)

// Account state sizes
const (
	MintSize         = 82
	TokenAccountSize = 165
)

// Account state enum values
const (
	AccountStateUninitialized uint8 = 0
	AccountStateInitialized   uint8 = 1
)

// COption is an optional pubkey laid out as a 4-byte tag and 32-byte value.
type COption struct {
	IsSome bool
	Value  types.Pubkey
}

// Some wraps pk in a present COption.
func Some(pk types.Pubkey) COption {
	return COption{IsSome: true, Value: pk}
}

// Mint is an SPL mint.
// Layout (82 bytes): mint_authority COption<Pubkey> (36), supply u64,
// decimals u8, is_initialized bool, freeze_authority COption<Pubkey> (36).
type Mint struct {
	MintAuthority   COption
	Supply          uint64
	Decimals        uint8
	IsInitialized   bool
	FreezeAuthority COption
}

// TokenAccount is an SPL token account.
// Layout (165 bytes): mint, owner, amount u64, delegate COption<Pubkey>,
// state u8, is_native COption<u64> (12), delegated_amount u64,
// close_authority COption<Pubkey>.
//
// No instruction here approves delegates, freezes, wraps native lamports or
// closes accounts; Delegate, IsNative, DelegatedAmount and CloseAuthority
// are carried only to keep the layout.
type TokenAccount struct {
	Mint            types.Pubkey
	Owner           types.Pubkey
	Amount          uint64
	Delegate        COption
	State           uint8
	IsNative        *uint64
	DelegatedAmount uint64
	CloseAuthority  COption
}

// layout walks a fixed-size buffer.
type layout struct {
	buf []byte
	off int
}

func (l *layout) pubkey() (pk types.Pubkey) {
	copy(pk[:], l.buf[l.off:l.off+32])
	l.off += 32
	return pk
}

func (l *layout) putPubkey(pk types.Pubkey) {
	copy(l.buf[l.off:l.off+32], pk[:])
	l.off += 32
}

func (l *layout) u64() uint64 {
	v := binary.LittleEndian.Uint64(l.buf[l.off:])
	l.off += 8
	return v
}

func (l *layout) putU64(v uint64) {
	binary.LittleEndian.PutUint64(l.buf[l.off:], v)
	l.off += 8
}

func (l *layout) u8() uint8 {
	v := l.buf[l.off]
	l.off++
	return v
}

func (l *layout) putU8(v uint8) {
	l.buf[l.off] = v
	l.off++
}

func (l *layout) tag() bool {
	v := binary.LittleEndian.Uint32(l.buf[l.off:])
	l.off += 4
	return v == 1
}

func (l *layout) putTag(some bool) {
	var v uint32
	if some {
		v = 1
	}
	binary.LittleEndian.PutUint32(l.buf[l.off:], v)
	l.off += 4
}

func (l *layout) coption() COption {
	some := l.tag()
	pk := l.pubkey()
	if !some {
		return COption{}
	}
	return Some(pk)
}

func (l *layout) putCOption(opt COption) {
	l.putTag(opt.IsSome)
	if opt.IsSome {
		l.putPubkey(opt.Value)
	} else {
		l.putPubkey(types.ZeroPubkey)
	}
}

// DeserializeMint decodes a Mint.
func DeserializeMint(data []byte) (*Mint, error) {
	if len(data) != MintSize {
		return nil, errors.Wrapf(ErrInvalidAccountData, "mint data must be %d bytes, got %d", MintSize, len(data))
	}

	l := &layout{buf: data}
	mint := &Mint{}
	mint.MintAuthority = l.coption()
	mint.Supply = l.u64()
	mint.Decimals = l.u8()
	mint.IsInitialized = l.u8() != 0
	mint.FreezeAuthority = l.coption()
	return mint, nil
}

// Serialize encodes the Mint.
func (m *Mint) Serialize() []byte {
	l := &layout{buf: make([]byte, MintSize)}
	l.putCOption(m.MintAuthority)
	l.putU64(m.Supply)
	l.putU8(m.Decimals)
	if m.IsInitialized {
		l.putU8(1)
	} else {
		l.putU8(0)
	}
	l.putCOption(m.FreezeAuthority)
	return l.buf
}

// DeserializeTokenAccount decodes a TokenAccount.
func DeserializeTokenAccount(data []byte) (*TokenAccount, error) {
	if len(data) != TokenAccountSize {
		return nil, errors.Wrapf(ErrInvalidAccountData, "token account data must be %d bytes, got %d", TokenAccountSize, len(data))
	}

	l := &layout{buf: data}
	account := &TokenAccount{}
	account.Mint = l.pubkey()
	account.Owner = l.pubkey()
	account.Amount = l.u64()
	account.Delegate = l.coption()
	account.State = l.u8()
	if l.tag() {
		native := l.u64()
		account.IsNative = &native
	} else {
		l.off += 8
	}
	account.DelegatedAmount = l.u64()
	account.CloseAuthority = l.coption()
	return account, nil
}

// Serialize encodes the TokenAccount.
func (a *TokenAccount) Serialize() []byte {
	l := &layout{buf: make([]byte, TokenAccountSize)}
	l.putPubkey(a.Mint)
	l.putPubkey(a.Owner)
	l.putU64(a.Amount)
	l.putCOption(a.Delegate)
	l.putU8(a.State)
	l.putTag(a.IsNative != nil)
	if a.IsNative != nil {
		l.putU64(*a.IsNative)
	} else {
		l.putU64(0)
	}
	l.putU64(a.DelegatedAmount)
	l.putCOption(a.CloseAuthority)
	return l.buf
}

// IsInitialized returns true once InitializeAccount has run.
func (a *TokenAccount) IsInitialized() bool {
	return a.State != AccountStateUninitialized
}

// NewMint creates an initialized Mint.
func NewMint(decimals uint8, mintAuthority types.Pubkey, freezeAuthority *types.Pubkey) *Mint {
	mint := &Mint{
		MintAuthority: Some(mintAuthority),
		Decimals:      decimals,
		IsInitialized: true,
	}
	if freezeAuthority != nil {
		mint.FreezeAuthority = Some(*freezeAuthority)
	}
	return mint
}

// NewTokenAccount creates an initialized TokenAccount.
func NewTokenAccount(mint types.Pubkey, owner types.Pubkey) *TokenAccount {
	return &TokenAccount{
		Mint:  mint,
		Owner: owner,
		State: AccountStateInitialized,
	}
}

// ParseTokenAccount decodes a ledger account owned by the Token Program.
func ParseTokenAccount(account *types.Account) (*TokenAccount, error) {
	if account == nil {
		return nil, ErrNotInitialized
	}
	if account.Owner != types.TokenProgramID {
		return nil, ErrInvalidAccountOwner
	}
	ta, err := DeserializeTokenAccount(account.Data)
	if err != nil {
		return nil, err
	}
	if !ta.IsInitialized() {
		return nil, ErrNotInitialized
	}
	return ta, nil
}

// ParseMint decodes a ledger account holding an initialized mint.
func ParseMint(account *types.Account) (*Mint, error) {
	if account == nil {
		return nil, ErrNotInitialized
	}
	if account.Owner != types.TokenProgramID {
		return nil, ErrInvalidAccountOwner
	}
	mint, err := DeserializeMint(account.Data)
	if err != nil {
		return nil, err
	}
	if !mint.IsInitialized {
		return nil, ErrNotInitialized
	}
	return mint, nil
}
