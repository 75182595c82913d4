package types

import (
	"github.com/pkg/errors"
)

// Transaction represents a complete transaction with signatures.
type Transaction struct {
	Signatures []Signature
	Message    Message
}

// Message represents a transaction message (the part that gets signed).
type Message struct {
	Header          MessageHeader
	AccountKeys     []Pubkey
	RecentBlockhash Hash
	Instructions    []CompiledInstruction
}

// MessageHeader contains counts for account types.
type MessageHeader struct {
	NumRequiredSignatures       uint8
	NumReadonlySignedAccounts   uint8
	NumReadonlyUnsignedAccounts uint8
}

// CompiledInstruction is an instruction with account indices.
type CompiledInstruction struct {
	ProgramIDIndex uint8
	AccountIndices []uint8
	Data           []byte
}

// Instruction is an expanded instruction with full account info.
type Instruction struct {
	ProgramID Pubkey
	Accounts  []AccountMeta
	Data      []byte
}

// Signer produces signatures for a public key.
type Signer interface {
	PublicKey() Pubkey
	Sign(message []byte) Signature
}

// NewMessage compiles instructions into a message. The payer is always the
// first account key. Keys are ordered writable signers, readonly signers,
// writable non-signers, then readonly non-signers; program ids are readonly
// non-signers unless an instruction also references them otherwise.
func NewMessage(payer Pubkey, instructions []Instruction, recentBlockhash Hash) (*Message, error) {
	type keyFlags struct {
		signer   bool
		writable bool
	}
	order := []Pubkey{payer}
	flags := map[Pubkey]*keyFlags{payer: {signer: true, writable: true}}

	touch := func(pk Pubkey, signer, writable bool) {
		f, ok := flags[pk]
		if !ok {
			f = &keyFlags{}
			flags[pk] = f
			order = append(order, pk)
		}
		f.signer = f.signer || signer
		f.writable = f.writable || writable
	}
	for _, ix := range instructions {
		for _, meta := range ix.Accounts {
			touch(meta.Pubkey, meta.IsSigner, meta.IsWritable)
		}
		touch(ix.ProgramID, false, false)
	}

	var buckets [4][]Pubkey
	for _, pk := range order {
		f := flags[pk]
		switch {
		case f.signer && f.writable:
			buckets[0] = append(buckets[0], pk)
		case f.signer:
			buckets[1] = append(buckets[1], pk)
		case f.writable:
			buckets[2] = append(buckets[2], pk)
		default:
			buckets[3] = append(buckets[3], pk)
		}
	}

	keys := make([]Pubkey, 0, len(order))
	for _, b := range buckets {
		keys = append(keys, b...)
	}
	if len(keys) > 256 {
		return nil, errors.Errorf("too many account keys: %d", len(keys))
	}

	index := make(map[Pubkey]uint8, len(keys))
	for i, pk := range keys {
		index[pk] = uint8(i)
	}

	compiled := make([]CompiledInstruction, len(instructions))
	for i, ix := range instructions {
		indices := make([]uint8, len(ix.Accounts))
		for j, meta := range ix.Accounts {
			indices[j] = index[meta.Pubkey]
		}
		compiled[i] = CompiledInstruction{
			ProgramIDIndex: index[ix.ProgramID],
			AccountIndices: indices,
			Data:           ix.Data,
		}
	}

	return &Message{
		Header: MessageHeader{
			NumRequiredSignatures:       uint8(len(buckets[0]) + len(buckets[1])),
			NumReadonlySignedAccounts:   uint8(len(buckets[1])),
			NumReadonlyUnsignedAccounts: uint8(len(buckets[3])),
		},
		AccountKeys:     keys,
		RecentBlockhash: recentBlockhash,
		Instructions:    compiled,
	}, nil
}

// IsSigner reports whether the key at index i must sign.
func (m *Message) IsSigner(i int) bool {
	return i < int(m.Header.NumRequiredSignatures)
}

// IsWritable reports whether the key at index i is writable.
func (m *Message) IsWritable(i int) bool {
	numSigned := int(m.Header.NumRequiredSignatures)
	if i < numSigned {
		return i < numSigned-int(m.Header.NumReadonlySignedAccounts)
	}
	return i < len(m.AccountKeys)-int(m.Header.NumReadonlyUnsignedAccounts)
}

// Instruction expands the compiled instruction at index i.
func (m *Message) Instruction(i int) (Instruction, error) {
	if i < 0 || i >= len(m.Instructions) {
		return Instruction{}, errors.Errorf("instruction index %d out of range", i)
	}
	ci := m.Instructions[i]
	if int(ci.ProgramIDIndex) >= len(m.AccountKeys) {
		return Instruction{}, errors.Errorf("program id index %d out of range", ci.ProgramIDIndex)
	}
	metas := make([]AccountMeta, len(ci.AccountIndices))
	for j, idx := range ci.AccountIndices {
		if int(idx) >= len(m.AccountKeys) {
			return Instruction{}, errors.Errorf("account index %d out of range", idx)
		}
		metas[j] = AccountMeta{
			Pubkey:     m.AccountKeys[idx],
			IsSigner:   m.IsSigner(int(idx)),
			IsWritable: m.IsWritable(int(idx)),
		}
	}
	return Instruction{
		ProgramID: m.AccountKeys[ci.ProgramIDIndex],
		Accounts:  metas,
		Data:      ci.Data,
	}, nil
}

// Serialize serializes the message for signing.
func (m *Message) Serialize() []byte {
	buf := make([]byte, 0, 256)

	buf = append(buf, m.Header.NumRequiredSignatures)
	buf = append(buf, m.Header.NumReadonlySignedAccounts)
	buf = append(buf, m.Header.NumReadonlyUnsignedAccounts)

	buf = appendCompactU16(buf, len(m.AccountKeys))
	for _, key := range m.AccountKeys {
		buf = append(buf, key[:]...)
	}

	buf = append(buf, m.RecentBlockhash[:]...)

	buf = appendCompactU16(buf, len(m.Instructions))
	for _, ix := range m.Instructions {
		buf = append(buf, ix.ProgramIDIndex)
		buf = appendCompactU16(buf, len(ix.AccountIndices))
		buf = append(buf, ix.AccountIndices...)
		buf = appendCompactU16(buf, len(ix.Data))
		buf = append(buf, ix.Data...)
	}

	return buf
}

// NewTransaction compiles instructions and signs the message with signers.
// The first signer pays.
func NewTransaction(instructions []Instruction, recentBlockhash Hash, signers ...Signer) (*Transaction, error) {
	if len(signers) == 0 {
		return nil, errors.New("at least one signer is required")
	}
	msg, err := NewMessage(signers[0].PublicKey(), instructions, recentBlockhash)
	if err != nil {
		return nil, err
	}
	tx := &Transaction{Message: *msg}
	if err := tx.Sign(signers...); err != nil {
		return nil, err
	}
	return tx, nil
}

// Sign fills every required signature slot from signers.
func (tx *Transaction) Sign(signers ...Signer) error {
	numRequired := int(tx.Message.Header.NumRequiredSignatures)
	if len(tx.Signatures) != numRequired {
		tx.Signatures = make([]Signature, numRequired)
	}
	payload := tx.Message.Serialize()

	bySigner := make(map[Pubkey]Signer, len(signers))
	for _, s := range signers {
		bySigner[s.PublicKey()] = s
	}
	for i := 0; i < numRequired; i++ {
		key := tx.Message.AccountKeys[i]
		s, ok := bySigner[key]
		if !ok {
			return errors.Errorf("missing signer for %s", key)
		}
		tx.Signatures[i] = s.Sign(payload)
	}
	return nil
}

// Serialize encodes the transaction in wire format.
func (tx *Transaction) Serialize() []byte {
	buf := appendCompactU16(nil, len(tx.Signatures))
	for _, sig := range tx.Signatures {
		buf = append(buf, sig[:]...)
	}
	return append(buf, tx.Message.Serialize()...)
}

// ID returns the transaction signature (first signature).
func (tx *Transaction) ID() Signature {
	if len(tx.Signatures) == 0 {
		return ZeroSignature
	}
	return tx.Signatures[0]
}

// appendCompactU16 appends a compact u16 encoding.
func appendCompactU16(buf []byte, val int) []byte {
	if val < 0x80 {
		return append(buf, byte(val))
	}
	if val < 0x4000 {
		return append(buf, byte(val&0x7f|0x80), byte(val>>7))
	}
	return append(buf, byte(val&0x7f|0x80), byte((val>>7)&0x7f|0x80), byte(val>>14))
}

// ParseCompactU16 parses a compact-u16 from a byte slice.
func ParseCompactU16(data []byte) (val uint16, bytesRead int, err error) {
	if len(data) == 0 {
		return 0, 0, errors.New("empty data")
	}

	b0 := data[0]
	if b0 < 0x80 {
		return uint16(b0), 1, nil
	}

	if len(data) < 2 {
		return 0, 0, errors.New("incomplete compact-u16")
	}
	b1 := data[1]
	if b1 < 0x80 {
		return uint16(b0&0x7f) | uint16(b1)<<7, 2, nil
	}

	if len(data) < 3 {
		return 0, 0, errors.New("incomplete compact-u16")
	}
	b2 := data[2]
	return uint16(b0&0x7f) | uint16(b1&0x7f)<<7 | uint16(b2)<<14, 3, nil
}

// DeserializeTransaction deserializes a transaction from bytes.
func DeserializeTransaction(data []byte) (*Transaction, error) {
	if len(data) < 1 {
		return nil, errors.New("transaction too short")
	}

	offset := 0

	numSigs, n, err := ParseCompactU16(data[offset:])
	if err != nil {
		return nil, errors.Wrap(err, "parse num signatures")
	}
	offset += n

	sigs := make([]Signature, numSigs)
	for i := range sigs {
		if offset+64 > len(data) {
			return nil, errors.Errorf("truncated signature %d", i)
		}
		copy(sigs[i][:], data[offset:offset+64])
		offset += 64
	}

	msg, err := deserializeMessage(data[offset:])
	if err != nil {
		return nil, errors.Wrap(err, "parse message")
	}

	return &Transaction{
		Signatures: sigs,
		Message:    *msg,
	}, nil
}

func deserializeMessage(data []byte) (*Message, error) {
	if len(data) < 4 {
		return nil, errors.New("message too short")
	}

	offset := 0

	header := MessageHeader{
		NumRequiredSignatures:       data[offset],
		NumReadonlySignedAccounts:   data[offset+1],
		NumReadonlyUnsignedAccounts: data[offset+2],
	}
	offset += 3

	numKeys, n, err := ParseCompactU16(data[offset:])
	if err != nil {
		return nil, errors.Wrap(err, "parse num account keys")
	}
	offset += n

	keys := make([]Pubkey, numKeys)
	for i := range keys {
		if offset+32 > len(data) {
			return nil, errors.Errorf("truncated account key %d", i)
		}
		copy(keys[i][:], data[offset:offset+32])
		offset += 32
	}

	if offset+32 > len(data) {
		return nil, errors.New("truncated blockhash")
	}
	var blockhash Hash
	copy(blockhash[:], data[offset:offset+32])
	offset += 32

	numIx, n, err := ParseCompactU16(data[offset:])
	if err != nil {
		return nil, errors.Wrap(err, "parse num instructions")
	}
	offset += n

	instructions := make([]CompiledInstruction, numIx)
	for i := range instructions {
		ix, bytesRead, err := deserializeInstruction(data[offset:])
		if err != nil {
			return nil, errors.Wrapf(err, "parse instruction %d", i)
		}
		instructions[i] = *ix
		offset += bytesRead
	}

	return &Message{
		Header:          header,
		AccountKeys:     keys,
		RecentBlockhash: blockhash,
		Instructions:    instructions,
	}, nil
}

func deserializeInstruction(data []byte) (*CompiledInstruction, int, error) {
	offset := 0

	if len(data) < 1 {
		return nil, 0, errors.New("empty instruction")
	}
	programIDIndex := data[offset]
	offset++

	numAccounts, n, err := ParseCompactU16(data[offset:])
	if err != nil {
		return nil, 0, errors.Wrap(err, "parse num accounts")
	}
	offset += n

	if offset+int(numAccounts) > len(data) {
		return nil, 0, errors.New("truncated account indices")
	}
	accountIndices := make([]uint8, numAccounts)
	copy(accountIndices, data[offset:offset+int(numAccounts)])
	offset += int(numAccounts)

	dataLen, n, err := ParseCompactU16(data[offset:])
	if err != nil {
		return nil, 0, errors.Wrap(err, "parse data len")
	}
	offset += n

	if offset+int(dataLen) > len(data) {
		return nil, 0, errors.New("truncated instruction data")
	}
	ixData := make([]byte, dataLen)
	copy(ixData, data[offset:offset+int(dataLen)])
	offset += int(dataLen)

	return &CompiledInstruction{
		ProgramIDIndex: programIDIndex,
		AccountIndices: accountIndices,
		Data:           ixData,
	}, offset, nil
}
