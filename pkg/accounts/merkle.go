package accounts

import (
	"bytes"
	"sort"

	"github.com/fortiblox/x1-staking/pkg/types"
)

const (
	// merkleArity is the number of children per node in the Merkle tree.
	merkleArity = 16
)

// ComputeAccountsHash computes a 16-ary Merkle root over accounts sorted by
// pubkey. Snapshots use it to detect a ledger that was altered in transit.
func ComputeAccountsHash(accounts []AccountRef) types.Hash {
	if len(accounts) == 0 {
		return types.ZeroHash
	}

	sorted := make([]AccountRef, len(accounts))
	copy(sorted, accounts)
	sort.Slice(sorted, func(i, j int) bool {
		return bytes.Compare(sorted[i].Pubkey[:], sorted[j].Pubkey[:]) < 0
	})

	hashes := make([]types.Hash, len(sorted))
	for i, ref := range sorted {
		hashes[i] = ref.Account.Hash(ref.Pubkey)
	}

	return computeMerkleRoot(hashes)
}

// HashLedger computes ComputeAccountsHash over every account in db.
func HashLedger(db AccountsDB) (types.Hash, error) {
	var refs []AccountRef
	err := db.ForEach(func(pubkey types.Pubkey, account *types.Account) error {
		refs = append(refs, AccountRef{Pubkey: pubkey, Account: account})
		return nil
	})
	if err != nil {
		return types.ZeroHash, err
	}
	return ComputeAccountsHash(refs), nil
}

func computeMerkleRoot(hashes []types.Hash) types.Hash {
	if len(hashes) == 0 {
		return types.ZeroHash
	}
	for len(hashes) > 1 {
		hashes = computeNextLevel(hashes)
	}
	return hashes[0]
}

func computeNextLevel(hashes []types.Hash) []types.Hash {
	numParents := (len(hashes) + merkleArity - 1) / merkleArity
	parents := make([]types.Hash, numParents)

	for i := 0; i < numParents; i++ {
		start := i * merkleArity
		end := start + merkleArity
		if end > len(hashes) {
			end = len(hashes)
		}
		parents[i] = hashChildren(hashes[start:end])
	}

	return parents
}

func hashChildren(children []types.Hash) types.Hash {
	if len(children) == 1 {
		return children[0]
	}

	data := make([][]byte, len(children))
	for i := range children {
		data[i] = children[i][:]
	}
	return types.SHA256Multi(data...)
}
