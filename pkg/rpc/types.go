// Package rpc provides a JSON-RPC 2.0 server over the staking ledger.
package rpc

import (
	"github.com/AccumulateNetwork/jsonrpc2/v15"
)

// JSONRPCVersion is the only protocol version served.
const JSONRPCVersion = "2.0"

// Error codes returned by the handlers.
const (
	InvalidParams = -32602
	InternalError = -32603

	SendTransactionError = -32002
	NodeUnhealthy        = -32005
	KeyNotFound          = -32010
	UnsupportedEncoding  = -32011
)

// RPCError is the error object of a JSON-RPC response.
type RPCError = jsonrpc2.Error

func NewRPCError(code jsonrpc2.ErrorCode, message string) *RPCError {
	return NewRPCErrorWithData(code, message, nil)
}

func NewRPCErrorWithData(code jsonrpc2.ErrorCode, message string, data interface{}) *RPCError {
	err := jsonrpc2.NewError(code, message, data)
	return &err
}

// Context is the ledger time a response was read at.
type Context struct {
	UnixTimestamp int64 `json:"unixTimestamp"`
}

// ContextualResult wraps a result with context.
type ContextualResult struct {
	Context Context     `json:"context"`
	Value   interface{} `json:"value"`
}

type AccountInfoResult struct {
	Lamports   uint64      `json:"lamports"`
	Data       interface{} `json:"data"` // [data, encoding] or a parsed object
	Owner      string      `json:"owner"`
	Executable bool        `json:"executable"`
	Space      uint64      `json:"space"`
}

// ParsedAccount is the jsonParsed form of account data.
type ParsedAccount struct {
	Program string      `json:"program"`
	Type    string      `json:"type"`
	Info    interface{} `json:"info"`
}

type BalanceResult struct {
	Context Context `json:"context"`
	Value   uint64  `json:"value"`
}

// PoolResult is a decoded pool record. Amounts are decimal strings so no
// JSON client loses u64 precision.
type PoolResult struct {
	Address       string `json:"address"`
	Administrator string `json:"administrator"`
	RewardRate    string `json:"rewardRate"`
	Vault         string `json:"vault"`
	TotalStaked   string `json:"totalStaked"`
	AuthorityBump uint8  `json:"authorityBump"`
	// RewardReserve is the vault balance above the staked principal.
	RewardReserve string `json:"rewardReserve"`
}

type UserStakeResult struct {
	Address         string `json:"address"`
	Owner           string `json:"owner"`
	Amount          string `json:"amount"`
	PendingRewards  string `json:"pendingRewards"`
	LastAccrualTime int64  `json:"lastAccrualTime"`
}

type TokenAmountResult struct {
	Amount   string `json:"amount"`
	Decimals uint8  `json:"decimals"`
	Mint     string `json:"mint"`
	Owner    string `json:"owner"`
}

type TokenMintResult struct {
	MintAuthority   string `json:"mintAuthority,omitempty"`
	Supply          string `json:"supply"`
	Decimals        uint8  `json:"decimals"`
	FreezeAuthority string `json:"freezeAuthority,omitempty"`
}

// HealthResult represents the result of getHealth.
type HealthResult string

type VersionResult struct {
	Version   string `json:"x1-staking"`
	GitCommit string `json:"git-commit,omitempty"`
	ProgramID string `json:"program-id"`
}

// TransactionErrorData is attached to a failed sendTransaction.
type TransactionErrorData struct {
	Signature            string   `json:"signature"`
	Err                  string   `json:"err"`
	Instruction          int      `json:"instruction"`
	StakingCode          *uint32  `json:"stakingCode,omitempty"`
	StakingError         string   `json:"stakingError,omitempty"`
	Logs                 []string `json:"logs"`
	ComputeUnitsConsumed uint64   `json:"unitsConsumed"`
}

// AccountInfoOptions represents optional parameters for getAccountInfo.
type AccountInfoOptions struct {
	Encoding  string     `json:"encoding,omitempty"` // base58, base64, base64+zstd, jsonParsed
	DataSlice *DataSlice `json:"dataSlice,omitempty"`
}

// DataSlice represents a slice of account data.
type DataSlice struct {
	Offset uint64 `json:"offset"`
	Length uint64 `json:"length"`
}

// SendTransactionOptions represents optional parameters for sendTransaction.
type SendTransactionOptions struct {
	Encoding string `json:"encoding,omitempty"` // base58 (default) or base64
}
