package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/AccumulateNetwork/jsonrpc2/v15"
	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"

	"github.com/fortiblox/x1-staking/pkg/metrics"
	"github.com/fortiblox/x1-staking/pkg/runtime"
	"github.com/fortiblox/x1-staking/pkg/svm/programs/staking"
	"github.com/fortiblox/x1-staking/pkg/svm/programs/token"
	"github.com/fortiblox/x1-staking/pkg/types"
)

// Handler is the function signature for RPC method handlers.
type Handler func(ctx context.Context, params json.RawMessage) (interface{}, *RPCError)

// Ledger is the part of the runtime the handlers read from and submit to.
type Ledger interface {
	Execute(ctx context.Context, tx *types.Transaction) (*runtime.Result, error)
	GetAccount(pubkey types.Pubkey) (*types.Account, error)
	Clock() clockwork.Clock
}

// BuildInfo is reported by getVersion.
type BuildInfo struct {
	Version   string
	GitCommit string
}

// Handlers manages RPC method handlers.
type Handlers struct {
	log       *logrus.Entry
	ledger    Ledger
	programID types.Pubkey
	health    *metrics.HealthChecker
	build     BuildInfo
	handlers  map[string]Handler
}

// NewHandlers creates a new Handlers instance. health may be nil, in which
// case getHealth always reports ok.
func NewHandlers(log *logrus.Entry, ledger Ledger, programID types.Pubkey, health *metrics.HealthChecker, build BuildInfo) *Handlers {
	h := &Handlers{
		log:       log.WithField("type", "rpc/handlers"),
		ledger:    ledger,
		programID: programID,
		health:    health,
		build:     build,
		handlers:  make(map[string]Handler),
	}
	h.registerHandlers()
	return h
}

// GetHandler returns the handler for a method, or nil if not found.
func (h *Handlers) GetHandler(method string) Handler {
	return h.handlers[method]
}

// Methods returns every handler as a JSON-RPC method table.
func (h *Handlers) Methods() jsonrpc2.MethodMap {
	methods := make(jsonrpc2.MethodMap, len(h.handlers))
	for name, handler := range h.handlers {
		methods[name] = h.method(name, handler)
	}
	return methods
}

func (h *Handlers) method(name string, handler Handler) jsonrpc2.MethodFunc {
	return func(ctx context.Context, params json.RawMessage) interface{} {
		result, rpcErr := handler(ctx, params)
		if rpcErr != nil {
			h.log.WithFields(logrus.Fields{
				"method": name,
				"code":   rpcErr.Code,
			}).Debug(rpcErr.Message)
			return *rpcErr
		}
		return result
	}
}

func (h *Handlers) registerHandlers() {
	h.handlers["getAccountInfo"] = h.handleGetAccountInfo
	h.handlers["getBalance"] = h.handleGetBalance
	h.handlers["getPool"] = h.handleGetPool
	h.handlers["getUserStake"] = h.handleGetUserStake
	h.handlers["getTokenAccountBalance"] = h.handleGetTokenAccountBalance
	h.handlers["sendTransaction"] = h.handleSendTransaction
	h.handlers["getHealth"] = h.handleGetHealth
	h.handlers["getVersion"] = h.handleGetVersion
}

func (h *Handlers) responseContext() Context {
	return Context{UnixTimestamp: h.ledger.Clock().Now().Unix()}
}

func parseParams(params json.RawMessage, required int) ([]json.RawMessage, *RPCError) {
	var raw []json.RawMessage
	if len(params) > 0 {
		if err := json.Unmarshal(params, &raw); err != nil {
			return nil, NewRPCError(InvalidParams, "invalid params: expected array")
		}
	}
	if len(raw) < required {
		return nil, NewRPCError(InvalidParams, fmt.Sprintf("expected at least %d params, got %d", required, len(raw)))
	}
	return raw, nil
}

func parsePubkey(raw json.RawMessage, name string) (types.Pubkey, *RPCError) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return types.Pubkey{}, NewRPCError(InvalidParams, fmt.Sprintf("invalid %s parameter", name))
	}
	pubkey, err := types.PubkeyFromBase58(s)
	if err != nil {
		return types.Pubkey{}, NewRPCError(InvalidParams, fmt.Sprintf("invalid %s: %v", name, err))
	}
	return pubkey, nil
}

func (h *Handlers) getAccount(pubkey types.Pubkey) (*types.Account, *RPCError) {
	account, err := h.ledger.GetAccount(pubkey)
	if err != nil {
		h.log.WithError(err).WithField("pubkey", pubkey).Warn("failed to read account")
		return nil, NewRPCError(InternalError, fmt.Sprintf("failed to get account: %v", err))
	}
	return account, nil
}

// handleGetAccountInfo handles the getAccountInfo RPC method.
// Params: [pubkey, {encoding, dataSlice}]
func (h *Handlers) handleGetAccountInfo(_ context.Context, params json.RawMessage) (interface{}, *RPCError) {
	raw, rpcErr := parseParams(params, 1)
	if rpcErr != nil {
		return nil, rpcErr
	}
	pubkey, rpcErr := parsePubkey(raw[0], "pubkey")
	if rpcErr != nil {
		return nil, rpcErr
	}

	encoding := EncodingBase64
	var dataSlice *DataSlice
	if len(raw) > 1 {
		var options AccountInfoOptions
		if err := json.Unmarshal(raw[1], &options); err != nil {
			return nil, NewRPCError(InvalidParams, "invalid options")
		}
		if options.Encoding != "" {
			if err := ValidateEncoding(options.Encoding); err != nil {
				return nil, NewRPCError(UnsupportedEncoding, err.Error())
			}
			encoding = options.Encoding
		}
		dataSlice = options.DataSlice
	}

	account, rpcErr := h.getAccount(pubkey)
	if rpcErr != nil {
		return nil, rpcErr
	}
	if account == nil {
		return ContextualResult{Context: h.responseContext(), Value: nil}, nil
	}

	result := AccountInfoResult{
		Lamports:   uint64(account.Lamports),
		Owner:      account.Owner.String(),
		Executable: account.Executable,
		Space:      uint64(len(account.Data)),
	}

	var parsed *ParsedAccount
	if encoding == EncodingJSONParsed && dataSlice == nil {
		if parsed, rpcErr = h.parseAccount(pubkey, account); rpcErr != nil {
			return nil, rpcErr
		}
	}
	if parsed != nil {
		result.Data = parsed
	} else {
		encoded, err := EncodeAccountData(SliceData(account.Data, dataSlice), encoding)
		if err != nil {
			return nil, NewRPCError(InvalidParams, err.Error())
		}
		result.Data = encoded
	}

	return ContextualResult{Context: h.responseContext(), Value: result}, nil
}

// parseAccount decodes token and staking records. Unknown layouts return nil
// and fall back to base64.
func (h *Handlers) parseAccount(pubkey types.Pubkey, account *types.Account) (*ParsedAccount, *RPCError) {
	switch account.Owner {
	case types.TokenProgramID:
		switch len(account.Data) {
		case token.TokenAccountSize:
			if ta, err := token.ParseTokenAccount(account); err == nil {
				return &ParsedAccount{Program: "token", Type: "account", Info: TokenAmountResult{
					Amount: strconv.FormatUint(ta.Amount, 10),
					Mint:   ta.Mint.String(),
					Owner:  ta.Owner.String(),
				}}, nil
			}
		case token.MintSize:
			if mint, err := token.ParseMint(account); err == nil {
				info := TokenMintResult{
					Supply:   strconv.FormatUint(mint.Supply, 10),
					Decimals: mint.Decimals,
				}
				if mint.MintAuthority.IsSome {
					info.MintAuthority = mint.MintAuthority.Value.String()
				}
				if mint.FreezeAuthority.IsSome {
					info.FreezeAuthority = mint.FreezeAuthority.Value.String()
				}
				return &ParsedAccount{Program: "token", Type: "mint", Info: info}, nil
			}
		}
	case h.programID:
		if pool, err := staking.DecodePool(account.Data); err == nil {
			info, rpcErr := h.poolResult(pubkey, pool)
			if rpcErr != nil {
				return nil, rpcErr
			}
			return &ParsedAccount{Program: "staking", Type: "pool", Info: info}, nil
		}
		if position, err := staking.DecodeUserStake(account.Data); err == nil {
			return &ParsedAccount{Program: "staking", Type: "userStake", Info: userStakeResult(pubkey, position)}, nil
		}
	}
	return nil, nil
}

// handleGetBalance handles the getBalance RPC method.
// Params: [pubkey]
func (h *Handlers) handleGetBalance(_ context.Context, params json.RawMessage) (interface{}, *RPCError) {
	raw, rpcErr := parseParams(params, 1)
	if rpcErr != nil {
		return nil, rpcErr
	}
	pubkey, rpcErr := parsePubkey(raw[0], "pubkey")
	if rpcErr != nil {
		return nil, rpcErr
	}

	account, rpcErr := h.getAccount(pubkey)
	if rpcErr != nil {
		return nil, rpcErr
	}

	var balance uint64
	if account != nil {
		balance = uint64(account.Lamports)
	}
	return BalanceResult{Context: h.responseContext(), Value: balance}, nil
}

// readRecord returns the data of a program-owned record, or nil when the
// address holds nothing.
func (h *Handlers) readRecord(address types.Pubkey) ([]byte, *RPCError) {
	account, rpcErr := h.getAccount(address)
	if rpcErr != nil {
		return nil, rpcErr
	}
	if account == nil || len(account.Data) == 0 {
		return nil, nil
	}
	if account.Owner != h.programID {
		return nil, NewRPCError(InvalidParams, fmt.Sprintf("%s is not owned by the staking program", address))
	}
	return account.Data, nil
}

// handleGetPool handles the getPool RPC method.
// Params: [mint]
func (h *Handlers) handleGetPool(_ context.Context, params json.RawMessage) (interface{}, *RPCError) {
	raw, rpcErr := parseParams(params, 1)
	if rpcErr != nil {
		return nil, rpcErr
	}
	mint, rpcErr := parsePubkey(raw[0], "mint")
	if rpcErr != nil {
		return nil, rpcErr
	}

	address, _, err := staking.DerivePool(h.programID, mint)
	if err != nil {
		return nil, NewRPCError(InternalError, err.Error())
	}
	data, rpcErr := h.readRecord(address)
	if rpcErr != nil {
		return nil, rpcErr
	}
	if data == nil {
		return ContextualResult{Context: h.responseContext(), Value: nil}, nil
	}

	pool, err := staking.DecodePool(data)
	if err != nil {
		return nil, NewRPCError(InternalError, fmt.Sprintf("failed to decode pool: %v", err))
	}
	result, rpcErr := h.poolResult(address, pool)
	if rpcErr != nil {
		return nil, rpcErr
	}
	return ContextualResult{Context: h.responseContext(), Value: result}, nil
}

func (h *Handlers) poolResult(address types.Pubkey, pool *staking.Pool) (PoolResult, *RPCError) {
	result := PoolResult{
		Address:       address.String(),
		Administrator: pool.Administrator.String(),
		RewardRate:    strconv.FormatUint(pool.RewardRate, 10),
		Vault:         pool.Vault.String(),
		TotalStaked:   strconv.FormatUint(pool.TotalStaked, 10),
		AuthorityBump: pool.AuthorityBump,
		RewardReserve: "0",
	}

	vault, rpcErr := h.getAccount(pool.Vault)
	if rpcErr != nil {
		return PoolResult{}, rpcErr
	}
	if ta, err := token.ParseTokenAccount(vault); err == nil && ta.Amount > pool.TotalStaked {
		result.RewardReserve = strconv.FormatUint(ta.Amount-pool.TotalStaked, 10)
	}
	return result, nil
}

// handleGetUserStake handles the getUserStake RPC method.
// Params: [mint, owner]
func (h *Handlers) handleGetUserStake(_ context.Context, params json.RawMessage) (interface{}, *RPCError) {
	raw, rpcErr := parseParams(params, 2)
	if rpcErr != nil {
		return nil, rpcErr
	}
	mint, rpcErr := parsePubkey(raw[0], "mint")
	if rpcErr != nil {
		return nil, rpcErr
	}
	owner, rpcErr := parsePubkey(raw[1], "owner")
	if rpcErr != nil {
		return nil, rpcErr
	}

	pool, _, err := staking.DerivePool(h.programID, mint)
	if err != nil {
		return nil, NewRPCError(InternalError, err.Error())
	}
	address, _, err := staking.DeriveUserStake(h.programID, pool, owner)
	if err != nil {
		return nil, NewRPCError(InternalError, err.Error())
	}
	data, rpcErr := h.readRecord(address)
	if rpcErr != nil {
		return nil, rpcErr
	}
	if data == nil {
		return ContextualResult{Context: h.responseContext(), Value: nil}, nil
	}

	position, err := staking.DecodeUserStake(data)
	if err != nil {
		return nil, NewRPCError(InternalError, fmt.Sprintf("failed to decode user stake: %v", err))
	}
	return ContextualResult{Context: h.responseContext(), Value: userStakeResult(address, position)}, nil
}

func userStakeResult(address types.Pubkey, position *staking.UserStake) UserStakeResult {
	return UserStakeResult{
		Address:         address.String(),
		Owner:           position.Owner.String(),
		Amount:          strconv.FormatUint(position.Amount, 10),
		PendingRewards:  strconv.FormatUint(position.PendingRewards, 10),
		LastAccrualTime: position.LastAccrualTime,
	}
}

// handleGetTokenAccountBalance handles the getTokenAccountBalance RPC method.
// Params: [account]
func (h *Handlers) handleGetTokenAccountBalance(_ context.Context, params json.RawMessage) (interface{}, *RPCError) {
	raw, rpcErr := parseParams(params, 1)
	if rpcErr != nil {
		return nil, rpcErr
	}
	pubkey, rpcErr := parsePubkey(raw[0], "account")
	if rpcErr != nil {
		return nil, rpcErr
	}

	account, rpcErr := h.getAccount(pubkey)
	if rpcErr != nil {
		return nil, rpcErr
	}
	if account == nil {
		return nil, NewRPCError(KeyNotFound, fmt.Sprintf("account %s not found", pubkey))
	}
	ta, err := token.ParseTokenAccount(account)
	if err != nil {
		return nil, NewRPCError(InvalidParams, fmt.Sprintf("%s is not a token account: %v", pubkey, err))
	}

	result := TokenAmountResult{
		Amount: strconv.FormatUint(ta.Amount, 10),
		Mint:   ta.Mint.String(),
		Owner:  ta.Owner.String(),
	}
	mintAccount, rpcErr := h.getAccount(ta.Mint)
	if rpcErr != nil {
		return nil, rpcErr
	}
	if mint, err := token.ParseMint(mintAccount); err == nil {
		result.Decimals = mint.Decimals
	}
	return ContextualResult{Context: h.responseContext(), Value: result}, nil
}

// handleSendTransaction handles the sendTransaction RPC method. The
// transaction executes synchronously; the signature is returned only once it
// has committed.
// Params: [encodedTransaction, {encoding}]
func (h *Handlers) handleSendTransaction(ctx context.Context, params json.RawMessage) (interface{}, *RPCError) {
	raw, rpcErr := parseParams(params, 1)
	if rpcErr != nil {
		return nil, rpcErr
	}
	var encoded string
	if err := json.Unmarshal(raw[0], &encoded); err != nil {
		return nil, NewRPCError(InvalidParams, "invalid transaction parameter")
	}
	var options SendTransactionOptions
	if len(raw) > 1 {
		if err := json.Unmarshal(raw[1], &options); err != nil {
			return nil, NewRPCError(InvalidParams, "invalid options")
		}
	}

	wire, err := DecodeTransactionData(encoded, options.Encoding)
	if err != nil {
		return nil, NewRPCError(InvalidParams, fmt.Sprintf("failed to decode transaction: %v", err))
	}
	tx, err := types.DeserializeTransaction(wire)
	if err != nil {
		return nil, NewRPCError(InvalidParams, fmt.Sprintf("failed to deserialize transaction: %v", err))
	}

	result, err := h.ledger.Execute(ctx, tx)
	if err != nil {
		h.log.WithError(err).Error("failed to execute transaction")
		return nil, NewRPCError(InternalError, fmt.Sprintf("failed to execute transaction: %v", err))
	}
	if result.Err != nil {
		data := TransactionErrorData{
			Signature:            result.Signature.String(),
			Err:                  result.Err.Error(),
			Instruction:          result.FailedInstruction(),
			Logs:                 result.Logs,
			ComputeUnitsConsumed: result.ComputeUnitsConsumed,
		}
		if code, ok := result.StakingCode(); ok {
			value := uint32(code)
			data.StakingCode = &value
			data.StakingError = code.String()
		}
		return nil, NewRPCErrorWithData(SendTransactionError, "transaction failed: "+result.Err.Error(), data)
	}
	return result.Signature.String(), nil
}

// handleGetHealth handles the getHealth RPC method.
func (h *Handlers) handleGetHealth(ctx context.Context, _ json.RawMessage) (interface{}, *RPCError) {
	if h.health == nil {
		return HealthResult("ok"), nil
	}
	status := h.health.Check(ctx)
	if !status.Healthy {
		return nil, NewRPCErrorWithData(NodeUnhealthy, "node is unhealthy", status)
	}
	return HealthResult("ok"), nil
}

// handleGetVersion handles the getVersion RPC method.
func (h *Handlers) handleGetVersion(context.Context, json.RawMessage) (interface{}, *RPCError) {
	return VersionResult{
		Version:   h.build.Version,
		GitCommit: h.build.GitCommit,
		ProgramID: h.programID.String(),
	}, nil
}
