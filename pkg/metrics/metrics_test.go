package metrics

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/fortiblox/x1-staking/pkg/accounts"
	"github.com/fortiblox/x1-staking/pkg/runtime"
	"github.com/fortiblox/x1-staking/pkg/svm/programs/staking"
	"github.com/fortiblox/x1-staking/pkg/types"
)

func key(seed string) types.Pubkey {
	return types.Pubkey(types.SHA256Multi([]byte(seed)))
}

func stakingData(t *testing.T, build func(programID, user, userToken, vault, mint types.Pubkey, amount uint64) (types.Instruction, error), amount uint64) []byte {
	ix, err := build(types.DefaultStakingProgramID, key("user"), key("tokens"), key("vault"), key("mint"), amount)
	require.NoError(t, err)
	return ix.Data
}

func TestObserveTransaction_Success(t *testing.T) {
	m := NewMetrics()
	m.ObserveTransaction(&runtime.Result{
		ComputeUnitsConsumed: 6000,
		Duration:             time.Millisecond,
		Instructions: []runtime.InstructionResult{
			{ProgramName: runtime.SystemProgramName, Data: []byte{2, 0, 0, 0}},
			{ProgramName: runtime.StakingProgramName, Data: stakingData(t, staking.Stake, 100)},
			{ProgramName: runtime.StakingProgramName, Data: stakingData(t, staking.Unstake, 40)},
		},
	})

	require.Equal(t, 1.0, testutil.ToFloat64(m.Transactions.WithLabelValues("success")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.Instructions.WithLabelValues("system", "success")))
	require.Equal(t, 2.0, testutil.ToFloat64(m.Instructions.WithLabelValues("staking", "success")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.StakingInstructions.WithLabelValues("Stake", "success")))
	require.Equal(t, 100.0, testutil.ToFloat64(m.StakingTokens.WithLabelValues(OperationStaked)))
	require.Equal(t, 40.0, testutil.ToFloat64(m.StakingTokens.WithLabelValues(OperationUnstaked)))
	require.Equal(t, 0, testutil.CollectAndCount(m.StakingErrors))
}

func TestObserveTransaction_Failure(t *testing.T) {
	m := NewMetrics()
	failure := errors.Wrap(staking.ErrInsufficientPrincipal, "unstake 1000")
	m.ObserveTransaction(&runtime.Result{
		Err: &runtime.InstructionError{Index: 1, ProgramID: types.DefaultStakingProgramID, Err: failure},
		Instructions: []runtime.InstructionResult{
			{ProgramName: runtime.StakingProgramName, Data: stakingData(t, staking.Stake, 5)},
			{ProgramName: runtime.StakingProgramName, Data: stakingData(t, staking.Unstake, 1000), Err: failure},
		},
	})

	require.Equal(t, 1.0, testutil.ToFloat64(m.Transactions.WithLabelValues("failure")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.StakingInstructions.WithLabelValues("Unstake", "failure")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.StakingInstructions.WithLabelValues("Stake", "success")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.StakingErrors.WithLabelValues("InsufficientPrincipal")))

	// Nothing was committed, so no tokens moved.
	require.Equal(t, 0, testutil.CollectAndCount(m.StakingTokens))
}

func TestRegisterLedger(t *testing.T) {
	m := NewMetrics()
	db := accounts.NewMemoryDB()
	require.NoError(t, db.SetAccount(key("a"), types.NewAccount(1, types.SystemProgramID)))
	require.NoError(t, db.SetAccount(key("b"), types.NewAccount(1, types.SystemProgramID)))
	require.NoError(t, m.RegisterLedger(db))

	families, err := m.Registry().Gather()
	require.NoError(t, err)
	var found bool
	for _, mf := range families {
		if mf.GetName() == "x1_staking_ledger_accounts" {
			found = true
			require.Equal(t, 2.0, mf.GetMetric()[0].GetGauge().GetValue())
		}
	}
	require.True(t, found)
}

func TestHealthChecker(t *testing.T) {
	clock := clockwork.NewFakeClock()
	h := NewHealthChecker(clock)
	clock.Advance(time.Minute)

	status := h.Check(context.Background())
	require.True(t, status.Healthy)
	require.Equal(t, time.Minute, status.Uptime)

	h.RegisterCheck("b", func(context.Context) error { return errors.New("disk full") })
	h.RegisterCheck("a", func(context.Context) error { return nil })
	status = h.Check(context.Background())
	require.False(t, status.Healthy)
	require.Equal(t, "b: disk full", status.Message)
	require.Len(t, status.Checks, 2)
	require.Equal(t, "a", status.Checks[0].Name)
	require.True(t, status.Checks[0].Healthy)

	h.UnregisterCheck("b")
	require.True(t, h.Check(context.Background()).Healthy)
}

func TestHealthChecker_Ledger(t *testing.T) {
	db := accounts.NewMemoryDB()
	h := NewHealthChecker(nil)
	h.RegisterLedgerCheck(db, []types.Pubkey{types.TokenProgramID})
	require.False(t, h.Check(context.Background()).Healthy)

	require.NoError(t, db.SetAccount(types.TokenProgramID, &types.Account{Lamports: 1, Executable: true}))
	require.True(t, h.Check(context.Background()).Healthy)
}

func TestServer(t *testing.T) {
	m := NewMetrics()
	m.Transactions.WithLabelValues("success").Add(3)

	h := NewHealthChecker(nil)
	server := NewServer(m, WithAddr("127.0.0.1:0"), WithHealthChecker(h))
	require.NoError(t, server.Start())
	defer server.Stop(context.Background())
	require.True(t, server.IsRunning())
	require.Error(t, server.Start())

	resp, err := http.Get("http://" + server.Addr() + DefaultMetricsPath)
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, string(body), `x1_staking_transactions_total{result="success"} 3`)
	require.Contains(t, string(body), "go_goroutines")

	resp, err = http.Get("http://" + server.Addr() + DefaultHealthPath)
	require.NoError(t, err)
	var status HealthStatus
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&status))
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.True(t, status.Healthy)

	h.RegisterCheck("broken", func(context.Context) error { return errors.New("down") })
	resp, err = http.Get("http://" + server.Addr() + DefaultHealthPath)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	require.NoError(t, server.Stop(context.Background()))
	require.False(t, server.IsRunning())
}
