// Package metrics exports Prometheus metrics for the staking ledger.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/fortiblox/x1-staking/pkg/accounts"
	"github.com/fortiblox/x1-staking/pkg/runtime"
	"github.com/fortiblox/x1-staking/pkg/svm/programs/staking"
)

const namespace = "x1_staking"

// Result label values
const (
	resultSuccess = "success"
	resultFailure = "failure"
)

// Token movement label values
const (
	OperationStaked   = "staked"
	OperationUnstaked = "unstaked"
	OperationFunded   = "funded"
)

// Metrics holds the collectors of one ledger process.
type Metrics struct {
	registry *prometheus.Registry

	Transactions        *prometheus.CounterVec
	Instructions        *prometheus.CounterVec
	ComputeUnits        prometheus.Histogram
	ExecutionDuration   prometheus.Histogram
	StakingInstructions *prometheus.CounterVec
	StakingTokens       *prometheus.CounterVec
	StakingErrors       *prometheus.CounterVec
}

// NewMetrics creates the collectors on a fresh registry that also carries
// the Go runtime and process collectors.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		Transactions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transactions_total",
			Help:      "Transactions executed by the runtime.",
		}, []string{"result"}),
		Instructions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "instructions_total",
			Help:      "Top-level instructions executed, by program.",
		}, []string{"program", "result"}),
		ComputeUnits: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "transaction_compute_units",
			Help:      "Compute units consumed per transaction.",
			Buckets:   prometheus.ExponentialBuckets(500, 2, 10),
		}),
		ExecutionDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "transaction_duration_seconds",
			Help:      "Wall time spent executing and committing a transaction.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 8),
		}),
		StakingInstructions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "staking",
			Name:      "instructions_total",
			Help:      "Staking program instructions, by instruction and result.",
		}, []string{"instruction", "result"}),
		StakingTokens: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "staking",
			Name:      "tokens_total",
			Help:      "Tokens moved by committed staking instructions.",
		}, []string{"operation"}),
		StakingErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "staking",
			Name:      "errors_total",
			Help:      "Failed transactions by staking error code.",
		}, []string{"code"}),
	}
}

// Registry returns the registry the collectors are registered on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RegisterLedger exports the number of stored accounts.
func (m *Metrics) RegisterLedger(db accounts.AccountsDB) error {
	return m.registry.Register(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "ledger_accounts",
		Help:      "Accounts stored in the ledger.",
	}, func() float64 {
		return float64(db.GetAccountsCount())
	}))
}

// ObserveTransaction implements runtime.Recorder.
func (m *Metrics) ObserveTransaction(res *runtime.Result) {
	m.Transactions.WithLabelValues(resultLabel(res.Err)).Inc()
	m.ComputeUnits.Observe(float64(res.ComputeUnitsConsumed))
	m.ExecutionDuration.Observe(res.Duration.Seconds())

	for _, ix := range res.Instructions {
		m.Instructions.WithLabelValues(ix.ProgramName, resultLabel(ix.Err)).Inc()
		if ix.ProgramName != runtime.StakingProgramName {
			continue
		}
		inst, err := staking.ParseInstruction(ix.Data)
		if err != nil {
			continue
		}
		m.StakingInstructions.WithLabelValues(inst.Name(), resultLabel(ix.Err)).Inc()
		if res.Err == nil {
			m.observeTokens(inst)
		}
	}

	if code, ok := res.StakingCode(); ok {
		m.StakingErrors.WithLabelValues(code.String()).Inc()
	}
}

func (m *Metrics) observeTokens(inst *staking.Instruction) {
	switch inst.Discriminator {
	case staking.InstructionStake:
		m.StakingTokens.WithLabelValues(OperationStaked).Add(float64(inst.Amount))
	case staking.InstructionUnstake:
		m.StakingTokens.WithLabelValues(OperationUnstaked).Add(float64(inst.Amount))
	case staking.InstructionFundRewards:
		m.StakingTokens.WithLabelValues(OperationFunded).Add(float64(inst.Amount))
	}
}

func resultLabel(err error) string {
	if err != nil {
		return resultFailure
	}
	return resultSuccess
}

var _ runtime.Recorder = (*Metrics)(nil)
