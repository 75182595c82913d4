package metrics

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pkg/errors"

	"github.com/fortiblox/x1-staking/pkg/accounts"
	"github.com/fortiblox/x1-staking/pkg/types"
)

// HealthStatus is the outcome of one run of every registered check.
type HealthStatus struct {
	Healthy   bool          `json:"healthy"`
	Message   string        `json:"message,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
	Uptime    time.Duration `json:"uptime"`
	Checks    []Check       `json:"checks,omitempty"`
}

// Check is the result of one named check.
type Check struct {
	Name    string        `json:"name"`
	Healthy bool          `json:"healthy"`
	Message string        `json:"message,omitempty"`
	Latency time.Duration `json:"latency"`
}

// HealthCheckFunc reports a problem by returning an error.
type HealthCheckFunc func(ctx context.Context) error

// HealthChecker runs named checks on demand.
type HealthChecker struct {
	mu        sync.RWMutex
	checks    map[string]HealthCheckFunc
	clock     clockwork.Clock
	startTime time.Time
}

// NewHealthChecker creates a checker with no checks registered.
func NewHealthChecker(clock clockwork.Clock) *HealthChecker {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &HealthChecker{
		checks:    make(map[string]HealthCheckFunc),
		clock:     clock,
		startTime: clock.Now(),
	}
}

// RegisterCheck adds or replaces the check called name.
func (h *HealthChecker) RegisterCheck(name string, check HealthCheckFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checks[name] = check
}

// UnregisterCheck removes the check called name.
func (h *HealthChecker) UnregisterCheck(name string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.checks, name)
}

// RegisterLedgerCheck checks that every program account is readable and
// executable.
func (h *HealthChecker) RegisterLedgerCheck(db accounts.AccountsDB, programs []types.Pubkey) {
	h.RegisterCheck("ledger", func(ctx context.Context) error {
		for _, id := range programs {
			acc, err := db.GetAccount(id)
			if err != nil {
				return errors.Wrapf(err, "read program %s", id)
			}
			if acc == nil || !acc.Executable {
				return errors.Errorf("program %s is not deployed", id)
			}
		}
		return nil
	})
}

// Check runs every check in name order.
func (h *HealthChecker) Check(ctx context.Context) *HealthStatus {
	h.mu.RLock()
	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	checks := make(map[string]HealthCheckFunc, len(h.checks))
	for name, fn := range h.checks {
		checks[name] = fn
	}
	h.mu.RUnlock()
	sort.Strings(names)

	now := h.clock.Now()
	status := &HealthStatus{
		Healthy:   true,
		Timestamp: now.UTC(),
		Uptime:    now.Sub(h.startTime),
	}
	for _, name := range names {
		start := h.clock.Now()
		err := checks[name](ctx)
		check := Check{Name: name, Healthy: err == nil, Latency: h.clock.Since(start)}
		if err != nil {
			check.Message = err.Error()
			if status.Healthy {
				status.Message = name + ": " + err.Error()
			}
			status.Healthy = false
		}
		status.Checks = append(status.Checks, check)
	}
	return status
}
