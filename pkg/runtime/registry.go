package runtime

import (
	"sort"
	"sync"

	"github.com/pkg/errors"

	"github.com/fortiblox/x1-staking/pkg/svm/programs/compute_budget"
	"github.com/fortiblox/x1-staking/pkg/svm/programs/staking"
	"github.com/fortiblox/x1-staking/pkg/svm/programs/system"
	"github.com/fortiblox/x1-staking/pkg/svm/programs/token"
	"github.com/fortiblox/x1-staking/pkg/svm/syscall"
	"github.com/fortiblox/x1-staking/pkg/types"
)

// ErrProgramNotFound indicates no program is registered at an address.
var ErrProgramNotFound = errors.New("program not found")

// Names of the programs registered by NewDefaultRegistry.
const (
	SystemProgramName  = "system"
	TokenProgramName   = "token"
	StakingProgramName = "staking"

	ComputeBudgetProgramName = "compute_budget"
)

// Program is a native program the runtime can dispatch to.
type Program interface {
	Execute(ctx *syscall.ExecutionContext) error
}

// ProgramFunc adapts a function to Program.
type ProgramFunc func(ctx *syscall.ExecutionContext) error

// Execute implements Program.
func (f ProgramFunc) Execute(ctx *syscall.ExecutionContext) error {
	return f(ctx)
}

// ProgramRegistry maps program ids to their implementations. It is the
// syscall.ProgramExecutor used for top-level instructions and nested
// invocations alike.
type ProgramRegistry struct {
	mu       sync.RWMutex
	programs map[types.Pubkey]Program
	names    map[types.Pubkey]string
}

// NewProgramRegistry creates an empty registry.
func NewProgramRegistry() *ProgramRegistry {
	return &ProgramRegistry{
		programs: make(map[types.Pubkey]Program),
		names:    make(map[types.Pubkey]string),
	}
}

// NewDefaultRegistry registers the system, token, compute budget and staking
// programs, the latter at stakingProgramID.
func NewDefaultRegistry(stakingProgramID types.Pubkey) *ProgramRegistry {
	r := NewProgramRegistry()
	r.RegisterProgramWithName(types.SystemProgramID, SystemProgramName, system.New())
	r.RegisterProgramWithName(types.TokenProgramID, TokenProgramName, token.New())
	r.RegisterProgramWithName(compute_budget.ProgramID, ComputeBudgetProgramName, compute_budget.New())
	r.RegisterProgramWithName(stakingProgramID, StakingProgramName, staking.New(stakingProgramID))
	return r
}

// RegisterProgram registers a program under id.
func (r *ProgramRegistry) RegisterProgram(id types.Pubkey, program Program) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.programs[id] = program
}

// RegisterProgramWithName registers a program with a name used in logs and
// metric labels.
func (r *ProgramRegistry) RegisterProgramWithName(id types.Pubkey, name string, program Program) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.programs[id] = program
	r.names[id] = name
}

// GetProgram returns the program registered at id.
func (r *ProgramRegistry) GetProgram(id types.Pubkey) (Program, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.programs[id]
	return p, ok
}

// GetProgramName returns the registered name for id, or its base58 form.
func (r *ProgramRegistry) GetProgramName(id types.Pubkey) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if name, ok := r.names[id]; ok {
		return name
	}
	return id.String()
}

// HasProgram reports whether a program is registered at id.
func (r *ProgramRegistry) HasProgram(id types.Pubkey) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.programs[id]
	return ok
}

// UnregisterProgram removes the program at id.
func (r *ProgramRegistry) UnregisterProgram(id types.Pubkey) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.programs, id)
	delete(r.names, id)
}

// ListPrograms returns every registered program id in byte order.
func (r *ProgramRegistry) ListPrograms() []types.Pubkey {
	r.mu.RLock()
	ids := make([]types.Pubkey, 0, len(r.programs))
	for id := range r.programs {
		ids = append(ids, id)
	}
	r.mu.RUnlock()

	sort.Slice(ids, func(i, j int) bool {
		return string(ids[i][:]) < string(ids[j][:])
	})
	return ids
}

// ExecuteProgram implements syscall.ProgramExecutor.
func (r *ProgramRegistry) ExecuteProgram(ctx *syscall.ExecutionContext) error {
	program, ok := r.GetProgram(ctx.ProgramID)
	if !ok {
		return errors.Wrap(ErrProgramNotFound, ctx.ProgramID.String())
	}
	return program.Execute(ctx)
}

var _ syscall.ProgramExecutor = (*ProgramRegistry)(nil)
