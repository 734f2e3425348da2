// Package invoker ties the compiler pipeline together: decode, build the
// CFG, emit IR, lower to an Artifact, then run it against a fresh
// ExecutionContext and translate the terminal status into a result a
// caller can act on — spec.md §4.G, grounded on core/vm/interpreter.go's
// EVM.Call (allocate a frame, run it, translate the outcome) and the
// gas-accounting/refund handling in geth/processor.go.
package invoker

import (
	"fmt"

	"github.com/evmaot/evmaot/aot/cfg"
	"github.com/evmaot/evmaot/aot/decode"
	"github.com/evmaot/evmaot/aot/ir"
	"github.com/evmaot/evmaot/aot/pipeline"
	"github.com/evmaot/evmaot/core/vm"
	"github.com/evmaot/evmaot/log"
	"github.com/evmaot/evmaot/runtime/abi"
)

var invokerLog = log.Default().Module("invoker")

// Result is the structured outcome spec §4.G calls for:
// {status, gas_used, return_data, logs}, plus the accumulated refund since
// callers that apply state changes need it (EIP-3529).
type Result struct {
	Status     abi.Status
	GasUsed    uint64
	GasRefund  uint64
	ReturnData []byte
	Logs       []abi.Log
}

// Invoker compiles bytecode once (Compile) and can run the resulting
// Artifact any number of times against different environments/oracles
// (Invoke). JumpTable is fixed per Invoker so the same fork rules govern
// both the CFG build and IR emission.
type Invoker struct {
	Lowerer   pipeline.Lowerer
	JumpTable vm.JumpTable
}

// New returns an Invoker using the Prague jump table (the repository's
// default fork target) and the given Lowerer.
func New(lowerer pipeline.Lowerer) *Invoker {
	return &Invoker{Lowerer: lowerer, JumpTable: vm.NewPragueJumpTable()}
}

// Compile decodes code, builds its CFG, emits IR, and lowers it to an
// Artifact at the given optimization level. The Artifact can be Invoked
// repeatedly without repeating this work.
func (inv *Invoker) Compile(code []byte, opt pipeline.OptLevel) (*pipeline.Artifact, error) {
	prog := decode.Decode(code)
	graph := cfg.Build(prog, inv.JumpTable)
	module := ir.Emitter{}.Emit(prog, graph, inv.JumpTable)
	art, err := inv.Lowerer.Lower(module, opt)
	if err != nil {
		return nil, fmt.Errorf("invoker: compile: %w", err)
	}
	invokerLog.Debug("compiled", "blocks", len(module.Blocks), "opt", opt, "backend", inv.Lowerer.Name())
	return art, nil
}

// Invoke allocates an ExecutionContext for env with gasLimit, runs art
// against it using oracle as the host state backend, and translates the
// terminal ExecutionContext into a Result.
func (inv *Invoker) Invoke(art *pipeline.Artifact, env *abi.Environment, gasLimit uint64, oracle abi.HostOracle) (*Result, error) {
	ctx := abi.NewExecutionContext(env, gasLimit)
	sys := abi.NewSyscalls(oracle, env.Address)

	if err := inv.Lowerer.Run(art, ctx, sys); err != nil {
		return nil, fmt.Errorf("invoker: run: %w", err)
	}

	return translate(ctx, gasLimit), nil
}

// CompileAndInvoke is the one-shot convenience path spec.md §4.G describes:
// compile then immediately run once.
func (inv *Invoker) CompileAndInvoke(code []byte, opt pipeline.OptLevel, env *abi.Environment, gasLimit uint64, oracle abi.HostOracle) (*Result, error) {
	art, err := inv.Compile(code, opt)
	if err != nil {
		return nil, err
	}
	return inv.Invoke(art, env, gasLimit, oracle)
}

// translate converts a terminal ExecutionContext into a Result. Per
// spec §7: REVERT returns remaining gas to the caller like a normal
// return; every other non-success terminal status consumes all gas.
func translate(ctx *abi.ExecutionContext, gasLimit uint64) *Result {
	res := &Result{Status: ctx.Result, Logs: ctx.Logs}

	switch ctx.Result {
	case abi.StatusSuccess:
		res.ReturnData = ctx.ReturnData
		res.GasUsed = gasLimit - remainingOrZero(ctx)
		res.GasRefund = ctx.GasRefund
	case abi.StatusRevert:
		res.ReturnData = ctx.RevertReason
		res.GasUsed = gasLimit - remainingOrZero(ctx)
	default:
		res.GasUsed = gasLimit
	}

	invokerLog.Debug("invoked", "status", res.Status.String(), "gas_used", res.GasUsed)
	return res
}

func remainingOrZero(ctx *abi.ExecutionContext) uint64 {
	if ctx.GasRemaining < 0 {
		return 0
	}
	return uint64(ctx.GasRemaining)
}
