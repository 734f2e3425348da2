// Package pipeline drives the pass pipeline that turns an aot/ir.Module
// into a runnable Artifact. The real backend is an external MLIR/LLVM
// toolchain (out of scope per spec §1) invoked as a subprocess, the same
// "shell out to a reference binary and parse its output" shape
// core/eftest/geth_runner.go already uses to drive go-ethereum as an
// external oracle. Lowerer is the seam: ExternalToolchain is what would
// run in production, InterpretingLowerer is an in-process fallback that
// executes the IR directly and is what this repository's own tests (and
// this sandbox, which has no MLIR/LLVM binary available) exercise
// end-to-end.
package pipeline

import (
	"github.com/evmaot/evmaot/aot/ir"
	"github.com/evmaot/evmaot/runtime/abi"
)

// OptLevel is the requested optimization level, spec §6.1's `-O` flag.
type OptLevel int

const (
	OptNone OptLevel = iota
	OptBasic
	OptDefault
	OptAggressive
)

// Valid reports whether o is one of the four supported levels (0-3).
func (o OptLevel) Valid() bool { return o >= OptNone && o <= OptAggressive }

// Artifact is the pass pipeline's output: the (possibly canonicalized) IR
// module plus whatever backend-specific payload was produced from it. For
// InterpretingLowerer, Native is always nil — the module itself is the
// artifact, interpreted directly. For ExternalToolchain, Native holds the
// bytes written by the external compiler.
type Artifact struct {
	Module   *ir.Module
	OptLevel OptLevel
	Backend  string
	Native   []byte
}

// Lowerer turns an IR module into an Artifact (Lower) and runs a
// previously produced Artifact against an ExecutionContext (Run).
type Lowerer interface {
	Name() string
	Lower(m *ir.Module, opt OptLevel) (*Artifact, error)
	Run(art *Artifact, ctx *abi.ExecutionContext, sys *abi.Syscalls) error
}
