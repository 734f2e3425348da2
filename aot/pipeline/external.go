package pipeline

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/evmaot/evmaot/aot/ir"
	"github.com/evmaot/evmaot/log"
	"github.com/evmaot/evmaot/runtime/abi"
)

var pipelineLog = log.Default().Module("pipeline")

// ExternalToolchain lowers IR to native code by shelling out to an
// MLIR/LLVM-shaped toolchain resolved from $PATH — `mlir-opt` to run the
// canonicalization/lowering passes for the requested OptLevel, then `llc`
// to produce an object artifact. Neither binary is assumed to exist in
// every environment; Lower reports a descriptive error if either is
// missing rather than silently falling back (the caller, cmd/evmaotc,
// decides whether to fall back to InterpretingLowerer).
type ExternalToolchain struct {
	MLIROptPath string // defaults to "mlir-opt" via exec.LookPath
	LLCPath     string // defaults to "llc" via exec.LookPath
	WorkDir     string // scratch directory for intermediate files; os.TempDir() if empty
}

func (e *ExternalToolchain) Name() string { return "external" }

func (e *ExternalToolchain) mlirOpt() string {
	if e.MLIROptPath != "" {
		return e.MLIROptPath
	}
	return "mlir-opt"
}

func (e *ExternalToolchain) llc() string {
	if e.LLCPath != "" {
		return e.LLCPath
	}
	return "llc"
}

// Lower writes m's textual form to a temp file, runs it through mlir-opt
// at the pass level implied by opt, then through llc, and returns the
// resulting object bytes as Artifact.Native.
func (e *ExternalToolchain) Lower(m *ir.Module, opt OptLevel) (*Artifact, error) {
	if !opt.Valid() {
		return nil, fmt.Errorf("pipeline: invalid optimization level %d", opt)
	}
	mlirOptBin, err := exec.LookPath(e.mlirOpt())
	if err != nil {
		return nil, fmt.Errorf("pipeline: external toolchain unavailable: %w", err)
	}
	llcBin, err := exec.LookPath(e.llc())
	if err != nil {
		return nil, fmt.Errorf("pipeline: external toolchain unavailable: %w", err)
	}

	dir := e.WorkDir
	if dir == "" {
		dir = os.TempDir()
	}
	srcPath := filepath.Join(dir, "evmaotc-module.ir")
	if err := os.WriteFile(srcPath, []byte(m.String()), 0o644); err != nil {
		return nil, fmt.Errorf("pipeline: writing intermediate IR: %w", err)
	}
	defer os.Remove(srcPath)

	optArgs := []string{fmt.Sprintf("-O%d", int(opt)), srcPath}
	optOut, err := runCapture(mlirOptBin, optArgs...)
	if err != nil {
		return nil, fmt.Errorf("pipeline: mlir-opt: %w", err)
	}

	llcArgs := []string{"-filetype=obj", "-o", "-"}
	native, err := runCaptureStdin(llcBin, optOut, llcArgs...)
	if err != nil {
		return nil, fmt.Errorf("pipeline: llc: %w", err)
	}

	pipelineLog.Info("lowered module via external toolchain", "opt", opt, "bytes", len(native))
	return &Artifact{Module: m, OptLevel: opt, Backend: e.Name(), Native: native}, nil
}

// Run is not implemented for ExternalToolchain in this repository: running
// a native object requires a host ABI bridge (ctypes-style call into the
// artifact) that is outside this spec's core (spec §1's "full JIT/runtime
// caches" non-goal). Production deployments invoke art.Native through a
// separate native-call bridge, not through this Lowerer.
func (e *ExternalToolchain) Run(art *Artifact, ctx *abi.ExecutionContext, sys *abi.Syscalls) error {
	return fmt.Errorf("pipeline: ExternalToolchain.Run: invoking a native artifact requires a host bridge not built in this repository; use InterpretingLowerer to execute in-process")
}

func runCapture(bin string, args ...string) ([]byte, error) {
	cmd := exec.Command(bin, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("%s: %w: %s", bin, err, stderr.String())
	}
	return stdout.Bytes(), nil
}

func runCaptureStdin(bin string, stdin []byte, args ...string) ([]byte, error) {
	cmd := exec.Command(bin, args...)
	cmd.Stdin = bytes.NewReader(stdin)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("%s: %w: %s", bin, err, stderr.String())
	}
	return stdout.Bytes(), nil
}
