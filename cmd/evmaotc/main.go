// Command evmaotc is the ahead-of-time EVM bytecode compiler's CLI.
//
// Usage:
//
//	evmaotc compile <path> [-O level]
//
// Reads bytecode from path (hex or raw, auto-detected), decodes it, builds
// its control-flow graph, emits IR, and runs the pass pipeline at the
// requested optimization level. Writes <path>.ir, <path>.after-pass.ir, and
// <path>.artifact alongside the input. Exits non-zero on decode/compile
// failure.
package main

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/evmaot/evmaot/aot/cfg"
	"github.com/evmaot/evmaot/aot/decode"
	"github.com/evmaot/evmaot/aot/ir"
	"github.com/evmaot/evmaot/aot/pipeline"
	"github.com/evmaot/evmaot/core/vm"
	"github.com/evmaot/evmaot/log"
)

var cliLog = log.Default().Module("cmd.evmaotc")

// Build-time version info, overridable with ldflags:
//
//	go build -ldflags "-X main.version=v0.2.0 -X main.commit=abc1234"
var (
	version = "v0.1.0-dev"
	commit  = "unknown"
)

func main() {
	os.Exit(run(os.Args))
}

func run(args []string) int {
	app := &cli.App{
		Name:    "evmaotc",
		Usage:   "ahead-of-time compiler from EVM bytecode to a native artifact",
		Version: fmt.Sprintf("%s (commit %s)", version, commit),
		Commands: []*cli.Command{
			compileCommand(),
		},
	}

	if err := app.Run(args); err != nil {
		fmt.Fprintf(os.Stderr, "evmaotc: %v\n", err)
		if coder, ok := err.(cli.ExitCoder); ok {
			return coder.ExitCode()
		}
		return 1
	}
	return 0
}

func compileCommand() *cli.Command {
	return &cli.Command{
		Name:      "compile",
		Usage:     "compile an EVM bytecode file to an artifact",
		ArgsUsage: "<path>",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "O",
				Value: int(pipeline.OptNone),
				Usage: "optimization level, 0-3",
			},
			&cli.BoolFlag{
				Name:  "external",
				Usage: "use the external MLIR/LLVM toolchain instead of the in-process interpreter",
			},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return cli.Exit("compile requires exactly one <path> argument", 2)
			}
			return compileFile(c.Args().Get(0), pipeline.OptLevel(c.Int("O")), c.Bool("external"))
		},
	}
}

func compileFile(path string, opt pipeline.OptLevel, useExternal bool) error {
	if !opt.Valid() {
		return cli.Exit(fmt.Sprintf("invalid optimization level %d (want 0-3)", opt), 2)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return cli.Exit(fmt.Sprintf("reading %s: %v", path, err), 1)
	}

	code, err := decodeInput(raw)
	if err != nil {
		return cli.Exit(fmt.Sprintf("decoding input: %v", err), 1)
	}

	jt := vm.NewPragueJumpTable()
	prog := decode.Decode(code)
	graph := cfg.Build(prog, jt)
	module := ir.Emitter{}.Emit(prog, graph, jt)

	var lowerer pipeline.Lowerer = pipeline.InterpretingLowerer{}
	if useExternal {
		lowerer = &pipeline.ExternalToolchain{}
	}

	beforePath := path + ".ir"
	if err := os.WriteFile(beforePath, []byte(module.String()), 0o644); err != nil {
		return cli.Exit(fmt.Sprintf("writing %s: %v", beforePath, err), 1)
	}

	artifact, err := lowerer.Lower(module, opt)
	if err != nil {
		return cli.Exit(fmt.Sprintf("compiling: %v", err), 1)
	}

	afterPath := path + ".after-pass.ir"
	if err := os.WriteFile(afterPath, []byte(artifact.Module.String()), 0o644); err != nil {
		return cli.Exit(fmt.Sprintf("writing %s: %v", afterPath, err), 1)
	}

	artifactPath := path + ".artifact"
	if err := os.WriteFile(artifactPath, artifactBytes(artifact), 0o644); err != nil {
		return cli.Exit(fmt.Sprintf("writing %s: %v", artifactPath, err), 1)
	}

	cliLog.Info("compiled", "path", path, "blocks", len(module.Blocks), "opt", opt, "backend", lowerer.Name())
	return nil
}

// artifactBytes returns the payload to write as <path>.artifact. An
// external-toolchain artifact carries real object code; the interpreting
// backend has no native output, so it writes a short marker instead —
// running it means handing the IR back to InterpretingLowerer via
// aot/invoker, not executing this file.
func artifactBytes(a *pipeline.Artifact) []byte {
	if a.Native != nil {
		return a.Native
	}
	return []byte(fmt.Sprintf("evmaotc interpreting-backend artifact (opt=%d, blocks=%d); no native code, run via aot/invoker\n", a.OptLevel, len(a.Module.Blocks)))
}

// decodeInput auto-detects hex vs. raw bytecode (spec §6.2): if, after
// stripping whitespace and an optional "0x" prefix, every remaining byte is
// a hex digit and the count is even, it is decoded as hex; otherwise the
// input is treated as raw bytecode.
func decodeInput(raw []byte) ([]byte, error) {
	trimmed := stripHexWhitespace(raw)
	trimmed = bytes.TrimPrefix(trimmed, []byte("0x"))
	trimmed = bytes.TrimPrefix(trimmed, []byte("0X"))

	if len(trimmed) > 0 && len(trimmed)%2 == 0 && isHex(trimmed) {
		decoded, err := hex.DecodeString(string(trimmed))
		if err == nil {
			return decoded, nil
		}
	}
	return raw, nil
}

func stripHexWhitespace(b []byte) []byte {
	out := make([]byte, 0, len(b))
	for _, c := range b {
		switch c {
		case ' ', '\t', '\n', '\r':
			continue
		}
		out = append(out, c)
	}
	return out
}

func isHex(b []byte) bool {
	for _, c := range b {
		if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')) {
			return false
		}
	}
	return true
}
