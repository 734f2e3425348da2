// Package ir defines the compiled form the pass pipeline operates on: one
// Block per aot/cfg.BasicBlock, one Inst per decoded operation, each
// carrying the static gas/stack metadata (aot/decode.Operation +
// vm.JumpTable.Meta) needed to emit a self-contained per-opcode prologue —
// gas charge, then stack-depth check, then (for opcodes that touch
// memory) memory expansion — exactly the order core/vm/interpreter.go's
// Run loop already enforces (sLen checks at interpreter.go:284-287, gas
// charged before dynamicGas/memorySize at the top of the loop).
//
// The IR is intentionally small and typed rather than a generic AST: a
// dense per-block instruction list plus an explicit, PC-indexed jump
// target table is what a pass pipeline lowering to MLIR/LLVM basic blocks
// would want to consume directly.
package ir

import (
	"fmt"
	"strings"

	"github.com/evmaot/evmaot/aot/cfg"
	"github.com/evmaot/evmaot/aot/decode"
	"github.com/evmaot/evmaot/core/vm"
)

// Inst is one compiled instruction: the original opcode plus the static
// metadata the backend needs to charge gas and verify stack depth before
// executing it.
type Inst struct {
	Op   vm.OpCode
	PC   uint64
	Imm  []byte // PUSH immediate, nil otherwise
	Meta vm.OpMeta
}

// Block is one compiled basic block.
type Block struct {
	Index       int
	EntryPC     uint64
	Insts       []Inst
	Exit        cfg.ExitKind
	Fallthrough int // block index, -1 if none
}

// Module is a whole compiled program: every block of the CFG, plus a
// PC-to-block lookup for resolving JUMP/JUMPI destinations — the "dense
// []BlockRef table" spec.md's IR Emitter section calls for.
type Module struct {
	Blocks      []Block
	JumpTargets map[uint64]int // valid JUMPDEST byte offset -> block index
	EntryBlock  int
}

// BlockForPC resolves a runtime JUMP/JUMPI destination to a block index.
// ok is false for any destination that is not a valid JUMPDEST block
// entry, which the caller must treat as StatusInvalidJump.
func (m *Module) BlockForPC(pc uint64) (int, bool) {
	idx, ok := m.JumpTargets[pc]
	return idx, ok
}

// Emitter builds a Module from a decoded program and its CFG.
type Emitter struct{}

// Emit lowers prog/graph into a Module. It never fails: operations with no
// JumpTable entry (vm.JumpTable.Meta returning ok=false) lower to an Inst
// with a zero Meta, which the backend interprets as INVALID.
func (Emitter) Emit(prog *decode.Program, graph *cfg.Graph, jt vm.JumpTable) *Module {
	m := &Module{
		Blocks:      make([]Block, len(graph.Blocks)),
		JumpTargets: make(map[uint64]int, len(prog.Jumpdests)),
		EntryBlock:  0,
	}

	for i, bb := range graph.Blocks {
		insts := make([]Inst, 0, bb.End-bb.Start)
		for _, op := range prog.Ops[bb.Start:bb.End] {
			meta, _ := jt.Meta(op.Op)
			insts = append(insts, Inst{Op: op.Op, PC: op.Offset, Imm: op.Immediate, Meta: meta})
		}
		m.Blocks[i] = Block{
			Index:       i,
			EntryPC:     bb.EntryPC,
			Insts:       insts,
			Exit:        bb.Exit,
			Fallthrough: bb.Fallthrough,
		}
		if prog.Jumpdests[bb.EntryPC] {
			m.JumpTargets[bb.EntryPC] = i
		}
	}

	return m
}

// String renders an MLIR-generic-op-style textual dump of the module, the
// shape of the `name.ir`/`name.after-pass.ir` artifacts the CLI writes
// (spec §6.1's `.mlir` sequence, collapsed to this in-house textual form —
// see DESIGN.md).
func (m *Module) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "module {\n")
	for _, blk := range m.Blocks {
		fmt.Fprintf(&b, "  ^bb%d(pc=0x%x):\n", blk.Index, blk.EntryPC)
		for _, inst := range blk.Insts {
			if inst.Imm != nil {
				fmt.Fprintf(&b, "    %-12s 0x%x  [pc=0x%x gas=%d]\n", inst.Op, inst.Imm, inst.PC, inst.Meta.ConstantGas)
			} else {
				fmt.Fprintf(&b, "    %-12s [pc=0x%x gas=%d]\n", inst.Op, inst.PC, inst.Meta.ConstantGas)
			}
		}
		fmt.Fprintf(&b, "    %s\n", exitString(blk))
	}
	fmt.Fprintf(&b, "}\n")
	return b.String()
}

func exitString(blk Block) string {
	switch blk.Exit {
	case cfg.ExitJump:
		return "br.dynamic"
	case cfg.ExitJumpIf:
		return fmt.Sprintf("br.cond ^bb%d", blk.Fallthrough)
	case cfg.ExitFallthrough:
		if blk.Fallthrough < 0 {
			return "br.implicit-stop"
		}
		return fmt.Sprintf("br ^bb%d", blk.Fallthrough)
	default:
		return "halt"
	}
}
