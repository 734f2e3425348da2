package ir

import (
	"strings"
	"testing"

	"github.com/evmaot/evmaot/aot/cfg"
	"github.com/evmaot/evmaot/aot/decode"
	"github.com/evmaot/evmaot/core/vm"
)

func TestEmitStraightLine(t *testing.T) {
	code := []byte{byte(vm.PUSH1), 0x01, byte(vm.PUSH1), 0x02, byte(vm.ADD), byte(vm.STOP)}
	prog := decode.Decode(code)
	jt := vm.NewPragueJumpTable()
	graph := cfg.Build(prog, jt)

	m := Emitter{}.Emit(prog, graph, jt)

	if len(m.Blocks) != 1 {
		t.Fatalf("len(Blocks) = %d, want 1", len(m.Blocks))
	}
	if len(m.Blocks[0].Insts) != 4 {
		t.Fatalf("len(Insts) = %d, want 4", len(m.Blocks[0].Insts))
	}
	if m.Blocks[0].Insts[0].Meta.ConstantGas != vm.GasPush {
		t.Errorf("PUSH1 ConstantGas = %d, want %d", m.Blocks[0].Insts[0].Meta.ConstantGas, vm.GasPush)
	}
}

func TestEmitJumpTargets(t *testing.T) {
	code := []byte{
		byte(vm.PUSH1), 0x03,
		byte(vm.JUMP),
		byte(vm.JUMPDEST),
		byte(vm.STOP),
	}
	prog := decode.Decode(code)
	jt := vm.NewPragueJumpTable()
	graph := cfg.Build(prog, jt)
	m := Emitter{}.Emit(prog, graph, jt)

	idx, ok := m.BlockForPC(3)
	if !ok || m.Blocks[idx].EntryPC != 3 {
		t.Fatalf("BlockForPC(3) = (%d, %v), want a block entering at pc 3", idx, ok)
	}
	if _, ok := m.BlockForPC(1); ok {
		t.Errorf("BlockForPC(1) should not resolve (not a JUMPDEST)")
	}
}

func TestModuleStringContainsBlocks(t *testing.T) {
	code := []byte{byte(vm.PUSH0), byte(vm.STOP)}
	prog := decode.Decode(code)
	jt := vm.NewPragueJumpTable()
	graph := cfg.Build(prog, jt)
	m := Emitter{}.Emit(prog, graph, jt)

	out := m.String()
	if !strings.Contains(out, "^bb0") {
		t.Errorf("String() output missing block label: %s", out)
	}
	if !strings.Contains(out, "PUSH0") {
		t.Errorf("String() output missing PUSH0: %s", out)
	}
}
