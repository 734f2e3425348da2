// Package decode turns raw EVM bytecode into a Program: an ordered list of
// typed Operations plus the set of valid JUMPDEST offsets. Decode never
// errors — it is a total function from bytes to Program, matching the
// contract analysis already performed by core/vm/contract.go
// (analyzeJumpdests / isCode / GetOp), generalized so the CFG builder and
// IR emitter can consume a decoded program directly instead of re-scanning
// raw bytes for every lookup.
package decode

import "github.com/evmaot/evmaot/core/vm"

// Operation is one decoded instruction: an opcode plus, for PUSH1..PUSH32,
// its immediate operand (zero-padded on the left if the code ends before
// the full immediate is present).
type Operation struct {
	Op        vm.OpCode
	Offset    uint64 // byte offset of the opcode itself
	Immediate []byte // nil for non-PUSH operations
}

// Program is the result of decoding a contract's code.
type Program struct {
	Code          []byte
	Ops           []Operation
	offsetToIndex map[uint64]int
	Jumpdests     map[uint64]bool
}

// Decode scans code left to right, producing one Operation per opcode and
// skipping PUSH immediate bytes, exactly as Contract.analyzeJumpdests does.
// Unknown opcodes decode to an Operation whose Op is not a valid mnemonic;
// the IR emitter is responsible for turning those into INVALID.
func Decode(code []byte) *Program {
	p := &Program{
		Code:          code,
		offsetToIndex: make(map[uint64]int, len(code)),
		Jumpdests:     make(map[uint64]bool),
	}

	for i := uint64(0); i < uint64(len(code)); {
		op := vm.OpCode(code[i])
		idx := len(p.Ops)
		p.offsetToIndex[i] = idx

		if op == vm.JUMPDEST {
			p.Jumpdests[i] = true
		}

		if op.IsPush() {
			n := uint64(op - vm.PUSH1 + 1)
			imm := make([]byte, n)
			for j := uint64(0); j < n; j++ {
				if i+1+j < uint64(len(code)) {
					imm[j] = code[i+1+j]
				}
				// past end of code: zero-padded, per spec's truncated-PUSH rule
			}
			p.Ops = append(p.Ops, Operation{Op: op, Offset: i, Immediate: imm})
			i += 1 + n
			continue
		}

		p.Ops = append(p.Ops, Operation{Op: op, Offset: i})
		i++
	}

	return p
}

// IndexAt returns the operation index whose opcode starts at byte offset
// off, and whether off is the start of an operation at all (as opposed to
// landing inside a PUSH immediate or past the end of code).
func (p *Program) IndexAt(off uint64) (int, bool) {
	idx, ok := p.offsetToIndex[off]
	return idx, ok
}

// ValidJumpdest reports whether off is a JUMPDEST opcode that is not
// embedded inside a preceding PUSH's immediate data — the same rule
// Contract.validJumpdest enforces at call time.
func (p *Program) ValidJumpdest(off uint64) bool {
	return p.Jumpdests[off]
}

// Len returns the number of decoded operations.
func (p *Program) Len() int { return len(p.Ops) }
