// Package abi defines the fixed-layout execution context shared between the
// compiled entry point and the native runtime's host callbacks, and the
// syscall table the compiled code invokes for operations that cannot be
// expressed in pure arithmetic (hashing, storage, environment reads, calls).
//
// Stack values are modeled with uint256.Int rather than math/big: the
// context's stack is a fixed 1024-slot array (mirroring core/vm's
// EVMStack, see core/vm/stack_impl.go), and uint256.Int's fixed-width,
// allocation-free representation is what an AOT-compiled stack slot
// actually looks like in memory.
package abi

import (
	"github.com/holiman/uint256"

	"github.com/evmaot/evmaot/core/types"
)

// StackSlots is the maximum number of 256-bit words on the EVM stack.
const StackSlots = 1024

// Status is the terminal status written to ExecutionContext.Result by the
// compiled entry's exit trampoline.
type Status uint8

const (
	StatusRunning Status = iota
	StatusSuccess
	StatusRevert
	StatusOutOfGas
	StatusStackUnderflow
	StatusStackOverflow
	StatusInvalidJump
	StatusInvalidOpcode
	StatusMemoryLimitExceeded
)

func (s Status) String() string {
	switch s {
	case StatusRunning:
		return "Running"
	case StatusSuccess:
		return "Success"
	case StatusRevert:
		return "Revert"
	case StatusOutOfGas:
		return "OutOfGas"
	case StatusStackUnderflow:
		return "StackUnderflow"
	case StatusStackOverflow:
		return "StackOverflow"
	case StatusInvalidJump:
		return "InvalidJump"
	case StatusInvalidOpcode:
		return "InvalidOpcode"
	case StatusMemoryLimitExceeded:
		return "MemoryLimitExceeded"
	default:
		return "Unknown"
	}
}

// Terminal reports whether the status ends execution (every value except
// StatusRunning).
func (s Status) Terminal() bool {
	return s != StatusRunning
}

// Log is a single LOG0..LOG4 event emitted by the running program.
type Log struct {
	Address types.Address
	Topics  []types.Hash
	Data    []byte
}

// Environment is the read-only environment block: everything ADDRESS,
// CALLER, CALLVALUE, CALLDATA*, CODE*, block-info opcodes, CHAINID,
// BASEFEE, BLOBHASH and BLOBBASEFEE read without a host callback.
type Environment struct {
	Address     types.Address
	Caller      types.Address
	Origin      types.Address
	CallValue   *uint256.Int
	GasPrice    *uint256.Int
	CallData    []byte
	Code        []byte
	ChainID     *uint256.Int
	Coinbase    types.Address
	Timestamp   uint64
	BlockNumber uint64
	PrevRandao  types.Hash
	GasLimit    uint64
	BaseFee     *uint256.Int
	BlobHashes  []types.Hash
	BlobBaseFee *uint256.Int
}

// ExecutionContext is the fixed-shape record shared between compiled code
// and the runtime (spec §3). It is created by the Invoker immediately
// before a call, mutated only by the compiled entry and the syscalls it
// invokes, inspected after return, then discarded. No field here is
// global or shared across calls.
type ExecutionContext struct {
	Stack    [StackSlots]uint256.Int
	StackPtr int // index of the next free slot; always in [0, StackSlots]

	Memory      []byte // byte-addressable, grows only in 32-byte words
	MemoryWords uint64 // highest word-count charged for, for expansion-cost deltas

	GasRemaining int64 // negative after a charge means out-of-gas
	PC           uint64

	ReturnData []byte
	Logs       []Log

	Env *Environment

	Result       Status
	RevertReason []byte

	// GasRefund accumulates EIP-2929/3529-style refunds. The compiler
	// boundary treats refunds as zero; a host driving nested CALLs is
	// responsible for its own accounting (spec §9 Open Questions).
	GasRefund uint64
}

// NewExecutionContext allocates a context ready to run with the given gas
// limit and environment. The stack array is zero-valued (all-zero words),
// matching a freshly allocated EVM frame.
func NewExecutionContext(env *Environment, gasLimit uint64) *ExecutionContext {
	return &ExecutionContext{
		GasRemaining: int64(gasLimit),
		Env:          env,
	}
}

// Push pushes val onto the stack. Returns false on overflow (>1024 items).
func (ctx *ExecutionContext) Push(val *uint256.Int) bool {
	if ctx.StackPtr >= StackSlots {
		return false
	}
	ctx.Stack[ctx.StackPtr].Set(val)
	ctx.StackPtr++
	return true
}

// Pop removes and returns the top stack slot. Returns false on underflow.
func (ctx *ExecutionContext) Pop() (*uint256.Int, bool) {
	if ctx.StackPtr == 0 {
		return nil, false
	}
	ctx.StackPtr--
	return &ctx.Stack[ctx.StackPtr], true
}

// Back returns the n-th element from the top (0 = top) without popping.
func (ctx *ExecutionContext) Back(n int) *uint256.Int {
	return &ctx.Stack[ctx.StackPtr-1-n]
}

// UseGas attempts to charge cost gas. Returns false (and does not
// partially charge) if that would drive GasRemaining negative.
func (ctx *ExecutionContext) UseGas(cost uint64) bool {
	remaining := ctx.GasRemaining - int64(cost)
	if remaining < 0 {
		return false
	}
	ctx.GasRemaining = remaining
	return true
}

// wordCost implements the EVM memory expansion formula 3*w + floor(w^2/512)
// for a memory size of w 32-byte words (spec §4.D / §8).
func wordCost(words uint64) uint64 {
	return 3*words + (words*words)/512
}

// MemoryExpansionCost returns the incremental gas cost of growing memory to
// at least newSize bytes, without mutating the context. It is charged
// before ResizeMemory actually grows the buffer (spec's gas-first
// prologue, §9).
func (ctx *ExecutionContext) MemoryExpansionCost(newSize uint64) uint64 {
	if newSize == 0 {
		return 0
	}
	newWords := (newSize + 31) / 32
	if newWords <= ctx.MemoryWords {
		return 0
	}
	cost := wordCost(newWords) - wordCost(ctx.MemoryWords)
	return cost
}

// ResizeMemory grows memory to at least newSize bytes (rounded up to a
// whole word), recording the new high-water mark in words. Must only be
// called after MemoryExpansionCost has been charged.
func (ctx *ExecutionContext) ResizeMemory(newSize uint64) {
	if newSize == 0 {
		return
	}
	words := (newSize + 31) / 32
	if words > ctx.MemoryWords {
		ctx.MemoryWords = words
	}
	byteLen := words * 32
	if uint64(len(ctx.Memory)) < byteLen {
		grown := make([]byte, byteLen)
		copy(grown, ctx.Memory)
		ctx.Memory = grown
	}
}
