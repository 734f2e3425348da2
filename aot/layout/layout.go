// Package layout describes the field offsets of runtime/abi.ExecutionContext
// so the IR emitter can address them without duplicating the struct's shape
// by hand. Offsets are computed with unsafe.Offsetof directly against the
// compiled struct, the same way core/vm/contract.go's Contract and
// core/vm/interpreter.go's BlockContext/TxContext are plain Go structs
// whose layout the rest of the interpreter trusts implicitly — the
// difference here is that an AOT-compiled entry point needs those offsets
// as data (to emit load/store instructions against), not just as Go field
// selectors, so this package makes them explicit.
package layout

import (
	"unsafe"

	"github.com/evmaot/evmaot/runtime/abi"
)

// ContextLayout is the field-offset table for abi.ExecutionContext. It is
// the single source of truth the IR Emitter consumes when generating
// Load/Store instructions that read or write the context record, and
// that the Runtime ABI is built against — both always agree because both
// derive from the same struct via unsafe.Offsetof/unsafe.Sizeof.
type ContextLayout struct {
	StackOffset    uintptr
	StackPtrOffset uintptr
	StackSlotSize  uintptr

	MemoryOffset      uintptr
	MemoryWordsOffset uintptr

	GasRemainingOffset uintptr
	PCOffset           uintptr

	ReturnDataOffset uintptr
	LogsOffset       uintptr

	EnvOffset uintptr

	ResultOffset       uintptr
	RevertReasonOffset uintptr
	GasRefundOffset    uintptr

	Size uintptr
}

// Describe computes the ContextLayout for abi.ExecutionContext.
func Describe() ContextLayout {
	var ctx abi.ExecutionContext

	return ContextLayout{
		StackOffset:    unsafe.Offsetof(ctx.Stack),
		StackPtrOffset: unsafe.Offsetof(ctx.StackPtr),
		StackSlotSize:  unsafe.Sizeof(ctx.Stack[0]),

		MemoryOffset:      unsafe.Offsetof(ctx.Memory),
		MemoryWordsOffset: unsafe.Offsetof(ctx.MemoryWords),

		GasRemainingOffset: unsafe.Offsetof(ctx.GasRemaining),
		PCOffset:           unsafe.Offsetof(ctx.PC),

		ReturnDataOffset: unsafe.Offsetof(ctx.ReturnData),
		LogsOffset:       unsafe.Offsetof(ctx.Logs),

		EnvOffset: unsafe.Offsetof(ctx.Env),

		ResultOffset:       unsafe.Offsetof(ctx.Result),
		RevertReasonOffset: unsafe.Offsetof(ctx.RevertReason),
		GasRefundOffset:    unsafe.Offsetof(ctx.GasRefund),

		Size: unsafe.Sizeof(ctx),
	}
}

// StackSlotOffset returns the byte offset of stack slot n from the start
// of the ExecutionContext struct.
func (l ContextLayout) StackSlotOffset(n int) uintptr {
	return l.StackOffset + uintptr(n)*l.StackSlotSize
}
