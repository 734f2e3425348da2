package abi

import (
	"github.com/holiman/uint256"

	"github.com/evmaot/evmaot/core/types"
	"github.com/evmaot/evmaot/crypto"
)

// Gas constants used by the syscalls below. Values mirror core/vm/gas.go
// and core/vm/gas_table.go; duplicated here (rather than imported) so the
// runtime ABI package has no dependency on the interpreter package's
// internal jump table representation.
const (
	WarmStorageReadCost        uint64 = 100
	ColdSloadCost              uint64 = 2100
	GasSstoreSet               uint64 = 20000
	GasSstoreReset             uint64 = 2900
	SstoreClearsScheduleRefund uint64 = 4800
)

func keccak(data []byte) []byte {
	return crypto.Keccak256(data)
}

// Syscalls binds a HostOracle to the ExecutionContext it mutates. Every
// method takes (or implicitly operates on) the ExecutionContext as its
// first argument, per spec §4.F, and stack effects happen through the
// context rather than a separate return-value channel.
type Syscalls struct {
	Oracle HostOracle
	Self   types.Address // address of the currently executing contract
}

// NewSyscalls binds oracle and self into a Syscalls table.
func NewSyscalls(oracle HostOracle, self types.Address) *Syscalls {
	return &Syscalls{Oracle: oracle, Self: self}
}

// Keccak hashes ctx.Memory[offset:offset+length] and returns the digest.
// The IR emitter charges 30 + 6*ceil(len/32) plus memory expansion before
// calling this (spec §4.D).
func (s *Syscalls) Keccak(ctx *ExecutionContext, offset, length uint64) types.Hash {
	data := ctx.Memory[offset : offset+length]
	return types.BytesToHash(keccak(data))
}

// SLoad reads a storage slot of the currently executing contract.
func (s *Syscalls) SLoad(key types.Hash) types.Hash {
	return s.Oracle.SLoad(s.Self, key)
}

// SStore writes a storage slot, returning the EIP-2200 gas cost to charge
// and the refund delta to apply. The IR emitter charges gasCost and
// applies refundDelta to ctx.GasRefund before invoking this.
func (s *Syscalls) SStore(key, value types.Hash) (gasCost uint64, refundDelta int64) {
	gasCost, refundDelta = s.Oracle.SStoreCost(s.Self, key, value)
	s.Oracle.SStore(s.Self, key, value)
	return gasCost, refundDelta
}

// Balance returns the balance of addr, and whether addr was already warm
// (for the caller to charge the correct EIP-2929 cold/warm gas delta).
func (s *Syscalls) Balance(addr types.Address) (*uint256.Int, bool) {
	warm := s.Oracle.IsAddressWarm(addr)
	s.Oracle.WarmAddress(addr)
	return s.Oracle.Balance(addr), warm
}

// ExtCodeSize returns len(code) at addr and whether addr was already warm.
func (s *Syscalls) ExtCodeSize(addr types.Address) (int, bool) {
	warm := s.Oracle.IsAddressWarm(addr)
	s.Oracle.WarmAddress(addr)
	return s.Oracle.ExtCodeSize(addr), warm
}

// ExtCodeCopy copies up to length bytes of addr's code (zero-padded past
// the end) into ctx.Memory at destOffset, starting at codeOffset.
func (s *Syscalls) ExtCodeCopy(ctx *ExecutionContext, addr types.Address, destOffset, codeOffset, length uint64) {
	code := s.Oracle.ExtCodeCopy(addr)
	dst := ctx.Memory[destOffset : destOffset+length]
	for i := range dst {
		srcIdx := codeOffset + uint64(i)
		if srcIdx < uint64(len(code)) {
			dst[i] = code[srcIdx]
		} else {
			dst[i] = 0
		}
	}
}

// ExtCodeHash returns the keccak256 of addr's code, or the zero hash if
// the account is empty/non-existent.
func (s *Syscalls) ExtCodeHash(addr types.Address) (types.Hash, bool) {
	warm := s.Oracle.IsAddressWarm(addr)
	s.Oracle.WarmAddress(addr)
	return s.Oracle.ExtCodeHash(addr), warm
}

// BlockHash returns the hash of block number, or the zero hash if out of
// the supported 256-block window (the oracle enforces that window).
func (s *Syscalls) BlockHash(number uint64) types.Hash {
	return s.Oracle.BlockHash(number)
}

// Log appends a LOG0..LOG4 event to ctx.Logs. topics has 0-4 elements.
func (s *Syscalls) Log(ctx *ExecutionContext, offset, length uint64, topics []types.Hash) {
	data := make([]byte, length)
	copy(data, ctx.Memory[offset:offset+length])
	ctx.Logs = append(ctx.Logs, Log{
		Address: s.Self,
		Topics:  append([]types.Hash(nil), topics...),
		Data:    data,
	})
}

// Call performs a CALL and writes the returned data into
// ctx.Memory[retOffset:retOffset+retLength] (truncated/zero-padded to
// fit), setting ctx.ReturnData to the full (untruncated) output. Reports
// success on the stack per spec §7 ("nested CALL failures return a 0 to
// the caller's stack without aborting the outer frame").
func (s *Syscalls) Call(ctx *ExecutionContext, gas uint64, addr types.Address, value *uint256.Int, argsOffset, argsLength, retOffset, retLength uint64) (success bool, gasUsed uint64) {
	args := ctx.Memory[argsOffset : argsOffset+argsLength]
	success, ret, gasUsed := s.Oracle.Call(gas, addr, value, args)
	ctx.ReturnData = ret
	n := uint64(len(ret))
	if n > retLength {
		n = retLength
	}
	copy(ctx.Memory[retOffset:retOffset+n], ret[:n])
	for i := n; i < retLength; i++ {
		ctx.Memory[retOffset+i] = 0
	}
	return success, gasUsed
}

// ReturnDataSet records a RETURN/REVERT output buffer on the context.
func (s *Syscalls) ReturnDataSet(ctx *ExecutionContext, offset, length uint64) {
	data := make([]byte, length)
	copy(data, ctx.Memory[offset:offset+length])
	ctx.ReturnData = data
}
