package hal

import "sync/atomic"

// barrierSink gives MemoryBarrier and friends a real atomic access to hang
// off of. On real hardware these four functions are single-instruction
// per-architecture thunks (MFENCE/LFENCE/SFENCE on x86_64, DMB ISH/DSB
// SY/ISB on ARM64, a locked instruction on i686); mazkernel keeps one
// portable implementation here rather than one assembly file per
// architecture; see DESIGN.md for why.
var barrierSink uint32

// MemoryBarrier orders all prior loads and stores against all subsequent
// ones.
func MemoryBarrier() { atomic.AddUint32(&barrierSink, 0) }

// ReadBarrier orders prior loads against subsequent ones.
func ReadBarrier() { atomic.LoadUint32(&barrierSink) }

// WriteBarrier orders prior stores against subsequent ones.
func WriteBarrier() { atomic.AddUint32(&barrierSink, 0) }

// InstructionBarrier flushes the instruction pipeline, ensuring
// newly-written code or updated translation state is visible to
// subsequently fetched instructions.
func InstructionBarrier() { atomic.AddUint32(&barrierSink, 0) }
