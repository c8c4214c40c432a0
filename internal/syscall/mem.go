package syscall

import (
	"mazkernel/internal/hal"
	"mazkernel/internal/task"
)

// doBrk implements SysBrk.
func doBrk(caller task.PID, addr hal.VAddr) int64 {
	p := task.Get(caller)
	if p == nil {
		return int64(ESRCH)
	}
	newBreak, err := p.Brk(addr)
	if err != nil {
		return int64(errnoFor(err))
	}
	return int64(newBreak)
}

// doMmap implements SysMmap (anonymous, bump-allocated; see
// task.PCB.Mmap's doc comment for the scope this covers).
func doMmap(caller task.PID, length int64) int64 {
	p := task.Get(caller)
	if p == nil {
		return int64(ESRCH)
	}
	va, err := p.Mmap(int(length))
	if err != nil {
		return int64(errnoFor(err))
	}
	return int64(va)
}
