package syscall

import (
	"mazkernel/internal/hal"
	"mazkernel/internal/klog"
	"mazkernel/internal/task"
)

// Dispatch is the single syscall entry point (spec §4.6: "a single
// dispatcher receives (num, a1..a6, trap_frame*) and returns a
// word-width result"). caller identifies the issuing task; frame is its
// saved hal.Context. No handler reads frame: sys_fork and sys_execve read
// and rewrite the caller's saved context through its PCB
// (task.Get(caller).Context()) instead. Arguments narrower
// than a full word (flags, signal numbers, lengths) are carried in the
// low bits of their ai the same way a real syscall_arg_t would be,
// word-width and architecture-agnostic.
func Dispatch(caller task.PID, num Num, a1, a2, a3, a4, a5, a6 uint64, frame *hal.Context) int64 {
	switch num {
	case SysExit:
		return doExit(caller, int64(a1))
	case SysFork:
		return doFork(caller)
	case SysExecve:
		return doExecve(caller, hal.VAddr(a1))
	case SysWaitpid:
		return doWaitpid(caller, a1, hal.VAddr(a2), int64(a3))
	case SysGetpid:
		return doGetpid(caller)
	case SysGetppid:
		return doGetppid(caller)
	case SysKill:
		return doKill(caller, a1, int64(a2))
	case SysYield:
		return doYield(caller)
	case SysNanosleep:
		return doNanosleep(caller, a1)

	case SysOpen:
		return doOpen(caller, hal.VAddr(a1), int64(a2))
	case SysClose:
		return doClose(caller, int64(a1))
	case SysRead:
		return doRead(caller, int64(a1), hal.VAddr(a2), int64(a3))
	case SysWrite:
		return doWrite(caller, int64(a1), hal.VAddr(a2), int64(a3))

	case SysBrk:
		return doBrk(caller, hal.VAddr(a1))
	case SysMmap:
		return doMmap(caller, int64(a1))

	case SysTime:
		return doTime(caller)

	case SysUname:
		return doUname(caller, hal.VAddr(a1))

	case SysSocket:
		return doSocket(caller, int64(a1), int64(a2), int64(a3))

	default:
		klog.Warnf("syscall", "invalid syscall number %x", uint32(num))
		return int64(ENOSYS)
	}
}
