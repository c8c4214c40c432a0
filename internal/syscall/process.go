package syscall

import (
	"encoding/binary"

	"mazkernel/internal/hal"
	"mazkernel/internal/task"
)

// doExit implements SysExit: never returns a value the caller observes
// (spec §4.5: "it does not return"); the dispatcher still reports 0
// since the word-width result convention requires something.
func doExit(caller task.PID, code int64) int64 {
	task.Exit(int(int32(code)))
	return 0
}

// doFork implements SysFork. The child's saved context is seeded from
// the parent's saved hal.Context in its PCB by task.Fork (the frame
// argument of Dispatch is not consulted); the dispatcher only needs to hand
// back the child PID, packed, or a negative errno.
func doFork(caller task.PID) int64 {
	child, err := task.Fork(caller)
	if err != nil {
		return int64(errnoFor(err))
	}
	return int64(child.Raw())
}

// doExecve implements SysExecve: a1 is the user-virtual-address of a
// NUL-terminated pathname (spec §4.6 "the dispatcher passes a pointer
// to the saved frame"; execve's own pointer argument is read the same
// way any pointer-shaped syscall argument is — via copy-in from the
// caller's address space).
func doExecve(caller task.PID, pathVA hal.VAddr) int64 {
	p := task.Get(caller)
	if p == nil {
		return int64(ESRCH)
	}
	path, err := CopyInString(p.AddressSpace(), pathVA)
	if err != nil {
		return int64(errnoFor(err))
	}
	if err := task.Execve(caller, path); err != nil {
		return int64(errnoFor(err))
	}
	return 0
}

// WNOHANG, set in sys_waitpid's opts argument, requests the
// non-blocking form: return 0 immediately instead of retrying when no
// child has exited yet (spec §4.5 "none yet and caller non-blocking ->
// return 0").
const WNOHANG = 1 << 0

// doWaitpid implements SysWaitpid. targetRaw == 0 (task.Nil.Raw())
// means "any child" per spec §4.5. statusVA, if non-zero, receives the
// encoded wait status (spec §6: "signaled -> low 8 bits = signal;
// normal -> bits 8..15 = exit code", already produced by task.Waitpid).
// opts carries WNOHANG; task.Waitpid itself never blocks (its own doc
// comment defers that to the dispatcher, "since only it knows whether
// WNOHANG was requested") so the blocking case is a retry loop here:
// none yet and blocking -> task_yield and retry (spec §4.5). This kernel
// has no preemptive concurrency beneath a syscall, so "yield" is driven
// synchronously: dispatch whatever else is ready and run it to its next
// suspension point, the same dispatch-then-Run idiom the boot sequence
// uses, giving the awaited child a chance to reach ZOMBIE before the
// next retry. If nothing is left to run, there is no way to make
// further progress, so the loop gives up and returns 0 rather than
// spinning forever.
func doWaitpid(caller task.PID, targetRaw uint64, statusVA hal.VAddr, opts int64) int64 {
	target := task.PIDFromRaw(targetRaw)
	for {
		pid, status, found, err := task.Waitpid(caller, target)
		if err != nil {
			return int64(errnoFor(err))
		}
		if found {
			if statusVA != 0 {
				p := task.Get(caller)
				if p != nil {
					var buf [4]byte
					binary.LittleEndian.PutUint32(buf[:], status)
					CopyOutBytes(p.AddressSpace(), statusVA, buf[:])
				}
			}
			return int64(pid.Raw())
		}
		if opts&WNOHANG != 0 {
			return 0
		}
		next, ok := task.Dispatch()
		if !ok {
			return 0
		}
		if t := task.Get(next); t != nil {
			t.Context().Run()
		}
	}
}

// doGetpid, doGetppid implement SysGetpid/SysGetppid.
func doGetpid(caller task.PID) int64 { return int64(caller.Raw()) }

func doGetppid(caller task.PID) int64 {
	p := task.Get(caller)
	if p == nil {
		return int64(ESRCH)
	}
	return int64(p.Parent().Raw())
}

// doKill implements SysKill.
func doKill(caller task.PID, targetRaw uint64, sig int64) int64 {
	target := task.PIDFromRaw(targetRaw)
	if err := task.Kill(caller, target, int(sig)); err != nil {
		return int64(errnoFor(err))
	}
	return 0
}

// doYield implements SysYield.
func doYield(caller task.PID) int64 {
	task.Yield()
	return 0
}

// doNanosleep implements SysNanosleep. The dispatcher only has access
// to the scheduler's tick-based Sleep, not a real monotonic clock (spec
// §1 places wall-clock timekeeping out of scope beyond the UHCI
// transfer-timeout loop); nanoseconds are converted to ticks using the
// same 1 ms-per-tick granularity the USB transfer timeouts assume
// (spec §5).
func doNanosleep(caller task.PID, nanos uint64) int64 {
	const nsPerTick = 1_000_000
	ticks := int(nanos / nsPerTick)
	if ticks <= 0 {
		ticks = 1
	}
	task.Sleep(ticks)
	return 0
}
