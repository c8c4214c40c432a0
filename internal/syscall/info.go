package syscall

import (
	"mazkernel/internal/hal"
	"mazkernel/internal/task"
)

// ticks counts SysTime calls' only available notion of elapsed time: the
// scheduler's timer ticks. A real RTC driver is explicitly out of scope
// (spec §1's "the RTC driver ... treated as an external collaborator"),
// so SysTime reports ticks rather than wall-clock seconds.
var ticks uint64

// AccountTick advances by one the tick count SysTime reports. The
// scheduler's TimerTick does not advance it; the two are called
// separately.
func AccountTick() { ticks++ }

// doTime implements SysTime.
func doTime(caller task.PID) int64 { return int64(ticks) }

// unameSysname/unameRelease are fixed per-build strings and the machine
// field comes from hal.ArchName(), standing in for struct utsname's
// sysname/release/machine fields (spec places no
// format on these beyond the syscall number existing).
const unameSysname = "mazkernel"

var unameRelease = "0.1.0"

// doUname implements SysUname: copies a small fixed-size struct out to
// the caller's buffer at bufVA (sysname, release, machine, each
// NUL-padded to 32 bytes, concatenated — a minimal analog of POSIX
// struct utsname with no domainname/nodename fields, since nothing in
// this kernel has a hostname).
func doUname(caller task.PID, bufVA hal.VAddr) int64 {
	p := task.Get(caller)
	if p == nil {
		return int64(ESRCH)
	}
	const field = 32
	buf := make([]byte, field*3)
	copy(buf[0*field:], unameSysname)
	copy(buf[1*field:], unameRelease)
	copy(buf[2*field:], hal.ArchName())
	if err := CopyOutBytes(p.AddressSpace(), bufVA, buf); err != nil {
		return int64(errnoFor(err))
	}
	return 0
}
