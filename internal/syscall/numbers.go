// Package syscall is the C6 syscall surface: stable numbers, a single
// dispatcher, and the translation from task/vfs/pmm-internal errors to
// the negative-integer POSIX convention the user ABI expects (spec
// §4.6, §7 "the syscall layer translates kernel-internal negatives").
package syscall

// Num is a syscall number, grouped by domain exactly as spec §6 lists
// them: process 0x00xx, file 0x01xx, memory 0x02xx, time 0x03xx, info
// 0x05xx, network 0x06xx.
type Num uint32

const (
	SysExit      Num = 0x0000
	SysFork      Num = 0x0001
	SysExecve    Num = 0x0002
	SysWaitpid   Num = 0x0003
	SysGetpid    Num = 0x0004
	SysGetppid   Num = 0x0005
	SysKill      Num = 0x0006
	SysYield     Num = 0x0007
	SysNanosleep Num = 0x0008

	SysOpen  Num = 0x0100
	SysClose Num = 0x0101
	SysRead  Num = 0x0102
	SysWrite Num = 0x0103

	SysBrk  Num = 0x0200
	SysMmap Num = 0x0201

	SysTime Num = 0x0300

	SysUname Num = 0x0500

	SysSocket Num = 0x0600
)

func (n Num) String() string {
	switch n {
	case SysExit:
		return "exit"
	case SysFork:
		return "fork"
	case SysExecve:
		return "execve"
	case SysWaitpid:
		return "waitpid"
	case SysGetpid:
		return "getpid"
	case SysGetppid:
		return "getppid"
	case SysKill:
		return "kill"
	case SysYield:
		return "yield"
	case SysNanosleep:
		return "nanosleep"
	case SysOpen:
		return "open"
	case SysClose:
		return "close"
	case SysRead:
		return "read"
	case SysWrite:
		return "write"
	case SysBrk:
		return "brk"
	case SysMmap:
		return "mmap"
	case SysTime:
		return "time"
	case SysUname:
		return "uname"
	case SysSocket:
		return "socket"
	default:
		return "unknown"
	}
}
