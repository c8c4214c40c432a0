// Package task implements the PCB table and cooperative-with-timer
// round-robin scheduler (spec §4.5), and the process-lifecycle syscalls
// layered on top of it: fork, execve, exit, waitpid, kill (spec §4.5,
// §5 ordering rules). internal/hal's Context and internal/paging's
// AddressSpace are the two pieces of per-task state this package does
// not itself define; everything else (lifecycle state, ready queue,
// fd table, heap bookkeeping) lives here.
package task

import (
	"errors"
	"sync"

	"mazkernel/internal/hal"
	"mazkernel/internal/paging"
	"mazkernel/internal/vfs"
)

// MaxTasks bounds the fixed PCB table (spec §3: "typically 64-256").
const MaxTasks = 128

// MaxFDs bounds a task's file-descriptor table.
const MaxFDs = 32

// State is a PCB's lifecycle state (spec §4.5's state diagram).
type State int

const (
	Unused  State = iota
	Created       // task_alloc'd but not yet ready_queue_add'd
	Ready
	Running
	Sleeping
	Zombie
	Terminated
)

func (s State) String() string {
	switch s {
	case Unused:
		return "UNUSED"
	case Created:
		return "CREATED"
	case Ready:
		return "READY"
	case Running:
		return "RUNNING"
	case Sleeping:
		return "SLEEPING"
	case Zombie:
		return "ZOMBIE"
	case Terminated:
		return "TERMINATED"
	default:
		return "?"
	}
}

// PID identifies a task across its lifetime: slot index plus a
// generation counter, so a reused slot never collides with a stale
// reference (spec §3).
type PID struct {
	slot int
	gen  uint32
}

// Nil is never a valid PID.
var Nil PID

func (p PID) Valid() bool { return p != Nil }

// Raw packs PID into a single word for callers (the syscall layer) that
// need to hand a PID across the syscall ABI as an ordinary integer:
// slot in the low 32 bits, generation in the high 32 bits, so two PIDs
// that reused the same slot never compare equal once packed.
func (p PID) Raw() uint64 { return uint64(uint32(p.slot)) | uint64(p.gen)<<32 }

// PIDFromRaw unpacks a word produced by Raw back into a PID. A raw value
// of 0 (Nil.Raw()) always unpacks to Nil, matching "no PID"/"any child"
// in the waitpid and kill syscalls.
func PIDFromRaw(raw uint64) PID {
	if raw == 0 {
		return Nil
	}
	return PID{slot: int(uint32(raw)), gen: uint32(raw >> 32)}
}

// openFile is a shared, refcounted open-file description: fork and dup
// both produce additional references to the same underlying vfs.File,
// matching "fork increments the open-file refcounts" (spec §4.6).
type openFile struct {
	mu   sync.Mutex
	file vfs.File
	refs int
}

// fdTable is a fixed-size, per-task file-descriptor table.
type fdTable [MaxFDs]*openFile

// PCB is one process-control-block slot (spec §3).
type PCB struct {
	state State
	pid   PID
	ppid  PID

	space  *paging.AddressSpace
	ctx    hal.Context
	kstack uintptr

	fds fdTable
	cwd string

	heapStart, heapEnd, heapMax hal.VAddr

	exitCode     int
	exitSignaled bool
	exitSignal   int

	priority       int
	timeSlice      int
	sleepRemaining int
	name           string
}

const defaultTimeSlice = 10 // scheduler ticks per dispatch

var (
	mu         sync.Mutex
	table      [MaxTasks]PCB
	gens       [MaxTasks]uint32
	readyQ     []PID
	runningAt  int     = -1 // slot index of the RUNNING task, -1 if none
	nextKStack uintptr = 0xFFFF800010000000
)

// kernelStackSize is the fixed per-task kernel stack size.
const kernelStackSize = 16 * 1024

// allocKernelStackLocked hands out the next slab of the kernel stack
// region. There is no real guard-page/unmap-on-exit bookkeeping here: the
// region is carved from a fixed virtual range, never reused, since this
// module never runs long enough on host to exhaust it.
func allocKernelStackLocked() uintptr {
	top := nextKStack + kernelStackSize
	nextKStack = top
	return top
}

var (
	ErrNoMemory        = errors.New("task: out of memory")
	ErrNoSlots         = errors.New("task: no free PCB slots")
	ErrNotUser         = errors.New("task: operation requires a user task")
	ErrNoSuchTask      = errors.New("task: no such task")
	ErrNoSuchChild     = errors.New("task: no such child")
	ErrWouldBlock      = errors.New("task: would block")
	ErrTooManyFDs      = errors.New("task: file-descriptor table full")
	ErrBadFD           = errors.New("task: bad file descriptor")
	ErrInvalidArgument = errors.New("task: invalid argument")
)

// pcbLocked returns the slot for pid if it is still live (matching generation
// and not UNUSED); nil otherwise.
func pcbLocked(pid PID) *PCB {
	if pid.slot < 0 || pid.slot >= MaxTasks {
		return nil
	}
	p := &table[pid.slot]
	if p.state == Unused || gens[pid.slot] != pid.gen {
		return nil
	}
	return p
}

// Self returns the PID of the slot. PCB fields are not exposed directly;
// callers change a task's state through the package's own operations
// (Exit, Kill, Waitpid, ...).
func (p *PCB) Self() PID { return p.pid }

// Parent returns the PID of p's parent, or Nil if p was orphaned.
func (p *PCB) Parent() PID { return p.ppid }

func (p *PCB) State() State                       { return p.state }
func (p *PCB) ExitCode() int                      { return p.exitCode }
func (p *PCB) ExitSignaled() bool                 { return p.exitSignaled }
func (p *PCB) Name() string                       { return p.name }
func (p *PCB) Context() *hal.Context              { return &p.ctx }
func (p *PCB) AddressSpace() *paging.AddressSpace { return p.space }
