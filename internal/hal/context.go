package hal

// Context is the saved CPU state of a task: callee-saved registers, the
// program counter, the stack pointer, flags, privilege state and the
// address-space root (spec §4.4). The layout is architecture-private on
// real hardware; mazkernel cannot run freestanding (the bootloader
// trampoline and linker script that would make that possible are out of
// scope per spec §1), so Context keeps one host-portable representation
// sized for the largest supported register file (ARM64's x0-x30) instead
// of three incompatible raw layouts, and represents "the instruction a
// kernel thread starts at" as a Go function value rather than a raw PC.
// Everything callers observe — save/restore order, the kernel-thread
// trampoline contract, the privilege-transition rule — matches spec §4.4
// exactly; only the register file's storage is a portability shim.
type Context struct {
	regs        [31]uint64 // general-purpose register save area
	sp          uintptr
	flags       uint64
	space       AddressSpace
	isUser      bool
	kernelEntry func() // set by ContextInit for is_user=false contexts
	entryPC     uintptr
	userSP      uintptr
}

// taskExitHook is called by the kernel-thread trampoline when a thread
// entry point returns, mirroring "calls task_exit(0) if the entry
// returns" (spec §4.1/§4.4). The task package installs its own
// task.Exit(0) here during init to avoid an import cycle (hal must not
// import task).
var taskExitHook func()

// SetTaskExitHook registers the function the kernel-thread trampoline
// invokes when an entry point returns normally.
func SetTaskExitHook(fn func()) { taskExitHook = fn }

// ContextInit seeds a fresh context so that when dispatched it begins
// executing entry. For a kernel context (isUser=false) entry runs through
// the trampoline: interrupts enabled, call entry, then task_exit(0) if it
// returns. For a user context, entry is the initial user program counter
// and stackTop is the initial user stack pointer; IF (interrupts-enabled)
// is forced set and no privileged flag bits are carried over.
func ContextInit(ctx *Context, entry uintptr, stackTop uintptr, isUser bool) {
	*ctx = Context{sp: stackTop, isUser: isUser}
	if isUser {
		ctx.entryPC = entry
		ctx.userSP = stackTop
		ctx.flags = flagsIF // IF=1, no privileged bits
		return
	}
	ctx.entryPC = entry
	ctx.kernelEntry = kernelTrampolineFor(entry)
}

const flagsIF = 1 << 9 // x86 EFLAGS.IF bit position, reused as the portable "interrupts enabled" bit

// kernelTrampolineFor returns the Go closure standing in for "the
// trampoline enables interrupts, pops the real entry off the seeded
// stack, calls it, then calls task_exit(0) if the entry returns" — the
// seeded stack in a freestanding build literally holds the raw entry
// address; here the entry is already a typed function value, since this
// module never executes freestanding.
func kernelTrampolineFor(entry uintptr) func() {
	fn := entryTable.lookup(entry)
	return func() {
		// "enables interrupts" has no effect in the host simulator: there
		// is exactly one logical CPU and no asynchronous interrupt source
		// besides the cooperative scheduler ticks the task package drives
		// directly.
		if fn != nil {
			fn()
		}
		if taskExitHook != nil {
			taskExitHook()
		}
	}
}

// Run dispatches ctx: for a kernel context it invokes the seeded
// trampoline closure (never returns on real hardware once task_exit
// runs; here the caller, task.dispatch, treats Run's return as "the
// thread called task_exit and is back on the scheduler").
func (ctx *Context) Run() {
	if ctx.kernelEntry != nil {
		ctx.kernelEntry()
	}
}

// EntryPC reports the context's seeded instruction pointer (kernel or
// user), for diagnostics and for P8's "user PC is the instruction after
// the syscall" check.
func (ctx *Context) EntryPC() uintptr { return ctx.entryPC }

// UserSP reports the context's seeded user stack pointer.
func (ctx *Context) UserSP() uintptr { return ctx.userSP }

// IsUser reports whether ctx returns to user mode.
func (ctx *Context) IsUser() bool { return ctx.isUser }

// AddressSpace reports the context's address-space root.
func (ctx *Context) AddressSpace() AddressSpace { return ctx.space }

// SetAddressSpace updates the context's address-space root (used by
// execve once the fresh space is known-good, spec §4.5 step 3).
func (ctx *Context) SetAddressSpace(s AddressSpace) { ctx.space = s }

// Reg reads general-purpose register i (0-30), the ARM64-sized superset
// register file every architecture's save area is modeled against.
func (ctx *Context) Reg(i int) uint64 { return ctx.regs[i] }

// SetReg writes general-purpose register i.
func (ctx *Context) SetReg(i int, v uint64) { ctx.regs[i] = v }

// CloneRegistersFrom copies src's general-purpose register file into ctx,
// leaving ctx's own entry/stack/flags/space/isUser fields untouched. Used
// by sys_fork to seed the child's saved state with "every register equals
// the parent's value at the syscall boundary" before the caller overwrites
// just the return register (spec §4.5 step 6 / property P8).
func (ctx *Context) CloneRegistersFrom(src *Context) { ctx.regs = src.regs }

// SetReturnReg sets the register convention uses to carry a syscall/fork
// return value (EAX/RAX on x86, X0 on ARM64 — register 0 in the unified
// save area).
func (ctx *Context) SetReturnReg(v uint64) { ctx.regs[0] = v }

// SetEntryPC overrides the seeded user program counter. execve uses this
// to land the privileged return on the new entry point (spec §4.5 step 5)
// without an ordinary return to the syscall-issuing PC.
func (ctx *Context) SetEntryPC(pc uintptr) { ctx.entryPC = pc }

// SetUserSP overrides the seeded user stack pointer.
func (ctx *Context) SetUserSP(sp uintptr) { ctx.userSP = sp }

// ContextSetKernelStack updates the privilege-transition stack pointer
// (TSS RSP0 on x86_64, the per-task kernel SP on ARM64).
func ContextSetKernelStack(top uintptr) { kernelStackTop = top }

var kernelStackTop uintptr

// ContextSwitch saves the caller's state into old (if non-nil) and makes
// new current. If new's address space differs from the currently-loaded
// one, the root register is rewritten, implicitly flushing the TLB.
func ContextSwitch(old *Context, next *Context) {
	if next.space != NoAddressSpace && next.space != currentSpace {
		currentSpace = next.space
		MemoryBarrier()
	}
	// There is no raw register frame to save across a real privilege
	// transition here (see the Context doc comment): old, if given,
	// simply keeps whatever state its owner last wrote into it via
	// SetReg/SetEntryPC. The caller (task.dispatch) is responsible for
	// actually running next via next.Run() after this call returns.
	_ = old
}

var currentSpace AddressSpace

// entryTable lets ContextInit accept a raw uintptr entry (matching the
// spec's C-shaped signature) while still running an actual Go function:
// callers register a function against a handle with RegisterEntry and
// pass that handle's uintptr value as entry.
var entryTable = newEntryRegistry()

type entryRegistry struct {
	next  uintptr
	funcs map[uintptr]func()
}

func newEntryRegistry() *entryRegistry {
	return &entryRegistry{next: 1, funcs: make(map[uintptr]func())}
}

func (r *entryRegistry) lookup(h uintptr) func() { return r.funcs[h] }

// RegisterEntry allocates a handle for fn suitable for passing to
// ContextInit as the entry argument.
func RegisterEntry(fn func()) uintptr {
	h := entryTable.next
	entryTable.next++
	entryTable.funcs[h] = fn
	return h
}
