package task

import (
	"mazkernel/internal/hal"
	"mazkernel/internal/paging"
	"mazkernel/internal/vfs"
)

var (
	kernelSpace     *paging.AddressSpace
	kernelSpaceOnce bool
)

// sharedKernelSpace lazily creates the one address space every
// kernel-thread PCB shares (there is no user/kernel split to enforce
// between kernel threads themselves).
func sharedKernelSpace() (*paging.AddressSpace, error) {
	mu.Lock()
	defer mu.Unlock()
	if !kernelSpaceOnce {
		s, err := paging.CreateSpace()
		if err != nil {
			return nil, err
		}
		kernelSpace = s
		kernelSpaceOnce = true
	}
	return kernelSpace, nil
}

// SpawnKernelThread creates and readies a kernel-mode task running fn to
// completion (then task_exit(0), per the trampoline contract in
// internal/hal's Context).
func SpawnKernelThread(name string, fn func()) (PID, error) {
	space, err := sharedKernelSpace()
	if err != nil {
		return Nil, err
	}
	handle := hal.RegisterEntry(fn)
	pid, _, err := alloc(name, space, false, handle, allocKernelStackForNewThread(), Nil)
	if err != nil {
		return Nil, err
	}
	if err := AddReady(pid); err != nil {
		return Nil, err
	}
	return pid, nil
}

func allocKernelStackForNewThread() uintptr {
	mu.Lock()
	defer mu.Unlock()
	return allocKernelStackLocked()
}

// SpawnUserFromPath creates a fresh user task by loading pathname as an
// ELF64 executable into a brand-new address space — the initial-process
// counterpart to Execve, used for the first user program the kernel
// starts at boot (spec §2's data-flow: HAL -> PMM -> paging -> scheduler
// -> first user task).
func SpawnUserFromPath(name, pathname string, parent PID) (PID, error) {
	f, err := vfs.Open(pathname, vfs.ORdOnly)
	if err != nil {
		return Nil, err
	}
	data, err := readAll(f)
	f.Close()
	if err != nil {
		return Nil, err
	}

	space, err := paging.CreateSpace()
	if err != nil {
		return Nil, err
	}
	entry, err := loadELFInto(space, data)
	if err != nil {
		paging.DestroySpace(space)
		return Nil, err
	}
	if err := mapUserStack(space); err != nil {
		paging.DestroySpace(space)
		return Nil, err
	}

	pid, p, err := alloc(name, space, true, uintptr(entry), userStackTop, parent)
	if err != nil {
		paging.DestroySpace(space)
		return Nil, err
	}
	if err := p.EnsureStdio(); err != nil {
		return Nil, err
	}
	if err := AddReady(pid); err != nil {
		return Nil, err
	}
	return pid, nil
}
