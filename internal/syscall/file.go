package syscall

import (
	"mazkernel/internal/hal"
	"mazkernel/internal/task"
	"mazkernel/internal/vfs"
)

// doOpen implements SysOpen: a1 is the user VA of a NUL-terminated
// path, a2 is the POSIX-shaped access-mode flags (spec §4.6).
func doOpen(caller task.PID, pathVA hal.VAddr, flags int64) int64 {
	p := task.Get(caller)
	if p == nil {
		return int64(ESRCH)
	}
	path, err := CopyInString(p.AddressSpace(), pathVA)
	if err != nil {
		return int64(errnoFor(err))
	}
	fd, err := p.OpenFD(path, vfs.OpenFlag(flags))
	if err != nil {
		return int64(errnoFor(err))
	}
	return int64(fd)
}

// doClose implements SysClose.
func doClose(caller task.PID, fd int64) int64 {
	p := task.Get(caller)
	if p == nil {
		return int64(ESRCH)
	}
	if err := p.CloseFD(int(fd)); err != nil {
		return int64(errnoFor(err))
	}
	return 0
}

// doRead implements SysRead: a2/a3 are the user buffer's VA and length.
// The underlying vfs.File.Read is called directly into a kernel-side
// scratch buffer, then copied out to the caller's address space — there
// is no way to hand a *vfs.File implementation a raw user pointer
// without it knowing about page tables, so the copy-out step is always
// interposed, the same discipline a real kernel's copy_to_user enforces.
func doRead(caller task.PID, fd int64, bufVA hal.VAddr, n int64) int64 {
	p := task.Get(caller)
	if p == nil {
		return int64(ESRCH)
	}
	if n < 0 {
		return int64(EINVAL)
	}
	scratch := make([]byte, n)
	got, err := p.ReadFD(int(fd), scratch)
	if err != nil {
		return int64(errnoFor(err))
	}
	if got > 0 {
		if err := CopyOutBytes(p.AddressSpace(), bufVA, scratch[:got]); err != nil {
			return int64(errnoFor(err))
		}
	}
	return int64(got)
}

// doWrite implements SysWrite: copies n bytes in from the caller's
// address space before handing them to the fd's vfs.File.Write.
func doWrite(caller task.PID, fd int64, bufVA hal.VAddr, n int64) int64 {
	p := task.Get(caller)
	if p == nil {
		return int64(ESRCH)
	}
	if n < 0 {
		return int64(EINVAL)
	}
	data, err := CopyInBytes(p.AddressSpace(), bufVA, int(n))
	if err != nil {
		return int64(errnoFor(err))
	}
	written, err := p.WriteFD(int(fd), data)
	if err != nil {
		return int64(errnoFor(err))
	}
	return int64(written)
}
