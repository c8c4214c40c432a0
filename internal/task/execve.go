package task

import (
	"path"

	"mazkernel/internal/hal"
	"mazkernel/internal/paging"
	"mazkernel/internal/pmm"
	"mazkernel/internal/vfs"
)

// userStackTop is the fixed initial stack pointer handed to every freshly
// exec'd image (spec §6's higher-half split leaves the low canonical
// range free for this).
const userStackTop = 0x0000_7FFF_FFFF_F000

// userStackPages is how many pages of stack execve maps before jumping
// to the new entry point.
const userStackPages = 16

// Execve implements sys_execve (spec §4.5): replace the caller's user
// image in place without damaging it on failure. Every step through
// "load known successful" only touches the fresh address space; only
// after that point does it mutate the caller's live PCB/context.
func Execve(caller PID, pathname string) error {
	p := Get(caller)
	if p == nil {
		return ErrNoSuchTask
	}

	f, err := vfs.Open(pathname, vfs.ORdOnly)
	if err != nil {
		return err
	}
	data, err := readAll(f)
	f.Close()
	if err != nil {
		return err
	}

	freshSpace, err := paging.CreateSpace()
	if err != nil {
		return err
	}
	entry, err := loadELFInto(freshSpace, data)
	if err != nil {
		paging.DestroySpace(freshSpace)
		return err
	}
	if err := mapUserStack(freshSpace); err != nil {
		paging.DestroySpace(freshSpace)
		return err
	}

	// Load succeeded: from here on we commit. Switch first, then free
	// the old space (spec §5: "the old address space is freed strictly
	// after the new one is live").
	mu.Lock()
	oldSpace := p.space
	p.space = freshSpace
	p.name = path.Base(pathname)
	p.heapStart, p.heapEnd, p.heapMax = 0, 0, 0
	mu.Unlock()

	paging.DestroySpace(oldSpace)

	if err := p.EnsureStdio(); err != nil {
		return err
	}

	// Rewrite the trap frame so the privileged return lands on the new
	// entry point and stack, not an ordinary return to the syscall PC.
	p.ctx.SetAddressSpace(freshSpace.Handle())
	p.ctx.SetEntryPC(uintptr(entry))
	p.ctx.SetUserSP(userStackTop)
	return nil
}

func mapUserStack(space *paging.AddressSpace) error {
	base := hal.VAddr(userStackTop - userStackPages*hal.PageSize)
	for i := 0; i < userStackPages; i++ {
		pa, ok := pmm.AllocFrame()
		if !ok {
			return ErrNoMemory
		}
		va := base + hal.VAddr(i*hal.PageSize)
		if err := paging.MapPage(space, va, pa, hal.FlagPresent|hal.FlagWrite|hal.FlagUser); err != nil {
			return err
		}
	}
	return nil
}

func readAll(f vfs.File) ([]byte, error) {
	var out []byte
	buf := make([]byte, 4096)
	for {
		n, err := f.Read(buf)
		if n > 0 {
			out = append(out, buf[:n]...)
		}
		if err != nil {
			return out, nil // EOF-shaped: vfs.File read-to-completion returns (0, nil) at EOF
		}
		if n == 0 {
			return out, nil
		}
	}
}
