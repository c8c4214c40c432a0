package task

import (
	"mazkernel/internal/hal"
	"mazkernel/internal/paging"
	"mazkernel/internal/pmm"
)

// heapBase is where a freshly exec'd image's heap starts growing from.
// Real placement belongs to the ELF loader (end of the highest loaded
// segment); mazkernel fixes it instead, since the minimal loader in
// elf.go does not track segment extents beyond what it has already
// mapped.
const heapBase = 0x0000_0000_0040_0000

// Brk implements sys_brk: grow or shrink the caller's heap to addr,
// mapping or unmapping whole pages as the break crosses page boundaries,
// and returns the resulting break. addr == 0 queries the current break
// without changing it (the POSIX brk(2) convention the syscall number's
// comment in spec §6 assumes).
func (p *PCB) Brk(addr hal.VAddr) (hal.VAddr, error) {
	mu.Lock()
	if p.heapStart == 0 {
		p.heapStart = heapBase
		p.heapEnd = heapBase
		p.heapMax = heapBase
	}
	space := p.space
	cur := p.heapEnd
	mu.Unlock()

	if addr == 0 || addr == cur {
		return cur, nil
	}

	curPage := pageAlign(cur)
	wantPage := pageAlign(addr)

	if addr > cur {
		for va := curPage; va < wantPage; va += hal.PageSize {
			pa, ok := pmm.AllocFrame()
			if !ok {
				return cur, ErrNoMemory
			}
			if err := paging.MapPage(space, va, pa, hal.FlagPresent|hal.FlagWrite|hal.FlagUser); err != nil {
				pmm.FreeFrame(pa)
				return cur, err
			}
		}
	} else {
		for va := wantPage; va < curPage; va += hal.PageSize {
			// UnmapPage drops the mapping's frame reference itself.
			paging.UnmapPage(space, va)
		}
	}

	mu.Lock()
	p.heapEnd = addr
	if addr > p.heapMax {
		p.heapMax = addr
	}
	mu.Unlock()
	return addr, nil
}

func pageAlign(v hal.VAddr) hal.VAddr {
	return (v + hal.PageSize - 1) &^ (hal.PageSize - 1)
}

// Mmap implements a minimal anonymous sys_mmap: length bytes of
// zero-filled, present/write/user pages starting immediately above the
// caller's current heap break, advancing the break past the mapping.
// There is no file-backed mapping, no separate VMA list and no munmap in
// scope — spec §6 lists SYS_MMAP's number without specifying semantics
// beyond "memory" domain, and nothing downstream of execve needs more
// than bump-allocated anonymous pages.
func (p *PCB) Mmap(length int) (hal.VAddr, error) {
	if length <= 0 {
		return 0, ErrInvalidArgument
	}
	mu.Lock()
	base := p.heapEnd
	if base == 0 {
		base = heapBase
	}
	mu.Unlock()

	end := base + hal.VAddr(length)
	if _, err := p.Brk(end); err != nil {
		return 0, err
	}
	return base, nil
}
