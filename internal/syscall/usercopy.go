package syscall

import (
	"mazkernel/internal/hal"
	"mazkernel/internal/paging"
)

// maxCopyString bounds how far CopyInString walks looking for a NUL
// terminator, a defensive cap against a malformed pointer turning into
// an unbounded walk (there is no page-fault-on-unmapped signal to stop
// on other than QueryPage returning false, which already does stop the
// walk — this is a second, generous belt-and-suspenders bound).
const maxCopyString = 4096

// CopyInString reads a NUL-terminated string out of space's user memory
// starting at va, the copy_from_user(2) analog sys_execve/sys_open need
// to turn a syscall's pointer argument into a Go string. There is no
// identity/direct map to dereference through on real hardware (spec
// §4.1); here the simulated per-frame backing store stands in, walked
// one page at a time via QueryPage, the same portability shim
// internal/paging's tests already rely on.
func CopyInString(space *paging.AddressSpace, va hal.VAddr) (string, error) {
	var out []byte
	for len(out) < maxCopyString {
		pageVA := va &^ (hal.PageSize - 1)
		off := int(va - pageVA)
		pa, flags, ok := paging.QueryPage(space, pageVA)
		if !ok || !flags.Has(hal.FlagUser) {
			return "", ErrFault
		}
		chunk := paging.ReadFrame(pa, off, hal.PageSize-off)
		for _, b := range chunk {
			if b == 0 {
				return string(out), nil
			}
			out = append(out, b)
			va++
		}
	}
	return "", ErrFault
}

// CopyInBytes reads n bytes out of space's user memory starting at va.
func CopyInBytes(space *paging.AddressSpace, va hal.VAddr, n int) ([]byte, error) {
	out := make([]byte, 0, n)
	for len(out) < n {
		pageVA := va &^ (hal.PageSize - 1)
		off := int(va - pageVA)
		pa, flags, ok := paging.QueryPage(space, pageVA)
		if !ok || !flags.Has(hal.FlagUser) {
			return nil, ErrFault
		}
		want := n - len(out)
		avail := hal.PageSize - off
		if want > avail {
			want = avail
		}
		out = append(out, paging.ReadFrame(pa, off, want)...)
		va += hal.VAddr(want)
	}
	return out, nil
}

// CopyOutBytes writes data into space's user memory starting at va, the
// copy_to_user(2) analog sys_read needs to land data read from a file
// back into the caller's buffer. A COW page (shared since a fork) is made
// writable through paging.HandleWriteFault first, as a user write would.
func CopyOutBytes(space *paging.AddressSpace, va hal.VAddr, data []byte) error {
	for len(data) > 0 {
		pageVA := va &^ (hal.PageSize - 1)
		off := int(va - pageVA)
		pa, flags, ok := paging.QueryPage(space, pageVA)
		if ok && flags.Has(hal.FlagUser) && flags.Has(hal.FlagCOW) && !flags.Has(hal.FlagWrite) {
			if err := paging.HandleWriteFault(space, pageVA); err != nil {
				return ErrFault
			}
			pa, flags, ok = paging.QueryPage(space, pageVA)
		}
		if !ok || !flags.Has(hal.FlagUser) || !flags.Has(hal.FlagWrite) {
			return ErrFault
		}
		n := hal.PageSize - off
		if n > len(data) {
			n = len(data)
		}
		paging.WriteFrame(pa, off, data[:n])
		data = data[n:]
		va += hal.VAddr(n)
	}
	return nil
}
