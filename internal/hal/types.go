// Package hal is the hardware abstraction layer: the only package in
// mazkernel allowed to know instruction encodings, privilege-level
// structures, register names, or MMIO bit positions (spec §4.1). Every
// other package talks to hardware only through this contract.
//
// Architectural divergence is resolved at build time, not through runtime
// polymorphism: hal.go carries the architecture-neutral contract and
// hal_386.go / hal_amd64.go / hal_arm64.go each provide one monomorphic
// implementation, selected by Go's standard per-GOARCH file-suffix
// convention — the same "one build per arch, no vtable" discipline the
// spec calls for in §9.
package hal

import "fmt"

// PAddr is a physical address. Distinct from VAddr even though both are
// 64-bit words regardless of host pointer width (spec §3).
type PAddr uint64

// VAddr is a virtual address.
type VAddr uint64

// PFN is a physical frame number: PAddr == PFN * PageSize.
type PFN uint64

// PageSize is the base page size on every supported architecture.
const PageSize = 4096

// PFN returns the frame number containing p.
func (p PAddr) PFN() PFN { return PFN(p / PageSize) }

// PAddr returns the physical address of the start of frame f.
func (f PFN) PAddr() PAddr { return PAddr(f) * PageSize }

// Aligned reports whether p is frame-aligned.
func (p PAddr) Aligned() bool { return p%PageSize == 0 }

func (p PAddr) String() string { return fmt.Sprintf("0x%016x", uint64(p)) }
func (v VAddr) String() string { return fmt.Sprintf("0x%016x", uint64(v)) }

// AddressSpace is an opaque handle identifying a top-level page-table root
// (CR3 on x86, TTBR0 on ARM64). Exactly one is "current" per CPU.
type AddressSpace uintptr

// NoAddressSpace is the zero value, never a valid handle.
const NoAddressSpace AddressSpace = 0

// Flags is the unified, architecture-neutral page-table-entry flag set from
// spec §3/§4.3: PRESENT, WRITE, USER, NOCACHE, ACCESSED, DIRTY, COW, EXEC.
// Each architecture's hal_<arch>.go maps this to its native bit layout;
// bits an architecture cannot represent (EXEC on i686) are silently
// satisfied by present/writable semantics there.
type Flags uint8

const (
	FlagPresent Flags = 1 << iota
	FlagWrite
	FlagUser
	FlagNoCache
	FlagAccessed
	FlagDirty
	FlagCOW
	FlagExec
)

func (f Flags) Has(bit Flags) bool      { return f&bit != 0 }
func (f Flags) With(bit Flags) Flags    { return f | bit }
func (f Flags) Without(bit Flags) Flags { return f &^ bit }

func (f Flags) String() string {
	s := ""
	for _, b := range []struct {
		bit Flags
		ch  byte
	}{
		{FlagPresent, 'P'}, {FlagWrite, 'W'}, {FlagUser, 'U'}, {FlagNoCache, 'N'},
		{FlagAccessed, 'A'}, {FlagDirty, 'D'}, {FlagCOW, 'C'}, {FlagExec, 'X'},
	} {
		if f.Has(b.bit) {
			s += string(b.ch)
		} else {
			s += "-"
		}
	}
	return s
}
