package uhci

import (
	"errors"

	"mazkernel/internal/hal"
)

// ErrPoolExhausted is returned when a TD or QH pool has no free entry left
// (spec §7 "resource exhaustion ... reported as a negative return ...
// never fatal").
var ErrPoolExhausted = errors.New("uhci: pool exhausted")

// link-pointer flag bits (low bits of a TD/QH link field).
const (
	linkTerminate = 1 << 0
	linkQH        = 1 << 1
	linkDepth     = 1 << 2
)

// ctrlStatus bits of a TD (actual-length lives in the high 11 bits on real
// hardware; here it is tracked directly in the software-scratch actual
// field instead of bit-packed, see td.actual).
const (
	tdActive      = 1 << 23
	tdStall       = 1 << 22
	tdDataBuffErr = 1 << 21
	tdBabble      = 1 << 20
	tdNAK         = 1 << 19
	tdBitstuff    = 1 << 18
	tdIOC         = 1 << 24
)

// td is a single 32-byte, 16-byte-aligned UHCI Transfer Descriptor (spec §6
// "UHCI TD layout: 32-byte, 16-byte-aligned: link(4) · ctrl_status(4) ·
// token(4) · buffer(4) · 16 bytes software scratch"). The four device-visible
// words are kept as plain fields since this kernel has no real DMA engine
// to read them off physical memory; pa records the precomputed physical
// address a real driver would program into a link pointer (spec §9 "TD/QH
// as indices into their pools ... precomputed physical addresses").
type td struct {
	link       uint32
	ctrlStatus uint32
	token      uint32
	buffer     uint32

	// software scratch
	pa     hal.PAddr
	data   []byte // OUT: bytes to write; IN: scratch to receive into
	dir    int
	actual int
	inUse  bool
}

// tdPool is a fixed-size free-listed pool of TDs (spec §4.7 "return TDs and
// QH to their pools"); free is a stack of free slot indices, and alloc
// takes the one at its end.
type tdPool struct {
	entries [tdPoolSize]td
	free    []int
}

func newTDPool() *tdPool {
	p := &tdPool{}
	for i := tdPoolSize - 1; i >= 0; i-- {
		p.free = append(p.free, i)
		// Precompute a stable fake physical address for this slot: a real
		// driver would derive it from the pool's own DMA allocation base.
		p.entries[i].pa = hal.PAddr(uhciTDPoolBase + uint64(i)*tdSlotStride)
	}
	return p
}

func (p *tdPool) alloc() (int, error) {
	if len(p.free) == 0 {
		return -1, ErrPoolExhausted
	}
	idx := p.free[len(p.free)-1]
	p.free = p.free[:len(p.free)-1]
	p.entries[idx] = td{pa: p.entries[idx].pa, inUse: true}
	return idx, nil
}

func (p *tdPool) release(idx int) {
	p.entries[idx] = td{pa: p.entries[idx].pa}
	p.free = append(p.free, idx)
}

func (p *tdPool) get(idx int) *td { return &p.entries[idx] }

// tdSlotStride/uhciTDPoolBase are arbitrary but fixed, 16-byte-aligned,
// matching the "32-byte, 16-byte-aligned" requirement from spec §6.
const (
	tdSlotStride   = 32
	uhciTDPoolBase = 0x9000_0000
)
