package uhci

import "mazkernel/internal/hal"

// qh is a UHCI Queue Head: 16 bytes device-visible (head link, element
// link) plus software scratch (spec §6 "QH layout"). As with td, the
// device-visible words are plain fields rather than a raw memory view,
// for the same "no real DMA engine underneath" reason given in td.go.
type qh struct {
	headLink    uint32
	elementLink uint32

	// software scratch
	pa    hal.PAddr
	tds   []int // pool indices of the TDs currently linked as this QH's element chain
	inUse bool
}

type qhPool struct {
	entries [qhPoolSize]qh
	free    []int
}

func newQHPool() *qhPool {
	p := &qhPool{}
	for i := qhPoolSize - 1; i >= 0; i-- {
		p.free = append(p.free, i)
		p.entries[i].pa = hal.PAddr(uhciQHPoolBase + uint64(i)*qhSlotStride)
	}
	return p
}

func (p *qhPool) alloc() (int, error) {
	if len(p.free) == 0 {
		return -1, ErrPoolExhausted
	}
	idx := p.free[len(p.free)-1]
	p.free = p.free[:len(p.free)-1]
	p.entries[idx] = qh{pa: p.entries[idx].pa, elementLink: linkTerminate, inUse: true}
	return idx, nil
}

func (p *qhPool) release(idx int) {
	p.entries[idx] = qh{pa: p.entries[idx].pa}
	p.free = append(p.free, idx)
}

func (p *qhPool) get(idx int) *qh { return &p.entries[idx] }

const (
	qhSlotStride   = 16
	uhciQHPoolBase = 0x9000_8000
)
