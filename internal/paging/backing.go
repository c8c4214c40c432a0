package paging

import (
	"encoding/binary"
	"sync"

	"mazkernel/internal/hal"
)

// backingStore simulates the byte contents of physical frames. On real
// hardware a page table's frame is addressed directly through the
// identity/direct map (spec §4.1); mazkernel has no freestanding target to
// establish that map against (the boot trampoline is out of scope per spec
// §1), so frame contents here live in ordinary Go-owned memory, keyed by
// PFN, the same portability trade-off internal/hal's Context makes for
// saved register state. Every externally observable page-table semantic —
// walk order, entry encoding, COW copy-on-write duplication — is identical
// to what a real identity-mapped read/write would produce.
var backingStore = struct {
	mu    sync.Mutex
	pages map[hal.PFN]*[hal.PageSize]byte
}{pages: make(map[hal.PFN]*[hal.PageSize]byte)}

func framePage(pfn hal.PFN) *[hal.PageSize]byte {
	backingStore.mu.Lock()
	defer backingStore.mu.Unlock()
	p, ok := backingStore.pages[pfn]
	if !ok {
		p = &[hal.PageSize]byte{}
		backingStore.pages[pfn] = p
	}
	return p
}

// pteAt reads the raw page-table entry at index idx within the table
// stored in frame pfn.
func pteAt(pfn hal.PFN, idx int, entrySize int) uint64 {
	page := framePage(pfn)
	off := idx * entrySize
	if entrySize == 4 {
		return uint64(binary.LittleEndian.Uint32(page[off : off+4]))
	}
	return binary.LittleEndian.Uint64(page[off : off+8])
}

// setPTEAt writes a raw page-table entry at index idx within frame pfn.
func setPTEAt(pfn hal.PFN, idx int, entrySize int, val uint64) {
	page := framePage(pfn)
	off := idx * entrySize
	if entrySize == 4 {
		binary.LittleEndian.PutUint32(page[off:off+4], uint32(val))
		return
	}
	binary.LittleEndian.PutUint64(page[off:off+8], val)
}

// zeroFrame clears an entire frame's backing bytes, matching the
// spec's "newly allocated page-table frames are zeroed" requirement.
func zeroFrame(pfn hal.PFN) {
	page := framePage(pfn)
	for i := range page {
		page[i] = 0
	}
}

// copyFrameContents duplicates src's bytes into dst, used by the COW fault
// handler when an exclusive copy must be made (spec §4.3).
func copyFrameContents(dst, src hal.PFN) {
	d := framePage(dst)
	s := framePage(src)
	*d = *s
}

// releaseFrame drops the backing store's simulated bytes for pfn. Safe to
// call on frames that were never materialized.
func releaseFrame(pfn hal.PFN) {
	backingStore.mu.Lock()
	defer backingStore.mu.Unlock()
	delete(backingStore.pages, pfn)
}

// WriteFrame copies data into frame pa's simulated backing bytes starting
// at offset, for callers (the ELF loader) that need to materialize
// content into a freshly mapped page. It is a thin, exported wrapper
// around the same backing store MapPage itself uses.
func WriteFrame(pa hal.PAddr, offset int, data []byte) {
	page := framePage(pa.PFN())
	copy(page[offset:], data)
}

// ReadFrame copies n bytes out of frame pa's simulated backing bytes
// starting at offset, the read-side counterpart to WriteFrame used by
// the syscall layer's user-memory copy-in/copy-out helpers.
func ReadFrame(pa hal.PAddr, offset int, n int) []byte {
	page := framePage(pa.PFN())
	out := make([]byte, n)
	copy(out, page[offset:])
	return out
}

// resetBackingStoreForTest discards every simulated frame. Test-only.
func resetBackingStoreForTest() {
	backingStore.mu.Lock()
	defer backingStore.mu.Unlock()
	backingStore.pages = make(map[hal.PFN]*[hal.PageSize]byte)
}
