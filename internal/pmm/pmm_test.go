package pmm

import (
	"testing"
	"testing/quick"

	"mazkernel/internal/hal"
)

// testInit resets the package-level allocator to a clean N-frame identity
// map with no reservations, for test isolation (the teacher's tests reset
// global kernel state the same way between cases).
func testInit(t *testing.T, frames uint64) {
	t.Helper()
	length := frames * hal.PageSize
	err := Init([]Region{{Start: 0, Length: length, Kind: Available}}, 0, nil)
	if err != nil {
		t.Fatalf("Init() = %v", err)
	}
}

// TestAllocFrameIsUniqueAndAligned is property P1: for any sequence of
// alloc_frame calls without intervening free_frame, every returned PA is
// non-zero, 4 KiB-aligned, and distinct from all others returned so far.
func TestAllocFrameIsUniqueAndAligned(t *testing.T) {
	testInit(t, 64)

	seen := make(map[hal.PAddr]bool)
	for i := 0; i < 64; i++ {
		pa, ok := AllocFrame()
		if !ok {
			t.Fatalf("AllocFrame() failed on iteration %d", i)
		}
		if pa == 0 {
			t.Fatal("AllocFrame() returned the zero address")
		}
		if !pa.Aligned() {
			t.Fatalf("AllocFrame() = %s, not 4 KiB aligned", pa)
		}
		if seen[pa] {
			t.Fatalf("AllocFrame() returned duplicate %s", pa)
		}
		seen[pa] = true
		if got := FrameGetRefcount(pa); got != 1 {
			t.Errorf("FrameGetRefcount(%s) = %d, want 1", pa, got)
		}
	}

	if _, ok := AllocFrame(); ok {
		t.Fatal("AllocFrame() succeeded after exhaustion")
	}
}

// TestFreeFrameIsIdempotentUnderRefcount is property P4: freeing a frame
// whose refcount is >1 only decrements; the bit stays set until the count
// reaches zero.
func TestFreeFrameIsIdempotentUnderRefcount(t *testing.T) {
	testInit(t, 8)

	pa, ok := AllocFrame()
	if !ok {
		t.Fatal("AllocFrame() failed")
	}
	FrameRefInc(pa) // refcount now 2

	FreeFrame(pa)
	if got := FrameGetRefcount(pa); got != 1 {
		t.Fatalf("FrameGetRefcount() = %d after one free at refcount 2, want 1", got)
	}
	if !VerifyConsistency() {
		t.Fatal("VerifyConsistency() failed while refcount was still 1")
	}

	FreeFrame(pa)
	if got := FrameGetRefcount(pa); got != 0 {
		t.Fatalf("FrameGetRefcount() = %d after second free, want 0", got)
	}
}

func TestAllocFramesContiguous(t *testing.T) {
	testInit(t, 32)

	pa, ok := AllocFrames(4)
	if !ok {
		t.Fatal("AllocFrames(4) failed")
	}
	for i := 0; i < 4; i++ {
		frame := pa + hal.PAddr(i)*hal.PageSize
		if got := FrameGetRefcount(frame); got != 1 {
			t.Errorf("frame %d refcount = %d, want 1", i, got)
		}
	}
}

func TestAllocHugePageIsAligned(t *testing.T) {
	testInit(t, framesPerHugePage*3)

	pa, ok := AllocHugePage()
	if !ok {
		t.Fatal("AllocHugePage() failed")
	}
	if uint64(pa)%hal.HugePageSize != 0 {
		t.Errorf("AllocHugePage() = %s, not 2 MiB aligned", pa)
	}
}

// TestZoneRestrictedAllocationStaysInZone checks zone-scoped allocation
// (not one of the numbered properties, but load-bearing for DMA-capable
// device drivers that can only address low memory).
func TestZoneRestrictedAllocationStaysInZone(t *testing.T) {
	testInit(t, (32*1024*1024)/hal.PageSize) // 32 MiB: spans DMA and NORMAL

	for i := 0; i < 100; i++ {
		pa, ok := AllocFrameZone(ZoneDMA)
		if !ok {
			t.Fatal("AllocFrameZone(ZoneDMA) failed before DMA zone exhausted")
		}
		if ZoneOf(pa) != ZoneDMA {
			t.Fatalf("AllocFrameZone(ZoneDMA) = %s, zone %s", pa, ZoneOf(pa))
		}
	}
}

// TestProtectedFrameNeverAllocatedOrFreed checks the protected-frame list
// (not one of the numbered properties): a protected frame must survive
// free_frame calls until explicitly unprotected.
func TestProtectedFrameNeverAllocatedOrFreed(t *testing.T) {
	testInit(t, 16)

	pa, ok := AllocFrame()
	if !ok {
		t.Fatal("AllocFrame() failed")
	}
	if err := ProtectFrame(pa); err != nil {
		t.Fatalf("ProtectFrame() = %v", err)
	}
	if !IsFrameProtected(pa) {
		t.Fatal("IsFrameProtected() = false after ProtectFrame()")
	}

	FreeFrame(pa)
	if got := FrameGetRefcount(pa); got == 0 {
		t.Fatal("protected frame was freed")
	}

	UnprotectFrame(pa)
	FreeFrame(pa)
	if got := FrameGetRefcount(pa); got != 0 {
		t.Fatalf("FrameGetRefcount() = %d after unprotect+free, want 0", got)
	}
}

// TestAllocFreeRoundTripLeavesFreeCountUnchanged is property P2: N
// consecutive alloc_frame calls followed by free_frame of each of the N
// returned frames leaves the free-frame count exactly as it started.
func TestAllocFreeRoundTripLeavesFreeCountUnchanged(t *testing.T) {
	testInit(t, 64)
	before := GetInfo().FreeFrames

	const n = 20
	frames := make([]hal.PAddr, 0, n)
	for i := 0; i < n; i++ {
		pa, ok := AllocFrame()
		if !ok {
			t.Fatalf("AllocFrame() failed at i=%d", i)
		}
		frames = append(frames, pa)
	}
	for _, pa := range frames {
		FreeFrame(pa)
	}

	if got := GetInfo().FreeFrames; got != before {
		t.Fatalf("FreeFrames after round trip = %d, want %d", got, before)
	}
}

// TestRefcountReflectsIncDecBalance is property P3: after n FrameRefInc
// calls and m FrameRefDec calls on a freshly allocated frame (which starts
// at refcount 1), FrameGetRefcount reports 1+n-m.
func TestRefcountReflectsIncDecBalance(t *testing.T) {
	testInit(t, 8)

	pa, ok := AllocFrame()
	if !ok {
		t.Fatal("AllocFrame() failed")
	}

	const n, m = 5, 2
	for i := 0; i < n; i++ {
		FrameRefInc(pa)
	}
	for i := 0; i < m; i++ {
		FrameRefDec(pa)
	}

	if got, want := FrameGetRefcount(pa), uint16(1+n-m); got != want {
		t.Fatalf("FrameGetRefcount() = %d, want %d", got, want)
	}
}

// TestBitmapRefcountAgreement is a general consistency fuzzer (not one of
// the numbered properties): the bitmap bit for a frame and its refcount
// must never fall out of sync after any sequence of alloc/free/refinc/
// refdec operations.
func TestBitmapRefcountAgreement(t *testing.T) {
	testInit(t, 4096)

	ops := func(seq []uint8) bool {
		var live []hal.PAddr
		for _, op := range seq {
			switch op % 4 {
			case 0:
				if pa, ok := AllocFrame(); ok {
					live = append(live, pa)
				}
			case 1:
				if len(live) > 0 {
					FreeFrame(live[0])
					live = live[1:]
				}
			case 2:
				if len(live) > 0 {
					FrameRefInc(live[0])
				}
			case 3:
				if len(live) > 0 {
					FrameRefDec(live[0])
				}
			}
			if !VerifyConsistency() {
				return false
			}
		}
		return true
	}
	if err := quick.Check(ops, &quick.Config{MaxCount: 200}); err != nil {
		t.Error(err)
	}
}

func TestGetInfoAccounting(t *testing.T) {
	testInit(t, 16)

	before := GetInfo()
	if before.FreeFrames != 16 {
		t.Fatalf("FreeFrames = %d, want 16", before.FreeFrames)
	}

	pa, _ := AllocFrame()
	after := GetInfo()
	if after.UsedFrames != before.UsedFrames+1 {
		t.Errorf("UsedFrames after one alloc = %d, want %d", after.UsedFrames, before.UsedFrames+1)
	}

	FreeFrame(pa)
	restored := GetInfo()
	if restored.FreeFrames != before.FreeFrames {
		t.Errorf("FreeFrames after alloc+free = %d, want %d", restored.FreeFrames, before.FreeFrames)
	}
}

func TestProtectTableFullReturnsError(t *testing.T) {
	testInit(t, maxProtected+16)

	for i := 0; i < maxProtected; i++ {
		pa, ok := AllocFrame()
		if !ok {
			t.Fatalf("AllocFrame() failed at i=%d", i)
		}
		if err := ProtectFrame(pa); err != nil {
			t.Fatalf("ProtectFrame() failed at i=%d: %v", i, err)
		}
	}

	pa, ok := AllocFrame()
	if !ok {
		t.Fatal("AllocFrame() failed")
	}
	if err := ProtectFrame(pa); err != ErrProtectTableFull {
		t.Fatalf("ProtectFrame() = %v, want ErrProtectTableFull", err)
	}
}

func TestFreeUnalignedIsNoOp(t *testing.T) {
	testInit(t, 8)
	FreeFrame(hal.PAddr(123)) // not frame-aligned; must not panic or corrupt state
	if !VerifyConsistency() {
		t.Fatal("VerifyConsistency() failed after freeing an unaligned address")
	}
}

func TestIdleBootMemoryMap(t *testing.T) {
	// Scenario: reserve a kernel image and one module (e.g. an initrd),
	// then confirm Init accounted for all three categories distinctly.
	const totalFrames = 256
	length := uint64(totalFrames) * hal.PageSize
	kernelEnd := hal.PAddr(4 * hal.PageSize)
	reserved := []Region{{Start: hal.PAddr(200 * hal.PageSize), Length: 8 * hal.PageSize, Kind: Reserved}}

	if err := Init([]Region{{Start: 0, Length: length, Kind: Available}}, kernelEnd, reserved); err != nil {
		t.Fatalf("Init() = %v", err)
	}

	info := GetInfo()
	if info.KernelFrames != 4 {
		t.Errorf("KernelFrames = %d, want 4", info.KernelFrames)
	}
	if info.ReservedFrames != 8 {
		t.Errorf("ReservedFrames = %d, want 8", info.ReservedFrames)
	}
	if info.FreeFrames != totalFrames-4-8 {
		t.Errorf("FreeFrames = %d, want %d", info.FreeFrames, totalFrames-4-8)
	}
	if !VerifyConsistency() {
		t.Fatal("VerifyConsistency() failed on idle boot map")
	}
}
