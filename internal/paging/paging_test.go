package paging

import (
	"testing"

	"mazkernel/internal/hal"
	"mazkernel/internal/pmm"
)

func resetTest(t *testing.T, frames uint64) {
	t.Helper()
	if err := pmm.Init([]pmm.Region{{Start: 0, Length: frames * hal.PageSize, Kind: pmm.Available}}, 0, nil); err != nil {
		t.Fatalf("pmm.Init() = %v", err)
	}
	resetBackingStoreForTest()
	mu.Lock()
	current = nil
	mu.Unlock()
}

func TestMapQueryUnmapRoundTrip(t *testing.T) {
	resetTest(t, 4096)

	as, err := CreateSpace()
	if err != nil {
		t.Fatalf("CreateSpace() = %v", err)
	}

	frame, ok := pmm.AllocFrame()
	if !ok {
		t.Fatal("AllocFrame() failed")
	}
	va := hal.VAddr(0x0040_0000)

	if err := MapPage(as, va, frame, hal.FlagPresent|hal.FlagWrite|hal.FlagUser); err != nil {
		t.Fatalf("MapPage() = %v", err)
	}

	pa, flags, ok := QueryPage(as, va)
	if !ok {
		t.Fatal("QueryPage() reported not-present after MapPage()")
	}
	if pa != frame {
		t.Errorf("QueryPage() pa = %s, want %s", pa, frame)
	}
	if !flags.Has(hal.FlagWrite) || !flags.Has(hal.FlagUser) {
		t.Errorf("QueryPage() flags = %s, missing Write/User", flags)
	}

	got, err := UnmapPage(as, va)
	if err != nil {
		t.Fatalf("UnmapPage() = %v", err)
	}
	if got != frame {
		t.Errorf("UnmapPage() returned %s, want %s", got, frame)
	}
	if _, _, ok := QueryPage(as, va); ok {
		t.Error("QueryPage() still reports present after UnmapPage()")
	}
}

// TestSwitchSpaceIsIdempotent is property P7: calling SwitchSpace(s) and
// then immediately reading CurrentSpace() always yields s, regardless of
// what was current before, and repeating the same switch changes nothing.
func TestSwitchSpaceIsIdempotent(t *testing.T) {
	resetTest(t, 64)

	a, _ := CreateSpace()
	b, _ := CreateSpace()

	SwitchSpace(a)
	if CurrentSpace() != a {
		t.Fatal("CurrentSpace() != a after SwitchSpace(a)")
	}

	SwitchSpace(b)
	if CurrentSpace() != b {
		t.Fatal("CurrentSpace() != b after SwitchSpace(b)")
	}

	SwitchSpace(b)
	if CurrentSpace() != b {
		t.Fatal("CurrentSpace() != b after redundant SwitchSpace(b)")
	}
}

// TestMapUnalignedRejected is property P6: every mapping operation
// rejects a non-page-aligned address rather than silently truncating it.
func TestMapUnalignedRejected(t *testing.T) {
	resetTest(t, 64)
	as, _ := CreateSpace()
	frame, _ := pmm.AllocFrame()

	if err := MapPage(as, hal.VAddr(0x1001), frame, hal.FlagPresent); err != ErrUnaligned {
		t.Fatalf("MapPage(unaligned) = %v, want ErrUnaligned", err)
	}
}

// TestCloneSharesKernelHalfByReference is part of property P8 (fork
// produces a child address space with the same virtual-to-semantic
// mapping as the parent): the kernel half in particular is shared by
// reference, so a cloned space observes the same kernel-half mapping the
// parent has without a distinct frame being allocated for it.
func TestCloneSharesKernelHalfByReference(t *testing.T) {
	resetTest(t, 4096)

	parent, _ := CreateSpace()
	kernelFrame, _ := pmm.AllocFrame()
	kernelVA := hal.VAddr(uint64(kernelSplitIndex()) << uint(12+(levels-1)*bitsPerLevel))

	if err := MapPage(parent, kernelVA, kernelFrame, hal.FlagPresent|hal.FlagWrite); err != nil {
		t.Fatalf("MapPage(kernel) = %v", err)
	}

	child, err := CloneSpace(parent)
	if err != nil {
		t.Fatalf("CloneSpace() = %v", err)
	}

	pa, flags, ok := QueryPage(child, kernelVA)
	if !ok {
		t.Fatal("child does not observe parent's kernel-half mapping")
	}
	if pa != kernelFrame {
		t.Errorf("child kernel mapping pa = %s, want %s", pa, kernelFrame)
	}
	if !flags.Has(hal.FlagWrite) {
		t.Error("kernel-half mapping lost its Write flag across clone")
	}
}

// TestCloneMarksUserPagesCOW and TestWriteFaultCopiesOnSharedFrame
// together cover property P8 (every user frame marked COW/read-only with
// its refcount increased by 1 on clone) and scenario #3 (fork then write
// under COW).
func TestCloneMarksUserPagesCOW(t *testing.T) {
	resetTest(t, 4096)

	parent, _ := CreateSpace()
	frame, _ := pmm.AllocFrame()
	va := hal.VAddr(0x0040_0000)
	if err := MapPage(parent, va, frame, hal.FlagPresent|hal.FlagWrite|hal.FlagUser); err != nil {
		t.Fatalf("MapPage() = %v", err)
	}

	child, err := CloneSpace(parent)
	if err != nil {
		t.Fatalf("CloneSpace() = %v", err)
	}

	for _, as := range []*AddressSpace{parent, child} {
		pa, flags, ok := QueryPage(as, va)
		if !ok {
			t.Fatal("user page missing after clone")
		}
		if pa != frame {
			t.Errorf("cloned mapping pa = %s, want %s", pa, frame)
		}
		if flags.Has(hal.FlagWrite) {
			t.Error("cloned user page is writable immediately after fork, want read-only")
		}
		if !flags.Has(hal.FlagCOW) {
			t.Error("cloned user page missing COW flag")
		}
	}
	if got := pmm.FrameGetRefcount(frame); got != 2 {
		t.Errorf("shared frame refcount = %d, want 2", got)
	}
}

func TestWriteFaultCopiesOnSharedFrame(t *testing.T) {
	resetTest(t, 4096)

	parent, _ := CreateSpace()
	frame, _ := pmm.AllocFrame()
	va := hal.VAddr(0x0040_0000)
	MapPage(parent, va, frame, hal.FlagPresent|hal.FlagWrite|hal.FlagUser)
	child, _ := CloneSpace(parent)

	if err := HandleWriteFault(child, va); err != nil {
		t.Fatalf("HandleWriteFault() = %v", err)
	}

	childPA, childFlags, _ := QueryPage(child, va)
	parentPA, parentFlags, _ := QueryPage(parent, va)

	if childPA == parentPA {
		t.Error("child still shares the frame with parent after a write fault")
	}
	if !childFlags.Has(hal.FlagWrite) || childFlags.Has(hal.FlagCOW) {
		t.Errorf("child flags after fault = %s, want Write set and COW clear", childFlags)
	}
	if pmm.FrameGetRefcount(parentPA) != 1 {
		t.Errorf("parent frame refcount after child's copy = %d, want 1", pmm.FrameGetRefcount(parentPA))
	}
	if !parentFlags.Has(hal.FlagCOW) {
		t.Error("parent's own mapping should remain COW until it also faults")
	}
}

// TestWriteFaultResolvesInPlaceWhenExclusive exercises the "last owner"
// branch of property P9 (a write fault on a COW page resolves in place
// once refcount has dropped to 1 instead of copying): once the sibling
// has already copied away, the remaining owner's own write fault just
// clears COW rather than copying.
func TestWriteFaultResolvesInPlaceWhenExclusive(t *testing.T) {
	resetTest(t, 4096)

	parent, _ := CreateSpace()
	frame, _ := pmm.AllocFrame()
	va := hal.VAddr(0x0040_0000)
	MapPage(parent, va, frame, hal.FlagPresent|hal.FlagWrite|hal.FlagUser)
	child, _ := CloneSpace(parent)

	HandleWriteFault(child, va) // child copies away, parent now sole owner

	if err := HandleWriteFault(parent, va); err != nil {
		t.Fatalf("HandleWriteFault() = %v", err)
	}
	pa, flags, _ := QueryPage(parent, va)
	if pa != frame {
		t.Errorf("parent's frame changed on an exclusive-owner fault: got %s, want %s", pa, frame)
	}
	if !flags.Has(hal.FlagWrite) || flags.Has(hal.FlagCOW) {
		t.Errorf("parent flags after in-place resolution = %s", flags)
	}
}

func TestHandleWriteFaultOnNonCOWPageIsRejected(t *testing.T) {
	resetTest(t, 64)
	as, _ := CreateSpace()
	frame, _ := pmm.AllocFrame()
	va := hal.VAddr(0x0040_0000)
	MapPage(as, va, frame, hal.FlagPresent|hal.FlagWrite|hal.FlagUser)

	if err := HandleWriteFault(as, va); err != ErrNotCOW {
		t.Fatalf("HandleWriteFault() = %v, want ErrNotCOW", err)
	}
}

func TestDestroySpaceFreesOwnedFrames(t *testing.T) {
	resetTest(t, 4096)

	as, _ := CreateSpace()
	frame, _ := pmm.AllocFrame()
	va := hal.VAddr(0x0040_0000)
	MapPage(as, va, frame, hal.FlagPresent|hal.FlagWrite|hal.FlagUser)

	DestroySpace(as)

	if got := pmm.FrameGetRefcount(frame); got != 0 {
		t.Errorf("frame refcount after DestroySpace = %d, want 0", got)
	}
	if !pmm.VerifyConsistency() {
		t.Error("pmm.VerifyConsistency() failed after DestroySpace")
	}
}
