package hal

import "unsafe"

// MMIO provides typed, ordered access to memory-mapped device registers.
// Every read issues a read barrier *after* the access; every write issues a
// write barrier *before* the access (spec §4.1) — this is what lets a
// driver write a command register and then immediately poll a status
// register without the compiler or CPU reordering the two.
//
// MemoryBarrier/ReadBarrier/WriteBarrier/InstructionBarrier are exposed
// separately for drivers (the USB core, the VirtIO ring) that need
// explicit ordering beyond a single register access. See barriers.go for
// why they share one portable implementation instead of one assembly
// thunk per architecture.

func Read8(addr uintptr) uint8 {
	v := *(*uint8)(unsafe.Pointer(addr))
	ReadBarrier()
	return v
}

func Read16(addr uintptr) uint16 {
	v := *(*uint16)(unsafe.Pointer(addr))
	ReadBarrier()
	return v
}

func Read32(addr uintptr) uint32 {
	v := *(*uint32)(unsafe.Pointer(addr))
	ReadBarrier()
	return v
}

func Read64(addr uintptr) uint64 {
	v := *(*uint64)(unsafe.Pointer(addr))
	ReadBarrier()
	return v
}

func Write8(addr uintptr, v uint8) {
	WriteBarrier()
	*(*uint8)(unsafe.Pointer(addr)) = v
}

func Write16(addr uintptr, v uint16) {
	WriteBarrier()
	*(*uint16)(unsafe.Pointer(addr)) = v
}

func Write32(addr uintptr, v uint32) {
	WriteBarrier()
	*(*uint32)(unsafe.Pointer(addr)) = v
}

func Write64(addr uintptr, v uint64) {
	WriteBarrier()
	*(*uint64)(unsafe.Pointer(addr)) = v
}
