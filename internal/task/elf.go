package task

import (
	"encoding/binary"
	"errors"

	"mazkernel/internal/hal"
	"mazkernel/internal/paging"
	"mazkernel/internal/pmm"
)

// Minimal ELF64 loader: execve's "open and slurp the ELF file ... validate
// the header ... load segments" (spec §4.5 step 1-2). Only PT_LOAD
// segments are mapped; there is no dynamic linker, no relocations, no
// section-header processing — a static, position-dependent executable is
// the only supported shape, matching this kernel's scope.
const (
	elfMagic0, elfMagic1, elfMagic2, elfMagic3 = 0x7f, 'E', 'L', 'F'
	elfClass64                                 = 2
	ptLoad                                     = 1
)

var (
	ErrBadELF         = errors.New("task: malformed ELF image")
	ErrUnsupportedELF = errors.New("task: unsupported ELF image")
)

type elfHeader struct {
	entry     uint64
	phoff     uint64
	phnum     uint16
	phentsize uint16
}

type programHeader struct {
	ptype  uint32
	flags  uint32
	offset uint64
	vaddr  uint64
	filesz uint64
	memsz  uint64
}

func parseELFHeader(data []byte) (elfHeader, error) {
	if len(data) < 64 {
		return elfHeader{}, ErrBadELF
	}
	if data[0] != elfMagic0 || data[1] != elfMagic1 || data[2] != elfMagic2 || data[3] != elfMagic3 {
		return elfHeader{}, ErrBadELF
	}
	if data[4] != elfClass64 {
		return elfHeader{}, ErrUnsupportedELF
	}
	return elfHeader{
		entry:     binary.LittleEndian.Uint64(data[24:32]),
		phoff:     binary.LittleEndian.Uint64(data[32:40]),
		phentsize: binary.LittleEndian.Uint16(data[54:56]),
		phnum:     binary.LittleEndian.Uint16(data[56:58]),
	}, nil
}

func parseProgramHeaders(data []byte, h elfHeader) ([]programHeader, error) {
	out := make([]programHeader, 0, h.phnum)
	for i := 0; i < int(h.phnum); i++ {
		off := int(h.phoff) + i*int(h.phentsize)
		if off+56 > len(data) {
			return nil, ErrBadELF
		}
		rec := data[off : off+56]
		out = append(out, programHeader{
			ptype:  binary.LittleEndian.Uint32(rec[0:4]),
			flags:  binary.LittleEndian.Uint32(rec[4:8]),
			offset: binary.LittleEndian.Uint64(rec[8:16]),
			vaddr:  binary.LittleEndian.Uint64(rec[16:24]),
			filesz: binary.LittleEndian.Uint64(rec[32:40]),
			memsz:  binary.LittleEndian.Uint64(rec[40:48]),
		})
	}
	return out, nil
}

const (
	pfExec  = 1 << 0
	pfWrite = 1 << 1
)

// loadELFInto maps every PT_LOAD segment of data into space, frame by
// frame, zero-filling the tail of .bss-style segments where memsz >
// filesz. It returns the entry point on success.
func loadELFInto(space *paging.AddressSpace, data []byte) (hal.VAddr, error) {
	h, err := parseELFHeader(data)
	if err != nil {
		return 0, err
	}
	phdrs, err := parseProgramHeaders(data, h)
	if err != nil {
		return 0, err
	}

	for _, ph := range phdrs {
		if ph.ptype != ptLoad {
			continue
		}
		if err := loadSegment(space, data, ph); err != nil {
			return 0, err
		}
	}
	return hal.VAddr(h.entry), nil
}

func loadSegment(space *paging.AddressSpace, data []byte, ph programHeader) error {
	vaStart := ph.vaddr &^ (hal.PageSize - 1)
	vaEnd := (ph.vaddr + ph.memsz + hal.PageSize - 1) &^ (hal.PageSize - 1)

	flags := hal.FlagPresent | hal.FlagUser
	if ph.flags&pfWrite != 0 {
		flags = flags.With(hal.FlagWrite)
	}
	if ph.flags&pfExec != 0 {
		flags = flags.With(hal.FlagExec)
	}

	for va := vaStart; va < vaEnd; va += hal.PageSize {
		pa, ok := pmm.AllocFrame()
		if !ok {
			return ErrNoMemory
		}
		if err := paging.MapPage(space, hal.VAddr(va), pa, flags); err != nil {
			return err
		}

		// memsz beyond filesz (bss) is left zero: the frame is zeroed
		// here, and copyFileRangeIntoFrame only ever writes the bytes
		// that actually exist in the file.
		paging.WriteFrame(pa, 0, make([]byte, hal.PageSize))
		copyFileRangeIntoFrame(data, ph, va, pa)
	}
	return nil
}

// copyFileRangeIntoFrame copies the slice of the ELF file's bytes that
// fall within the page starting at va into frame pa.
func copyFileRangeIntoFrame(data []byte, ph programHeader, va uint64, pa hal.PAddr) {
	fileStart := int64(ph.offset)
	fileEnd := int64(ph.offset + ph.filesz)

	pageVAStart := int64(va)
	pageVAEnd := pageVAStart + hal.PageSize

	segFileOffForPageStart := fileStart + (pageVAStart - int64(ph.vaddr))
	segFileOffForPageEnd := fileStart + (pageVAEnd - int64(ph.vaddr))

	copyStart := segFileOffForPageStart
	if copyStart < fileStart {
		copyStart = fileStart
	}
	copyEnd := segFileOffForPageEnd
	if copyEnd > fileEnd {
		copyEnd = fileEnd
	}
	if copyEnd > int64(len(data)) {
		copyEnd = int64(len(data))
	}
	if copyStart >= copyEnd {
		return
	}

	pageOffset := int(copyStart - (fileStart + (pageVAStart - int64(ph.vaddr))))
	paging.WriteFrame(pa, pageOffset, data[copyStart:copyEnd])
}
