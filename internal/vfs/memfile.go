package vfs

import "bytes"

// memDevice serves a fixed, in-memory byte slice, read-only. This is the
// host-side stand-in for a real backing filesystem: execve's "open and
// slurp the ELF file via the VFS interface" (spec §4.5) only ever needs
// whole-file reads, and this module has no on-disk filesystem in scope.
type memDevice struct {
	data []byte
}

type memFile struct {
	r *bytes.Reader
}

func (d memDevice) Open(flags OpenFlag) (File, error) {
	if flags == OWrOnly || flags == ORdWr {
		return nil, ErrNotFound
	}
	return &memFile{r: bytes.NewReader(d.data)}, nil
}

func (f *memFile) Read(p []byte) (int, error)  { return f.r.Read(p) }
func (f *memFile) Write(p []byte) (int, error) { return 0, ErrNotFound }
func (f *memFile) Close() error                { return nil }

// RegisterMemFile installs a static, read-only in-memory file at path
// (used to stage executables for execve in tests and in any future
// ramdisk-backed boot module).
func RegisterMemFile(path string, data []byte) error {
	return Register(path, memDevice{data: data})
}
