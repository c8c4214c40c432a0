package keyboard

import "mazkernel/internal/vfs"

// device adapts Buffer to the vfs.Device contract: every open of
// /dev/keyboard shares the one underlying ring buffer, since there is
// exactly one physical keyboard.
type device struct {
	buf *Buffer
}

type file struct {
	buf *Buffer
}

func (d device) Open(flags vfs.OpenFlag) (vfs.File, error) {
	if flags == vfs.OWrOnly || flags == vfs.ORdWr {
		return nil, vfs.ErrNotFound
	}
	return &file{buf: d.buf}, nil
}

func (f *file) Read(p []byte) (int, error)  { return f.buf.Read(p) }
func (f *file) Write(p []byte) (int, error) { return 0, vfs.ErrNotFound }
func (f *file) Close() error                { return nil }

// Register installs /dev/keyboard backed by buf. Called once at boot
// alongside the console's own registration.
func Register(buf *Buffer) error {
	return vfs.Register("/dev/keyboard", device{buf: buf})
}
