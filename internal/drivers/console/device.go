package console

import "mazkernel/internal/vfs"

// device adapts Console to the vfs.Device contract so execve's fd-0/1/2
// default-wiring (spec §4.5) can open /dev/console through the same
// interface every other file descriptor uses.
type device struct {
	c *Console
}

// consoleFile is a distinct vfs.File per Open call, but every one reads
// and writes through the same underlying Console: there is exactly one
// physical console, matching the real UART's single-device contract.
type consoleFile struct {
	c *Console
}

func (d device) Open(vfs.OpenFlag) (vfs.File, error) {
	return &consoleFile{c: d.c}, nil
}

func (f *consoleFile) Read(p []byte) (int, error)  { return f.c.Read(p) }
func (f *consoleFile) Write(p []byte) (int, error) { return f.c.Write(p) }
func (f *consoleFile) Close() error                { return nil }

// Register installs /dev/console backed by c.
func Register(c *Console) error {
	return vfs.Register("/dev/console", device{c: c})
}
