// Package vfs is the kernel's virtual filesystem interface: a thin,
// devfs-style path-to-device registry consumed by the syscall file-ops
// surface and by execve (spec §4.6, "File descriptors ... POSIX
// semantics as expected"). There is no on-disk filesystem in scope; every
// registered path names an in-memory or device-backed node.
package vfs

import (
	"errors"
	"sync"
)

var (
	ErrNotFound    = errors.New("vfs: no such file")
	ErrAlreadyOpen = errors.New("vfs: path already registered")
)

// File is an open file description: POSIX read/write/close on a node.
// Distinct opens of the same device may return distinct Files that share
// underlying device state (e.g. the console ring buffer) or may be
// entirely independent (e.g. /dev/null).
type File interface {
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	Close() error
}

// OpenFlag mirrors the POSIX open() access-mode bits the syscall layer
// needs to enforce.
type OpenFlag int

const (
	ORdOnly OpenFlag = iota
	OWrOnly
	ORdWr
)

// Device is a registrable node factory: every Open() call against its
// path produces a fresh File bound to (but not necessarily exclusive
// over) the underlying device.
type Device interface {
	Open(flags OpenFlag) (File, error)
}

var (
	mu       sync.Mutex
	registry = map[string]Device{}
)

// Register binds path to dev. Called once per device at boot
// (internal/drivers register /dev/console and /dev/keyboard here;
// RegisterStandardDevices registers /dev/null).
func Register(path string, dev Device) error {
	mu.Lock()
	defer mu.Unlock()
	if _, exists := registry[path]; exists {
		return ErrAlreadyOpen
	}
	registry[path] = dev
	return nil
}

// Unregister removes path. Test-only in practice; devfs entries are
// normally permanent for the kernel's lifetime.
func Unregister(path string) {
	mu.Lock()
	defer mu.Unlock()
	delete(registry, path)
}

// Open resolves path and opens a fresh File against it.
func Open(path string, flags OpenFlag) (File, error) {
	mu.Lock()
	dev, ok := registry[path]
	mu.Unlock()
	if !ok {
		return nil, ErrNotFound
	}
	return dev.Open(flags)
}
