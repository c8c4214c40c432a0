// Package socket implements the design note spec.md §9 calls out "for
// completeness": the socket table's allocation-sentinel concurrency
// pattern and the NetBuf contract a transport engine would sit behind.
// No TCP/UDP engine is wired in (spec.md §1 places protocol engines
// explicitly out of scope); Table exists so that SYS_SOCKET (reserved,
// spec §6) has somewhere real to reserve an fd against once a transport
// is plugged in, without speculatively designing that transport now.
package socket

import (
	"errors"
	"sync"
)

var (
	// ErrTableFull is returned when every slot is reserved or in use.
	ErrTableFull = errors.New("socket: table full")
	// ErrBadFD is returned for an out-of-range or unused slot index.
	ErrBadFD = errors.New("socket: bad descriptor")
	// ErrAllocating is returned by Get against a slot whose socket is
	// still under construction outside the lock.
	ErrAllocating = errors.New("socket: allocating")
)

// NetBuf is the contract a protocol engine's socket object must satisfy
// to sit behind Table: buffered, non-blocking send/receive with the
// EAGAIN-shaped contract spec.md §9 calls out for the UDP recv path
// ("nonblocking-returns-EAGAIN"), plus Close to release engine-owned
// resources when the table frees the slot.
type NetBuf interface {
	// Send enqueues p for transmission. It never blocks; a full send
	// buffer is a transport-defined error, not a table-level concern.
	Send(p []byte) (int, error)
	// Recv dequeues into p. ok is false if nothing is queued yet (the
	// non-blocking "would block" case a caller maps to EAGAIN).
	Recv(p []byte) (n int, ok bool, err error)
	// Close releases the engine-side resources backing this socket.
	Close() error
}

// allocating is the sentinel spec.md §9 names: installed in a slot under
// the table lock while the real NetBuf is still being constructed
// outside it, so a concurrent reader sees "reserved, not yet ready"
// rather than a nil entry it might mistake for a free slot.
var allocating NetBuf = allocatingMarker{}

type allocatingMarker struct{}

func (allocatingMarker) Send([]byte) (int, error)       { return 0, ErrAllocating }
func (allocatingMarker) Recv([]byte) (int, bool, error) { return 0, false, ErrAllocating }
func (allocatingMarker) Close() error                   { return nil }

// Table is a fixed-size, process-wide socket descriptor table (spec §9's
// "Singletons ... socket table ... process-wide"). The zero value is not
// ready for use; construct with NewTable.
type Table struct {
	mu    sync.Mutex
	slots []NetBuf
}

// NewTable returns an empty Table with room for size descriptors.
func NewTable(size int) *Table {
	return &Table{slots: make([]NetBuf, size)}
}

// Reserve installs the allocation sentinel in the first free slot and
// returns its index, without yet running build (the caller's NetBuf
// constructor) under the lock: build may do its own allocation and must
// not be called while any table lock is held, matching spec §9's
// "the socket object is still being constructed outside the lock".
// Finish must be called with the result to either install the real
// NetBuf or release the slot back to free on construction failure.
func (t *Table) Reserve() (fd int, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for i, s := range t.slots {
		if s == nil {
			t.slots[i] = allocating
			return i, nil
		}
	}
	return -1, ErrTableFull
}

// Finish completes a Reserve: nb replaces the sentinel at fd, or (if nb
// is nil, signaling the caller's construction failed) the slot is freed.
func (t *Table) Finish(fd int, nb NetBuf) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if fd < 0 || fd >= len(t.slots) {
		return ErrBadFD
	}
	if nb == nil {
		t.slots[fd] = nil
		return nil
	}
	t.slots[fd] = nb
	return nil
}

// Get returns the NetBuf at fd. ErrAllocating is returned if
// construction is still in flight — reads "skip the marker" per spec
// §9, surfacing it as an error rather than a usable socket.
func (t *Table) Get(fd int) (NetBuf, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if fd < 0 || fd >= len(t.slots) {
		return nil, ErrBadFD
	}
	s := t.slots[fd]
	if s == nil {
		return nil, ErrBadFD
	}
	if s == allocating {
		return nil, ErrAllocating
	}
	return s, nil
}

// Release closes and frees fd's slot.
func (t *Table) Release(fd int) error {
	t.mu.Lock()
	s, ok := t.slots[fd], fd >= 0 && fd < len(t.slots)
	if ok {
		t.slots[fd] = nil
	}
	t.mu.Unlock()

	if !ok {
		return ErrBadFD
	}
	if s == nil || s == allocating {
		return nil
	}
	return s.Close()
}
