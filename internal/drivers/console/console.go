// Package console is the /dev/console device: the simulated serial
// console execve (spec §4.5) wires to fds 0/1/2 when a spawned task
// opens none of its own. This is the one place in mazkernel that runs
// under a real host OS rather than as freestanding kernel code, so it is
// also the one package allowed to reach for golang.org/x/term and
// golang.org/x/sys/unix: three pack repos (the teacher included, by way
// of its host-side tooling conventions) reach for the same pair to put a
// real terminal into raw mode around a simulated machine console, and
// cmd/internal/tty's Console struct in smoynes-elsie is the direct model
// for this file's NewConsole/Restore/readTerminal shape.
package console

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"golang.org/x/term"

	"mazkernel/internal/drivers/keyboard"
	"mazkernel/internal/klog"
)

// ErrNoTTY is returned when standard input is not a terminal; console
// output still works (writes fall back to the plain *os.File), but raw
// keystroke input is unavailable.
var ErrNoTTY = errors.New("console: not a tty")

// Console adapts a real host terminal to the kernel's single serial
// console device. Keystrokes read off the host terminal are pushed into
// a keyboard.Buffer (the same spinlock-protected ring buffer
// internal/drivers/keyboard normally fills from PS/2 interrupts), and
// writes go straight to the host's stdout.
type Console struct {
	in  *os.File
	out io.Writer

	fd    int
	raw   bool
	state *term.State

	kbd *keyboard.Buffer

	mu     sync.Mutex
	closed bool
	stop   chan struct{}
}

// New wraps sin/sout as the kernel console, pushing keystrokes read from
// sin into kbd. If sin is not a terminal, the console still accepts
// writes but runs without raw-mode input (ErrNoTTY is returned alongside
// a usable *Console so a headless boot — e.g. under `go test` — still
// has a working /dev/console for output).
func New(sin, sout *os.File, kbd *keyboard.Buffer) (*Console, error) {
	c := &Console{
		in:  sin,
		out: sout,
		fd:  int(sin.Fd()),
		kbd: kbd,
	}

	if !term.IsTerminal(c.fd) {
		return c, ErrNoTTY
	}

	saved, err := term.MakeRaw(c.fd)
	if err != nil {
		return c, fmt.Errorf("%w: %s", ErrNoTTY, err)
	}
	c.state = saved
	c.raw = true

	if err := c.setTerminalParams(1, 0); err != nil {
		_ = term.Restore(c.fd, saved)
		c.raw = false
		return c, err
	}

	return c, nil
}

// Start launches the background reader that feeds host keystrokes into
// the keyboard buffer (spec §4.7-style "polling body sits in a task";
// here it is the host-OS goroutine standing in for one). A no-op if the
// console was constructed without raw-mode input.
func (c *Console) Start() {
	if !c.raw {
		return
	}
	c.mu.Lock()
	if c.stop != nil {
		c.mu.Unlock()
		return
	}
	stop := make(chan struct{})
	c.stop = stop
	c.mu.Unlock()

	go c.readTerminal(stop)
}

// readTerminal blocks reading one byte at a time off the host terminal
// and pushes each into the keyboard ring buffer, exactly mirroring
// smoynes-elsie's byte-at-a-time bufio.Reader loop feeding a channel —
// here the sink is keyboard.Buffer.Push rather than a channel send,
// since the rest of this kernel already expects keystrokes to arrive via
// that ring buffer regardless of source.
func (c *Console) readTerminal(stop chan struct{}) {
	r := bufio.NewReader(c.in)
	for {
		b, err := r.ReadByte()
		if err != nil {
			return
		}
		select {
		case <-stop:
			return
		default:
		}
		if c.kbd != nil {
			c.kbd.Push(b)
		}
	}
}

// Restore returns the host terminal to its original state and stops the
// reader goroutine. Safe to call more than once.
func (c *Console) Restore() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	stop := c.stop
	c.mu.Unlock()

	if stop != nil {
		close(stop)
	}
	if c.raw {
		if err := term.Restore(c.fd, c.state); err != nil {
			klog.Warnf("console", "restore: %v", err)
		}
	}
}

// Write sends p to the host terminal unmodified; the console is a plain
// byte-stream device, not a line-editing one (line editing belongs to
// whatever runs on top of /dev/console, matching the real UART's
// contract elsewhere in this kernel).
func (c *Console) Write(p []byte) (int, error) {
	return c.out.Write(p)
}

// Read drains buffered keystrokes without blocking, delegating straight
// to the keyboard ring buffer so /dev/console and /dev/keyboard observe
// a consistent stream of input.
func (c *Console) Read(p []byte) (int, error) {
	if c.kbd == nil {
		return 0, nil
	}
	return c.kbd.Read(p)
}
