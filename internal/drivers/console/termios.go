package console

import "golang.org/x/sys/unix"

// setTerminalParams sets VMIN/VTIME on the console's fd, the same pair
// smoynes-elsie's Console configures so readTerminal's ReadByte returns
// one byte at a time instead of waiting for a full line.
func (c *Console) setTerminalParams(vmin, vtime byte) error {
	termIO, err := unix.IoctlGetTermios(c.fd, getTermiosIoctl)
	if err != nil {
		return err
	}

	termIO.Cc[unix.VMIN] = vmin
	termIO.Cc[unix.VTIME] = vtime

	return unix.IoctlSetTermios(c.fd, setTermiosIoctl, termIO)
}
