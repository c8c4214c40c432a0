package task

import "mazkernel/internal/vfs"

// OpenFD implements sys_open against p: resolves path through the VFS and
// installs it at the lowest free descriptor.
func (p *PCB) OpenFD(path string, flags vfs.OpenFlag) (int, error) {
	f, err := vfs.Open(path, flags)
	if err != nil {
		return -1, err
	}

	mu.Lock()
	defer mu.Unlock()
	fd := -1
	for i, of := range p.fds {
		if of == nil {
			fd = i
			break
		}
	}
	if fd < 0 {
		f.Close()
		return -1, ErrTooManyFDs
	}
	p.fds[fd] = &openFile{file: f, refs: 1}
	return fd, nil
}

// CloseFD implements sys_close: drops one reference, closing the
// underlying file once the last reference is gone.
func (p *PCB) CloseFD(fd int) error {
	mu.Lock()
	of := fdAtLocked(p, fd)
	if of == nil {
		mu.Unlock()
		return ErrBadFD
	}
	p.fds[fd] = nil
	mu.Unlock()

	of.mu.Lock()
	of.refs--
	closeNow := of.refs <= 0
	of.mu.Unlock()
	if closeNow {
		return of.file.Close()
	}
	return nil
}

// ReadFD implements sys_read.
func (p *PCB) ReadFD(fd int, buf []byte) (int, error) {
	mu.Lock()
	of := fdAtLocked(p, fd)
	mu.Unlock()
	if of == nil {
		return 0, ErrBadFD
	}
	return of.file.Read(buf)
}

// WriteFD implements sys_write.
func (p *PCB) WriteFD(fd int, buf []byte) (int, error) {
	mu.Lock()
	of := fdAtLocked(p, fd)
	mu.Unlock()
	if of == nil {
		return 0, ErrBadFD
	}
	return of.file.Write(buf)
}

// DupFD implements sys_dup: install a new reference to fd's open-file
// description at the lowest free descriptor.
func (p *PCB) DupFD(fd int) (int, error) {
	mu.Lock()
	defer mu.Unlock()
	of := fdAtLocked(p, fd)
	if of == nil {
		return -1, ErrBadFD
	}
	newFD := -1
	for i, entry := range p.fds {
		if entry == nil {
			newFD = i
			break
		}
	}
	if newFD < 0 {
		return -1, ErrTooManyFDs
	}
	of.mu.Lock()
	of.refs++
	of.mu.Unlock()
	p.fds[newFD] = of
	return newFD, nil
}

func fdAtLocked(p *PCB, fd int) *openFile {
	if fd < 0 || fd >= MaxFDs {
		return nil
	}
	return p.fds[fd]
}

// EnsureStdio wires fds 0/1/2 to /dev/console if they are not already
// open, as execve requires (spec §4.5 step 4).
func (p *PCB) EnsureStdio() error {
	for fd := 0; fd < 3; fd++ {
		mu.Lock()
		has := p.fds[fd] != nil
		mu.Unlock()
		if has {
			continue
		}
		flag := vfs.ORdOnly
		if fd != 0 {
			flag = vfs.OWrOnly
		}
		f, err := vfs.Open("/dev/console", flag)
		if err != nil {
			return err
		}
		mu.Lock()
		p.fds[fd] = &openFile{file: f, refs: 1}
		mu.Unlock()
	}
	return nil
}
