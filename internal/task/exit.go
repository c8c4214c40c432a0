package task

import "mazkernel/internal/paging"

// releaseResourcesLocked frees everything a ZOMBIE or TERMINATED task no
// longer needs: its address space and every open file reference (spec
// §3: "a ZOMBIE's address space and user memory are released but the
// PCB slot is retained until waitpid").
func releaseResourcesLocked(p *PCB) {
	if p.space != nil {
		paging.DestroySpace(p.space)
		p.space = nil
	}
	for i, of := range p.fds {
		if of == nil {
			continue
		}
		p.fds[i] = nil
		of.mu.Lock()
		of.refs--
		closeNow := of.refs <= 0
		of.mu.Unlock()
		if closeNow {
			of.file.Close()
		}
	}
}

// reparentOrCleanupChildrenLocked implements "re-parent each live child
// as an orphan (null parent); free a zombie child outright" (spec §4.5
// exit and kill both do this).
func reparentOrCleanupChildrenLocked(parent PID) {
	for i := range table {
		c := &table[i]
		if c.state == Unused || c.ppid != parent {
			continue
		}
		if c.state == Zombie {
			releaseResourcesLocked(c)
			c.state = Unused
			continue
		}
		c.ppid = Nil
	}
}

// removeFromReadyQueueLocked drops pid from the ready queue if present.
func removeFromReadyQueueLocked(pid PID) {
	for i, q := range readyQ {
		if q == pid {
			readyQ = append(readyQ[:i], readyQ[i+1:]...)
			return
		}
	}
}

// terminateLocked is the shared ending path for sys_exit and sys_kill:
// release resources, re-parent/cleanup children, then land in ZOMBIE (if
// the parent is still alive) or TERMINATED (orphan, or a self-kill — spec
// §4.5: "killing self from sys_kill marks TERMINATED, not ZOMBIE").
func terminateLocked(p *PCB, code int, signaled bool, signal int, forceTerminated bool) {
	p.exitCode = code
	p.exitSignaled = signaled
	p.exitSignal = signal

	reparentOrCleanupChildrenLocked(p.pid)
	removeFromReadyQueueLocked(p.pid)
	releaseResourcesLocked(p)

	parentAlive := pcbLocked(p.ppid) != nil
	if forceTerminated || !parentAlive {
		p.state = Terminated
	} else {
		p.state = Zombie
	}

	if runningAt == p.pid.slot {
		runningAt = -1
	}
}

// Exit implements sys_exit: ends the currently running task.
func Exit(code int) {
	mu.Lock()
	if runningAt < 0 {
		mu.Unlock()
		return
	}
	p := &table[runningAt]
	terminateLocked(p, code, false, 0, false)
	mu.Unlock()
	Dispatch()
}

// Waitpid implements sys_waitpid against caller (spec §4.5). target ==
// Nil means "any child". A matching ZOMBIE is reaped (its slot freed)
// and its PID and status returned; if no ZOMBIE child matches yet,
// found is false and err is nil unless caller has no such child at all.
// Blocking retries are the caller's responsibility (task_yield between
// calls), matching the spec's "none yet and blocking -> task_yield and
// retry" — a real blocking loop belongs to the syscall dispatcher, not
// this package, since only it knows whether WNOHANG was requested.
func Waitpid(caller PID, target PID) (pid PID, status uint32, found bool, err error) {
	mu.Lock()
	defer mu.Unlock()

	haveAnyChild := false
	for i := range table {
		c := &table[i]
		if c.state == Unused || c.ppid != caller {
			continue
		}
		if target.Valid() && c.pid != target {
			continue
		}
		haveAnyChild = true
		if c.state != Zombie {
			continue
		}
		pid = c.pid
		if c.exitSignaled {
			status = uint32(c.exitSignal & 0xFF)
		} else {
			status = uint32(c.exitCode&0xFF) << 8
		}
		c.state = Unused
		return pid, status, true, nil
	}
	if !haveAnyChild {
		return Nil, 0, false, ErrNoSuchChild
	}
	return Nil, 0, false, nil
}

// Kill implements sys_kill: a simplified "signal = terminate" (spec
// §4.5). Killing the currently running task reschedules; killing any
// other task only updates its bookkeeping. A target that is already
// ZOMBIE or TERMINATED is a no-op (spec scenario #5: "kill of zombie is
// a no-op") — its original exit info is left untouched for a later
// waitpid to collect.
func Kill(caller PID, target PID, sig int) error {
	mu.Lock()
	p := pcbLocked(target)
	if p == nil {
		mu.Unlock()
		return ErrNoSuchTask
	}
	if p.state == Zombie || p.state == Terminated {
		mu.Unlock()
		return nil
	}
	selfKill := target == caller
	wasRunning := runningAt == target.slot
	terminateLocked(p, 128+sig, true, sig, selfKill)
	mu.Unlock()

	if wasRunning {
		Dispatch()
	}
	return nil
}
