package task

import (
	"mazkernel/internal/hal"
	"mazkernel/internal/paging"
)

// Dispatch implements the scheduler's dispatch step: pop the ready
// queue's head, make it RUNNING, and switch the CPU onto it (spec §4.5).
// It returns false if the ready queue is empty (nothing to run — the
// caller, normally the idle task's loop, should keep polling).
func Dispatch() (PID, bool) {
	mu.Lock()
	sweepTerminatedLocked()
	for len(readyQ) > 0 {
		pid := readyQ[0]
		readyQ = readyQ[1:]
		p := pcbLocked(pid)
		if p == nil {
			continue // stale entry: the task was reaped since it was queued
		}
		var old *hal.Context
		if runningAt >= 0 {
			old = &table[runningAt].ctx
		}
		p.state = Running
		p.timeSlice = defaultTimeSlice
		runningAt = pid.slot
		next := &p.ctx
		space := p.space
		mu.Unlock()

		hal.ContextSwitch(old, next)
		if space != nil {
			paging.SwitchSpace(space)
		}
		return pid, true
	}
	runningAt = -1
	mu.Unlock()
	return Nil, false
}

// TimerTick implements the round-robin preemption rule (spec §4.5):
// decrement the running task's remaining slice; at zero, requeue it at
// the ready-queue tail and dispatch the new head. Sleeping tasks' wake
// counters are decremented here too, and any that reach zero rejoin the
// ready queue (the SLEEPING -> READY transition on "timer expires").
func TimerTick() {
	mu.Lock()
	var woken []PID
	for i := range table {
		if table[i].state == Sleeping && table[i].sleepRemaining > 0 {
			table[i].sleepRemaining--
			if table[i].sleepRemaining == 0 {
				table[i].state = Ready
				woken = append(woken, table[i].pid)
			}
		}
	}
	readyQ = append(readyQ, woken...)

	if runningAt < 0 {
		mu.Unlock()
		return
	}
	p := &table[runningAt]
	p.timeSlice--
	if p.timeSlice > 0 {
		mu.Unlock()
		return
	}
	pid := p.pid
	p.state = Ready
	readyQ = append(readyQ, pid)
	runningAt = -1
	mu.Unlock()

	Dispatch()
}

// Yield implements task_yield: an explicit reschedule point. The running
// task goes to the ready-queue tail regardless of remaining time slice.
func Yield() {
	mu.Lock()
	if runningAt < 0 {
		mu.Unlock()
		return
	}
	pid := table[runningAt].pid
	table[runningAt].state = Ready
	readyQ = append(readyQ, pid)
	runningAt = -1
	mu.Unlock()
	Dispatch()
}

// Sleep implements task_sleep: the running task moves to SLEEPING for
// ticks timer ticks, then rejoins the ready queue (see TimerTick).
func Sleep(ticks int) {
	mu.Lock()
	if runningAt < 0 {
		mu.Unlock()
		return
	}
	p := &table[runningAt]
	p.state = Sleeping
	p.sleepRemaining = ticks
	runningAt = -1
	mu.Unlock()
	Dispatch()
}

// sweepTerminatedLocked frees every TERMINATED slot back to UNUSED. A
// TERMINATED task (an orphan, or a self-kill) has no parent left to reap
// it via waitpid — unlike a ZOMBIE, its exit info is never collected by
// anyone — so it is safe to free at the next scheduler pass rather than
// leaving the slot stuck forever (spec's "leaves the thread in UNUSED
// after the next scheduler sweep").
func sweepTerminatedLocked() {
	for i := range table {
		if table[i].state == Terminated {
			table[i] = PCB{}
		}
	}
}

// ReadyLen reports the current ready-queue length (diagnostics/tests).
func ReadyLen() int {
	mu.Lock()
	defer mu.Unlock()
	return len(readyQ)
}
