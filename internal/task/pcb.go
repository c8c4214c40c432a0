package task

import (
	"mazkernel/internal/hal"
	"mazkernel/internal/paging"
)

func init() {
	hal.SetTaskExitHook(func() { Exit(0) })
}

// findFreeSlotLocked returns the index of an UNUSED PCB slot, or -1.
func findFreeSlotLocked() int {
	for i := range table {
		if table[i].state == Unused {
			return i
		}
	}
	return -1
}

// alloc implements task_alloc: reserves a PCB slot for a new task. The
// new task starts in CREATED, not yet runnable until AddReady is called
// (spec §4.5's "UNUSED --task_alloc--> (created, not runnable)").
func alloc(name string, space *paging.AddressSpace, isUser bool, entry uintptr, stackTop uintptr, parent PID) (PID, *PCB, error) {
	mu.Lock()
	defer mu.Unlock()

	slot := findFreeSlotLocked()
	if slot < 0 {
		return Nil, nil, ErrNoSlots
	}

	gens[slot]++
	pid := PID{slot: slot, gen: gens[slot]}

	p := &table[slot]
	*p = PCB{
		state:     Created,
		pid:       pid,
		ppid:      parent,
		space:     space,
		cwd:       "/",
		priority:  0,
		timeSlice: defaultTimeSlice,
		name:      name,
	}
	hal.ContextInit(&p.ctx, entry, stackTop, isUser)
	p.ctx.SetAddressSpace(space.Handle())
	return pid, p, nil
}

// AddReady implements ready_queue_add: CREATED or SLEEPING -> READY, then
// appended to the tail of the ready queue (spec §4.5; "a task appears in
// the queue at most once", spec §3).
func AddReady(pid PID) error {
	mu.Lock()
	defer mu.Unlock()
	p := pcbLocked(pid)
	if p == nil {
		return ErrNoSuchTask
	}
	if p.state != Created && p.state != Sleeping {
		return nil
	}
	p.state = Ready
	for _, q := range readyQ {
		if q == pid {
			return nil
		}
	}
	readyQ = append(readyQ, pid)
	return nil
}

// Get returns the live PCB for pid, or nil if it no longer exists.
func Get(pid PID) *PCB {
	mu.Lock()
	defer mu.Unlock()
	return pcbLocked(pid)
}

// Current returns the PCB of the running task, or nil if none.
func Current() *PCB {
	mu.Lock()
	defer mu.Unlock()
	if runningAt < 0 {
		return nil
	}
	return &table[runningAt]
}

// CurrentPID returns the PID of the running task, or Nil.
func CurrentPID() PID {
	mu.Lock()
	defer mu.Unlock()
	if runningAt < 0 {
		return Nil
	}
	return table[runningAt].pid
}
