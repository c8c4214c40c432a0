package task

import (
	"mazkernel/internal/hal"
	"mazkernel/internal/paging"
	"mazkernel/internal/pmm"
)

// forkMinFreeFrames is the conservative free-frame margin fork requires
// before committing (spec §4.5 step 2).
const forkMinFreeFrames = 64

// Fork implements sys_fork (spec §4.5). The entire operation is atomic
// with respect to the scheduler: it runs under task's single lock from
// the margin check through linking the child, matching "interrupts
// disabled for the whole PCB + address-space-clone + fd-table copy
// sequence" (spec §5).
func Fork(parent PID) (PID, error) {
	mu.Lock()
	defer mu.Unlock()

	p := pcbLocked(parent)
	if p == nil {
		return Nil, ErrNoSuchTask
	}
	if !p.ctx.IsUser() {
		return Nil, ErrNotUser
	}
	if pmm.GetInfo().FreeFrames < forkMinFreeFrames {
		return Nil, ErrNoMemory
	}

	slot := findFreeSlotLocked()
	if slot < 0 {
		return Nil, ErrNoSlots
	}

	childSpace, err := paging.CloneSpace(p.space)
	if err != nil {
		return Nil, ErrNoMemory
	}

	gens[slot]++
	childPID := PID{slot: slot, gen: gens[slot]}
	child := &table[slot]
	*child = PCB{
		state:     Created,
		pid:       childPID,
		ppid:      parent,
		space:     childSpace,
		kstack:    allocKernelStackLocked(),
		cwd:       p.cwd,
		heapStart: p.heapStart,
		heapEnd:   p.heapEnd,
		heapMax:   p.heapMax,
		priority:  p.priority,
		timeSlice: defaultTimeSlice,
		name:      p.name,
	}
	child.fds = duplicateFDTable(&p.fds)

	hal.ContextInit(&child.ctx, p.ctx.EntryPC(), p.ctx.UserSP(), true)
	child.ctx.CloneRegistersFrom(&p.ctx)
	child.ctx.SetReturnReg(0)
	child.ctx.SetAddressSpace(childSpace.Handle())

	return childPID, nil
}

// duplicateFDTable implements fd-table duplication: every open entry's
// refcount is incremented and shared, not copied (spec §4.6 "fork
// increments the open-file refcounts").
func duplicateFDTable(parent *fdTable) fdTable {
	var child fdTable
	for i, of := range parent {
		if of == nil {
			continue
		}
		of.mu.Lock()
		of.refs++
		of.mu.Unlock()
		child[i] = of
	}
	return child
}
