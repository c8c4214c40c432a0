// Command kernel is mazkernel's boot entry point: the host-side harness
// that brings the kernel up in the order spec §2 describes (HAL -> PMM
// -> paging -> scheduler -> first task) and then drives the scheduler
// loop to completion. It is the one binary in this repo that runs under
// a real host OS — everything else is freestanding-shaped kernel code —
// so it is also the one place that owns a real terminal via
// internal/drivers/console.
package main

import (
	"os"

	"mazkernel/internal/drivers/console"
	"mazkernel/internal/drivers/keyboard"
	"mazkernel/internal/hal"
	"mazkernel/internal/klog"
	"mazkernel/internal/pmm"
	"mazkernel/internal/task"
	"mazkernel/internal/usb/uhci"
	"mazkernel/internal/vfs"
)

// bootMemoryMap matches spec scenario 1's idle-boot layout exactly:
// [0, 1 MiB) reserved (legacy BIOS/real-mode region), [1 MiB, 64 MiB)
// available — total_frames == 16384 at 4 KiB pages.
func bootMemoryMap() []pmm.Region {
	const mib = 1024 * 1024
	return []pmm.Region{
		{Start: 0, Length: 1 * mib, Kind: pmm.Reserved},
		{Start: 1 * mib, Length: 63 * mib, Kind: pmm.Available},
	}
}

func main() {
	klog.Infof("boot", "mazkernel starting (%s)", hal.ArchName())

	hal.CPUInit()
	hal.InterruptInit()
	hal.MMUInit()
	klog.Infof("boot", "HAL ready: cpu=%v interrupt=%v mmu=%v", hal.CPUInitialized(), hal.InterruptInitialized(), hal.MMUInitialized())

	if err := pmm.Init(bootMemoryMap(), 1*1024*1024, nil); err != nil {
		klog.Panicf("boot", "pmm.Init: %v", err)
	}
	info := pmm.GetInfo()
	klog.Infof("boot", "pmm ready: total_frames=%d free_frames=%d consistent=%v", info.TotalFrames, info.FreeFrames, pmm.VerifyConsistency())

	vfs.RegisterStandardDevices()

	kbd := keyboard.New()
	if err := keyboard.Register(kbd); err != nil {
		klog.Panicf("boot", "keyboard.Register: %v", err)
	}

	con, err := console.New(os.Stdin, os.Stdout, kbd)
	if err != nil {
		// Headless boot (no real tty backing stdin, the common case when
		// this binary is driven by a test harness or a CI runner): the
		// console is still writable, only raw-keystroke input is absent.
		klog.Warnf("boot", "console: %v (continuing with output-only console)", err)
	} else {
		con.Start()
	}
	if err := console.Register(con); err != nil {
		klog.Panicf("boot", "console.Register: %v", err)
	}
	klog.SetSink(con)
	defer con.Restore()

	ctl, err := uhci.New()
	if err != nil {
		klog.Panicf("boot", "uhci.New: %v", err)
	}
	if err := ctl.Init(); err != nil {
		klog.Panicf("boot", "uhci.Init: %v", err)
	}
	ctl.StartHotplugPolling()
	defer ctl.StopHotplugPolling()
	klog.Infof("boot", "uhci ready: %d controller(s) registered", len(uhci.Controllers()))

	runIdleBoot()
}

// runIdleBoot reproduces spec scenario 1 end to end: the idle task
// dispatches, a kernel thread runs to completion and calls task_exit(0),
// and the scheduler sweeps its slot back to UNUSED on the next pass.
func runIdleBoot() {
	done := make(chan struct{})
	pid, err := task.SpawnKernelThread("greeter", func() {
		klog.Infof("boot", "first kernel thread running")
		close(done)
	})
	if err != nil {
		klog.Panicf("boot", "SpawnKernelThread: %v", err)
	}

	got, ok := task.Dispatch()
	if !ok || got != pid {
		klog.Panicf("boot", "Dispatch() = (%v, %v), want (%v, true)", got, ok, pid)
	}
	task.Get(got).Context().Run()
	<-done

	// A second dispatch pass finds nothing ready and sweeps the
	// now-terminated thread's slot, leaving it UNUSED (spec scenario 1).
	if _, ok := task.Dispatch(); ok {
		klog.Warnf("boot", "unexpected ready task after idle boot's one kernel thread exited")
	}
	if task.Get(pid) != nil {
		klog.Warnf("boot", "kernel thread slot not reaped after task_exit")
	}

	klog.Infof("boot", "idle boot complete")
}
