package uhci

import "time"

// hotplugPollInterval is spec §4.7's "periodic (≈500 ms) polling
// callback" cadence.
const hotplugPollInterval = 500 * time.Millisecond

// resetSettle models spec §4.7's "port reset (≥50 ms, then clear)".
const resetSettle = 50 * time.Millisecond

// probePort runs the connect -> reset -> enable -> speed-detect ->
// enumerate sequence for one root port if (and only if) its
// connect-status-change bit is set (spec §4.7 "a new connection triggers
// port reset ..., port enable, speed detection ..., and a call up to the
// generic USB enumeration").
func (c *Controller) probePort(port int) {
	c.mu.Lock()
	changed := c.Regs.PORTSC[port]&portConnectStatusChange != 0
	connected := c.Regs.PORTSC[port]&portConnectStatus != 0
	c.Regs.writePortSC(port, portConnectStatusChange)
	c.mu.Unlock()

	if !changed {
		return
	}
	if !connected {
		c.Detach(port)
		return
	}

	c.resetPort(port)
	c.enablePort(port)
	speed := c.detectSpeed(port)

	c.mu.Lock()
	c.portState[port] = portInfo{connected: true, enabled: true, speed: speed}
	c.mu.Unlock()

	c.enumerate(port, speed)
}

// resetPort asserts port reset for >=50ms then clears it, the wait spec
// §4.7 calls out explicitly.
func (c *Controller) resetPort(port int) {
	c.mu.Lock()
	c.Regs.PORTSC[port] |= portReset
	c.mu.Unlock()

	time.Sleep(resetSettle)

	c.mu.Lock()
	c.Regs.PORTSC[port] &^= portReset
	c.mu.Unlock()
}

func (c *Controller) enablePort(port int) {
	c.mu.Lock()
	c.Regs.PORTSC[port] |= portEnable
	c.mu.Unlock()
}

// detectSpeed reads the low-speed-device bit PORTSC latches during reset
// (spec §4.7 "speed detection (low/full)").
func (c *Controller) detectSpeed(port int) Speed {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Regs.PORTSC[port]&portLowSpeed != 0 {
		return SpeedLow
	}
	return SpeedFull
}

// StartHotplugPolling launches the periodic connect/disconnect poll (spec
// §4.7's concurrency note: "the polling body sits in a task"). In this
// host-simulated kernel that "task" is a goroutine; StopHotplugPolling
// ends it.
func (c *Controller) StartHotplugPolling() {
	c.mu.Lock()
	if c.pollStop != nil {
		c.mu.Unlock()
		return
	}
	stop := make(chan struct{})
	c.pollStop = stop
	c.mu.Unlock()

	go func() {
		ticker := time.NewTicker(hotplugPollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				for port := 0; port < numPorts; port++ {
					c.probePort(port)
				}
			}
		}
	}()
}

// StopHotplugPolling stops a poller started by StartHotplugPolling; a
// no-op if none is running.
func (c *Controller) StopHotplugPolling() {
	c.mu.Lock()
	stop := c.pollStop
	c.pollStop = nil
	c.mu.Unlock()
	if stop != nil {
		close(stop)
	}
}

// HandleIRQ is the IRQ-context entry point (spec §4.7 "the IRQ handler
// writes-1-to-clear the status word and invokes the port-change check").
// It must not block: the status clear and port probe are the same
// non-blocking operations the polling path uses.
func (c *Controller) HandleIRQ() {
	// Transfer completion is polled by the issuing task, not IRQ-driven
	// (spec §4.7), so the only work here is clearing USBSTS and checking
	// for port changes.
	c.mu.Lock()
	c.Regs.writeStatus(c.Regs.USBSTS)
	c.mu.Unlock()

	for port := 0; port < numPorts; port++ {
		c.probePort(port)
	}
}
