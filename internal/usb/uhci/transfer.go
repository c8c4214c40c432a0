package uhci

import (
	"time"

	"mazkernel/internal/klog"
)

// Result is what a caller of Control/Bulk gets back: the classified
// outcome plus whatever data the IN direction produced.
type Result struct {
	Status TransferStatus
	Data   []byte
}

const (
	defaultControlTimeout = 5 * time.Second
	defaultBulkTimeout    = 10 * time.Second
	pollInterval          = time.Millisecond
)

// buildDataTDs splits a buffer into maxPacketSize chunks, one TD each,
// toggling data-toggle starting from toggle (spec §4.7 "zero or more DATA
// TDs (IN or OUT, max_packet_size each, toggling data-toggle)"). Returns
// the allocated TD indices and the data-toggle value the *next* TD after
// this run should start from. For an IN transfer of unknown actual length
// (as with control reads), a single maxPacketSize-capacity TD is enough;
// buildDataTDs is told the expected length via want for that case.
func (c *Controller) buildDataTDs(dir int, buf []byte, want int, toggle int) ([]int, int, error) {
	var tds []int
	length := len(buf)
	if dir == DirIn {
		length = want
	}
	if length == 0 {
		return tds, toggle, nil
	}
	for off := 0; off < length; off += maxPacketSize {
		end := off + maxPacketSize
		if end > length {
			end = length
		}
		idx, err := c.tds.alloc()
		if err != nil {
			for _, t := range tds {
				c.tds.release(t)
			}
			return nil, toggle, err
		}
		d := c.tds.get(idx)
		d.dir = dir
		if dir == DirOut {
			d.data = append([]byte(nil), buf[off:end]...)
		} else {
			d.data = make([]byte, end-off)
		}
		d.ctrlStatus = tdActive
		tds = append(tds, idx)
		toggle ^= 1
	}
	return tds, toggle, nil
}

// chainTDs links a run of TD pool indices together (device-visible link
// fields) with the depth-first traversal flag spec §4.7 asks for ("Link
// the chain with depth-first traversal flags"), setting IOC on the last.
func (c *Controller) chainTDs(tds []int, setupIdx int, statusIdx int) []int {
	all := make([]int, 0, len(tds)+2)
	if setupIdx >= 0 {
		all = append(all, setupIdx)
	}
	all = append(all, tds...)
	if statusIdx >= 0 {
		all = append(all, statusIdx)
	}
	for i, idx := range all {
		t := c.tds.get(idx)
		if i == len(all)-1 {
			t.link = linkTerminate
			t.ctrlStatus |= tdIOC
		} else {
			next := c.tds.get(all[i+1])
			t.link = uint32(next.pa) | linkDepth
		}
	}
	return all
}

// classify maps a TD's completed ctrlStatus word to a TransferStatus (spec
// §4.7 "classify per TD: STALL, babble/timeout/buffer/bit-stuff -> error,
// NAK, otherwise complete").
func classify(t *td) TransferStatus {
	switch {
	case t.ctrlStatus&tdStall != 0:
		return StatusStall
	case t.ctrlStatus&tdNAK != 0:
		return StatusNAK
	case t.ctrlStatus&(tdBabble|tdDataBuffErr|tdBitstuff) != 0:
		return StatusError
	default:
		return StatusComplete
	}
}

// pollTD spins until t is no longer active or deadline passes (spec §4.7
// "poll each TD's status for active-cleared up to a 5s timeout"). The
// device side (Responder.Control) has already run synchronously by the
// time this is called — this loop is the software side of the protocol,
// identical in shape whether the TD completed instantly or never will.
func (c *Controller) pollTD(idx int, deadline time.Time) TransferStatus {
	t := c.tds.get(idx)
	for {
		if t.ctrlStatus&tdActive == 0 {
			return classify(t)
		}
		if !time.Now().Before(deadline) {
			return StatusTimeout
		}
		time.Sleep(pollInterval)
	}
}

// completeTD marks a TD inactive with n actual bytes transferred into its
// data buffer (IN) or consumed from it (OUT).
func completeTD(t *td, n int) {
	t.actual = n
	t.ctrlStatus &^= tdActive
}

func stallTD(t *td) {
	t.ctrlStatus &^= tdActive
	t.ctrlStatus |= tdStall
}

// emulateControl stands in for the host controller's silicon actually
// transacting on the wire: it runs the attached Responder (if any)
// against the whole control request in one shot and writes the outcome
// into every TD in the chain, the way real UHCI hardware would leave
// completed descriptors behind for software to discover by polling.
// With no Responder attached, every TD is left active and the poll loop
// above times out exactly as it would against silence on the wire.
func (c *Controller) emulateControl(port int, setup SetupPacket, dir int, out []byte, dataTDs []int, setupIdx, statusIdx int) {
	r := c.responders[port]
	if r == nil {
		return
	}
	in, ok := r.Control(setup, dir, out)
	if !ok {
		stallTD(c.tds.get(setupIdx))
		return
	}
	completeTD(c.tds.get(setupIdx), len(encodeSetup(setup)))
	off := 0
	for _, idx := range dataTDs {
		t := c.tds.get(idx)
		if dir == DirIn {
			n := copy(t.data, in[off:])
			completeTD(t, n)
			off += n
		} else {
			completeTD(t, len(t.data))
		}
	}
	completeTD(c.tds.get(statusIdx), 0)
}

func (c *Controller) emulateBulk(port, endpoint, dir int, buf []byte, tds []int) {
	r := c.responders[port]
	if r == nil {
		return
	}
	setup := SetupPacket{} // bulk has no SETUP stage; Responder treats a zero setup as "bulk"
	in, ok := r.Control(setup, dir, buf)
	if !ok {
		if len(tds) > 0 {
			stallTD(c.tds.get(tds[0]))
		}
		return
	}
	off := 0
	for _, idx := range tds {
		t := c.tds.get(idx)
		if dir == DirIn {
			n := copy(t.data, in[off:])
			completeTD(t, n)
			off += n
		} else {
			completeTD(t, len(t.data))
		}
	}
}

// Control runs spec §4.7's control transfer protocol against the device
// attached at port: SETUP + zero-or-more DATA + STATUS, polled to
// completion or a timeout, with TD/QH pool entries returned on exit
// regardless of outcome.
func (c *Controller) Control(port int, setup SetupPacket, dir int, out []byte) Result {
	c.mu.Lock()
	defer c.mu.Unlock()

	setupIdx, err := c.tds.alloc()
	if err != nil {
		return Result{Status: StatusError}
	}
	setupTD := c.tds.get(setupIdx)
	setupTD.dir = DirOut
	setupTD.data = encodeSetup(setup)
	setupTD.ctrlStatus = tdActive

	dataTDs, _, err := c.buildDataTDs(dir, out, int(setup.Length), 1)
	if err != nil {
		c.tds.release(setupIdx)
		return Result{Status: StatusError}
	}

	statusDir := DirIn
	if dir == DirIn {
		statusDir = DirOut
	}
	statusIdx, err := c.tds.alloc()
	if err != nil {
		c.tds.release(setupIdx)
		c.releaseChain(dataTDs)
		return Result{Status: StatusError}
	}
	statusTD := c.tds.get(statusIdx)
	statusTD.dir = statusDir
	statusTD.ctrlStatus = tdActive | tdIOC

	chain := c.chainTDs(dataTDs, setupIdx, statusIdx)

	qhIdx, err := c.qhs.alloc()
	if err != nil {
		c.releaseChain(chain)
		return Result{Status: StatusError}
	}
	c.qhs.get(qhIdx).elementLink = uint32(c.tds.get(chain[0]).pa) | linkDepth
	c.qhs.get(qhIdx).tds = chain
	c.frames.linkControlQH(c.qhs, qhIdx)

	c.emulateControl(port, setup, dir, out, dataTDs, setupIdx, statusIdx)

	deadline := time.Now().Add(c.controlTimeout)
	status := StatusComplete
	var collected []byte
	for _, idx := range chain {
		st := c.pollTD(idx, deadline)
		if st != StatusComplete {
			status = st
			break
		}
		t := c.tds.get(idx)
		if t.dir == DirIn && idx != statusIdx {
			collected = append(collected, t.data[:t.actual]...)
		}
	}

	c.frames.unlinkControlQH(c.qhs)
	c.qhs.release(qhIdx)
	c.releaseChain(chain)

	if status != StatusComplete {
		klog.Warnf("uhci", "control transfer on port %d: %s", port, status.String())
	}
	return Result{Status: status, Data: collected}
}

// Bulk runs spec §4.7's bulk transfer protocol: no SETUP/STATUS, the last
// TD carries IOC, and the endpoint's data-toggle persists across calls
// (tracked per-endpoint in Controller.bulkToggle, saved back only on
// success per "the endpoint's data-toggle is persistent ... and must be
// saved back after completion").
func (c *Controller) Bulk(port int, endpoint int, dir int, buf []byte, wantIn int) Result {
	c.mu.Lock()
	defer c.mu.Unlock()

	toggle := c.bulkToggle[endpoint]
	tds, next, err := c.buildDataTDs(dir, buf, wantIn, toggle)
	if err != nil {
		return Result{Status: StatusError}
	}
	if len(tds) == 0 {
		return Result{Status: StatusComplete}
	}
	chain := c.chainTDs(tds, -1, -1)

	qhIdx, err := c.qhs.alloc()
	if err != nil {
		c.releaseChain(chain)
		return Result{Status: StatusError}
	}
	c.qhs.get(qhIdx).elementLink = uint32(c.tds.get(chain[0]).pa) | linkDepth
	c.qhs.get(qhIdx).tds = chain
	c.frames.linkBulkQH(c.qhs, qhIdx)

	c.emulateBulk(port, endpoint, dir, buf, chain)

	deadline := time.Now().Add(c.bulkTimeout)
	status := StatusComplete
	var collected []byte
	for _, idx := range chain {
		st := c.pollTD(idx, deadline)
		if st != StatusComplete {
			status = st
			break
		}
		t := c.tds.get(idx)
		if dir == DirIn {
			collected = append(collected, t.data[:t.actual]...)
		}
	}

	c.frames.unlinkBulkQH(c.qhs)
	c.qhs.release(qhIdx)
	c.releaseChain(chain)

	if status == StatusComplete {
		c.bulkToggle[endpoint] = next
	}
	return Result{Status: status, Data: collected}
}

func (c *Controller) releaseChain(chain []int) {
	for _, idx := range chain {
		c.tds.release(idx)
	}
}

func encodeSetup(s SetupPacket) []byte {
	return []byte{
		s.RequestType, s.Request,
		byte(s.Value), byte(s.Value >> 8),
		byte(s.Index), byte(s.Index >> 8),
		byte(s.Length), byte(s.Length >> 8),
	}
}
