package uhci

// frameList is the controller's 1024-entry, 4 KiB-aligned schedule (spec
// §4.7): "every entry points at a shared 'interrupt' queue head, which
// links to a 'control' queue head, which links to a 'bulk' queue head,
// which terminates." mazkernel runs every root-port transfer through the
// control/bulk queues; the interrupt QH is carried for shape fidelity
// (periodic transfers are out of scope) and always terminates empty.
type frameList struct {
	entries [frameListLen]uint32

	interruptQH int
	controlQH   int
	bulkQH      int
}

// newFrameList builds the static interrupt -> control -> bulk chain and
// points every frame-list slot at the interrupt QH, the layout spec §4.7
// describes.
func newFrameList(qhs *qhPool) (*frameList, error) {
	fl := &frameList{}

	iq, err := qhs.alloc()
	if err != nil {
		return nil, err
	}
	cq, err := qhs.alloc()
	if err != nil {
		qhs.release(iq)
		return nil, err
	}
	bq, err := qhs.alloc()
	if err != nil {
		qhs.release(iq)
		qhs.release(cq)
		return nil, err
	}

	fl.interruptQH, fl.controlQH, fl.bulkQH = iq, cq, bq

	interrupt, control, bulk := qhs.get(iq), qhs.get(cq), qhs.get(bq)
	interrupt.headLink = uint32(control.pa) | linkQH
	control.headLink = uint32(bulk.pa) | linkQH
	bulk.headLink = linkTerminate

	for i := range fl.entries {
		fl.entries[i] = uint32(interrupt.pa) | linkQH
	}

	return fl, nil
}

// linkControlQH inserts transferQH as the control queue head's element
// pointer, the slot "per-transfer queue heads are inserted ... while in
// flight" (spec §4.7).
func (fl *frameList) linkControlQH(qhs *qhPool, transferQH int) {
	qhs.get(fl.controlQH).elementLink = uint32(qhs.get(transferQH).pa) | linkQH
}

func (fl *frameList) unlinkControlQH(qhs *qhPool) {
	qhs.get(fl.controlQH).elementLink = linkTerminate
}

func (fl *frameList) linkBulkQH(qhs *qhPool, transferQH int) {
	qhs.get(fl.bulkQH).elementLink = uint32(qhs.get(transferQH).pa) | linkQH
}

func (fl *frameList) unlinkBulkQH(qhs *qhPool) {
	qhs.get(fl.bulkQH).elementLink = linkTerminate
}
