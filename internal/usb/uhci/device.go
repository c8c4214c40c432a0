package uhci

// Standard control-request fields (USB 2.0 spec table 9-2), just enough to
// drive GET_DESCRIPTOR / SET_ADDRESS during enumeration.
const (
	reqGetDescriptor = 0x06
	reqSetAddress    = 0x05

	descTypeDevice = 0x01
)

// SetupPacket is the 8-byte control SETUP stage payload (spec §4.7 "Build
// SETUP TD (8-byte setup packet)").
type SetupPacket struct {
	RequestType uint8
	Request     uint8
	Value       uint16
	Index       uint16
	Length      uint16
}

// Responder is how mazkernel stands in for the silicon on the other end of
// a control or bulk transfer: an emulated device attached to a root port.
// A real UHCI core would transact with an electrical device and let the
// host controller's DMA engine fill in DATA TDs; this kernel has no bus
// underneath it; Responder plays the device's role the same way
// internal/vfs.MemFile plays a filesystem's (the shape of the protocol is
// unchanged, only the medium is emulated).
type Responder interface {
	// Control services one control transfer. dir is DirIn or DirOut. out
	// is the OUT-direction payload (nil for IN or zero-length transfers).
	// Returning ok==false STALLs the transfer.
	Control(setup SetupPacket, dir int, out []byte) (in []byte, ok bool)
}

// Device is an enumerated USB device as the generic layer would record it
// (spec scenario 6: "the device appears in the HC's device list at
// port == 0, address == 1").
type Device struct {
	Port       int
	Address    uint8
	Speed      Speed
	Descriptor []byte // the 18-byte DEVICE descriptor read during enumeration
}

// nextAddress is handed out to every enumerated device in turn, starting
// at 1 (address 0 is reserved for default, not-yet-addressed devices, the
// same convention scenario 6 exercises: "assigns address 1").
func (c *Controller) nextAddress() uint8 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return uint8(len(c.devices) + 1)
}

// enumerate runs the generic USB layer's minimal enumeration sequence
// against the device newly connected at port (spec §4.7 "a call up to the
// generic USB enumeration"; spec scenario 6 "the generic enumerate
// sequence reads an 18-byte DEVICE descriptor and assigns address 1").
// A full generic USB stack (configuration descriptors, interface/class
// drivers) is out of scope; this is the minimal address-assignment
// handshake the spec's scenario exercises.
func (c *Controller) enumerate(port int, speed Speed) {
	short := c.Control(port, SetupPacket{
		RequestType: 0x80,
		Request:     reqGetDescriptor,
		Value:       uint16(descTypeDevice) << 8,
		Length:      8,
	}, DirIn, nil)
	if short.Status != StatusComplete {
		return
	}

	full := c.Control(port, SetupPacket{
		RequestType: 0x80,
		Request:     reqGetDescriptor,
		Value:       uint16(descTypeDevice) << 8,
		Length:      18,
	}, DirIn, nil)
	if full.Status != StatusComplete {
		return
	}

	addr := c.nextAddress()
	assign := c.Control(port, SetupPacket{
		RequestType: 0x00,
		Request:     reqSetAddress,
		Value:       uint16(addr),
	}, DirOut, nil)
	if assign.Status != StatusComplete {
		return
	}

	c.mu.Lock()
	c.devices = append(c.devices, Device{
		Port:       port,
		Address:    addr,
		Speed:      speed,
		Descriptor: full.Data,
	})
	c.mu.Unlock()
}
