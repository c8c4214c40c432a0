package vfs

// nullDevice implements /dev/null: writes are discarded, reads return EOF.
type nullDevice struct{}

type nullFile struct{}

func (nullDevice) Open(OpenFlag) (File, error) { return nullFile{}, nil }

func (nullFile) Read(p []byte) (int, error)  { return 0, nil }
func (nullFile) Write(p []byte) (int, error) { return len(p), nil }
func (nullFile) Close() error                { return nil }

// RegisterStandardDevices installs the device nodes that have no
// hardware backing of their own (spec's devfs supplement). Console and
// keyboard register themselves separately from internal/drivers, since
// they own real state.
func RegisterStandardDevices() {
	mu.Lock()
	_, exists := registry["/dev/null"]
	mu.Unlock()
	if exists {
		return
	}
	Register("/dev/null", nullDevice{})
}
