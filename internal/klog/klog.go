// Package klog is the kernel's leveled logger. It is grounded on the
// teacher's uartPuts/printHex64 style of direct, no-alloc console writes
// (src/mazboot/golang/main/uart_qemu.go): every call formats into a small
// byte buffer of its own and writes bytes straight to a sink, with no fmt
// or reflection on the logging path, since a kernel panic-logging a page
// fault cannot itself afford to fault.
package klog

import (
	"io"
	"os"
	"strconv"
	"sync"
)

// Level orders log severity, most to least verbose.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelPanic
)

func (l Level) tag() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	case LevelPanic:
		return "PANIC"
	default:
		return "?"
	}
}

var (
	mu      sync.Mutex
	sink    io.Writer = os.Stderr
	minimum           = LevelInfo
)

// SetSink redirects log output. The boot sequence in cmd/kernel calls this
// once to point klog at the console device instead of the host default.
func SetSink(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	sink = w
}

// SetLevel filters out messages below min.
func SetLevel(min Level) {
	mu.Lock()
	defer mu.Unlock()
	minimum = min
}

// write appends msg, prefixed with a level tag and the component name, and
// a trailing newline, directly to the sink under the log lock.
func write(level Level, component, msg string) {
	mu.Lock()
	defer mu.Unlock()
	if level < minimum {
		return
	}
	buf := make([]byte, 0, 128)
	buf = append(buf, '[')
	buf = append(buf, level.tag()...)
	buf = append(buf, ']', ' ')
	buf = append(buf, component...)
	buf = append(buf, ':', ' ')
	buf = append(buf, msg...)
	buf = append(buf, '\n')
	sink.Write(buf)
}

// Debugf, Infof, Warnf and Errorf log at the matching level, tagged with
// component (the subsystem name, e.g. "pmm" or "uhci").
func Debugf(component, format string, args ...interface{}) {
	logf(LevelDebug, component, format, args...)
}
func Infof(component, format string, args ...interface{}) {
	logf(LevelInfo, component, format, args...)
}
func Warnf(component, format string, args ...interface{}) {
	logf(LevelWarn, component, format, args...)
}
func Errorf(component, format string, args ...interface{}) {
	logf(LevelError, component, format, args...)
}

// Panicf logs at PANIC level unconditionally (ignoring SetLevel) and then
// panics, matching the kernel's unrecoverable-fault path (spec §7).
func Panicf(component, format string, args ...interface{}) {
	msg := sprintf(format, args...)
	write(LevelPanic, component, msg)
	panic(component + ": " + msg)
}

func logf(level Level, component, format string, args ...interface{}) {
	write(level, component, sprintf(format, args...))
}

// sprintf is a tiny, allocation-bounded formatter supporting %s, %d, %x and
// %v — the subset the kernel's own log call sites actually use — so klog
// never pulls in reflection-heavy fmt verbs on the hot logging path.
func sprintf(format string, args ...interface{}) string {
	buf := make([]byte, 0, 64)
	argi := 0
	for i := 0; i < len(format); i++ {
		c := format[i]
		if c != '%' || i+1 >= len(format) {
			buf = append(buf, c)
			continue
		}
		i++
		verb := format[i]
		var arg interface{}
		if argi < len(args) {
			arg = args[argi]
			argi++
		}
		switch verb {
		case 's':
			if s, ok := arg.(string); ok {
				buf = append(buf, s...)
			} else {
				buf = append(buf, formatValue(arg)...)
			}
		case 'd':
			buf = append(buf, formatValue(arg)...)
		case 'x':
			buf = append(buf, formatHex(arg)...)
		case 'v':
			buf = append(buf, formatValue(arg)...)
		case '%':
			buf = append(buf, '%')
			argi--
		default:
			buf = append(buf, '%', verb)
			argi--
		}
	}
	return string(buf)
}

func formatValue(v interface{}) string {
	switch x := v.(type) {
	case string:
		return x
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case uint64:
		return strconv.FormatUint(x, 10)
	case uint32:
		return strconv.FormatUint(uint64(x), 10)
	case uint16:
		return strconv.FormatUint(uint64(x), 10)
	case uint8:
		return strconv.FormatUint(uint64(x), 10)
	case bool:
		return strconv.FormatBool(x)
	case error:
		return x.Error()
	case nil:
		return "<nil>"
	default:
		return "?"
	}
}

func formatHex(v interface{}) string {
	switch x := v.(type) {
	case uint64:
		return "0x" + strconv.FormatUint(x, 16)
	case uint32:
		return "0x" + strconv.FormatUint(uint64(x), 16)
	case int:
		return "0x" + strconv.FormatInt(int64(x), 16)
	case uintptr:
		return "0x" + strconv.FormatUint(uint64(x), 16)
	default:
		return formatValue(v)
	}
}
