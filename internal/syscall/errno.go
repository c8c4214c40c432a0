package syscall

import (
	"errors"

	"mazkernel/internal/pmm"
	"mazkernel/internal/task"
	"mazkernel/internal/vfs"
)

// ErrFault is returned by the user-memory copy-in/copy-out helpers when
// a syscall argument points outside the caller's mapped user range.
var ErrFault = errors.New("syscall: bad user address")

// Errno is the negative word-width result every syscall handler returns
// on failure (spec §7: "the syscall layer translates kernel-internal
// negatives to the POSIX convention its user ABI expects").
type Errno int64

const (
	EPERM  Errno = -1
	ENOENT Errno = -2
	ESRCH  Errno = -3
	EINTR  Errno = -4
	EBADF  Errno = -9
	EAGAIN Errno = -11
	ENOMEM Errno = -12
	EFAULT Errno = -14
	EEXIST Errno = -17
	EINVAL Errno = -22
	EMFILE Errno = -24
	ENOSYS Errno = -38
)

// errnoFor classifies a kernel-internal error into the POSIX negative
// convention, matching spec §7's taxonomy (resource exhaustion, invalid
// argument, state violation are all "reported as a negative return,
// never fatal"). Unrecognized errors fall back to EINVAL rather than
// panicking — the syscall boundary is never allowed to crash the
// kernel over a bad argument.
func errnoFor(err error) Errno {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, ErrFault):
		return EFAULT
	case errors.Is(err, task.ErrNoMemory), errors.Is(err, pmm.ErrNoFrames):
		return ENOMEM
	case errors.Is(err, task.ErrNoSlots), errors.Is(err, task.ErrTooManyFDs):
		return EMFILE
	case errors.Is(err, task.ErrNoSuchTask), errors.Is(err, task.ErrNoSuchChild):
		return ESRCH
	case errors.Is(err, task.ErrBadFD):
		return EBADF
	case errors.Is(err, task.ErrNotUser), errors.Is(err, task.ErrInvalidArgument):
		return EINVAL
	case errors.Is(err, task.ErrWouldBlock):
		return EAGAIN
	case errors.Is(err, vfs.ErrNotFound):
		return ENOENT
	case errors.Is(err, vfs.ErrAlreadyOpen):
		return EEXIST
	case errors.Is(err, pmm.ErrUnaligned), errors.Is(err, pmm.ErrOutOfRange):
		return EINVAL
	case errors.Is(err, pmm.ErrProtected):
		return EPERM
	default:
		return EINVAL
	}
}
