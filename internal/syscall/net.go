package syscall

import "mazkernel/internal/task"

// doSocket implements SysSocket. spec §1 places the TCP/UDP engines and
// socket layer out of scope, specifying only the allocation-sentinel
// concurrency pattern as a design note (see internal/net/socket); the
// syscall number is reserved and stable, but the only behavior in scope
// here is returning ENOSYS, matching a real kernel built without a
// given subsystem compiled in.
func doSocket(caller task.PID, domain, typ, proto int64) int64 {
	return int64(ENOSYS)
}
