package supervisor

import "golang.org/x/sys/unix"

// Exit codes surfaced by poof itself; the child's own code passes
// through untouched.
const (
	ExitSetupFailure = 1
	ExitTimeout      = 124
	ExitExecFailure  = 127
)

// translateStatus maps a wait status to the shell exit convention:
// the child's code for a normal exit, 128+signal for a signal death,
// and 1 for anything else.
func translateStatus(ws unix.WaitStatus) int {
	switch {
	case ws.Exited():
		return ws.ExitStatus()
	case ws.Signaled():
		return 128 + int(ws.Signal())
	default:
		return 1
	}
}
