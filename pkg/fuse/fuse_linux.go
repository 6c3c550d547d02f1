// Package fuse drives the fuse-overlayfs helper used when the caller
// lacks CAP_SYS_ADMIN for kernel overlay mounts.
package fuse

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	"github.com/poof-sh/poof/errdefs"
)

// Binary is the helper executable path.
const Binary = "/usr/bin/fuse-overlayfs"

// startupWait is how long the helper gets before its exit status is
// inspected for a startup failure.
const startupWait = 100 * time.Millisecond

// Helper is a running fuse-overlayfs process. Its lifetime bounds the
// validity of the merged mount.
type Helper struct {
	Pid int

	cmd *exec.Cmd
}

// Mount launches fuse-overlayfs in foreground mode over merged and
// verifies the mount materialized. Foreground is required so the
// helper stays alive for the lifetime of the sandbox.
func Mount(lower, upper, work, merged string) (*Helper, error) {
	opts := fmt.Sprintf("lowerdir=%s,upperdir=%s,workdir=%s,squash_to_root", lower, upper, work)
	cmd := exec.Command(Binary, "-f", "-o", opts, merged)
	cmd.Stderr = os.Stderr
	cmd.SysProcAttr = &syscall.SysProcAttr{
		// the helper must not outlive the sandbox init process
		Pdeathsig: syscall.SIGKILL,
	}
	logrus.Debugf("fuse: starting %s -f -o %s %s", Binary, opts, merged)
	if err := cmd.Start(); err != nil {
		if errors.Is(err, os.ErrNotExist) || errors.Is(err, exec.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", errdefs.ErrFuseNotInstalled, Binary)
		}
		return nil, fmt.Errorf("%w: %v", errdefs.ErrFuseStartupFailed, err)
	}

	time.Sleep(startupWait)
	if code, exited := earlyExit(cmd.Process.Pid); exited {
		return nil, classifyExit(code)
	}

	if err := verifyMount(merged); err != nil {
		cmd.Process.Kill()
		cmd.Wait()
		return nil, err
	}
	return &Helper{Pid: cmd.Process.Pid, cmd: cmd}, nil
}

// earlyExit performs a non-blocking wait on the helper. It reports the
// exit code and whether the helper has already exited.
func earlyExit(pid int) (int, bool) {
	var ws unix.WaitStatus
	wpid, err := unix.Wait4(pid, &ws, unix.WNOHANG, nil)
	if err != nil || wpid != pid {
		return 0, false
	}
	if ws.Exited() {
		return ws.ExitStatus(), true
	}
	if ws.Signaled() {
		return 128 + int(ws.Signal()), true
	}
	return 0, false
}

// classifyExit maps an early helper exit to the error taxonomy. The
// shell convention exit code 127 means the binary was not found.
func classifyExit(code int) error {
	if code == 127 {
		return fmt.Errorf("%w: %s", errdefs.ErrFuseNotInstalled, Binary)
	}
	return fmt.Errorf("%w: helper exited with code %d", errdefs.ErrFuseStartupFailed, code)
}

// verifyMaxWait bounds the mount materialization poll.
var verifyMaxWait = 2 * time.Second

// verifyMount polls merged until the overlay shows through. An overlay
// of the root filesystem is never empty once mounted, so an empty
// directory means the mount did not materialize.
func verifyMount(merged string) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 25 * time.Millisecond
	bo.MaxElapsedTime = verifyMaxWait
	err := backoff.Retry(func() error {
		ents, err := os.ReadDir(merged)
		if err != nil {
			return err
		}
		if len(ents) == 0 {
			return errors.New("merged directory still empty")
		}
		return nil
	}, bo)
	if err != nil {
		return fmt.Errorf("%w: %v", errdefs.ErrFuseVerifyFailed, err)
	}
	return nil
}

// Kill terminates the helper and reaps it.
func (h *Helper) Kill() {
	if h == nil || h.cmd == nil || h.cmd.Process == nil {
		return
	}
	h.cmd.Process.Signal(unix.SIGTERM)
	h.cmd.Wait()
}
