// Package errdefs defines the error kinds surfaced by poof setup and
// supervision, together with the remediation hints printed for the
// permission failures that have a known workaround.
package errdefs

import (
	"errors"
)

var (
	// ErrCgroupsUnavailable indicates resource limits were requested but
	// cgroups v2 is not mounted at /sys/fs/cgroup.
	ErrCgroupsUnavailable = errors.New("cgroups v2 not available")

	// ErrInvalidOption indicates a malformed command line option value.
	ErrInvalidOption = errors.New("invalid option")

	// ErrInvalidMode indicates persistent mode inside an overlay-rooted host.
	ErrInvalidMode = errors.New("persistent mode not supported on an overlay root")

	// ErrUnshareDenied indicates namespace creation was refused even after
	// the user namespace retry.
	ErrUnshareDenied = errors.New("namespace creation denied")

	// ErrOverlayMountDenied indicates the kernel overlay mount failed with EPERM.
	ErrOverlayMountDenied = errors.New("overlay mount denied")

	// ErrOverlayStackingLimit indicates the kernel refused to stack another
	// overlay on top of an overlay-based root (2-level limit).
	ErrOverlayStackingLimit = errors.New("overlay stacking limit reached")

	// ErrFuseNotInstalled indicates fuse-overlayfs is not present.
	ErrFuseNotInstalled = errors.New("fuse-overlayfs not installed")

	// ErrFuseStartupFailed indicates fuse-overlayfs exited during startup.
	ErrFuseStartupFailed = errors.New("fuse-overlayfs failed to start")

	// ErrFuseVerifyFailed indicates the FUSE mount never materialized.
	ErrFuseVerifyFailed = errors.New("fuse-overlayfs mount verification failed")

	// ErrMountFailed is the generic mount failure during bring-up.
	ErrMountFailed = errors.New("mount failed")

	// ErrPivotFailed indicates the root transition (pivot_root or chroot) failed.
	ErrPivotFailed = errors.New("root transition failed")

	// ErrExecFailed indicates the target program could not be executed.
	ErrExecFailed = errors.New("exec failed")

	// ErrTimeout indicates the sandboxed command exceeded its deadline.
	ErrTimeout = errors.New("timeout")
)

// Hint returns the remediation hint for err, or the empty string when
// there is nothing actionable to suggest.
func Hint(err error) string {
	switch {
	case errors.Is(err, ErrUnshareDenied):
		return "inside Docker, retry with --security-opt seccomp=unconfined; " +
			"on the host, check sysctl kernel.unprivileged_userns_clone"
	case errors.Is(err, ErrOverlayMountDenied):
		return "kernel overlay needs CAP_SYS_ADMIN; install fuse-overlayfs to run unprivileged"
	case errors.Is(err, ErrOverlayStackingLimit):
		return "the host root is itself an overlay; the kernel allows only two stacked levels"
	case errors.Is(err, ErrFuseNotInstalled):
		return "install fuse-overlayfs (e.g. apt install fuse-overlayfs)"
	}
	return ""
}
