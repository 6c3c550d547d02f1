package sandbox

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	"github.com/poof-sh/poof/config"
	"github.com/poof-sh/poof/errdefs"
	"github.com/poof-sh/poof/pkg/fuse"
	"github.com/poof-sh/poof/pkg/mount"
)

// setupRoot performs the overlay bring-up inside the already-unshared
// namespaces and leaves the process chrooted (or pivoted) into the
// merged view with /proc and /tmp remounted.
//
// The step order is load-bearing: propagation must be private before
// the overlay mount, and /dev must exist before the root transition
// because overlay cannot synthesize character devices.
func setupRoot(cfg *WireConfig) (*fuse.Helper, error) {
	hostOverlay, err := rootIsOverlay()
	if err != nil {
		logrus.Warnf("overlay: cannot inspect /proc/mounts: %v", err)
	}
	if hostOverlay && cfg.Mode == config.Persistent {
		// persistent upper cannot stack a second overlay level
		return nil, errdefs.ErrInvalidMode
	}

	if cfg.TmpfsBase {
		m := mount.Mount{Source: "tmpfs", Target: cfg.TempBase, FsType: "tmpfs",
			Flags: unix.MS_NOSUID | unix.MS_NODEV}
		logrus.Debugf("overlay: %s", m.String())
		if err := m.Mount(); err != nil {
			return nil, fmt.Errorf("%w: tmpfs on %s: %v", errdefs.ErrMountFailed, cfg.TempBase, err)
		}
	}

	for _, d := range []string{cfg.Upper, cfg.Work, cfg.Merged} {
		if err := os.MkdirAll(d, 0755); err != nil {
			return nil, fmt.Errorf("overlay: create %s: %w", d, err)
		}
	}

	logrus.Debug("overlay: marking mount tree private")
	if err := mount.MakeTreePrivate(); err != nil {
		return nil, fmt.Errorf("%w: make tree private: %v", errdefs.ErrMountFailed, err)
	}

	var helper *fuse.Helper
	if cfg.UserNS {
		helper, err = fuse.Mount("/", cfg.Upper, cfg.Work, cfg.Merged)
		if err != nil {
			return nil, err
		}
	} else {
		if err := mountKernelOverlay(cfg, hostOverlay); err != nil {
			return nil, err
		}
	}

	if err := setupDev(cfg.Merged); err != nil {
		return nil, err
	}

	if cfg.UserNS {
		err = chrootInto(cfg.Merged, cfg.Cwd)
	} else {
		err = pivotInto(cfg.Merged, cfg.Cwd)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errdefs.ErrPivotFailed, err)
	}

	b := mount.NewBuilder().
		WithProc("/proc").
		WithTmpfs("/tmp", "")
	for i := range b.Mounts {
		m := b.Mounts[i]
		logrus.Debugf("overlay: %s", m.String())
		if err := m.Mount(); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", errdefs.ErrMountFailed, m.String(), err)
		}
	}

	if cfg.UserNS {
		devSymlinks()
	}
	return helper, nil
}

func mountKernelOverlay(cfg *WireConfig, hostOverlay bool) error {
	b := mount.NewBuilder().WithOverlay("/", cfg.Upper, cfg.Work, cfg.Merged)
	m := b.Mounts[0]
	logrus.Debugf("overlay: %s", m.String())
	err := m.Mount()
	switch {
	case err == nil:
		return nil
	case errors.Is(err, syscall.EINVAL) && hostOverlay:
		return fmt.Errorf("%w: %v", errdefs.ErrOverlayStackingLimit, err)
	case errors.Is(err, syscall.EPERM):
		return fmt.Errorf("%w: %v", errdefs.ErrOverlayMountDenied, err)
	default:
		return fmt.Errorf("%w: %s: %v", errdefs.ErrMountFailed, m.String(), err)
	}
}

// pivotInto swaps the root to merged. Requires merged to be a mount
// point the caller controls, which the overlay mount guarantees.
func pivotInto(merged, cwd string) error {
	old := filepath.Join(merged, ".oldroot")
	if err := os.MkdirAll(old, 0755); err != nil {
		return err
	}
	if err := unix.PivotRoot(merged, old); err != nil {
		return fmt.Errorf("pivot_root: %w", err)
	}
	chdirWithFallback(cwd)
	if err := unix.Unmount("/.oldroot", unix.MNT_DETACH); err != nil {
		return fmt.Errorf("detach old root: %w", err)
	}
	return os.Remove("/.oldroot")
}

// chrootInto is the root transition for the FUSE path; pivot_root is
// incompatible with the FUSE daemon holding the parent's root view.
func chrootInto(merged, cwd string) error {
	if err := unix.Chroot(merged); err != nil {
		return fmt.Errorf("chroot: %w", err)
	}
	chdirWithFallback(cwd)
	return nil
}

func chdirWithFallback(cwd string) {
	if cwd != "" {
		if err := unix.Chdir(cwd); err == nil {
			return
		}
	}
	unix.Chdir("/")
}

// devSymlinks creates the fd passthrough links the kernel devtmpfs
// would normally provide. Only needed on the FUSE path.
func devSymlinks() {
	links := []struct{ target, name string }{
		{"/proc/self/fd", "/dev/fd"},
		{"/proc/self/fd/0", "/dev/stdin"},
		{"/proc/self/fd/1", "/dev/stdout"},
		{"/proc/self/fd/2", "/dev/stderr"},
	}
	for _, l := range links {
		if err := os.Symlink(l.target, l.name); err != nil && !os.IsExist(err) {
			logrus.Warnf("overlay: symlink %s: %v", l.name, err)
		}
	}
}

// rootIsOverlay reports whether the host root filesystem is itself an
// overlay (a container host), which caps kernel overlay stacking.
func rootIsOverlay() (bool, error) {
	f, err := os.Open("/proc/mounts")
	if err != nil {
		return false, err
	}
	defer f.Close()
	return scanMountsForOverlayRoot(f), nil
}

func scanMountsForOverlayRoot(r io.Reader) bool {
	s := bufio.NewScanner(r)
	for s.Scan() {
		fields := strings.Fields(s.Text())
		if len(fields) >= 3 && fields[1] == "/" && fields[2] == "overlay" {
			return true
		}
	}
	return false
}
