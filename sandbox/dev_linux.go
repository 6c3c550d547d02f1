package sandbox

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	"github.com/poof-sh/poof/errdefs"
	"github.com/poof-sh/poof/pkg/mount"
)

// devNodes are the host devices carried into the sandbox by bind
// mount. Disk and memory devices are deliberately absent.
var devNodes = []string{"null", "zero", "full", "random", "urandom", "tty"}

// setupDev builds the minimal /dev tree inside merged: a small tmpfs
// with bind-mounted device nodes and a private devpts instance.
// Individual node failures are logged and skipped; the sandbox runs
// with whatever it could create.
func setupDev(merged string) error {
	dev := filepath.Join(merged, "dev")
	m := mount.Mount{Source: "tmpfs", Target: dev, FsType: "tmpfs",
		Flags: unix.MS_NOSUID, Data: "mode=755,size=64k"}
	logrus.Debugf("dev: %s", m.String())
	if err := m.Mount(); err != nil {
		return fmt.Errorf("%w: tmpfs on %s: %v", errdefs.ErrMountFailed, dev, err)
	}

	for _, d := range []string{"pts", "shm"} {
		if err := os.Mkdir(filepath.Join(dev, d), 0755); err != nil {
			logrus.Warnf("dev: mkdir %s: %v", d, err)
		}
	}

	for _, n := range devNodes {
		if err := mount.BindFile("/dev/"+n, filepath.Join(dev, n)); err != nil {
			logrus.Warnf("dev: bind /dev/%s: %v", n, err)
		}
	}

	pts := mount.NewBuilder().WithDevpts(filepath.Join(dev, "pts")).Mounts[0]
	logrus.Debugf("dev: %s", pts.String())
	if err := pts.Mount(); err != nil {
		logrus.Warnf("dev: devpts: %v", err)
	}
	if err := os.Symlink("pts/ptmx", filepath.Join(dev, "ptmx")); err != nil {
		logrus.Warnf("dev: ptmx symlink: %v", err)
	}
	return nil
}
