package mount

import (
	"os"

	"golang.org/x/sys/unix"
)

// Mount performs the mount syscall, creating the target directory if
// needed. Read-only bind mounts are remounted, the kernel ignores
// MS_RDONLY on the initial bind.
func (m *Mount) Mount() error {
	if err := os.MkdirAll(m.Target, 0755); err != nil {
		return err
	}
	if err := unix.Mount(m.Source, m.Target, m.FsType, m.Flags, m.Data); err != nil {
		return err
	}
	const bindRo = unix.MS_BIND | unix.MS_RDONLY
	if m.Flags&bindRo == bindRo {
		if err := unix.Mount("", m.Target, m.FsType, m.Flags|unix.MS_REMOUNT, m.Data); err != nil {
			return err
		}
	}
	return nil
}

// BindFile bind-mounts a single file (typically a device node) over
// target, creating an empty file there first. Overlay cannot
// synthesize character devices, bind mounts carry them in.
func BindFile(source, target string) error {
	f, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil && !os.IsExist(err) {
		return err
	}
	if f != nil {
		f.Close()
	}
	return unix.Mount(source, target, "", unix.MS_BIND, "")
}

// MakeTreePrivate marks the entire mount tree private so mounts in
// the sandbox namespace do not propagate back to the host.
func MakeTreePrivate() error {
	return unix.Mount("none", "/", "", unix.MS_PRIVATE|unix.MS_REC, "")
}
