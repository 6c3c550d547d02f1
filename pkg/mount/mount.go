// Package mount provides typed mount points and a builder that
// assembles the mount plan executed inside the sandbox namespace.
package mount

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// Mount defines a single mount syscall.
type Mount struct {
	Source, Target, FsType, Data string
	Flags                        uintptr
}

func (m Mount) String() string {
	switch {
	case m.Flags&unix.MS_BIND == unix.MS_BIND:
		flag := "rw"
		if m.Flags&unix.MS_RDONLY == unix.MS_RDONLY {
			flag = "ro"
		}
		return fmt.Sprintf("bind[%s:%s:%s]", m.Source, m.Target, flag)

	case m.FsType == "overlay":
		return fmt.Sprintf("overlay[%s,%s]", m.Target, m.Data)

	case m.FsType == "tmpfs":
		return fmt.Sprintf("tmpfs[%s]", m.Target)

	case m.FsType == "proc":
		return "proc[]"

	default:
		return fmt.Sprintf("mount[%s,%s:%s:%x,%s]", m.FsType, m.Source, m.Target, m.Flags, m.Data)
	}
}
