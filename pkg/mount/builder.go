package mount

import (
	"fmt"
	"strings"

	"golang.org/x/sys/unix"
)

const (
	bind  = unix.MS_BIND | unix.MS_NOSUID | unix.MS_PRIVATE
	mFlag = unix.MS_NOSUID | unix.MS_NODEV
)

// Builder accumulates an ordered mount plan.
type Builder struct {
	Mounts []Mount
}

// NewBuilder creates a new mount builder instance.
func NewBuilder() *Builder {
	return &Builder{}
}

// WithMount adds a single mount to the builder.
func (b *Builder) WithMount(m Mount) *Builder {
	b.Mounts = append(b.Mounts, m)
	return b
}

// WithBind adds a bind mount to the builder.
func (b *Builder) WithBind(source, target string, readonly bool) *Builder {
	var flags uintptr = bind
	if readonly {
		flags |= unix.MS_RDONLY
	}
	b.Mounts = append(b.Mounts, Mount{
		Source: source,
		Target: target,
		Flags:  flags,
	})
	return b
}

// WithTmpfs adds a tmpfs mount to the builder.
func (b *Builder) WithTmpfs(target, data string) *Builder {
	b.Mounts = append(b.Mounts, Mount{
		Source: "tmpfs",
		Target: target,
		FsType: "tmpfs",
		Flags:  mFlag,
		Data:   data,
	})
	return b
}

// WithOverlay adds a kernel overlay mount of lower with the given
// upper and work directories.
func (b *Builder) WithOverlay(lower, upper, work, target string) *Builder {
	b.Mounts = append(b.Mounts, Mount{
		Source: "overlay",
		Target: target,
		FsType: "overlay",
		Data:   fmt.Sprintf("lowerdir=%s,upperdir=%s,workdir=%s", lower, upper, work),
	})
	return b
}

// WithProc adds a fresh procfs mount. The new PID namespace needs its
// own instance so the command sees only its own process tree.
func (b *Builder) WithProc(target string) *Builder {
	b.Mounts = append(b.Mounts, Mount{
		Source: "proc",
		Target: target,
		FsType: "proc",
		Flags:  unix.MS_NOSUID | unix.MS_NODEV | unix.MS_NOEXEC,
	})
	return b
}

// WithDevpts adds a private devpts instance.
func (b *Builder) WithDevpts(target string) *Builder {
	b.Mounts = append(b.Mounts, Mount{
		Source: "devpts",
		Target: target,
		FsType: "devpts",
		Flags:  unix.MS_NOSUID | unix.MS_NOEXEC,
		Data:   "newinstance,ptmxmode=0666",
	})
	return b
}

func (b Builder) String() string {
	var sb strings.Builder
	sb.WriteString("Mounts: ")
	for i, m := range b.Mounts {
		sb.WriteString(m.String())
		if i != len(b.Mounts)-1 {
			sb.WriteString(", ")
		}
	}
	return sb.String()
}
