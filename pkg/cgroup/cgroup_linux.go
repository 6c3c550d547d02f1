package cgroup

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const (
	basePath    = "/sys/fs/cgroup"
	cgroupProcs = "cgroup.procs"
	controllers = "cgroup.controllers"

	dirPerm  = 0755
	filePerm = 0644
)

// Available reports whether a cgroups v2 hierarchy is mounted at the
// unified path.
func Available() bool {
	_, err := os.Stat(path.Join(basePath, controllers))
	return err == nil
}

// Group is a single v2 cgroup directory created for one sandbox run.
type Group struct {
	path string

	// originalProcs is the cgroup.procs file of the cgroup the
	// supervisor belonged to before joining the new group.
	originalProcs string
}

// New creates /sys/fs/cgroup/poof-<hex> where hex renders 64 random
// bits. The caller's original cgroup is recorded so Destroy can move
// the process back before removing the directory.
func New() (*Group, error) {
	orig, err := currentProcsPath()
	if err != nil {
		return nil, fmt.Errorf("cgroup: read current cgroup: %w", err)
	}
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return nil, fmt.Errorf("cgroup: random name: %w", err)
	}
	p := path.Join(basePath, "poof-"+hex.EncodeToString(b[:]))
	if err := os.Mkdir(p, dirPerm); err != nil {
		return nil, fmt.Errorf("cgroup: create %s: %w", p, err)
	}
	return &Group{path: p, originalProcs: orig}, nil
}

// Path returns the absolute cgroup directory path.
func (g *Group) Path() string {
	return g.path
}

// AddProc writes pid into cgroup.procs.
func (g *Group) AddProc(pid int) error {
	return g.WriteUint(cgroupProcs, uint64(pid))
}

// SetMemoryLimit writes memory.max in bytes.
func (g *Group) SetMemoryLimit(l uint64) error {
	return g.WriteUint("memory.max", l)
}

// SetProcLimit writes pids.max.
func (g *Group) SetProcLimit(l uint64) error {
	return g.WriteUint("pids.max", l)
}

// Destroy moves the calling process back to its original cgroup and
// removes the created directory. It is idempotent and safe to call
// from a signal path; every step is best-effort until the final rmdir.
func (g *Group) Destroy() error {
	if g == nil || g.path == "" {
		return nil
	}
	// move self out first, rmdir fails on a populated group
	writeFile(g.originalProcs, []byte(strconv.Itoa(os.Getpid())), filePerm)

	// the kernel holds the group busy for a moment after the last
	// member exits
	p := g.path
	g.path = ""
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 10 * time.Millisecond
	bo.MaxElapsedTime = time.Second
	return backoff.Retry(func() error {
		err := os.Remove(p)
		if err == nil || errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}, bo)
}

// WriteUint writes uint64 into the given interface file.
func (g *Group) WriteUint(filename string, i uint64) error {
	return g.WriteFile(filename, []byte(strconv.FormatUint(i, 10)))
}

// ReadUint reads uint64 from the given interface file.
func (g *Group) ReadUint(filename string) (uint64, error) {
	b, err := g.ReadFile(filename)
	if err != nil {
		return 0, err
	}
	return parseUint(b)
}

// WriteFile writes a cgroup interface file and handles potential EINTR
// while writing to the slow device (cgroup).
func (g *Group) WriteFile(name string, content []byte) error {
	return writeFile(path.Join(g.path, name), content, filePerm)
}

// ReadFile reads a cgroup interface file and handles potential EINTR
// while reading from the slow device (cgroup).
func (g *Group) ReadFile(name string) ([]byte, error) {
	return readFile(path.Join(g.path, name))
}
