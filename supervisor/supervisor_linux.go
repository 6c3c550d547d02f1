// Package supervisor runs the parent side of a sandbox invocation:
// resource limits, directory planning, child spawn with namespace
// negotiation, signal forwarding, timeout enforcement and cleanup.
package supervisor

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
	"golang.org/x/term"

	"github.com/poof-sh/poof/config"
	"github.com/poof-sh/poof/errdefs"
	"github.com/poof-sh/poof/pkg/cgroup"
	"github.com/poof-sh/poof/review"
	"github.com/poof-sh/poof/sandbox"
)

// cloneFlags are the namespaces every sandbox gets. NEWUSER is added
// only when negotiated.
const cloneFlags = unix.CLONE_NEWNS | unix.CLONE_NEWPID | unix.CLONE_NEWUTS | unix.CLONE_NEWIPC

// Supervisor owns one sandbox run from setup to cleanup.
type Supervisor struct {
	cfg   *config.Config
	plan  *Plan
	slots CleanupSlots
}

// New creates a supervisor for cfg.
func New(cfg *config.Config) *Supervisor {
	return &Supervisor{cfg: cfg}
}

// Run executes the sandbox and returns the process exit code.
func (s *Supervisor) Run() int {
	if err := s.setupCgroup(); err != nil {
		fail(err)
		return ExitSetupFailure
	}

	plan, err := BuildPlan(s.cfg)
	if err != nil {
		s.slots.TeardownCgroup()
		fail(err)
		return ExitSetupFailure
	}
	s.plan = plan
	s.slots.TempBase = plan.TempBase
	if s.cfg.Mode == config.Persistent {
		s.slots.WorkDir = plan.Work
		s.slots.MergedDir = plan.Merged
	}

	// handlers are live before the fork; deliveries between install
	// and spawn sit in the channel buffer
	sigCh := make(chan os.Signal, 4)
	signal.Notify(sigCh, unix.SIGINT, unix.SIGTERM, unix.SIGHUP)
	defer signal.Stop(sigCh)

	code := s.runChild(sigCh)

	s.slots.TeardownCgroup()
	if s.cfg.InteractiveTarget != "" {
		s.reviewChanges()
	}
	s.slots.RemoveDirs()
	return code
}

// setupCgroup creates the per-run group and joins it so the child
// inherits membership across the fork. Individual limit writes
// soft-fail; an unavailable v2 hierarchy is fatal only when limits
// were requested.
func (s *Supervisor) setupCgroup() error {
	if !s.cfg.HasLimits() {
		return nil
	}
	if !cgroup.Available() {
		return fmt.Errorf("%w: /sys/fs/cgroup/cgroup.controllers missing", errdefs.ErrCgroupsUnavailable)
	}
	g, err := cgroup.New()
	if err != nil {
		return err
	}
	s.slots.Group = g
	if s.cfg.MemoryLimit > 0 {
		if err := g.SetMemoryLimit(s.cfg.MemoryLimit); err != nil {
			logrus.Warnf("cgroup: memory.max: %v", err)
		}
	}
	if s.cfg.PidsLimit > 0 {
		if err := g.SetProcLimit(s.cfg.PidsLimit); err != nil {
			logrus.Warnf("cgroup: pids.max: %v", err)
		}
	}
	if err := g.AddProc(os.Getpid()); err != nil {
		s.slots.TeardownCgroup()
		return fmt.Errorf("cgroup: join %s: %w", g.Path(), err)
	}
	logrus.Debugf("cgroup: joined %s", g.Path())
	return nil
}

// runChild negotiates namespaces, spawns the sandbox init process and
// supervises it to completion.
func (s *Supervisor) runChild(sigCh chan os.Signal) int {
	userNS := os.Geteuid() != 0

	cmd, confW, err := s.spawn(userNS)
	if err != nil && !userNS && errors.Is(err, syscall.EPERM) {
		// root inside a container without CAP_SYS_ADMIN: retry with a
		// user namespace and switch to the FUSE backend
		logrus.Debug("spawn: EPERM without user namespace, retrying with one")
		userNS = true
		cmd, confW, err = s.spawn(userNS)
	}
	if err != nil {
		fail(fmt.Errorf("%w: %v", errdefs.ErrUnshareDenied, err))
		return ExitSetupFailure
	}
	pid := cmd.Process.Pid
	s.slots.ChildPID = pid
	logrus.Debugf("spawn: sandbox init pid %d (user namespace: %v)", pid, userNS)

	wire := &sandbox.WireConfig{
		Mode:          s.cfg.Mode,
		Command:       s.cfg.Command,
		Cwd:           s.cfg.Cwd,
		Hostname:      s.cfg.Hostname,
		TempBase:      s.plan.TempBase,
		TmpfsBase:     s.plan.TmpfsBase,
		Upper:         s.plan.Upper,
		Work:          s.plan.Work,
		Merged:        s.plan.Merged,
		UserNS:        userNS,
		ShellFallback: s.cfg.ShellFallback,
		Verbose:       s.cfg.Verbose,
	}
	b, err := wire.Encode()
	if err == nil {
		_, err = confW.Write(b)
	}
	confW.Close()
	if err != nil {
		unix.Kill(pid, unix.SIGKILL)
		cmd.Wait()
		fail(fmt.Errorf("send config: %w", err))
		return ExitSetupFailure
	}

	go forwardSignals(sigCh, pid)

	waitCh := make(chan error, 1)
	go func() { waitCh <- cmd.Wait() }()

	var deadline <-chan time.Time
	if s.cfg.Timeout > 0 {
		t := time.NewTimer(s.cfg.Timeout)
		defer t.Stop()
		deadline = t.C
	}

	select {
	case <-waitCh:
	case <-deadline:
		logrus.Debugf("timeout: killing pid %d after %v", pid, s.cfg.Timeout)
		unix.Kill(-pid, unix.SIGKILL)
		unix.Kill(pid, unix.SIGKILL)
		<-waitCh
		fail(fmt.Errorf("%w: command exceeded %v", errdefs.ErrTimeout, s.cfg.Timeout))
		return ExitTimeout
	}

	ws, ok := cmd.ProcessState.Sys().(syscall.WaitStatus)
	if !ok {
		return ExitSetupFailure
	}
	return translateStatus(unix.WaitStatus(ws))
}

// spawn re-executes this binary as the sandbox init process inside
// fresh namespaces, with the wire config pipe at fd 3.
func (s *Supervisor) spawn(userNS bool) (*exec.Cmd, *os.File, error) {
	confR, confW, err := os.Pipe()
	if err != nil {
		return nil, nil, err
	}

	cmd := exec.Command("/proc/self/exe", sandbox.InitArg)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.ExtraFiles = []*os.File{confR}

	attr := &syscall.SysProcAttr{
		Cloneflags: cloneFlags,
		Pdeathsig:  syscall.SIGKILL,
		Setpgid:    true,
	}
	if userNS {
		attr.Cloneflags |= unix.CLONE_NEWUSER
		// setgroups is denied before gid_map becomes writable; the Go
		// runtime performs the writes in the required order
		attr.UidMappings = []syscall.SysProcIDMap{{ContainerID: 0, HostID: os.Getuid(), Size: 1}}
		attr.GidMappings = []syscall.SysProcIDMap{{ContainerID: 0, HostID: os.Getgid(), Size: 1}}
		attr.GidMappingsEnableSetgroups = false
	}
	if term.IsTerminal(int(os.Stdin.Fd())) {
		// the sandbox shell runs as the foreground process group
		attr.Foreground = true
		attr.Ctty = 0
	}
	cmd.SysProcAttr = attr

	if err := cmd.Start(); err != nil {
		confR.Close()
		confW.Close()
		return nil, nil, err
	}
	confR.Close()
	return cmd, confW, nil
}

// forwardSignals relays termination signals to the child's process
// group until the channel is stopped.
func forwardSignals(sigCh chan os.Signal, pid int) {
	for sig := range sigCh {
		ss, ok := sig.(syscall.Signal)
		if !ok {
			continue
		}
		logrus.Debugf("signal: forwarding %v to pid %d", ss, pid)
		if err := unix.Kill(-pid, ss); err != nil {
			unix.Kill(pid, ss)
		}
	}
}

// reviewChanges drives the interactive reviewer and preserves the
// upper tree when the user declines.
func (s *Supervisor) reviewChanges() {
	reclaimTerminal()
	res, err := review.Run(review.Options{
		Upper:  s.plan.Upper,
		Target: s.cfg.InteractiveTarget,
		In:     os.Stdin,
		Out:    os.Stdout,
	})
	if err != nil {
		logrus.Warnf("review: %v", err)
	}
	// a failed review must not throw the upper tree away
	if res == review.Discarded || err != nil {
		upper := s.plan.Upper
		s.slots.KeepUpper()
		fmt.Printf("changes kept at %s\n", upper)
	}
}

// reclaimTerminal takes the controlling terminal back from the dead
// foreground process group before reading the prompt.
func reclaimTerminal() {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return
	}
	signal.Ignore(unix.SIGTTOU, unix.SIGTTIN)
	defer signal.Reset(unix.SIGTTOU, unix.SIGTTIN)
	if err := unix.IoctlSetPointerInt(fd, unix.TIOCSPGRP, unix.Getpgrp()); err != nil {
		logrus.Debugf("terminal: tcsetpgrp: %v", err)
	}
}

// fail prints an actionable error, with the remediation hint when one
// is known.
func fail(err error) {
	logrus.Error(err)
	if hint := errdefs.Hint(err); hint != "" {
		logrus.Error(hint)
	}
}
