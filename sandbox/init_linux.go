package sandbox

import (
	"errors"
	"os"
	"os/exec"
	"syscall"

	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	"github.com/poof-sh/poof/errdefs"
)

// InitArg is the argv marker that turns a re-exec of /proc/self/exe
// into the sandbox init process.
const InitArg = "__poof-init"

// Init is called from the command's init function. It is a noop unless
// the process is the sandbox init (PID 1 of the fresh PID namespace,
// re-executed with the marker argument); in that case it brings up the
// overlay root and execs the target program, never returning.
func Init() {
	// Notice: docker init is also pid 1, hence the argv check
	if os.Getpid() != 1 || len(os.Args) != 2 || os.Args[1] != InitArg {
		return
	}
	os.Exit(initProcess())
}

func initProcess() int {
	cfg, err := readWireConfig(configFd)
	if err != nil {
		logrus.Error(err)
		return 1
	}
	logrus.SetOutput(os.Stderr)
	if cfg.Verbose {
		logrus.SetLevel(logrus.DebugLevel)
	}

	// parent death must take the whole namespace down
	if err := unix.Prctl(unix.PR_SET_PDEATHSIG, uintptr(unix.SIGKILL), 0, 0, 0); err != nil {
		logrus.Warnf("init: set parent death signal: %v", err)
	}
	if err := unix.Sethostname([]byte(cfg.Hostname)); err != nil {
		logrus.Warnf("init: set hostname: %v", err)
	}

	helper, err := setupRoot(cfg)
	if err != nil {
		logrus.Errorf("init: %v", err)
		if hint := errdefs.Hint(err); hint != "" {
			logrus.Error(hint)
		}
		return 1
	}
	// the helper stays alive until the namespace dies; nothing to do
	// with it here beyond keeping the mount valid
	_ = helper

	os.Setenv("IS_SANDBOX", "1")
	return execTarget(cfg)
}

// execTarget resolves and executes the command, replacing this
// process. It only returns on failure, with the conventional 127.
func execTarget(cfg *WireConfig) int {
	argv := cfg.Command
	path, err := exec.LookPath(argv[0])
	if err == nil {
		err = unix.Exec(path, argv, os.Environ())
	}
	if cfg.ShellFallback && isNotExecutable(err) {
		logrus.Warnf("init: %s not usable in sandbox, falling back to /bin/sh", argv[0])
		err = unix.Exec("/bin/sh", append([]string{"/bin/sh"}, argv[1:]...), os.Environ())
	}
	logrus.Errorf("init: %v: %v", errdefs.ErrExecFailed, err)
	return 127
}

func isNotExecutable(err error) bool {
	return errors.Is(err, syscall.ENOENT) || errors.Is(err, syscall.EACCES) ||
		errors.Is(err, exec.ErrNotFound)
}
