// Package config defines the immutable run configuration built by the
// CLI and the optional defaults file loaded beneath it.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/poof-sh/poof/errdefs"
)

// Mode selects what happens to the overlay upper layer after exit.
type Mode int

const (
	// Ephemeral keeps the upper on tmpfs, discarded with the namespace.
	Ephemeral Mode = iota
	// Persistent keeps the upper in a real directory on the host.
	Persistent
	// Interactive keeps the upper in a per-run temp directory and
	// reviews the changes on exit.
	Interactive
)

func (m Mode) String() string {
	switch m {
	case Ephemeral:
		return "ephemeral"
	case Persistent:
		return "persistent"
	case Interactive:
		return "interactive"
	}
	return "unknown"
}

// Config is the immutable sandbox run configuration.
type Config struct {
	Mode    Mode
	Command []string

	// UpperDir is the explicit upper directory for persistent mode.
	UpperDir string

	// MemoryLimit and PidsLimit are cgroup limits; zero means none.
	MemoryLimit uint64
	PidsLimit   uint64

	// Timeout is the wall-clock deadline; zero means none.
	Timeout time.Duration

	Cwd      string
	Hostname string

	// InteractiveTarget is the host directory reviewed changes are
	// applied against; set only when the reviewer should run.
	InteractiveTarget string

	// ShellFallback marks Command[0] as coming from $SHELL, enabling
	// the /bin/sh fallback when it is not executable in the sandbox.
	ShellFallback bool

	Verbose bool
}

// HasLimits reports whether any cgroup limit was requested.
func (c *Config) HasLimits() bool {
	return c.MemoryLimit > 0 || c.PidsLimit > 0
}

// knownShells are the names that make a bare `poof <shell>` behave
// like `poof exec <shell>`.
var knownShells = map[string]bool{
	"bash": true,
	"zsh":  true,
	"fish": true,
	"sh":   true,
}

// IsKnownShell reports whether name (or its basename) is a shell.
func IsKnownShell(name string) bool {
	return knownShells[filepath.Base(name)]
}

// DefaultShell returns $SHELL, falling back to /bin/sh.
func DefaultShell() string {
	if s := os.Getenv("SHELL"); s != "" {
		return s
	}
	return "/bin/sh"
}

// ParseMemory parses a memory size of the form N[kKmMgG]. Bare numbers
// are bytes; suffixed values use binary multiples.
func ParseMemory(s string) (uint64, error) {
	if s == "" {
		return 0, nil
	}
	in := s
	if n := len(s); n > 1 {
		switch s[n-1] {
		case 'k', 'K':
			in = s[:n-1] + "KiB"
		case 'm', 'M':
			in = s[:n-1] + "MiB"
		case 'g', 'G':
			in = s[:n-1] + "GiB"
		}
	}
	v, err := humanize.ParseBytes(in)
	if err != nil {
		return 0, fmt.Errorf("%w: --memory=%s", errdefs.ErrInvalidOption, s)
	}
	return v, nil
}

// ParsePids parses a pids.max count.
func ParsePids(s string) (uint64, error) {
	if s == "" {
		return 0, nil
	}
	v, err := strconv.ParseUint(strings.TrimSpace(s), 10, 64)
	if err != nil || v == 0 {
		return 0, fmt.Errorf("%w: --pids=%s", errdefs.ErrInvalidOption, s)
	}
	return v, nil
}

// ParseTimeout parses a timeout in whole seconds.
func ParseTimeout(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	v, err := strconv.ParseUint(strings.TrimSpace(s), 10, 32)
	if err != nil {
		return 0, fmt.Errorf("%w: --timeout=%s", errdefs.ErrInvalidOption, s)
	}
	return time.Duration(v) * time.Second, nil
}
