package sandbox

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/poof-sh/poof/config"
)

// configFd is the inherited file descriptor carrying the wire config.
// The supervisor places the pipe read end at the first ExtraFiles slot.
const configFd = 3

// WireConfig is the run configuration the supervisor hands to the
// sandbox init process. The child re-derives nothing; every path it
// touches is decided before the fork.
type WireConfig struct {
	Mode    config.Mode `json:"mode"`
	Command []string    `json:"command"`

	Cwd      string `json:"cwd"`
	Hostname string `json:"hostname"`

	// TempBase gets a tmpfs mounted over it when TmpfsBase is set
	// (ephemeral mode), so the upper layer dies with the namespace.
	TempBase  string `json:"temp_base,omitempty"`
	TmpfsBase bool   `json:"tmpfs_base,omitempty"`

	Upper  string `json:"upper"`
	Work   string `json:"work"`
	Merged string `json:"merged"`

	// UserNS selects the unprivileged path: fuse-overlayfs + chroot
	// instead of kernel overlay + pivot_root.
	UserNS bool `json:"user_ns,omitempty"`

	// ShellFallback enables the /bin/sh fallback when Command[0] came
	// from $SHELL and is not executable inside the sandbox.
	ShellFallback bool `json:"shell_fallback,omitempty"`

	Verbose bool `json:"verbose,omitempty"`
}

// Encode serializes the wire config for the pipe.
func (c *WireConfig) Encode() ([]byte, error) {
	return json.Marshal(c)
}

func readWireConfig(fd uintptr) (*WireConfig, error) {
	f := os.NewFile(fd, "poof-config")
	if f == nil {
		return nil, fmt.Errorf("sandbox: config fd %d not open", fd)
	}
	defer f.Close()

	var c WireConfig
	if err := json.NewDecoder(f).Decode(&c); err != nil {
		return nil, fmt.Errorf("sandbox: decode config: %w", err)
	}
	if len(c.Command) == 0 {
		return nil, fmt.Errorf("sandbox: empty command")
	}
	return &c, nil
}
