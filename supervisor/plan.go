package supervisor

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/poof-sh/poof/config"
)

// Plan holds the overlay directory layout for one run. Work and upper
// must share a filesystem, the kernel overlay requires it; deriving
// work and merged as siblings of upper guarantees that.
type Plan struct {
	Upper, Work, Merged string

	// TempBase is the randomized base directory for ephemeral and
	// interactive runs; empty for persistent runs.
	TempBase string

	// TmpfsBase marks TempBase for a tmpfs mount inside the namespace.
	TmpfsBase bool
}

// BuildPlan allocates the directories for cfg and records every path
// the supervisor must clean up afterwards.
func BuildPlan(cfg *config.Config) (*Plan, error) {
	switch cfg.Mode {
	case config.Ephemeral, config.Interactive:
		var b [8]byte
		if _, err := rand.Read(b[:]); err != nil {
			return nil, fmt.Errorf("create temp base: %w", err)
		}
		base := filepath.Join(os.TempDir(), "poof-"+hex.EncodeToString(b[:]))
		if err := os.Mkdir(base, 0700); err != nil {
			return nil, fmt.Errorf("create temp base: %w", err)
		}
		return &Plan{
			Upper:     filepath.Join(base, "upper"),
			Work:      filepath.Join(base, "work"),
			Merged:    filepath.Join(base, "merged"),
			TempBase:  base,
			TmpfsBase: cfg.Mode == config.Ephemeral,
		}, nil

	case config.Persistent:
		upper := cfg.UpperDir
		if upper == "" {
			upper = autoUpperPath(cfg.Cwd, cfg.Command[0], time.Now())
		}
		p := &Plan{
			Upper:  upper,
			Work:   upper + ".work",
			Merged: upper + ".merged",
		}
		for _, d := range []string{p.Upper, p.Work, p.Merged} {
			if err := os.MkdirAll(d, 0755); err != nil {
				return nil, fmt.Errorf("create %s: %w", d, err)
			}
		}
		return p, nil
	}
	return nil, fmt.Errorf("unknown mode %v", cfg.Mode)
}

// autoUpperPath derives <cwd>/<basename(program)>, appending a
// timestamp only when the base path is already taken.
func autoUpperPath(cwd, program string, now time.Time) string {
	base := filepath.Join(cwd, filepath.Base(program))
	if _, err := os.Lstat(base); err != nil {
		return base
	}
	return base + "." + now.Format("20060102150405")
}
