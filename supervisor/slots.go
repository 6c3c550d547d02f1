package supervisor

import (
	"os"

	"github.com/poof-sh/poof/pkg/cgroup"
)

// CleanupSlots records everything the supervisor must reclaim on exit.
// The directory and cgroup slots are written once before the fork so
// cleanup works no matter where the child dies, and ChildPID right after
// the spawn; the signal path and the normal path converge here.
type CleanupSlots struct {
	TempBase  string
	WorkDir   string
	MergedDir string

	Group *cgroup.Group

	ChildPID int
}

// KeepUpper nulls the directory slots so a reviewed-but-declined upper
// tree survives for later inspection.
func (s *CleanupSlots) KeepUpper() {
	s.TempBase = ""
	s.WorkDir = ""
	s.MergedDir = ""
}

// RemoveDirs deletes the recorded directories. Best-effort; ENOENT and
// every other failure is ignored, hex-named leaks are recoverable
// out-of-band.
func (s *CleanupSlots) RemoveDirs() {
	for _, p := range []string{s.TempBase, s.WorkDir, s.MergedDir} {
		if p != "" {
			os.RemoveAll(p)
		}
	}
	s.TempBase = ""
	s.WorkDir = ""
	s.MergedDir = ""
}

// TeardownCgroup destroys the created cgroup, once.
func (s *CleanupSlots) TeardownCgroup() {
	if s.Group != nil {
		s.Group.Destroy()
		s.Group = nil
	}
}
