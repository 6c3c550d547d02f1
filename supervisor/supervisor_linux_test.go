package supervisor

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/poof-sh/poof/config"
)

func TestTranslateStatus(t *testing.T) {
	tests := []struct {
		name string
		ws   unix.WaitStatus
		want int
	}{
		{name: "exit 0", ws: 0x0000, want: 0},
		{name: "exit 1", ws: 0x0100, want: 1},
		{name: "exit 42", ws: 0x2a00, want: 42},
		{name: "exit 255", ws: 0xff00, want: 255},
		{name: "sigkill", ws: unix.WaitStatus(unix.SIGKILL), want: 137},
		{name: "sigterm", ws: unix.WaitStatus(unix.SIGTERM), want: 143},
		{name: "sigint", ws: unix.WaitStatus(unix.SIGINT), want: 130},
		{name: "stopped", ws: 0x137f, want: 1},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, translateStatus(tc.ws))
		})
	}
}

func TestBuildPlanEphemeral(t *testing.T) {
	cfg := &config.Config{Mode: config.Ephemeral, Command: []string{"true"}}
	p, err := BuildPlan(cfg)
	require.NoError(t, err)
	defer os.RemoveAll(p.TempBase)

	assert.True(t, p.TmpfsBase)
	assert.NotEmpty(t, p.TempBase)
	assert.Equal(t, filepath.Join(p.TempBase, "upper"), p.Upper)
	assert.Equal(t, filepath.Join(p.TempBase, "work"), p.Work)
	assert.Equal(t, filepath.Join(p.TempBase, "merged"), p.Merged)
	assert.Contains(t, filepath.Base(p.TempBase), "poof-")
}

func TestBuildPlanInteractive(t *testing.T) {
	cfg := &config.Config{Mode: config.Interactive, Command: []string{"sh"}}
	p, err := BuildPlan(cfg)
	require.NoError(t, err)
	defer os.RemoveAll(p.TempBase)

	// interactive upper must survive on the host filesystem
	assert.False(t, p.TmpfsBase)
	assert.DirExists(t, p.TempBase)
}

func TestBuildPlanPersistentExplicit(t *testing.T) {
	dir := t.TempDir()
	upper := filepath.Join(dir, "u")
	cfg := &config.Config{Mode: config.Persistent, Command: []string{"make"}, UpperDir: upper}
	p, err := BuildPlan(cfg)
	require.NoError(t, err)

	assert.Equal(t, upper, p.Upper)
	assert.Equal(t, upper+".work", p.Work)
	assert.Equal(t, upper+".merged", p.Merged)
	assert.Empty(t, p.TempBase)
	assert.DirExists(t, p.Upper)
	assert.DirExists(t, p.Work)
	assert.DirExists(t, p.Merged)
}

func TestBuildPlanPersistentAutoName(t *testing.T) {
	dir := t.TempDir()
	cfg := &config.Config{Mode: config.Persistent, Command: []string{"/usr/bin/make"}, Cwd: dir}
	p, err := BuildPlan(cfg)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "make"), p.Upper)
}

func TestAutoUpperPathCollision(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2026, 8, 5, 13, 14, 15, 0, time.UTC)

	p := autoUpperPath(dir, "/usr/bin/make", now)
	assert.Equal(t, filepath.Join(dir, "make"), p)

	require.NoError(t, os.Mkdir(filepath.Join(dir, "make"), 0755))
	p = autoUpperPath(dir, "/usr/bin/make", now)
	assert.Equal(t, filepath.Join(dir, "make.20260805131415"), p)
}

func TestCleanupSlots(t *testing.T) {
	base := t.TempDir()
	sub := filepath.Join(base, "gone")
	require.NoError(t, os.MkdirAll(filepath.Join(sub, "inner"), 0755))

	s := &CleanupSlots{TempBase: sub}
	s.RemoveDirs()
	assert.NoDirExists(t, sub)
	assert.Empty(t, s.TempBase)

	// missing paths are ignored
	s = &CleanupSlots{TempBase: filepath.Join(base, "never-existed")}
	s.RemoveDirs()
}

func TestKeepUpper(t *testing.T) {
	s := &CleanupSlots{TempBase: "/a", WorkDir: "/b", MergedDir: "/c"}
	s.KeepUpper()
	assert.Empty(t, s.TempBase)
	assert.Empty(t, s.WorkDir)
	assert.Empty(t, s.MergedDir)
}
